//go:build linux

// Package evdi provides pure Go bindings to the EVDI (Extensible Virtual
// Display Interface) kernel module.
//
// EVDI exposes virtual DRM cards whose framebuffers are read by software.
// This package talks to the module through sysfs and DRM ioctls without
// cgo and without libevdi.
//
// # Opening a Display
//
// Find or create a card, connect it with an EDID and read frames:
//
//	dev, err := evdi.OpenAvailable()
//	if err != nil { ... }
//	defer dev.Close()
//	dev.Connect(edid, 1920*1080, 0)
//
//	if ready, _ := dev.RequestUpdate(); ready {
//	    n, _ := dev.Grab(buf, width, height, stride, rects)
//	}
//
// # Events
//
// The card descriptor is non-blocking. ReadEvents drains mode changes,
// DPMS changes, cursor updates and update-ready notifications:
//
//	events, _ := dev.ReadEvents(nil)
//	for _, ev := range events {
//	    if ev.Type == evdi.EventModeChanged { ... }
//	}
package evdi

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Sysfs locations of the EVDI module.
const (
	ModuleDir     = "/sys/devices/evdi"
	platformGlob  = "/sys/bus/platform/devices/evdi.*/drm/card*"
	devDRIPattern = "/dev/dri/%s"
)

// MaxRects is the number of dirty rectangles the kernel reports per grab.
const MaxRects = 16

// Errors.
var (
	ErrNotLoaded = errors.New("evdi kernel module not loaded")
	ErrNoDevice  = errors.New("no evdi device available")
)

// ClipRect is a dirty rectangle, X2/Y2 exclusive.
type ClipRect struct {
	X1, Y1, X2, Y2 uint16
}

// Loaded reports whether the EVDI module is present.
func Loaded() bool {
	_, err := os.Stat(ModuleDir)
	return err == nil
}

// Version returns the module version string, or "" when unknown.
func Version() string {
	data, err := os.ReadFile(filepath.Join(ModuleDir, "version"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// FindCards lists the DRM card nodes backed by EVDI, in sysfs order.
func FindCards() ([]string, error) {
	if !Loaded() {
		return nil, ErrNotLoaded
	}
	matches, err := filepath.Glob(platformGlob)
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)

	cards := make([]string, 0, len(matches))
	for _, m := range matches {
		cards = append(cards, fmt.Sprintf(devDRIPattern, filepath.Base(m)))
	}
	return cards, nil
}

// AddDevice asks the module to create one more EVDI card.
func AddDevice() error {
	if !Loaded() {
		return ErrNotLoaded
	}
	f, err := os.OpenFile(filepath.Join(ModuleDir, "add"), os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("open evdi add: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString("1"); err != nil {
		return fmt.Errorf("add evdi device: %w", err)
	}
	return nil
}

// OpenAvailable opens the first EVDI card that accepts an open, adding a
// card when none exists.
func OpenAvailable() (*Device, error) {
	cards, err := FindCards()
	if err != nil {
		return nil, err
	}
	if len(cards) == 0 {
		if err := AddDevice(); err != nil {
			return nil, err
		}
		if cards, err = FindCards(); err != nil {
			return nil, err
		}
	}

	var lastErr error
	for _, card := range cards {
		dev, err := Open(card)
		if err == nil {
			return dev, nil
		}
		lastErr = err
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoDevice, lastErr)
	}
	return nil, ErrNoDevice
}

// Device is an open EVDI card.
type Device struct {
	fd    int
	path  string
	event []byte
	rects [MaxRects]drmClipRect
}

// Open opens an EVDI card node and drops DRM master so the display server
// can take the output.
func Open(path string) (*Device, error) {
	fd, err := open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if _, err := ioctl(fd, drmIoctlDropMaster, nil); err != nil && !errors.Is(err, unix.EINVAL) {
		// EINVAL means this descriptor never held master.
		_ = closeFD(fd)
		return nil, fmt.Errorf("drop master on %s: %w", path, err)
	}
	return &Device{fd: fd, path: path, event: make([]byte, 1024)}, nil
}

// Path returns the card node.
func (d *Device) Path() string { return d.path }

// FD returns the card descriptor.
func (d *Device) FD() int { return d.fd }

// Connect plugs a virtual monitor described by edid into the card.
// pixelAreaLimit bounds the largest mode the kernel offers and
// pixelPerSecondLimit bounds width*height*refresh of that mode.
func (d *Device) Connect(edid []byte, pixelAreaLimit, pixelPerSecondLimit uint32) error {
	if len(edid) == 0 {
		return errors.New("evdi connect: empty edid")
	}
	req := drmEvdiConnect{
		connected:           1,
		devIndex:            0,
		edid:                unsafe.Pointer(&edid[0]),
		edidLength:          uint32(len(edid)),
		pixelAreaLimit:      pixelAreaLimit,
		pixelPerSecondLimit: pixelPerSecondLimit,
	}
	_, err := ioctl(d.fd, drmIoctlEvdiConnect, unsafe.Pointer(&req))
	runtime.KeepAlive(edid)
	if err != nil {
		return fmt.Errorf("evdi connect: %w", err)
	}
	return nil
}

// Disconnect unplugs the virtual monitor.
func (d *Device) Disconnect() error {
	req := drmEvdiConnect{}
	if _, err := ioctl(d.fd, drmIoctlEvdiConnect, unsafe.Pointer(&req)); err != nil {
		return fmt.Errorf("evdi disconnect: %w", err)
	}
	return nil
}

// EnableCursorEvents switches cursor reporting between separate cursor
// events (true) and a cursor composited into the framebuffer (false).
func (d *Device) EnableCursorEvents(enable bool) error {
	req := drmEvdiEnableCursorEvents{}
	if enable {
		req.enable = 1
	}
	if _, err := ioctl(d.fd, drmIoctlEvdiEnableCursorEvents, unsafe.Pointer(&req)); err != nil {
		return fmt.Errorf("evdi enable cursor events: %w", err)
	}
	return nil
}

// RequestUpdate asks for the next frame. It reports true when pixels can
// be grabbed immediately; otherwise an EventUpdateReady follows.
func (d *Device) RequestUpdate() (bool, error) {
	req := drmEvdiRequestUpdate{}
	r, err := ioctl(d.fd, drmIoctlEvdiRequestUpdate, unsafe.Pointer(&req))
	if err != nil {
		return false, fmt.Errorf("evdi request update: %w", err)
	}
	return r == 1, nil
}

// Grab copies the framebuffer into buf, which holds height rows of stride
// bytes, and stores up to len(rects) dirty rectangles. It returns the number
// of rectangles reported by the kernel.
func (d *Device) Grab(buf []byte, width, height, stride int, rects []ClipRect) (int, error) {
	if len(buf) < stride*height || len(buf) == 0 {
		return 0, fmt.Errorf("evdi grab: buffer holds %d bytes, need %d", len(buf), stride*height)
	}
	req := drmEvdiGrabpix{
		mode:          grabpixModeDirty,
		bufWidth:      int32(width),
		bufHeight:     int32(height),
		bufByteStride: int32(stride),
		buffer:        unsafe.Pointer(&buf[0]),
		numRects:      MaxRects,
		rects:         unsafe.Pointer(&d.rects[0]),
	}
	_, err := ioctl(d.fd, drmIoctlEvdiGrabpix, unsafe.Pointer(&req))
	runtime.KeepAlive(buf)
	if err != nil {
		return 0, fmt.Errorf("evdi grab: %w", err)
	}

	n := int(req.numRects)
	if n > MaxRects {
		n = MaxRects
	}
	for i := 0; i < n && i < len(rects); i++ {
		r := d.rects[i]
		rects[i] = ClipRect{X1: r.x1, Y1: r.y1, X2: r.x2, Y2: r.y2}
	}
	return n, nil
}

// ReadEvents drains the pending DRM events without blocking and appends
// them to dst.
func (d *Device) ReadEvents(dst []Event) ([]Event, error) {
	for {
		n, err := unix.Read(d.fd, d.event)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) {
				return dst, nil
			}
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return dst, fmt.Errorf("read evdi events: %w", err)
		}
		if n == 0 {
			return dst, nil
		}
		parsed, err := ParseEvents(d.event[:n])
		dst = append(dst, parsed...)
		if err != nil {
			return dst, err
		}
	}
}

// Close releases the card descriptor. It does not disconnect the monitor.
func (d *Device) Close() error {
	return closeFD(d.fd)
}
