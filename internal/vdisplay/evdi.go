//go:build linux

package vdisplay

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/smazurov/usbdisplay/internal/frame"
	"github.com/smazurov/usbdisplay/internal/identity"
	"github.com/smazurov/usbdisplay/internal/logging"
	"github.com/smazurov/usbdisplay/pkg/linuxav/evdi"
)

// Pixel limits used when the identity block carries no timing.
const (
	fallbackAreaLimit      = 3840 * 2160
	fallbackPerSecondLimit = 3840 * 2160 * 60
)

// Device is the subset of an EVDI card used by the display.
type Device interface {
	Connect(edid []byte, pixelAreaLimit, pixelPerSecondLimit uint32) error
	Disconnect() error
	EnableCursorEvents(enable bool) error
	RequestUpdate() (bool, error)
	Grab(buf []byte, width, height, stride int, rects []evdi.ClipRect) (int, error)
	ReadEvents(dst []evdi.Event) ([]evdi.Event, error)
	Close() error
}

// Probe reports ErrNoBackend when the EVDI module is not loaded.
func Probe() error {
	if !evdi.Loaded() {
		return fmt.Errorf("%w: %v", ErrNoBackend, evdi.ErrNotLoaded)
	}
	return nil
}

// EVDIOpener opens displays on EVDI cards.
type EVDIOpener struct{}

// Open finds or creates an EVDI card and connects a monitor described by
// block.
func (EVDIOpener) Open(block identity.Block, opts Options) (Display, error) {
	dev, err := evdi.OpenAvailable()
	if err != nil {
		if errors.Is(err, evdi.ErrNotLoaded) || errors.Is(err, evdi.ErrNoDevice) {
			return nil, fmt.Errorf("%w: %v", ErrNoBackend, err)
		}
		return nil, err
	}
	logging.GetLogger("vdisplay").Info("Opened EVDI card", "path", dev.Path(), "module_version", evdi.Version())

	d, err := OpenDevice(dev, block, opts)
	if err != nil {
		_ = dev.Close()
		return nil, err
	}
	return d, nil
}

// EVDIDisplay is a Display backed by an EVDI card.
type EVDIDisplay struct {
	dev       Device
	opts      Options
	preferred Mode
	mode      Mode
	stride    int
	pix       []byte
	rects     [evdi.MaxRects]evdi.ClipRect
	events    []evdi.Event

	requested   bool // update requested, waiting for update-ready
	updateReady bool
	latched     bool // grabbed and not yet handed out
	closed      bool
	logger      *slog.Logger
}

// OpenDevice connects a monitor described by block on dev. The display owns
// dev from then on.
func OpenDevice(dev Device, block identity.Block, opts Options) (*EVDIDisplay, error) {
	logger := logging.GetLogger("vdisplay")
	if block.Empty() {
		return nil, fmt.Errorf("open virtual display: %w", identity.ErrTooShort)
	}

	d := &EVDIDisplay{dev: dev, opts: opts, logger: logger}

	area, perSecond := uint32(fallbackAreaLimit), uint32(fallbackPerSecondLimit)
	if pm, err := preferredMode(block); err == nil {
		d.preferred = pm
		area = uint32(pm.Width * pm.Height)
		refresh := pm.RefreshHz
		if refresh <= 0 {
			refresh = 60
		}
		perSecond = uint32(pm.Width * pm.Height * refresh)
	} else {
		logger.Warn("Identity block has no preferred mode, using default limits", "error", err)
	}

	if err := dev.Connect(block.Bytes(), area, perSecond); err != nil {
		return nil, fmt.Errorf("connect virtual display: %w", err)
	}
	if err := dev.EnableCursorEvents(opts.CursorEvents); err != nil {
		// Older modules lack the ioctl and always draw the cursor.
		logger.Debug("Cursor event control unavailable", "error", err)
	}

	logger.Info("Virtual display connected",
		"preferred", d.preferred.String(),
		"fingerprint", block.Fingerprint(),
		"cursor_events", opts.CursorEvents)
	return d, nil
}

// HandleEvents drains pending card events.
func (d *EVDIDisplay) HandleEvents() error {
	if d.closed {
		return ErrClosed
	}
	events, err := d.dev.ReadEvents(d.events[:0])
	d.events = events
	for _, ev := range events {
		d.dispatch(ev)
	}
	return err
}

func (d *EVDIDisplay) dispatch(ev evdi.Event) {
	switch ev.Type {
	case evdi.EventModeChanged:
		d.setMode(ev.Mode)
	case evdi.EventUpdateReady:
		if d.requested {
			d.updateReady = true
		}
	case evdi.EventDPMS:
		d.logger.Info("DPMS changed", "mode", ev.DPMS)
		if cb := d.opts.Callbacks.OnDPMS; cb != nil {
			cb(int(ev.DPMS))
		}
	case evdi.EventCursorMove:
		if cb := d.opts.Callbacks.OnCursorMove; cb != nil {
			cb(int(ev.CursorX), int(ev.CursorY))
		}
	case evdi.EventCursorSet:
		d.logger.Debug("Cursor set",
			"enabled", ev.Cursor.Enabled,
			"hot_x", ev.Cursor.HotX,
			"hot_y", ev.Cursor.HotY)
	case evdi.EventCRTCState:
		d.logger.Debug("CRTC state changed", "state", ev.CRTCState)
	default:
		d.logger.Debug("Ignoring card event", "event", ev.String())
	}
}

func (d *EVDIDisplay) setMode(m evdi.Mode) {
	mode := Mode{Width: m.Width, Height: m.Height, RefreshHz: m.RefreshRate}
	if !mode.Valid() {
		d.logger.Warn("Ignoring invalid mode", "mode", mode.String())
		return
	}
	stride := mode.Width * frame.BytesPerPixel
	if size := stride * mode.Height; size != len(d.pix) {
		d.pix = make([]byte, size)
	}
	d.mode, d.stride = mode, stride
	// A pending update belongs to the old geometry.
	d.requested, d.updateReady, d.latched = false, false, false

	d.logger.Info("Mode changed", "mode", mode.String(), "bpp", m.BitsPerPixel)
	if cb := d.opts.Callbacks.OnModeChange; cb != nil {
		cb(mode)
	}
}

// GrabRects requests an update if none is outstanding and latches the
// frame once the card reports it ready.
func (d *EVDIDisplay) GrabRects() ([]frame.Rect, error) {
	if d.closed {
		return nil, ErrClosed
	}
	if !d.mode.Valid() {
		return nil, fmt.Errorf("%w: no mode yet", ErrNotReady)
	}

	if !d.updateReady {
		if !d.requested {
			ready, err := d.dev.RequestUpdate()
			if err != nil {
				return nil, err
			}
			d.requested = true
			d.updateReady = ready
		}
		if !d.updateReady {
			return nil, fmt.Errorf("%w: update pending", ErrNotReady)
		}
	}

	n, err := d.dev.Grab(d.pix, d.mode.Width, d.mode.Height, d.stride, d.rects[:])
	d.requested, d.updateReady = false, false
	if err != nil {
		return nil, err
	}
	d.latched = true

	rects := make([]frame.Rect, 0, n)
	for _, r := range d.rects[:min(n, len(d.rects))] {
		rects = append(rects, frame.Rect{X1: int(r.X1), Y1: int(r.Y1), X2: int(r.X2), Y2: int(r.Y2)})
	}
	return rects, nil
}

// Buffer returns an owned, opaque copy of the latched frame.
func (d *EVDIDisplay) Buffer() (*frame.Buffer, error) {
	if d.closed {
		return nil, ErrClosed
	}
	if !d.latched {
		return nil, fmt.Errorf("%w: no frame latched", ErrNotReady)
	}
	d.latched = false

	buf, err := frame.FromBytes(d.pix, d.mode.Width, d.mode.Height, d.stride)
	if err != nil {
		return nil, err
	}
	buf.ForceOpaque()
	return buf, nil
}

// Mode returns the mode last reported by the card.
func (d *EVDIDisplay) Mode() Mode { return d.mode }

// Preferred returns the mode taken from the identity block.
func (d *EVDIDisplay) Preferred() Mode { return d.preferred }

// Close disconnects the monitor and closes the card.
func (d *EVDIDisplay) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	if err := d.dev.Disconnect(); err != nil {
		d.logger.Warn("Failed to disconnect virtual display", "error", err)
	}
	d.pix = nil
	return d.dev.Close()
}
