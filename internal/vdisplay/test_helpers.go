//go:build linux

package vdisplay

import (
	"errors"
	"sync"

	"github.com/smazurov/usbdisplay/internal/identity"
	"github.com/smazurov/usbdisplay/pkg/linuxav/evdi"
)

// FakeDevice simulates an EVDI card for testing. Connect queues a mode
// change to the identity block's preferred mode, every RequestUpdate is
// immediately ready unless Deferred is set, and Grab fills the buffer with
// a pattern whose alpha bytes are zero.
type FakeDevice struct {
	mu sync.Mutex

	Deferred   bool // RequestUpdate reports not ready; call Ready to queue update-ready
	ConnectErr error

	connected bool
	closed    bool
	edid      []byte
	areaLimit uint32
	pending   []evdi.Event
	grabs     int
	requests  int
}

// Connect records the edid and queues the resulting mode change.
func (f *FakeDevice) Connect(edid []byte, pixelAreaLimit, _ uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ConnectErr != nil {
		return f.ConnectErr
	}
	f.connected = true
	f.edid = append([]byte(nil), edid...)
	f.areaLimit = pixelAreaLimit

	if m, err := identity.FromBytes(edid).PreferredMode(); err == nil {
		f.pending = append(f.pending, evdi.Event{
			Type: evdi.EventModeChanged,
			Mode: evdi.Mode{Width: m.Width, Height: m.Height, RefreshRate: m.RefreshHz, BitsPerPixel: 32},
		})
	}
	return nil
}

// Disconnect marks the monitor unplugged.
func (f *FakeDevice) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	return nil
}

// EnableCursorEvents is accepted and ignored.
func (f *FakeDevice) EnableCursorEvents(bool) error { return nil }

// RequestUpdate reports whether a grab can happen now.
func (f *FakeDevice) RequestUpdate() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false, errors.New("device closed")
	}
	f.requests++
	return !f.Deferred, nil
}

// Grab fills buf with a gradient and reports one dirty rectangle.
func (f *FakeDevice) Grab(buf []byte, width, height, stride int, rects []evdi.ClipRect) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, errors.New("device closed")
	}
	f.grabs++
	for y := 0; y < height; y++ {
		row := buf[y*stride : y*stride+width*4]
		for i := 0; i < len(row); i += 4 {
			row[i], row[i+1], row[i+2], row[i+3] = byte(i), byte(y), byte(f.grabs), 0
		}
	}
	if len(rects) > 0 {
		rects[0] = evdi.ClipRect{X2: uint16(width), Y2: uint16(height)}
	}
	return 1, nil
}

// ReadEvents returns and clears the queued events.
func (f *FakeDevice) ReadEvents(dst []evdi.Event) ([]evdi.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	dst = append(dst, f.pending...)
	f.pending = nil
	return dst, nil
}

// Close marks the device closed.
func (f *FakeDevice) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.New("device already closed")
	}
	f.closed = true
	return nil
}

// Push queues a card event.
func (f *FakeDevice) Push(ev evdi.Event) {
	f.mu.Lock()
	f.pending = append(f.pending, ev)
	f.mu.Unlock()
}

// Ready queues an update-ready event.
func (f *FakeDevice) Ready() { f.Push(evdi.Event{Type: evdi.EventUpdateReady}) }

// Connected reports whether a monitor is plugged in.
func (f *FakeDevice) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// Closed reports whether Close was called.
func (f *FakeDevice) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// AreaLimit returns the pixel area limit passed to Connect.
func (f *FakeDevice) AreaLimit() uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.areaLimit
}

// EDID returns the block passed to Connect.
func (f *FakeDevice) EDID() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte(nil), f.edid...)
}

// Grabs returns the number of Grab calls.
func (f *FakeDevice) Grabs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.grabs
}
