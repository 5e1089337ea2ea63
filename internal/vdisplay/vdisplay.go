// Package vdisplay opens a virtual display sized from an identity block and
// hands out its frames.
package vdisplay

import (
	"errors"
	"fmt"

	"github.com/smazurov/usbdisplay/internal/frame"
	"github.com/smazurov/usbdisplay/internal/identity"
)

// Errors.
var (
	// ErrNotReady means no frame can be read this tick. It is transient.
	ErrNotReady = errors.New("virtual display not ready")
	// ErrNoBackend means the host has no usable virtual display backend.
	ErrNoBackend = errors.New("no usable virtual display backend")
	// ErrClosed is returned by a closed display.
	ErrClosed = errors.New("virtual display closed")
)

// Mode is the current display mode.
type Mode struct {
	Width     int
	Height    int
	RefreshHz int
}

func (m Mode) String() string {
	return fmt.Sprintf("%dx%d@%d", m.Width, m.Height, m.RefreshHz)
}

// Valid reports whether the mode has a usable geometry.
func (m Mode) Valid() bool { return m.Width > 0 && m.Height > 0 }

// DPMS modes reported through Callbacks.OnDPMS.
const (
	DPMSOn  = 0
	DPMSOff = 3
)

// Callbacks receive notifications while HandleEvents runs. They execute on
// the caller's goroutine.
type Callbacks struct {
	OnCursorMove func(x, y int)
	OnDPMS       func(mode int)
	OnModeChange func(m Mode)
}

// Options configure a display.
type Options struct {
	// CursorEvents asks the backend to report the cursor separately instead
	// of drawing it into the framebuffer.
	CursorEvents bool
	Callbacks    Callbacks
}

// Display is an open virtual display. GrabRects and then Buffer are called
// once per tick, in that order.
type Display interface {
	// HandleEvents drains backend notifications without blocking.
	HandleEvents() error
	// GrabRects latches the current frame and returns its dirty
	// rectangles. It returns ErrNotReady when no frame is available.
	GrabRects() ([]frame.Rect, error)
	// Buffer returns an owned, opaque copy of the latched frame.
	Buffer() (*frame.Buffer, error)
	// Mode returns the current mode; zero until the backend reports one.
	Mode() Mode
	// Preferred returns the mode requested from the identity block.
	Preferred() Mode
	Close() error
}

// Opener opens displays for identity blocks.
type Opener interface {
	Open(block identity.Block, opts Options) (Display, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(block identity.Block, opts Options) (Display, error)

// Open calls f.
func (f OpenerFunc) Open(block identity.Block, opts Options) (Display, error) {
	return f(block, opts)
}

func preferredMode(block identity.Block) (Mode, error) {
	m, err := block.PreferredMode()
	if err != nil {
		return Mode{}, fmt.Errorf("identity preferred mode: %w", err)
	}
	return Mode{Width: m.Width, Height: m.Height, RefreshHz: m.RefreshHz}, nil
}
