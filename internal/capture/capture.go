// Package capture grabs a RandR output of the X server through MIT-SHM.
package capture

import (
	"fmt"
	"log/slog"

	"github.com/smazurov/usbdisplay/internal/cursor"
	"github.com/smazurov/usbdisplay/internal/frame"
	"github.com/smazurov/usbdisplay/internal/logging"
)

// Image is a shared-memory image attached to the server.
type Image interface {
	// Fill asks the server to copy the region at (x, y) into the image.
	Fill(x, y int) error
	// Bytes exposes the image memory, rows of Width*4 bytes.
	Bytes() []byte
	// Release detaches the image from the server and from this process.
	Release() error
}

// Server is a connection to a display server.
type Server interface {
	Outputs() (Topology, error)
	Pointer() (x, y int, err error)
	NewImage(width, height int) (Image, error)
	Close() error
}

// Capturer captures one output per call. Topology is re-read every call.
type Capturer struct {
	srv          Server
	extendedName string
	cursor       *cursor.State
	logger       *slog.Logger
}

// NewCapturer returns a capturer on srv. When cur is non-nil it receives
// the pointer position relative to the captured output.
func NewCapturer(srv Server, extendedName string, cur *cursor.State) *Capturer {
	if extendedName == "" {
		extendedName = DefaultExtendedOutput
	}
	return &Capturer{
		srv:          srv,
		extendedName: extendedName,
		cursor:       cur,
		logger:       logging.GetLogger("capture"),
	}
}

// Capture copies the extended output, or the primary output when extended
// is false or the extended output is unavailable, into an owned opaque
// buffer.
func (c *Capturer) Capture(extended bool) (*frame.Buffer, Output, error) {
	topo, err := c.srv.Outputs()
	if err != nil {
		return nil, Output{}, fmt.Errorf("read output topology: %w", err)
	}
	out, err := topo.Select(extended, c.extendedName)
	if err != nil {
		return nil, Output{}, err
	}
	if extended && out.Name != c.extendedName {
		c.logger.Debug("Extended output unavailable, capturing primary", "output", out.Name)
	}

	buf, err := c.grab(out)
	if err != nil {
		return nil, out, err
	}

	if c.cursor != nil {
		if x, y, err := c.srv.Pointer(); err == nil {
			c.cursor.Move(x-out.X, y-out.Y)
		} else {
			c.logger.Debug("Pointer query failed", "error", err)
		}
	}
	return buf, out, nil
}

func (c *Capturer) grab(out Output) (buf *frame.Buffer, err error) {
	img, err := c.srv.NewImage(out.Width, out.Height)
	if err != nil {
		return nil, fmt.Errorf("allocate shared image %dx%d: %w", out.Width, out.Height, err)
	}
	defer func() {
		if relErr := img.Release(); relErr != nil {
			c.logger.Warn("Failed to release shared image", "error", relErr)
		}
	}()

	if err := img.Fill(out.X, out.Y); err != nil {
		return nil, fmt.Errorf("capture %s: %w", out.Name, err)
	}

	pitch := out.Width * frame.BytesPerPixel
	buf, err = frame.FromBytes(img.Bytes(), out.Width, out.Height, pitch)
	if err != nil {
		return nil, err
	}
	buf.ForceOpaque()
	return buf, nil
}
