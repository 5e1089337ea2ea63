package sink

import (
	"errors"
	"log/slog"

	"github.com/smazurov/usbdisplay/internal/frame"
	"github.com/smazurov/usbdisplay/internal/logging"
)

var errNotInitialized = errors.New("sink not initialized")

// Discard drops every frame. Geometry changes are logged.
type Discard struct {
	logger *slog.Logger
	ready  bool
	width  int
	height int
	frames uint64
}

// NewDiscard returns a discard sink.
func NewDiscard() *Discard {
	return &Discard{logger: logging.GetLogger("sink")}
}

func (d *Discard) Init(Device) error {
	d.ready = true
	d.frames = 0
	d.logger.Debug("Discard sink initialized")
	return nil
}

func (d *Discard) StartEncode(buf *frame.Buffer) error {
	if !d.ready {
		return errNotInitialized
	}
	if buf.Width != d.width || buf.Height != d.height {
		d.logger.Info("Frame geometry changed", "width", buf.Width, "height", buf.Height, "pitch", buf.Pitch)
		d.width, d.height = buf.Width, buf.Height
	}
	d.frames++
	return nil
}

func (d *Discard) SetResolution(width, height int) error {
	if !d.ready {
		return errNotInitialized
	}
	d.logger.Info("Resolution set", "width", width, "height", height)
	d.width, d.height = width, height
	return nil
}

func (d *Discard) Teardown() error {
	if d.ready {
		d.logger.Debug("Discard sink torn down", "frames", d.frames)
	}
	d.ready = false
	return nil
}

// Frames returns the number of frames accepted since Init.
func (d *Discard) Frames() uint64 { return d.frames }
