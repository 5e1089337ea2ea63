package sink

import (
	"sync"

	"github.com/smazurov/usbdisplay/internal/frame"
)

// RecordedFrame is a copy of a frame passed to a Recorder.
type RecordedFrame struct {
	Width, Height, Pitch int
	Opaque               bool
	Pix                  []byte
}

// Recorder is a Sink for testing that keeps a copy of everything it sees.
type Recorder struct {
	mu sync.Mutex

	InitErr     error
	EncodeErr   error
	TeardownErr error

	device      Device
	inits       int
	teardowns   int
	frames      []RecordedFrame
	resolutions [][2]int
	active      bool
}

func (r *Recorder) Init(dev Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.InitErr != nil {
		return r.InitErr
	}
	r.inits++
	r.device = dev
	r.active = true
	return nil
}

func (r *Recorder) StartEncode(buf *frame.Buffer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return errNotInitialized
	}
	if r.EncodeErr != nil {
		return r.EncodeErr
	}
	r.frames = append(r.frames, RecordedFrame{
		Width:  buf.Width,
		Height: buf.Height,
		Pitch:  buf.Pitch,
		Opaque: buf.Opaque(),
		Pix:    append([]byte(nil), buf.Bytes()...),
	})
	return nil
}

func (r *Recorder) SetResolution(width, height int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolutions = append(r.resolutions, [2]int{width, height})
	return nil
}

func (r *Recorder) Teardown() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.teardowns++
	r.active = false
	r.device = nil
	return r.TeardownErr
}

// Frames returns copies of the frames received so far.
func (r *Recorder) Frames() []RecordedFrame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RecordedFrame(nil), r.frames...)
}

// Resolutions returns every SetResolution call.
func (r *Recorder) Resolutions() [][2]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][2]int(nil), r.resolutions...)
}

// Inits returns the number of successful Init calls.
func (r *Recorder) Inits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inits
}

// Teardowns returns the number of Teardown calls.
func (r *Recorder) Teardowns() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.teardowns
}

// Active reports whether the sink is between Init and Teardown.
func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Device returns the handle passed to the last Init.
func (r *Recorder) Device() Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.device
}
