package capture

import (
	"errors"
	"sync"
)

// FakeServer is an in-memory Server for testing. Fill paints every pixel
// with the low byte of the source coordinates and a zero alpha.
type FakeServer struct {
	mu sync.Mutex

	Topology   Topology
	PointerX   int
	PointerY   int
	OutputsErr error
	PointerErr error
	ImageErr   error
	FillErr    error

	live     int
	allocs   int
	lastSize [2]int
	closed   bool
}

// Outputs returns the configured topology.
func (f *FakeServer) Outputs() (Topology, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.OutputsErr != nil {
		return Topology{}, f.OutputsErr
	}
	return Topology{Outputs: append([]Output(nil), f.Topology.Outputs...)}, nil
}

// Pointer returns the configured pointer position.
func (f *FakeServer) Pointer() (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.PointerX, f.PointerY, f.PointerErr
}

// NewImage allocates a tracked image.
func (f *FakeServer) NewImage(width, height int) (Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ImageErr != nil {
		return nil, f.ImageErr
	}
	f.live++
	f.allocs++
	f.lastSize = [2]int{width, height}
	return &fakeImage{srv: f, width: width, height: height, data: make([]byte, width*height*4)}, nil
}

// Close marks the server closed.
func (f *FakeServer) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// LiveImages returns allocated images not yet released.
func (f *FakeServer) LiveImages() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.live
}

// Allocations returns the number of NewImage successes.
func (f *FakeServer) Allocations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.allocs
}

// LastSize returns the size of the last allocated image.
func (f *FakeServer) LastSize() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastSize[0], f.lastSize[1]
}

type fakeImage struct {
	srv           *FakeServer
	width, height int
	data          []byte
	released      bool
}

func (img *fakeImage) Fill(x, y int) error {
	img.srv.mu.Lock()
	fillErr := img.srv.FillErr
	img.srv.mu.Unlock()
	if img.released {
		return errors.New("image released")
	}
	if fillErr != nil {
		return fillErr
	}
	for row := 0; row < img.height; row++ {
		for col := 0; col < img.width; col++ {
			i := (row*img.width + col) * 4
			img.data[i] = byte(x + col)
			img.data[i+1] = byte(y + row)
			img.data[i+2] = 0x80
			img.data[i+3] = 0
		}
	}
	return nil
}

func (img *fakeImage) Bytes() []byte { return img.data }

func (img *fakeImage) Release() error {
	if img.released {
		return errors.New("image already released")
	}
	img.released = true
	img.srv.mu.Lock()
	img.srv.live--
	img.srv.mu.Unlock()
	return nil
}
