// Package frame defines the owned pixel buffer that flows from a frame
// source through the cursor compositor to the encoder sink.
package frame

import (
	"errors"
	"fmt"
)

// BytesPerPixel is the size of one packed BGRA pixel.
const BytesPerPixel = 4

// MaxDirtyRects bounds the dirty rectangle list reported per frame.
const MaxDirtyRects = 16

// ErrReleased is returned when a released buffer is used.
var ErrReleased = errors.New("frame buffer released")

// Rect is a dirty rectangle in buffer coordinates. X2/Y2 are exclusive.
type Rect struct {
	X1, Y1, X2, Y2 int
}

// Width returns the rectangle width.
func (r Rect) Width() int { return r.X2 - r.X1 }

// Height returns the rectangle height.
func (r Rect) Height() int { return r.Y2 - r.Y1 }

// Area returns the rectangle area in pixels, zero for empty rectangles.
func (r Rect) Area() int {
	if r.X2 <= r.X1 || r.Y2 <= r.Y1 {
		return 0
	}
	return r.Width() * r.Height()
}

func (r Rect) String() string {
	return fmt.Sprintf("[%d,%d:%d,%d]", r.X1, r.Y1, r.X2, r.Y2)
}

// Buffer is a packed 32-bit BGRA image with explicit geometry.
// Pitch is in bytes and is at least Width*BytesPerPixel.
type Buffer struct {
	Width  int
	Height int
	Pitch  int
	pix    []byte
}

// New allocates a zeroed buffer with a tight pitch.
func New(width, height int) (*Buffer, error) {
	return NewWithPitch(width, height, width*BytesPerPixel)
}

// NewWithPitch allocates a zeroed buffer with the given row pitch.
func NewWithPitch(width, height, pitch int) (*Buffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid frame geometry %dx%d", width, height)
	}
	if pitch < width*BytesPerPixel {
		return nil, fmt.Errorf("pitch %d too small for width %d", pitch, width)
	}
	return &Buffer{
		Width:  width,
		Height: height,
		Pitch:  pitch,
		pix:    make([]byte, pitch*height),
	}, nil
}

// FromBytes copies src into a new buffer. src must hold at least
// pitch*height bytes.
func FromBytes(src []byte, width, height, pitch int) (*Buffer, error) {
	b, err := NewWithPitch(width, height, pitch)
	if err != nil {
		return nil, err
	}
	if len(src) < len(b.pix) {
		return nil, fmt.Errorf("source holds %d bytes, need %d", len(src), len(b.pix))
	}
	copy(b.pix, src[:len(b.pix)])
	return b, nil
}

// Len returns the size of the pixel storage in bytes.
func (b *Buffer) Len() int { return len(b.pix) }

// Bytes exposes the pixel storage. The slice is only valid until Release.
func (b *Buffer) Bytes() []byte { return b.pix }

// Released reports whether the buffer storage has been released.
func (b *Buffer) Released() bool { return b.pix == nil }

// InBounds reports whether (x, y) addresses a pixel of the buffer.
func (b *Buffer) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < b.Width && y < b.Height
}

func (b *Buffer) offset(x, y int) int {
	return y*b.Pitch + x*BytesPerPixel
}

// At returns the pixel at (x, y) as B, G, R, A. ok is false when the
// coordinate lies outside the buffer.
func (b *Buffer) At(x, y int) (px [4]byte, ok bool) {
	if b.pix == nil || !b.InBounds(x, y) {
		return px, false
	}
	o := b.offset(x, y)
	copy(px[:], b.pix[o:o+BytesPerPixel])
	return px, true
}

// Set writes a B, G, R, A pixel at (x, y). Writes outside the buffer are
// skipped and reported as false.
func (b *Buffer) Set(x, y int, px [4]byte) bool {
	if b.pix == nil || !b.InBounds(x, y) {
		return false
	}
	o := b.offset(x, y)
	copy(b.pix[o:o+BytesPerPixel], px[:])
	return true
}

// ForceOpaque sets the alpha byte of every pixel to 0xff.
func (b *Buffer) ForceOpaque() {
	if b.pix == nil {
		return
	}
	for y := 0; y < b.Height; y++ {
		row := b.pix[y*b.Pitch : y*b.Pitch+b.Width*BytesPerPixel]
		for i := 3; i < len(row); i += BytesPerPixel {
			row[i] = 0xff
		}
	}
}

// Opaque reports whether every pixel has a 0xff alpha byte.
func (b *Buffer) Opaque() bool {
	if b.pix == nil {
		return false
	}
	for y := 0; y < b.Height; y++ {
		row := b.pix[y*b.Pitch : y*b.Pitch+b.Width*BytesPerPixel]
		for i := 3; i < len(row); i += BytesPerPixel {
			if row[i] != 0xff {
				return false
			}
		}
	}
	return true
}

// Release drops the pixel storage. The buffer must not be used afterwards.
func (b *Buffer) Release() {
	b.pix = nil
}
