package cursor

import (
	"strings"
	"testing"

	"github.com/smazurov/usbdisplay/internal/frame"
)

func opaqueGlyphPixels() int {
	n := 0
	for _, row := range glyphRows {
		n += len(row) - strings.Count(row, ".")
	}
	return n
}

func TestGlyphKeyIsExactGreen(t *testing.T) {
	// Top-right corner of the arrow is transparent.
	o := (GlyphWidth - 1) * frame.BytesPerPixel
	if Glyph[o] != 0x00 || Glyph[o+1] != 0xff || Glyph[o+2] != 0x00 {
		t.Errorf("corner pixel = %v, want key colour", Glyph[o:o+3])
	}
}

func TestOverlayFullyInside(t *testing.T) {
	buf, err := frame.New(64, 64)
	if err != nil {
		t.Fatalf("frame.New() error: %v", err)
	}

	s := State{}
	s.Move(20, 20)
	got := Overlay(buf, s)
	if want := opaqueGlyphPixels(); got != want {
		t.Errorf("Overlay() wrote %d pixels, want %d", got, want)
	}

	// Glyph origin is offset from the pointer by the hotspot.
	px, _ := buf.At(20-HotspotLeft, 20-HotspotAbove)
	if px != [4]byte{0xff, 0xff, 0xff, 0xff} {
		t.Errorf("glyph origin = %v, want opaque white", px)
	}
	// Key pixels leave the destination untouched.
	px, _ = buf.At(20-HotspotLeft+GlyphWidth-1, 20-HotspotAbove)
	if px != [4]byte{} {
		t.Errorf("key pixel written: %v", px)
	}
}

func TestOverlayNeverWritesOutOfBounds(t *testing.T) {
	const w, h, pitch = 8, 6, 40
	sentinel := byte(0xa5)

	for x := -GlyphWidth - 4; x <= w+GlyphWidth+4; x++ {
		for y := -GlyphHeight - 4; y <= h+GlyphHeight+4; y++ {
			buf, err := frame.NewWithPitch(w, h, pitch)
			if err != nil {
				t.Fatalf("frame.NewWithPitch() error: %v", err)
			}
			pix := buf.Bytes()
			for i := range pix {
				pix[i] = sentinel
			}

			s := State{}
			s.Move(x, y)
			written := Overlay(buf, s)

			changed := 0
			for row := 0; row < h; row++ {
				// Row padding must never be touched.
				for i := w * frame.BytesPerPixel; i < pitch; i++ {
					if pix[row*pitch+i] != sentinel {
						t.Fatalf("cursor (%d,%d) wrote padding at row %d byte %d", x, y, row, i)
					}
				}
				for col := 0; col < w; col++ {
					if px, _ := buf.At(col, row); px != [4]byte{sentinel, sentinel, sentinel, sentinel} {
						changed++
					}
				}
			}
			if changed != written {
				t.Fatalf("cursor (%d,%d): %d pixels changed, Overlay reported %d", x, y, changed, written)
			}
		}
	}
}

func TestOverlayOffBufferIsNoop(t *testing.T) {
	buf, _ := frame.New(16, 16)
	positions := []State{
		{X: -1000, Y: -1000, Visible: true},
		{X: 1000, Y: 5, Visible: true},
		{X: 5, Y: 1000, Visible: true},
		{X: 5, Y: 5, Visible: false},
	}
	for _, s := range positions {
		if n := Overlay(buf, s); n != 0 {
			t.Errorf("Overlay(%+v) wrote %d pixels, want 0", s, n)
		}
	}
	if n := Overlay(nil, State{Visible: true}); n != 0 {
		t.Errorf("Overlay(nil) = %d, want 0", n)
	}
}
