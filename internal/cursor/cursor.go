// Package cursor composites the pointer glyph onto captured frames.
package cursor

import (
	"github.com/smazurov/usbdisplay/internal/frame"
)

// Glyph geometry and the offset of its top-left corner from the pointer.
const (
	GlyphWidth   = 10
	GlyphHeight  = 16
	HotspotLeft  = 3
	HotspotAbove = 4
)

// Key is the transparent colour of the glyph as B, G, R: pure green.
var Key = [3]byte{0x00, 0xff, 0x00}

// glyphRows draws the arrow: 'W' white outline, 'K' black fill, '.' key.
var glyphRows = [GlyphHeight]string{
	"WW........",
	"WKW.......",
	"WKKW......",
	"WKKKW.....",
	"WKKKKW....",
	"WKKKKKW...",
	"WKKKKKKW..",
	"WKKKKKKKW.",
	"WKKKKKKKKW",
	"WKKKKKWWWW",
	"WKKWKKW...",
	"WKW.WKKW..",
	"WW..WKKW..",
	".....WKKW.",
	".....WKKW.",
	"......WW..",
}

// Glyph is the BGRA cursor bitmap, row-major, four bytes per pixel.
var Glyph = buildGlyph()

func buildGlyph() [GlyphWidth * GlyphHeight * frame.BytesPerPixel]byte {
	var g [GlyphWidth * GlyphHeight * frame.BytesPerPixel]byte
	for i, row := range glyphRows {
		for j, c := range row {
			o := (i*GlyphWidth + j) * frame.BytesPerPixel
			switch c {
			case 'W':
				g[o], g[o+1], g[o+2] = 0xff, 0xff, 0xff
			case 'K':
				g[o], g[o+1], g[o+2] = 0x00, 0x00, 0x00
			default:
				g[o], g[o+1], g[o+2] = Key[0], Key[1], Key[2]
			}
		}
	}
	return g
}

// State is the last known pointer position in the coordinate space of the
// frame source. It is written by the source and only read while compositing.
type State struct {
	X, Y    int
	Visible bool
}

// Move records a new pointer position.
func (s *State) Move(x, y int) {
	s.X, s.Y = x, y
	s.Visible = true
}

// Overlay stamps the glyph onto buf at the pointer position. Key pixels and
// pixels outside buf are skipped. Written pixels are opaque. It returns the
// number of pixels written.
func Overlay(buf *frame.Buffer, s State) int {
	if buf == nil || buf.Released() || !s.Visible {
		return 0
	}

	// Quick reject when the whole glyph lies off the buffer.
	left, top := s.X-HotspotLeft, s.Y-HotspotAbove
	if left >= buf.Width || top >= buf.Height || left+GlyphWidth <= 0 || top+GlyphHeight <= 0 {
		return 0
	}

	written := 0
	for i := 0; i < GlyphHeight; i++ {
		for j := 0; j < GlyphWidth; j++ {
			o := (i*GlyphWidth + j) * frame.BytesPerPixel
			b, g, r := Glyph[o], Glyph[o+1], Glyph[o+2]
			if b == Key[0] && g == Key[1] && r == Key[2] {
				continue
			}
			if buf.Set(left+j, top+i, [4]byte{b, g, r, 0xff}) {
				written++
			}
		}
	}
	return written
}
