// Package identity holds the display identity block (EDID) reported by the
// adapter and derives the preferred video mode from it.
package identity

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/zeebo/blake3"
)

// Size is the length of an identity block read from hardware.
const Size = 256

// HalfSize is the length of each of the two chunks read from hardware.
const HalfSize = Size / 2

var header = []byte{0x00, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x00}

// Errors returned while interpreting a block.
var (
	ErrTooShort   = errors.New("identity block too short")
	ErrNoTiming   = errors.New("identity block has no detailed timing descriptor")
	ErrBadHalfLen = errors.New("identity half has wrong length")
)

// Mode is a video mode taken from a detailed timing descriptor.
type Mode struct {
	Width       int
	Height      int
	RefreshHz   int
	PixelClockK int // kHz
}

func (m Mode) String() string {
	return fmt.Sprintf("%dx%d@%d", m.Width, m.Height, m.RefreshHz)
}

// PixelArea returns Width*Height.
func (m Mode) PixelArea() int { return m.Width * m.Height }

// Block is an immutable identity block.
type Block struct {
	raw []byte
}

// FromHalves assembles a hardware block from the two 128-byte chunks.
// Either both halves are complete or no block is produced.
func FromHalves(first, second []byte) (Block, error) {
	if len(first) != HalfSize {
		return Block{}, fmt.Errorf("%w: first half %d bytes", ErrBadHalfLen, len(first))
	}
	if len(second) != HalfSize {
		return Block{}, fmt.Errorf("%w: second half %d bytes", ErrBadHalfLen, len(second))
	}
	raw := make([]byte, Size)
	copy(raw, first)
	copy(raw[HalfSize:], second)
	return Block{raw: raw}, nil
}

// FromBytes wraps an arbitrary-length block, such as an override file.
func FromBytes(data []byte) Block {
	return Block{raw: bytes.Clone(data)}
}

// Load reads an override block from path. The whole file is used.
func Load(path string) (Block, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Block{}, fmt.Errorf("read identity file %s: %w", path, err)
	}
	if len(data) == 0 {
		return Block{}, fmt.Errorf("identity file %s: %w", path, ErrTooShort)
	}
	return Block{raw: data}, nil
}

// Save writes the block to path.
func (b Block) Save(path string) error {
	return os.WriteFile(path, b.raw, 0o644)
}

// Bytes returns a copy of the block contents.
func (b Block) Bytes() []byte { return bytes.Clone(b.raw) }

// Len returns the block length.
func (b Block) Len() int { return len(b.raw) }

// Empty reports whether the block holds no data.
func (b Block) Empty() bool { return len(b.raw) == 0 }

// HasHeader reports whether the block starts with the fixed EDID header.
func (b Block) HasHeader() bool {
	return len(b.raw) >= len(header) && bytes.Equal(b.raw[:len(header)], header)
}

// ChecksumOK reports whether the base 128-byte block sums to zero.
func (b Block) ChecksumOK() bool {
	if len(b.raw) < HalfSize {
		return false
	}
	var sum byte
	for _, v := range b.raw[:HalfSize] {
		sum += v
	}
	return sum == 0
}

// Vendor returns the three-letter manufacturer code, or "" when absent.
func (b Block) Vendor() string {
	if !b.HasHeader() || len(b.raw) < 10 {
		return ""
	}
	id := binary.BigEndian.Uint16(b.raw[8:10])
	code := []byte{
		byte((id>>10)&0x1f) + 'A' - 1,
		byte((id>>5)&0x1f) + 'A' - 1,
		byte(id&0x1f) + 'A' - 1,
	}
	for _, c := range code {
		if c < 'A' || c > 'Z' {
			return ""
		}
	}
	return string(code)
}

// PreferredMode decodes the first detailed timing descriptor, which EDID
// defines as the preferred mode.
func (b Block) PreferredMode() (Mode, error) {
	const dtd = 54
	if len(b.raw) < dtd+18 {
		return Mode{}, fmt.Errorf("%w: %d bytes", ErrTooShort, len(b.raw))
	}
	d := b.raw[dtd : dtd+18]

	clock := int(binary.LittleEndian.Uint16(d[0:2])) * 10
	if clock == 0 {
		return Mode{}, ErrNoTiming
	}

	hActive := int(d[2]) | int(d[4]&0xf0)<<4
	hBlank := int(d[3]) | int(d[4]&0x0f)<<8
	vActive := int(d[5]) | int(d[7]&0xf0)<<4
	vBlank := int(d[6]) | int(d[7]&0x0f)<<8
	if hActive == 0 || vActive == 0 {
		return Mode{}, ErrNoTiming
	}

	refresh := 0
	if total := (hActive + hBlank) * (vActive + vBlank); total > 0 {
		refresh = (clock*1000 + total/2) / total
	}

	return Mode{
		Width:       hActive,
		Height:      vActive,
		RefreshHz:   refresh,
		PixelClockK: clock,
	}, nil
}

// Fingerprint returns a short stable hash of the block for logs and status.
func (b Block) Fingerprint() string {
	sum := blake3.Sum256(b.raw)
	return hex.EncodeToString(sum[:8])
}

// Synthetic builds a minimal 256-byte block whose preferred mode is
// width x height at refreshHz, using reduced horizontal and vertical
// blanking. It is used to produce override files for adapters that do not
// report a usable block.
func Synthetic(width, height, refreshHz int) (Block, error) {
	const hBlank, vBlank = 160, 35
	if width <= 0 || height <= 0 || refreshHz <= 0 {
		return Block{}, fmt.Errorf("invalid mode %dx%d@%d", width, height, refreshHz)
	}
	if width > 0xfff || height > 0xfff {
		return Block{}, fmt.Errorf("mode %dx%d exceeds descriptor range", width, height)
	}
	clock := (width + hBlank) * (height + vBlank) * refreshHz / 10000
	if clock > 0xffff {
		return Block{}, fmt.Errorf("mode %dx%d@%d exceeds pixel clock range", width, height, refreshHz)
	}

	raw := make([]byte, Size)
	copy(raw, header)
	// Manufacturer "UDA", product 1.
	binary.BigEndian.PutUint16(raw[8:10], uint16('U'-'A'+1)<<10|uint16('D'-'A'+1)<<5|uint16('A'-'A'+1))
	binary.LittleEndian.PutUint16(raw[10:12], 1)
	raw[18], raw[19] = 1, 4 // EDID 1.4
	raw[20] = 0x80          // digital input

	d := raw[54:72]
	binary.LittleEndian.PutUint16(d[0:2], uint16(clock))
	d[2] = byte(width)
	d[3] = byte(hBlank)
	d[4] = byte(width>>8)<<4 | byte(hBlank>>8)
	d[5] = byte(height)
	d[6] = byte(vBlank)
	d[7] = byte(height>>8)<<4 | byte(vBlank>>8)
	d[8], d[9] = 48, 32 // sync offset, width
	d[10] = 3<<4 | 5
	d[17] = 0x1e

	var sum byte
	for _, v := range raw[:HalfSize-1] {
		sum += v
	}
	raw[HalfSize-1] = -sum
	return Block{raw: raw}, nil
}
