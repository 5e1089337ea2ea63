//go:build linux

package evdi

import (
	"encoding/binary"
	"fmt"
)

// DRM event types emitted by EVDI.
const (
	EventUpdateReady uint32 = 0x80000000
	EventDPMS        uint32 = 0x80000001
	EventModeChanged uint32 = 0x80000002
	EventCRTCState   uint32 = 0x80000003
	EventCursorSet   uint32 = 0x80000004
	EventCursorMove  uint32 = 0x80000005
	EventDDCCIData   uint32 = 0x80000006
)

// DPMS modes.
const (
	DPMSOn      int32 = 0
	DPMSStandby int32 = 1
	DPMSSuspend int32 = 2
	DPMSOff     int32 = 3
)

const drmEventHeaderSize = 8

// Mode is the mode reported by EventModeChanged.
type Mode struct {
	Width        int
	Height       int
	RefreshRate  int
	BitsPerPixel int
	PixelFormat  uint32
}

// Stride returns the byte stride of a tightly packed buffer in this mode.
func (m Mode) Stride() int {
	bpp := m.BitsPerPixel
	if bpp <= 0 {
		bpp = 32
	}
	return m.Width * bpp / 8
}

// CursorSet is the payload of EventCursorSet.
type CursorSet struct {
	HotX, HotY    int32
	Width, Height uint32
	Enabled       bool
	Handle        uint32
	Length        uint32
	PixelFormat   uint32
	Stride        uint32
}

// Event is one decoded DRM event. Only the field matching Type is set.
type Event struct {
	Type      uint32
	Mode      Mode
	DPMS      int32
	CRTCState int32
	CursorX   int32
	CursorY   int32
	Cursor    CursorSet
}

func (e Event) String() string {
	switch e.Type {
	case EventUpdateReady:
		return "update-ready"
	case EventDPMS:
		return fmt.Sprintf("dpms(%d)", e.DPMS)
	case EventModeChanged:
		return fmt.Sprintf("mode-changed(%dx%d@%d)", e.Mode.Width, e.Mode.Height, e.Mode.RefreshRate)
	case EventCRTCState:
		return fmt.Sprintf("crtc-state(%d)", e.CRTCState)
	case EventCursorSet:
		return fmt.Sprintf("cursor-set(enabled=%v)", e.Cursor.Enabled)
	case EventCursorMove:
		return fmt.Sprintf("cursor-move(%d,%d)", e.CursorX, e.CursorY)
	default:
		return fmt.Sprintf("event(0x%08x)", e.Type)
	}
}

// ParseEvents decodes a buffer returned by read(2) on the card node. The
// buffer holds back-to-back drm_event records. Unknown types are returned
// with only Type set.
func ParseEvents(buf []byte) ([]Event, error) {
	var events []Event
	le := binary.LittleEndian
	for off := 0; off < len(buf); {
		if len(buf)-off < drmEventHeaderSize {
			return events, fmt.Errorf("truncated drm event header at offset %d", off)
		}
		typ := le.Uint32(buf[off:])
		length := int(le.Uint32(buf[off+4:]))
		if length < drmEventHeaderSize || off+length > len(buf) {
			return events, fmt.Errorf("drm event 0x%08x length %d out of range at offset %d", typ, length, off)
		}
		p := buf[off+drmEventHeaderSize : off+length]
		off += length

		ev := Event{Type: typ}
		i32 := func(i int) int32 {
			if len(p) < (i+1)*4 {
				return 0
			}
			return int32(le.Uint32(p[i*4:]))
		}

		switch typ {
		case EventDPMS:
			ev.DPMS = i32(0)
		case EventModeChanged:
			ev.Mode = Mode{
				Width:        int(i32(0)),
				Height:       int(i32(1)),
				RefreshRate:  int(i32(2)),
				BitsPerPixel: int(i32(3)),
				PixelFormat:  uint32(i32(4)),
			}
		case EventCRTCState:
			ev.CRTCState = i32(0)
		case EventCursorMove:
			ev.CursorX = i32(0)
			ev.CursorY = i32(1)
		case EventCursorSet:
			// hot_x, hot_y, width, height, u8 enabled (padded), handle,
			// length, pixel_format, stride
			ev.Cursor = CursorSet{
				HotX:        i32(0),
				HotY:        i32(1),
				Width:       uint32(i32(2)),
				Height:      uint32(i32(3)),
				Enabled:     len(p) > 16 && p[16] != 0,
				Handle:      uint32(i32(5)),
				Length:      uint32(i32(6)),
				PixelFormat: uint32(i32(7)),
				Stride:      uint32(i32(8)),
			}
		}
		events = append(events, ev)
	}
	return events, nil
}
