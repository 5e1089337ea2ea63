//go:build linux && arm && !arm64

package evdi

import "unsafe"

// Compile-time struct size assertions for 32-bit ARM.
// Pointers are 4 bytes, so connect and grabpix shrink and their ioctl
// numbers change with them.
var (
	_ [24]byte = [unsafe.Sizeof(drmEvdiConnect{})]byte{}
	_ [4]byte  = [unsafe.Sizeof(drmEvdiRequestUpdate{})]byte{}
	_ [28]byte = [unsafe.Sizeof(drmEvdiGrabpix{})]byte{}
	_ [12]byte = [unsafe.Sizeof(drmEvdiEnableCursorEvents{})]byte{}
	_ [8]byte  = [unsafe.Sizeof(drmClipRect{})]byte{}
)

// IOCTL constants for 32-bit ARM.
const (
	drmIoctlDropMaster             = 0x0000641f
	drmIoctlEvdiConnect            = 0xc0186440
	drmIoctlEvdiRequestUpdate      = 0xc0046441
	drmIoctlEvdiGrabpix            = 0xc01c6442
	drmIoctlEvdiEnableCursorEvents = 0xc00c6444
)

const grabpixModeDirty = 1

type drmEvdiConnect struct {
	connected           int32
	devIndex            int32
	edid                unsafe.Pointer
	edidLength          uint32
	pixelAreaLimit      uint32
	pixelPerSecondLimit uint32
}

type drmEvdiRequestUpdate struct {
	reserved int32
}

type drmEvdiGrabpix struct {
	mode          int32
	bufWidth      int32
	bufHeight     int32
	bufByteStride int32
	buffer        unsafe.Pointer
	numRects      int32
	rects         unsafe.Pointer
}

type drmEvdiEnableCursorEvents struct {
	baseType   uint32
	baseLength uint32
	enable     uint8
	_          [3]byte
}

type drmClipRect struct {
	x1, y1, x2, y2 uint16
}
