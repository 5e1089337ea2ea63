//go:build linux && (amd64 || arm64)

package evdi

import "unsafe"

// Compile-time struct size assertions.
// These will cause build failures if struct sizes don't match kernel expectations.
var (
	_ [32]byte = [unsafe.Sizeof(drmEvdiConnect{})]byte{}
	_ [4]byte  = [unsafe.Sizeof(drmEvdiRequestUpdate{})]byte{}
	_ [40]byte = [unsafe.Sizeof(drmEvdiGrabpix{})]byte{}
	_ [12]byte = [unsafe.Sizeof(drmEvdiEnableCursorEvents{})]byte{}
	_ [8]byte  = [unsafe.Sizeof(drmClipRect{})]byte{}
)

// IOCTL constants for 64-bit architectures.
const (
	drmIoctlDropMaster             = 0x0000641f // DRM_IO(0x1f)
	drmIoctlEvdiConnect            = 0xc0206440
	drmIoctlEvdiRequestUpdate      = 0xc0046441
	drmIoctlEvdiGrabpix            = 0xc0286442
	drmIoctlEvdiEnableCursorEvents = 0xc00c6444
)

const grabpixModeDirty = 1

// drmEvdiConnect has size 32 bytes.
type drmEvdiConnect struct {
	connected           int32          // offset 0
	devIndex            int32          // offset 4
	edid                unsafe.Pointer // offset 8
	edidLength          uint32         // offset 16
	pixelAreaLimit      uint32         // offset 20
	pixelPerSecondLimit uint32         // offset 24
	_                   uint32         // offset 28
}

// drmEvdiRequestUpdate has size 4 bytes.
type drmEvdiRequestUpdate struct {
	reserved int32
}

// drmEvdiGrabpix has size 40 bytes.
type drmEvdiGrabpix struct {
	mode          int32          // offset 0
	bufWidth      int32          // offset 4
	bufHeight     int32          // offset 8
	bufByteStride int32          // offset 12
	buffer        unsafe.Pointer // offset 16
	numRects      int32          // offset 24
	_             int32          // offset 28
	rects         unsafe.Pointer // offset 32
}

// drmEvdiEnableCursorEvents has size 12 bytes.
type drmEvdiEnableCursorEvents struct {
	baseType   uint32  // offset 0
	baseLength uint32  // offset 4
	enable     uint8   // offset 8
	_          [3]byte // offset 9
}

// drmClipRect has size 8 bytes.
type drmClipRect struct {
	x1, y1, x2, y2 uint16
}
