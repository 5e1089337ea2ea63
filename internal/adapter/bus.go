// Package adapter tracks the USB display adapter: matching, hot-plug
// monitoring, identity retrieval and the attachment state owned by the
// frame loop.
package adapter

import (
	"errors"
	"fmt"
)

// ErrShortTransfer is returned when a control transfer moves fewer bytes
// than requested.
var ErrShortTransfer = errors.New("short control transfer")

// ErrNotFound is returned when a device reference no longer resolves.
var ErrNotFound = errors.New("usb device not found")

// DeviceRef locates a device on the bus.
type DeviceRef struct {
	Bus     int
	Address int
}

func (r DeviceRef) String() string {
	return fmt.Sprintf("%03d/%03d", r.Bus, r.Address)
}

// Known reports whether the reference carries a location.
func (r DeviceRef) Known() bool { return r.Bus > 0 && r.Address > 0 }

// DeviceInfo describes a device seen on the bus.
type DeviceInfo struct {
	Ref     DeviceRef
	Vendor  uint16
	Product uint16
}

func (d DeviceInfo) String() string {
	return fmt.Sprintf("%04x:%04x@%s", d.Vendor, d.Product, d.Ref)
}

// Handle is an open device.
type Handle interface {
	Control(rType, request uint8, val, idx uint16, data []byte) (int, error)
	Close() error
}

// Bus enumerates and opens devices.
type Bus interface {
	// Scan lists the devices currently connected.
	Scan() ([]DeviceInfo, error)
	// Open opens the device at ref.
	Open(ref DeviceRef) (Handle, error)
	Close() error
}

// Standard request used to clear an endpoint halt.
const (
	requestTypeEndpointOut = 0x02 // host-to-device, standard, endpoint
	requestClearFeature    = 0x01
	featureEndpointHalt    = 0x00
)

// ClearHalt issues CLEAR_FEATURE(ENDPOINT_HALT) for endpoint ep.
func ClearHalt(h Handle, ep uint8) error {
	if _, err := h.Control(requestTypeEndpointOut, requestClearFeature, featureEndpointHalt, uint16(ep), nil); err != nil {
		return fmt.Errorf("clear halt on endpoint %d: %w", ep, err)
	}
	return nil
}
