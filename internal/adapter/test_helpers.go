package adapter

import (
	"errors"
	"fmt"
	"sync"

	"github.com/smazurov/usbdisplay/pkg/linuxav/hotplug"
)

// ControlCall records a control transfer issued on a FakeBus handle.
type ControlCall struct {
	RequestType uint8
	Request     uint8
	Value       uint16
	Index       uint16
	Length      int
}

// FakeBus is an in-memory Bus for testing.
type FakeBus struct {
	mu sync.Mutex

	Devices  []DeviceInfo
	Identity []byte // served by the identity vendor request
	ShortOn  uint16 // half (1 or 2) answered with a short transfer; 0 = none
	FailOn   uint16 // half answered with an error; 0 = none
	OpenErr  error

	open     int
	opened   int
	controls []ControlCall
}

// Scan lists Devices.
func (b *FakeBus) Scan() ([]DeviceInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]DeviceInfo, len(b.Devices))
	copy(out, b.Devices)
	return out, nil
}

// Open returns a handle for any device in Devices.
func (b *FakeBus) Open(ref DeviceRef) (Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.OpenErr != nil {
		return nil, b.OpenErr
	}
	for _, d := range b.Devices {
		if d.Ref == ref {
			b.open++
			b.opened++
			return &fakeHandle{bus: b}, nil
		}
	}
	return nil, ErrNotFound
}

// Close is a no-op.
func (b *FakeBus) Close() error { return nil }

// OpenHandles returns the number of handles opened and not yet closed.
func (b *FakeBus) OpenHandles() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}

// Opened returns the total number of handles ever opened.
func (b *FakeBus) Opened() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opened
}

// Controls returns the control transfers issued so far.
func (b *FakeBus) Controls() []ControlCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]ControlCall, len(b.controls))
	copy(out, b.controls)
	return out
}

type fakeHandle struct {
	bus    *FakeBus
	closed bool
}

func (h *fakeHandle) Control(rType, request uint8, val, idx uint16, data []byte) (int, error) {
	b := h.bus
	b.mu.Lock()
	defer b.mu.Unlock()
	if h.closed {
		return 0, errors.New("handle closed")
	}
	b.controls = append(b.controls, ControlCall{rType, request, val, idx, len(data)})

	if rType != identityRequestType || request != identityRequest {
		return 0, nil
	}
	if val == b.FailOn {
		return 0, errors.New("pipe error")
	}
	off := int(val-1) * len(data)
	n := 0
	if off >= 0 && off < len(b.Identity) {
		n = copy(data, b.Identity[off:])
	}
	if val == b.ShortOn {
		n /= 2
	}
	return n, nil
}

func (h *fakeHandle) Close() error {
	b := h.bus
	b.mu.Lock()
	defer b.mu.Unlock()
	if h.closed {
		return errors.New("handle already closed")
	}
	h.closed = true
	b.open--
	return nil
}

// FakeSource is an EventSource fed by Push.
type FakeSource struct {
	mu      sync.Mutex
	pending []hotplug.Event
	Err     error
}

// Push queues a kernel event.
func (s *FakeSource) Push(ev hotplug.Event) {
	s.mu.Lock()
	s.pending = append(s.pending, ev)
	s.mu.Unlock()
}

// Poll returns and clears the pending events.
func (s *FakeSource) Poll(dst []hotplug.Event) ([]hotplug.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dst = append(dst, s.pending...)
	s.pending = nil
	return dst, s.Err
}

// Close is a no-op.
func (s *FakeSource) Close() error { return nil }

// UEvent builds a usb_device uevent for vendor/product at ref.
func UEvent(action string, vendor, product uint16, ref DeviceRef) hotplug.Event {
	return hotplug.Event{
		Action:    action,
		Subsystem: hotplug.SubsystemUSB,
		DevType:   hotplug.DevTypeUSBDevice,
		Env: map[string]string{
			"PRODUCT": fmt.Sprintf("%x/%x/100", vendor, product),
			"BUSNUM":  fmt.Sprintf("%03d", ref.Bus),
			"DEVNUM":  fmt.Sprintf("%03d", ref.Address),
		},
	}
}
