package adapter

import (
	"testing"
	"time"
)

func TestAttachmentLifecycle(t *testing.T) {
	bus := newIdentityBus()
	dev := bus.Devices[0]
	now := time.Unix(1000, 0)

	a := NewAttachment()
	if a.State() != StateAbsent {
		t.Fatalf("initial state = %v, want absent", a.State())
	}

	if prev := a.RequestAttach(dev, now.Add(300*time.Millisecond)); prev != StateAbsent {
		t.Errorf("RequestAttach() prev = %v, want absent", prev)
	}
	if a.Ready(now) {
		t.Error("attachment should not be ready before the settle deadline")
	}
	if !a.Ready(now.Add(300 * time.Millisecond)) {
		t.Error("attachment should be ready at the settle deadline")
	}

	h, err := bus.Open(dev.Ref)
	if err != nil {
		t.Fatal(err)
	}
	a.Bind(h)
	if !a.MarkStreaming() {
		t.Error("MarkStreaming() from attached should succeed")
	}
	if a.MarkStreaming() {
		t.Error("MarkStreaming() twice should report no change")
	}
	if a.Ready(now.Add(time.Hour)) {
		t.Error("streaming attachment should not be ready for a new session")
	}

	if prev := a.RequestDetach(); prev != StateStreaming {
		t.Errorf("RequestDetach() prev = %v, want streaming", prev)
	}
	if a.State() != StateDetached {
		t.Errorf("state = %v, want detached", a.State())
	}
	if a.Handle() != nil {
		t.Error("handle should be released on detach")
	}
	if n := bus.OpenHandles(); n != 0 {
		t.Errorf("open handles = %d, want 0", n)
	}

	a.Reset()
	if a.State() != StateAbsent || a.Device() != (DeviceInfo{}) {
		t.Errorf("after Reset: state = %v, device = %v", a.State(), a.Device())
	}
}

func TestAttachmentParkUntilArrival(t *testing.T) {
	dev := DeviceInfo{Ref: testRef, Vendor: VendorID, Product: 0x2114}
	now := time.Unix(0, 0)

	a := NewAttachment()
	a.RequestAttach(dev, now)
	a.Park()
	if a.Ready(now.Add(time.Hour)) {
		t.Error("parked attachment should not be ready")
	}

	a.RequestAttach(dev, now)
	if !a.Ready(now) {
		t.Error("new arrival should clear the park")
	}
}

func TestAttachmentReattachReleasesHandle(t *testing.T) {
	bus := newIdentityBus()
	dev := bus.Devices[0]

	a := NewAttachment()
	a.RequestAttach(dev, time.Time{})
	h, _ := bus.Open(dev.Ref)
	a.Bind(h)
	a.MarkStreaming()

	if prev := a.RequestAttach(dev, time.Time{}); prev != StateStreaming {
		t.Errorf("RequestAttach() prev = %v, want streaming", prev)
	}
	if bus.OpenHandles() != 0 {
		t.Error("re-attach should release the previous streaming handle")
	}
	if a.State() != StateAttached {
		t.Errorf("state = %v, want attached", a.State())
	}
}

func TestAttachmentMatches(t *testing.T) {
	a := NewAttachment()
	if a.Matches(testRef) {
		t.Error("absent attachment should match nothing")
	}
	a.RequestAttach(DeviceInfo{Ref: testRef}, time.Time{})
	if !a.Matches(testRef) {
		t.Error("attachment should match its own ref")
	}
	if a.Matches(DeviceRef{Bus: 1, Address: 5}) {
		t.Error("attachment should not match another address")
	}
	if a.Matches(DeviceRef{}) {
		t.Error("unknown ref should never match")
	}
}

func TestDetachAbsentIsNoop(t *testing.T) {
	a := NewAttachment()
	if prev := a.RequestDetach(); prev != StateAbsent || a.State() != StateAbsent {
		t.Errorf("RequestDetach() on absent: prev = %v, state = %v", prev, a.State())
	}
}
