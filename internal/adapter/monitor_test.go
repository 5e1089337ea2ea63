package adapter

import (
	"errors"
	"testing"
	"time"

	"github.com/smazurov/usbdisplay/pkg/linuxav/hotplug"
	"golang.org/x/sys/unix"
)

func TestMonitorScanFindsFirstMatch(t *testing.T) {
	bus := &FakeBus{Devices: []DeviceInfo{
		{Ref: DeviceRef{1, 2}, Vendor: 0x1d6b, Product: 0x0002},
		{Ref: DeviceRef{1, 7}, Vendor: VendorID, Product: 0x2105},
		{Ref: DeviceRef{1, 9}, Vendor: VendorID, Product: 0x2113},
	}}
	m := NewMonitor(bus, nil, DefaultMonitorConfig())

	found, err := m.Scan()
	if err != nil || !found {
		t.Fatalf("Scan() = %v, %v; want true, nil", found, err)
	}

	events, err := m.Poll()
	if err != nil {
		t.Fatalf("Poll() error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("Poll() returned %d events, want 1", len(events))
	}
	ev := events[0]
	if ev.Kind != Arrival || ev.Origin != OriginScan || ev.Device.Ref != (DeviceRef{1, 7}) {
		t.Errorf("event = %+v, want scan arrival of 1/7", ev)
	}
	if ev.Settle != 300*time.Millisecond {
		t.Errorf("scan settle = %v, want 300ms", ev.Settle)
	}

	if events, _ := m.Poll(); len(events) != 0 {
		t.Errorf("second Poll() returned %d events, want 0", len(events))
	}
}

func TestMonitorScanNoMatch(t *testing.T) {
	bus := &FakeBus{Devices: []DeviceInfo{{Ref: DeviceRef{1, 2}, Vendor: VendorID, Product: 0x2120}}}
	m := NewMonitor(bus, nil, DefaultMonitorConfig())
	if found, _ := m.Scan(); found {
		t.Error("Scan() should not match product 0x2120")
	}
}

func TestMonitorTranslatesUEvents(t *testing.T) {
	src := &FakeSource{}
	m := NewMonitor(&FakeBus{}, src, DefaultMonitorConfig())
	ref := DeviceRef{Bus: 2, Address: 3}

	src.Push(UEvent(hotplug.ActionAdd, 0x046d, 0xc52b, DeviceRef{2, 1})) // unmatched add dropped
	src.Push(UEvent(hotplug.ActionAdd, VendorID, 0x2114, ref))
	src.Push(UEvent(hotplug.ActionChange, VendorID, 0x2114, ref)) // ignored action
	src.Push(UEvent(hotplug.ActionRemove, 0x046d, 0xc52b, DeviceRef{2, 1}))
	src.Push(UEvent(hotplug.ActionRemove, VendorID, 0x2114, ref))

	events, err := m.Poll()
	if err != nil {
		t.Fatalf("Poll() error: %v", err)
	}

	want := []struct {
		kind    EventKind
		ref     DeviceRef
		matched bool
	}{
		{Arrival, ref, true},
		{Removal, DeviceRef{2, 1}, false},
		{Removal, ref, true},
	}
	if len(events) != len(want) {
		t.Fatalf("Poll() returned %d events, want %d: %+v", len(events), len(want), events)
	}
	for i, w := range want {
		ev := events[i]
		if ev.Kind != w.kind || ev.Device.Ref != w.ref || ev.Matched != w.matched {
			t.Errorf("event %d = %+v, want %v of %v matched=%v", i, ev, w.kind, w.ref, w.matched)
		}
	}
	if events[0].Settle != 600*time.Millisecond {
		t.Errorf("hotplug settle = %v, want 600ms", events[0].Settle)
	}
}

func TestMonitorPollErrorKeepsEvents(t *testing.T) {
	src := &FakeSource{Err: errors.New("no buffer space")}
	m := NewMonitor(&FakeBus{}, src, DefaultMonitorConfig())
	src.Push(UEvent(hotplug.ActionAdd, VendorID, 0x2113, DeviceRef{1, 1}))

	events, err := m.Poll()
	if err == nil {
		t.Error("Poll() should report the source error")
	}
	if len(events) != 1 {
		t.Errorf("Poll() returned %d events, want 1", len(events))
	}
}

func TestMonitorPollReportsLostEvents(t *testing.T) {
	src := &FakeSource{Err: unix.ENOBUFS}
	m := NewMonitor(&FakeBus{}, src, DefaultMonitorConfig())

	_, err := m.Poll()
	if !errors.Is(err, ErrEventsLost) || !errors.Is(err, unix.ENOBUFS) {
		t.Errorf("Poll() error = %v, want ErrEventsLost wrapping ENOBUFS", err)
	}

	src.Err = errors.New("socket closed")
	if _, err := m.Poll(); errors.Is(err, ErrEventsLost) {
		t.Errorf("Poll() error = %v, should not report lost events", err)
	}
}

func TestMonitorResync(t *testing.T) {
	attached := DeviceRef{1, 4}
	adapterAt := func(ref DeviceRef) DeviceInfo {
		return DeviceInfo{Ref: ref, Vendor: VendorID, Product: 0x2113}
	}
	mouse := DeviceInfo{Ref: DeviceRef{1, 2}, Vendor: 0x046d, Product: 0xc52b}

	tests := []struct {
		name     string
		devices  []DeviceInfo
		attached DeviceRef
		want     []Event
	}{
		{
			name:     "attached still present",
			devices:  []DeviceInfo{mouse, adapterAt(attached)},
			attached: attached,
		},
		{
			name:     "attached gone",
			devices:  []DeviceInfo{mouse},
			attached: attached,
			want:     []Event{{Kind: Removal, Device: DeviceInfo{Ref: attached}, Origin: OriginScan, Matched: true}},
		},
		{
			name:     "attached moved",
			devices:  []DeviceInfo{adapterAt(DeviceRef{1, 6})},
			attached: attached,
			want: []Event{
				{Kind: Removal, Device: DeviceInfo{Ref: attached}, Origin: OriginScan, Matched: true},
				{Kind: Arrival, Device: adapterAt(DeviceRef{1, 6}), Origin: OriginScan, Matched: true, Settle: 300 * time.Millisecond},
			},
		},
		{
			name:    "nothing attached",
			devices: []DeviceInfo{mouse, adapterAt(DeviceRef{2, 3}), adapterAt(DeviceRef{2, 5})},
			want:    []Event{{Kind: Arrival, Device: adapterAt(DeviceRef{2, 3}), Origin: OriginScan, Matched: true, Settle: 300 * time.Millisecond}},
		},
		{
			name:    "nothing anywhere",
			devices: []DeviceInfo{mouse},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMonitor(&FakeBus{Devices: tt.devices}, nil, DefaultMonitorConfig())
			got, err := m.Resync(tt.attached)
			if err != nil {
				t.Fatalf("Resync() error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Resync() = %+v, want %+v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("event %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestMonitorInject(t *testing.T) {
	m := NewMonitor(&FakeBus{}, nil, DefaultMonitorConfig())
	m.Inject(Event{Kind: Removal, Device: DeviceInfo{Ref: testRef}})
	m.Inject(Event{Kind: Arrival, Device: DeviceInfo{Ref: testRef}})

	events, _ := m.Poll()
	if len(events) != 2 || events[0].Kind != Removal || events[1].Kind != Arrival {
		t.Errorf("injected events out of order: %+v", events)
	}
}
