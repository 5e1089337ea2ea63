//go:build linux

package hotplug

import (
	"strings"
	"sync"
	"testing"
)

func TestParseUEvent(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected *Event
	}{
		{
			name:     "empty input",
			input:    []byte{},
			expected: nil,
		},
		{
			name:     "no @ separator",
			input:    []byte("invalid"),
			expected: nil,
		},
		{
			name:     "missing action",
			input:    []byte("@/devices/foo"),
			expected: nil,
		},
		{
			name:     "only null bytes",
			input:    []byte{0, 0, 0, 0},
			expected: nil,
		},
		{
			name:  "usb device add",
			input: []byte("add@/devices/pci0000:00/usb1/1-2\x00ACTION=add\x00SUBSYSTEM=usb\x00DEVTYPE=usb_device\x00DEVNAME=bus/usb/001/004\x00PRODUCT=34c7/2113/100\x00BUSNUM=001\x00DEVNUM=004\x00"),
			expected: &Event{
				Action:    "add",
				KObj:      "/devices/pci0000:00/usb1/1-2",
				Subsystem: "usb",
				DevType:   "usb_device",
				DevName:   "bus/usb/001/004",
				Env: map[string]string{
					"ACTION":    "add",
					"SUBSYSTEM": "usb",
					"DEVTYPE":   "usb_device",
					"DEVNAME":   "bus/usb/001/004",
					"PRODUCT":   "34c7/2113/100",
					"BUSNUM":    "001",
					"DEVNUM":    "004",
				},
			},
		},
		{
			name:  "value containing equals",
			input: []byte("change@/dev/foo\x00KEY=val=ue\x00KEY2=\x00"),
			expected: &Event{
				Action: "change",
				KObj:   "/dev/foo",
				Env:    map[string]string{"KEY": "val=ue", "KEY2": ""},
			},
		},
		{
			name:  "very long path",
			input: []byte("add@/devices/" + strings.Repeat("a", 500) + "\x00"),
			expected: &Event{
				Action: "add",
				KObj:   "/devices/" + strings.Repeat("a", 500),
				Env:    map[string]string{},
			},
		},
		{
			name:  "libudev header skipped",
			input: append([]byte("libudev\x00"), []byte("remove@/devices/usb1/1-2\x00SUBSYSTEM=usb\x00")...),
			expected: &Event{
				Action:    "remove",
				KObj:      "/devices/usb1/1-2",
				Subsystem: "usb",
				Env:       map[string]string{"SUBSYSTEM": "usb"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseUEvent(tt.input)

			if tt.expected == nil {
				if result != nil {
					t.Errorf("expected nil, got %+v", result)
				}
				return
			}
			if result == nil {
				t.Fatalf("expected %+v, got nil", tt.expected)
			}

			if result.Action != tt.expected.Action {
				t.Errorf("Action: expected %q, got %q", tt.expected.Action, result.Action)
			}
			if result.KObj != tt.expected.KObj {
				t.Errorf("KObj: expected %q, got %q", tt.expected.KObj, result.KObj)
			}
			if result.Subsystem != tt.expected.Subsystem {
				t.Errorf("Subsystem: expected %q, got %q", tt.expected.Subsystem, result.Subsystem)
			}
			if result.DevType != tt.expected.DevType {
				t.Errorf("DevType: expected %q, got %q", tt.expected.DevType, result.DevType)
			}
			if result.DevName != tt.expected.DevName {
				t.Errorf("DevName: expected %q, got %q", tt.expected.DevName, result.DevName)
			}
			if len(result.Env) != len(tt.expected.Env) {
				t.Errorf("Env length: expected %d, got %d", len(tt.expected.Env), len(result.Env))
			}
			for k, v := range tt.expected.Env {
				if result.Env[k] != v {
					t.Errorf("Env[%q]: expected %q, got %q", k, v, result.Env[k])
				}
			}
		})
	}
}

func TestEventUSB(t *testing.T) {
	tests := []struct {
		name   string
		event  Event
		want   USBDevice
		wantOK bool
	}{
		{
			name: "full properties",
			event: Event{
				Subsystem: SubsystemUSB, DevType: DevTypeUSBDevice,
				Env: map[string]string{"PRODUCT": "34c7/2113/100", "BUSNUM": "001", "DEVNUM": "012"},
			},
			want:   USBDevice{Vendor: 0x34c7, Product: 0x2113, BCD: 0x100, Bus: 1, Address: 12},
			wantOK: true,
		},
		{
			name: "no location",
			event: Event{
				Subsystem: SubsystemUSB, DevType: DevTypeUSBDevice,
				Env: map[string]string{"PRODUCT": "4fc/2104/0"},
			},
			want:   USBDevice{Vendor: 0x04fc, Product: 0x2104},
			wantOK: true,
		},
		{
			name: "interface event",
			event: Event{
				Subsystem: SubsystemUSB, DevType: "usb_interface",
				Env: map[string]string{"PRODUCT": "34c7/2113/100"},
			},
			wantOK: false,
		},
		{
			name: "garbage product",
			event: Event{
				Subsystem: SubsystemUSB, DevType: DevTypeUSBDevice,
				Env: map[string]string{"PRODUCT": "zz/2113/100"},
			},
			wantOK: false,
		},
		{
			name: "other subsystem",
			event: Event{
				Subsystem: "drm", DevType: DevTypeUSBDevice,
				Env: map[string]string{"PRODUCT": "34c7/2113/100"},
			},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.event.USB()
			if ok != tt.wantOK {
				t.Fatalf("USB() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("USB() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestMonitorAccept(t *testing.T) {
	m := &Monitor{filters: map[string]struct{}{}, devTypes: map[string]struct{}{}}

	if !m.accept(&Event{Subsystem: "drm"}) {
		t.Error("monitor without filters should accept everything")
	}

	m.AddSubsystemFilter(SubsystemUSB)
	m.AddDevTypeFilter(DevTypeUSBDevice)

	tests := []struct {
		event Event
		want  bool
	}{
		{Event{Subsystem: SubsystemUSB, DevType: DevTypeUSBDevice}, true},
		{Event{Subsystem: SubsystemUSB, DevType: "usb_interface"}, false},
		{Event{Subsystem: "drm", DevType: DevTypeUSBDevice}, false},
	}
	for _, tt := range tests {
		if got := m.accept(&tt.event); got != tt.want {
			t.Errorf("accept(%s/%s) = %v, want %v", tt.event.Subsystem, tt.event.DevType, got, tt.want)
		}
	}
}

func TestNewMonitor(t *testing.T) {
	m, err := NewMonitor()
	if err != nil {
		t.Skipf("netlink unavailable: %v", err)
	}
	defer func() { _ = m.Close() }()

	if m.FD() <= 0 {
		t.Errorf("expected valid fd, got %d", m.FD())
	}
}

func TestMonitorPollDoesNotBlock(t *testing.T) {
	m, err := NewMonitor()
	if err != nil {
		t.Skipf("netlink unavailable: %v", err)
	}
	defer func() { _ = m.Close() }()

	// A filter nothing matches keeps the result empty even if the host is
	// generating events while the test runs.
	m.AddSubsystemFilter("no-such-subsystem")

	events, err := m.Poll(nil)
	if err != nil {
		t.Fatalf("Poll() error: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("Poll() returned %d events, want 0", len(events))
	}
}

func TestMonitorClose(t *testing.T) {
	m, err := NewMonitor()
	if err != nil {
		t.Skipf("netlink unavailable: %v", err)
	}

	if closeErr := m.Close(); closeErr != nil {
		t.Errorf("Close() error: %v", closeErr)
	}
	if closeErr := m.Close(); closeErr == nil {
		t.Error("expected error on second Close()")
	}
}

// TestMonitorConcurrentFilterAdd tests for race conditions when adding filters
// concurrently. Run with: go test -race -run TestMonitorConcurrentFilterAdd.
func TestMonitorConcurrentFilterAdd(t *testing.T) {
	m := &Monitor{filters: map[string]struct{}{}, devTypes: map[string]struct{}{}}

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				m.AddSubsystemFilter(SubsystemUSB)
				m.AddDevTypeFilter(DevTypeUSBDevice)
				_ = m.accept(&Event{Subsystem: SubsystemUSB})
			}
		}()
	}
	wg.Wait()

	m.filtersMu.RLock()
	defer m.filtersMu.RUnlock()
	if len(m.filters) != 1 || len(m.devTypes) != 1 {
		t.Errorf("expected 1 filter of each kind, got %d/%d", len(m.filters), len(m.devTypes))
	}
}
