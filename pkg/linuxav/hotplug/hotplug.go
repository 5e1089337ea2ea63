//go:build linux

// Package hotplug provides pure Go device hotplug monitoring using netlink.
//
// The monitor listens to kernel uevent broadcasts without cgo. It is polled
// rather than run: Poll drains whatever the kernel has queued and returns
// immediately, so a caller can fold hotplug handling into its own loop.
package hotplug

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sys/unix"
)

// Action constants for device events.
const (
	ActionAdd    = "add"
	ActionRemove = "remove"
	ActionChange = "change"
	ActionBind   = "bind"
	ActionUnbind = "unbind"
)

// Subsystem and device type names used for USB devices.
const (
	SubsystemUSB     = "usb"
	DevTypeUSBDevice = "usb_device"
)

// Event represents a kernel device event.
type Event struct {
	Action    string            // "add", "remove", "change", etc.
	KObj      string            // Kernel object path: /devices/pci0000:00/...
	Subsystem string            // "usb", "drm", ...
	DevType   string            // "usb_device", "usb_interface", ...
	DevName   string            // Device node relative to /dev
	DevPath   string            // Sysfs path
	Env       map[string]string // All environment variables from the event
}

// USBDevice is the identity of a USB device carried by a uevent.
type USBDevice struct {
	Vendor  uint16
	Product uint16
	BCD     uint16
	Bus     int
	Address int
}

func (d USBDevice) String() string {
	return fmt.Sprintf("%04x:%04x (bus %d, device %d)", d.Vendor, d.Product, d.Bus, d.Address)
}

// USB extracts vendor, product and bus location from a usb_device event.
// PRODUCT carries "vvvv/pppp/bcd" in hex without padding; BUSNUM and DEVNUM
// are decimal. ok is false when the event is not a usb_device event or the
// properties are missing.
func (e Event) USB() (dev USBDevice, ok bool) {
	if e.Subsystem != SubsystemUSB || e.DevType != DevTypeUSBDevice {
		return dev, false
	}

	parts := strings.Split(e.Env["PRODUCT"], "/")
	if len(parts) < 2 {
		return dev, false
	}
	vid, err := strconv.ParseUint(parts[0], 16, 16)
	if err != nil {
		return dev, false
	}
	pid, err := strconv.ParseUint(parts[1], 16, 16)
	if err != nil {
		return dev, false
	}
	dev.Vendor, dev.Product = uint16(vid), uint16(pid)
	if len(parts) > 2 {
		if bcd, err := strconv.ParseUint(parts[2], 16, 16); err == nil {
			dev.BCD = uint16(bcd)
		}
	}

	// Location is optional on some kernels; zero means unknown.
	if v, err := strconv.Atoi(e.Env["BUSNUM"]); err == nil {
		dev.Bus = v
	}
	if v, err := strconv.Atoi(e.Env["DEVNUM"]); err == nil {
		dev.Address = v
	}
	return dev, true
}

// Monitor listens for kernel device events via netlink.
type Monitor struct {
	fd        int
	buf       []byte
	filters   map[string]struct{}
	devTypes  map[string]struct{}
	filtersMu sync.RWMutex
}

// NewMonitor opens a netlink socket bound to the kernel uevent broadcast
// group.
func NewMonitor() (*Monitor, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, unix.NETLINK_KOBJECT_UEVENT)
	if err != nil {
		return nil, fmt.Errorf("netlink socket: %w", err)
	}

	addr := &unix.SockaddrNetlink{
		Family: unix.AF_NETLINK,
		Groups: 1, // Kernel broadcast group
	}
	if err := unix.Bind(fd, addr); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("netlink bind: %w", err)
	}

	return &Monitor{
		fd:       fd,
		buf:      make([]byte, 8192),
		filters:  make(map[string]struct{}),
		devTypes: make(map[string]struct{}),
	}, nil
}

// AddSubsystemFilter adds a subsystem filter. Only events from matching
// subsystems are returned. If no filters are added, all events pass through.
// This method is safe for concurrent use.
func (m *Monitor) AddSubsystemFilter(subsystem string) {
	m.filtersMu.Lock()
	m.filters[subsystem] = struct{}{}
	m.filtersMu.Unlock()
}

// AddDevTypeFilter restricts events to the given device types, with the
// same semantics as AddSubsystemFilter.
func (m *Monitor) AddDevTypeFilter(devType string) {
	m.filtersMu.Lock()
	m.devTypes[devType] = struct{}{}
	m.filtersMu.Unlock()
}

func (m *Monitor) accept(e *Event) bool {
	m.filtersMu.RLock()
	defer m.filtersMu.RUnlock()
	if len(m.filters) > 0 {
		if _, ok := m.filters[e.Subsystem]; !ok {
			return false
		}
	}
	if len(m.devTypes) > 0 {
		if _, ok := m.devTypes[e.DevType]; !ok {
			return false
		}
	}
	return true
}

// FD returns the underlying socket descriptor.
func (m *Monitor) FD() int { return m.fd }

// Close releases the monitor resources.
func (m *Monitor) Close() error {
	return unix.Close(m.fd)
}

// Poll drains every datagram currently queued on the socket without
// blocking and appends the events that pass the filters to dst, in arrival
// order. It returns as soon as the queue is empty.
func (m *Monitor) Poll(dst []Event) ([]Event, error) {
	for {
		n, _, err := unix.Recvfrom(m.fd, m.buf, unix.MSG_DONTWAIT)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
				return dst, nil
			}
			if errors.Is(err, unix.EINTR) {
				continue
			}
			// ENOBUFS: the kernel dropped events. Events read so far are
			// still returned.
			return dst, err
		}
		if n == 0 {
			continue
		}

		event := ParseUEvent(m.buf[:n])
		if event == nil || !m.accept(event) {
			continue
		}
		dst = append(dst, *event)
	}
}

// ParseUEvent parses a kernel uevent message.
// Format: "ACTION@KOBJ\0KEY=VALUE\0KEY=VALUE\0..."
func ParseUEvent(data []byte) *Event {
	if len(data) == 0 {
		return nil
	}

	// udevd rebroadcasts with a binary "libudev" header in front of the
	// uevent; skip to the first "action@path" record.
	if bytes.HasPrefix(data, []byte("libudev")) {
		for i := 0; i < len(data)-1; i++ {
			if data[i] == 0 {
				rest := data[i+1:]
				if idx := bytes.IndexByte(rest, '@'); idx > 0 && idx < 20 {
					data = rest
					break
				}
			}
		}
	}

	parts := bytes.Split(data, []byte{0})
	if len(parts) < 1 || len(parts[0]) == 0 {
		return nil
	}

	header := string(parts[0])
	atIdx := strings.Index(header, "@")
	if atIdx < 1 {
		return nil
	}

	event := &Event{
		Action: header[:atIdx],
		KObj:   header[atIdx+1:],
		Env:    make(map[string]string),
	}

	for _, part := range parts[1:] {
		if len(part) == 0 {
			continue
		}

		key, value, found := strings.Cut(string(part), "=")
		if !found || key == "" {
			continue
		}
		event.Env[key] = value

		switch key {
		case "SUBSYSTEM":
			event.Subsystem = value
		case "DEVTYPE":
			event.DevType = value
		case "DEVNAME":
			event.DevName = value
		case "DEVPATH":
			event.DevPath = value
		}
	}

	return event
}
