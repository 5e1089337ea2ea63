package adapter

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/smazurov/usbdisplay/internal/logging"
	"github.com/smazurov/usbdisplay/pkg/linuxav/hotplug"
	"golang.org/x/sys/unix"
)

// ErrEventsLost is wrapped by Poll when the kernel dropped uevents because
// the socket buffer overflowed. Resync recovers the bus state.
var ErrEventsLost = errors.New("usb events lost")

// EventKind distinguishes arrivals from removals.
type EventKind int

// Event kinds.
const (
	Arrival EventKind = iota + 1
	Removal
)

func (k EventKind) String() string {
	switch k {
	case Arrival:
		return "arrival"
	case Removal:
		return "removal"
	default:
		return "unknown"
	}
}

// Origin tells where an event came from.
type Origin string

// Event origins.
const (
	OriginScan    Origin = "scan"
	OriginHotplug Origin = "hotplug"
)

// Event is a queued bus event.
type Event struct {
	Kind    EventKind
	Device  DeviceInfo
	Origin  Origin
	Matched bool          // device passed the matcher
	Settle  time.Duration // delay before an arrived device is usable
}

// EventSource yields raw kernel device events without blocking.
type EventSource interface {
	Poll(dst []hotplug.Event) ([]hotplug.Event, error)
	Close() error
}

// MonitorConfig configures a Monitor.
type MonitorConfig struct {
	Matcher       Matcher
	ScanSettle    time.Duration
	HotplugSettle time.Duration
}

// DefaultMonitorConfig returns the shipped settle delays and band matching.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Matcher:       NewMatcher(MatchBand),
		ScanSettle:    300 * time.Millisecond,
		HotplugSettle: 600 * time.Millisecond,
	}
}

// Monitor turns bus scans and kernel uevents into a queue of adapter
// events. It does not own the attachment; the consumer applies events.
type Monitor struct {
	bus    Bus
	src    EventSource
	cfg    MonitorConfig
	queue  []Event
	raw    []hotplug.Event
	logger *slog.Logger
}

// NewMonitor returns a monitor over bus and src.
func NewMonitor(bus Bus, src EventSource, cfg MonitorConfig) *Monitor {
	return &Monitor{
		bus:    bus,
		src:    src,
		cfg:    cfg,
		logger: logging.GetLogger("adapter"),
	}
}

// NewKernelSource opens the netlink uevent socket filtered to USB devices.
func NewKernelSource() (EventSource, error) {
	mon, err := hotplug.NewMonitor()
	if err != nil {
		return nil, err
	}
	mon.AddSubsystemFilter(hotplug.SubsystemUSB)
	mon.AddDevTypeFilter(hotplug.DevTypeUSBDevice)
	return mon, nil
}

// Scan enumerates the bus and queues an arrival for the first matching
// device already connected. Devices connected before the monitor started
// produce no uevent, so this runs once at startup.
func (m *Monitor) Scan() (bool, error) {
	devs, err := m.bus.Scan()
	if err != nil {
		return false, fmt.Errorf("scan usb bus: %w", err)
	}
	for _, d := range devs {
		m.logger.Debug("USB device present", "device", d)
		if !m.cfg.Matcher.Match(d.Vendor, d.Product) {
			continue
		}
		m.logger.Info("Display adapter found at startup", "device", d)
		m.queue = append(m.queue, Event{
			Kind:    Arrival,
			Device:  d,
			Origin:  OriginScan,
			Matched: true,
			Settle:  m.cfg.ScanSettle,
		})
		return true, nil
	}
	return false, nil
}

// Poll drains pending kernel events and returns every queued event in
// arrival order. It never blocks.
func (m *Monitor) Poll() ([]Event, error) {
	var pollErr error
	if m.src != nil {
		raw, err := m.src.Poll(m.raw[:0])
		m.raw = raw
		switch {
		case errors.Is(err, unix.ENOBUFS):
			pollErr = fmt.Errorf("poll usb events: %w: %w", ErrEventsLost, err)
		case err != nil:
			pollErr = fmt.Errorf("poll usb events: %w", err)
		}
		for i := range raw {
			if ev, ok := m.translate(&raw[i]); ok {
				m.queue = append(m.queue, ev)
			}
		}
	}

	out := m.queue
	m.queue = nil
	return out, pollErr
}

// Resync rescans the bus after events were lost. It returns a removal for
// attached when that device is no longer on the bus, followed by an arrival
// for the first matching device. Nothing is returned while attached is
// still present. An unknown attached ref means nothing is attached.
func (m *Monitor) Resync(attached DeviceRef) ([]Event, error) {
	devs, err := m.bus.Scan()
	if err != nil {
		return nil, fmt.Errorf("rescan usb bus: %w", err)
	}

	var out []Event
	if attached.Known() {
		if slices.ContainsFunc(devs, func(d DeviceInfo) bool { return d.Ref == attached }) {
			return nil, nil
		}
		m.logger.Info("Display adapter gone after lost events", "device", attached)
		out = append(out, Event{Kind: Removal, Device: DeviceInfo{Ref: attached}, Origin: OriginScan, Matched: true})
	}
	for _, d := range devs {
		if !m.cfg.Matcher.Match(d.Vendor, d.Product) {
			continue
		}
		m.logger.Info("Display adapter found on rescan", "device", d)
		out = append(out, Event{Kind: Arrival, Device: d, Origin: OriginScan, Matched: true, Settle: m.cfg.ScanSettle})
		break
	}
	return out, nil
}

// Inject queues an event as if it had come from the bus.
func (m *Monitor) Inject(ev Event) {
	m.queue = append(m.queue, ev)
}

func (m *Monitor) translate(raw *hotplug.Event) (Event, bool) {
	usb, ok := raw.USB()
	if !ok {
		return Event{}, false
	}
	info := DeviceInfo{
		Ref:     DeviceRef{Bus: usb.Bus, Address: usb.Address},
		Vendor:  usb.Vendor,
		Product: usb.Product,
	}
	matched := m.cfg.Matcher.Match(info.Vendor, info.Product)

	switch raw.Action {
	case hotplug.ActionAdd:
		if !matched {
			return Event{}, false
		}
		m.logger.Info("Display adapter attached", "device", info)
		return Event{Kind: Arrival, Device: info, Origin: OriginHotplug, Matched: true, Settle: m.cfg.HotplugSettle}, true
	case hotplug.ActionRemove:
		// Unmatched removals are still reported when located, so the
		// consumer can compare them with the attached device.
		if !matched && !info.Ref.Known() {
			return Event{}, false
		}
		if matched {
			m.logger.Info("Display adapter detached", "device", info)
		}
		return Event{Kind: Removal, Device: info, Origin: OriginHotplug, Matched: matched}, true
	default:
		return Event{}, false
	}
}

// Close closes the event source.
func (m *Monitor) Close() error {
	if m.src == nil {
		return nil
	}
	return m.src.Close()
}
