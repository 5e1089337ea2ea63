//go:build linux

package bridge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smazurov/usbdisplay/internal/adapter"
	"github.com/smazurov/usbdisplay/internal/capture"
	"github.com/smazurov/usbdisplay/internal/cursor"
	"github.com/smazurov/usbdisplay/internal/events"
	"github.com/smazurov/usbdisplay/internal/frame"
	"github.com/smazurov/usbdisplay/internal/identity"
	"github.com/smazurov/usbdisplay/internal/sink"
	"github.com/smazurov/usbdisplay/internal/vdisplay"
	"github.com/smazurov/usbdisplay/pkg/linuxav/evdi"
	"github.com/smazurov/usbdisplay/pkg/linuxav/hotplug"
	"golang.org/x/sys/unix"
)

var adapterRef = adapter.DeviceRef{Bus: 1, Address: 4}

type harness struct {
	t       *testing.T
	loop    *Loop
	bus     *adapter.FakeBus
	src     *adapter.FakeSource
	rec     *sink.Recorder
	devs    []*vdisplay.FakeDevice
	openErr error
	opens   int
	now     time.Time
}

func synthetic(t *testing.T, w, h int) identity.Block {
	t.Helper()
	b, err := identity.Synthetic(w, h, 60)
	if err != nil {
		t.Fatalf("identity.Synthetic() error: %v", err)
	}
	return b
}

func newHarness(t *testing.T, configure func(*Options, *harness)) *harness {
	t.Helper()
	h := &harness{
		t: t,
		bus: &adapter.FakeBus{
			Devices:  []adapter.DeviceInfo{{Ref: adapterRef, Vendor: adapter.VendorID, Product: 0x2113}},
			Identity: synthetic(t, 64, 48).Bytes(),
		},
		src: &adapter.FakeSource{},
		rec: &sink.Recorder{},
		now: time.Unix(1_700_000_000, 0),
	}

	opts := Options{
		FPS:     DefaultFPS,
		Bus:     h.bus,
		Monitor: adapter.NewMonitor(h.bus, h.src, adapter.DefaultMonitorConfig()),
		Displays: vdisplay.OpenerFunc(func(b identity.Block, o vdisplay.Options) (vdisplay.Display, error) {
			h.opens++
			if h.openErr != nil {
				return nil, h.openErr
			}
			dev := &vdisplay.FakeDevice{}
			d, err := vdisplay.OpenDevice(dev, b, o)
			if err != nil {
				return nil, err
			}
			h.devs = append(h.devs, dev)
			return d, nil
		}),
		NewSink: func() (sink.Sink, error) { return h.rec, nil },
	}
	if configure != nil {
		configure(&opts, h)
	}

	l, err := New(opts)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	h.loop = l
	return h
}

// tick advances the clock by one period and ticks.
func (h *harness) tick() {
	h.t.Helper()
	h.now = h.now.Add(h.loop.Period())
	if err := h.loop.Tick(h.now); err != nil {
		h.t.Fatalf("Tick() error: %v", err)
	}
}

// settle ticks until the loop streams or the budget runs out.
func (h *harness) settle() {
	h.t.Helper()
	for i := 0; i < 40 && h.loop.State() != StateStreaming; i++ {
		h.tick()
	}
	if h.loop.State() != StateStreaming {
		h.t.Fatalf("loop did not start streaming (attachment %v)", h.loop.Attachment().State())
	}
}

func (h *harness) device() *vdisplay.FakeDevice {
	h.t.Helper()
	if len(h.devs) == 0 {
		h.t.Fatal("no virtual display opened")
	}
	return h.devs[len(h.devs)-1]
}

func TestEndToEnd(t *testing.T) {
	h := newHarness(t, nil)
	h.loop.Start()

	// The scan arrival is applied on the first tick and settles for 300ms,
	// six more ticks at 20 fps.
	for i := 0; i < 6; i++ {
		h.tick()
		if h.loop.State() == StateStreaming {
			t.Fatalf("streaming before the settle delay elapsed (tick %d)", i+1)
		}
	}
	h.tick()
	if h.loop.State() != StateStreaming {
		t.Fatalf("loop state = %v after settle, want streaming", h.loop.State())
	}

	dev := h.device()
	if len(dev.EDID()) != identity.Size {
		t.Errorf("display opened with %d identity bytes, want %d", len(dev.EDID()), identity.Size)
	}
	if dev.AreaLimit() != 64*48 {
		t.Errorf("display area limit = %d, want %d", dev.AreaLimit(), 64*48)
	}
	if h.bus.OpenHandles() != 1 {
		t.Errorf("open handles while streaming = %d, want 1", h.bus.OpenHandles())
	}
	if h.rec.Device() == nil {
		t.Error("sink initialized without the streaming handle")
	}

	const n = 20
	start := len(h.rec.Frames())
	for i := 0; i < n; i++ {
		h.tick()
	}
	frames := h.rec.Frames()
	if got := len(frames) - start; got != n {
		t.Fatalf("forwarded %d frames in %d ticks, want %d", got, n, n)
	}
	for i, f := range frames {
		if f.Width != 64 || f.Height != 48 || f.Pitch != 64*frame.BytesPerPixel {
			t.Errorf("frame %d geometry %dx%d pitch %d", i, f.Width, f.Height, f.Pitch)
		}
		if !f.Opaque {
			t.Errorf("frame %d is not opaque", i)
		}
	}
	if st := h.loop.Attachment().State(); st != adapter.StateStreaming {
		t.Errorf("attachment = %v, want streaming", st)
	}

	// Removal mid-stream stops forwarding within one tick.
	h.src.Push(adapter.UEvent(hotplug.ActionRemove, adapter.VendorID, 0x2113, adapterRef))
	before := len(h.rec.Frames())
	h.tick()
	h.tick()
	if got := len(h.rec.Frames()); got != before {
		t.Errorf("forwarded %d frames after removal", got-before)
	}
	if h.loop.State() != StateIdle {
		t.Errorf("loop state = %v after removal, want idle", h.loop.State())
	}
	if st := h.loop.Attachment().State(); st != adapter.StateAbsent {
		t.Errorf("attachment = %v after removal, want absent", st)
	}
	if h.bus.OpenHandles() != 0 {
		t.Errorf("open handles after removal = %d, want 0", h.bus.OpenHandles())
	}
	if !dev.Closed() || dev.Connected() {
		t.Error("virtual display not disconnected and closed after removal")
	}
	if h.rec.Teardowns() != 1 || h.rec.Active() {
		t.Errorf("sink teardowns = %d active = %v", h.rec.Teardowns(), h.rec.Active())
	}
}

func TestRearrivalRestartsStreaming(t *testing.T) {
	h := newHarness(t, nil)
	h.loop.Start()
	h.settle()

	h.src.Push(adapter.UEvent(hotplug.ActionRemove, adapter.VendorID, 0x2113, adapterRef))
	h.tick()
	if h.loop.State() != StateIdle {
		t.Fatalf("loop state = %v after removal", h.loop.State())
	}

	h.src.Push(adapter.UEvent(hotplug.ActionAdd, adapter.VendorID, 0x2113, adapterRef))
	h.tick()
	if st := h.loop.Attachment().State(); st != adapter.StateAttached {
		t.Fatalf("attachment = %v after arrival, want attached", st)
	}
	// Hot-plug arrivals settle for 600ms.
	for i := 0; i < 11; i++ {
		h.tick()
		if h.loop.State() == StateStreaming {
			t.Fatalf("streaming %d ticks after hot-plug arrival", i+1)
		}
	}
	h.settle()
	if h.rec.Inits() != 2 || len(h.devs) != 2 {
		t.Errorf("sink inits = %d, displays opened = %d, want 2 each", h.rec.Inits(), len(h.devs))
	}
}

func TestArrivalDuringSessionRestarts(t *testing.T) {
	h := newHarness(t, nil)
	h.loop.Start()
	h.settle()
	first := h.device()

	h.src.Push(adapter.UEvent(hotplug.ActionAdd, adapter.VendorID, 0x2114, adapter.DeviceRef{Bus: 1, Address: 5}))
	h.bus.Devices = append(h.bus.Devices, adapter.DeviceInfo{Ref: adapter.DeviceRef{Bus: 1, Address: 5}, Vendor: adapter.VendorID, Product: 0x2114})
	h.tick()

	if !first.Closed() {
		t.Error("previous session display not closed on new arrival")
	}
	if h.rec.Teardowns() != 1 {
		t.Errorf("sink teardowns = %d, want 1", h.rec.Teardowns())
	}
	if got := h.loop.Attachment().Device().Ref; got.Address != 5 {
		t.Errorf("attached device = %v, want the new arrival", got)
	}
	h.settle()
	if h.bus.OpenHandles() != 1 {
		t.Errorf("open handles = %d, want 1", h.bus.OpenHandles())
	}
}

func TestUnrelatedRemovalIgnored(t *testing.T) {
	h := newHarness(t, nil)
	h.loop.Start()
	h.settle()

	h.src.Push(adapter.UEvent(hotplug.ActionRemove, 0x046d, 0xc52b, adapter.DeviceRef{Bus: 2, Address: 9}))
	before := len(h.rec.Frames())
	h.tick()
	if h.loop.State() != StateStreaming || len(h.rec.Frames()) != before+1 {
		t.Error("unrelated removal disturbed the session")
	}
}

func TestRemovalOfOtherAdapterIgnored(t *testing.T) {
	h := newHarness(t, nil)
	h.loop.Start()
	h.settle()

	other := adapter.DeviceRef{Bus: 3, Address: 7}
	h.src.Push(adapter.UEvent(hotplug.ActionRemove, adapter.VendorID, 0x2113, other))
	before := len(h.rec.Frames())
	h.tick()
	if h.loop.State() != StateStreaming || len(h.rec.Frames()) != before+1 {
		t.Errorf("removal of %v disturbed the session on %v (loop %v)", other, adapterRef, h.loop.State())
	}
	if st := h.loop.Attachment().State(); st != adapter.StateStreaming {
		t.Errorf("attachment = %v, want streaming", st)
	}
}

func TestLostEventsRescan(t *testing.T) {
	h := newHarness(t, nil)
	h.loop.Start()
	h.settle()
	present := h.bus.Devices

	// The removal uevent was dropped by the kernel.
	h.bus.Devices = nil
	h.src.Err = unix.ENOBUFS
	h.tick()
	h.src.Err = nil
	if h.loop.State() != StateIdle {
		t.Errorf("loop state = %v after rescan without the adapter, want idle", h.loop.State())
	}
	if st := h.loop.Attachment().State(); st != adapter.StateAbsent {
		t.Errorf("attachment = %v after rescan, want absent", st)
	}
	if h.bus.OpenHandles() != 0 || !h.device().Closed() {
		t.Error("session resources left open after rescan")
	}

	// The adapter came back at a new address while events were lost again.
	moved := adapter.DeviceRef{Bus: 1, Address: 6}
	h.bus.Devices = []adapter.DeviceInfo{{Ref: moved, Vendor: present[0].Vendor, Product: present[0].Product}}
	h.src.Err = unix.ENOBUFS
	h.tick()
	h.src.Err = nil
	if got := h.loop.Attachment().Device().Ref; got != moved {
		t.Fatalf("attached device = %v after rescan, want %v", got, moved)
	}
	h.settle()
}

func TestRescanKeepsPresentAdapter(t *testing.T) {
	h := newHarness(t, nil)
	h.loop.Start()
	h.settle()

	h.src.Err = unix.ENOBUFS
	before := len(h.rec.Frames())
	h.tick()
	h.src.Err = nil
	if h.loop.State() != StateStreaming || len(h.rec.Frames()) != before+1 {
		t.Error("rescan with the adapter still present disturbed the session")
	}
	if h.rec.Inits() != 1 {
		t.Errorf("sink inits = %d, want 1", h.rec.Inits())
	}
}

func TestStopUsesTickClock(t *testing.T) {
	bus := events.New()
	stopped := make(chan events.SessionStoppedEvent, 1)
	attachment := make(chan events.AttachmentChangedEvent, 8)
	defer bus.Subscribe(func(e events.SessionStoppedEvent) { stopped <- e })()
	defer bus.Subscribe(func(e events.AttachmentChangedEvent) { attachment <- e })()

	h := newHarness(t, func(o *Options, _ *harness) { o.Events = bus })
	h.loop.Start()
	h.settle()
	h.loop.Stop()

	want := h.now.Format(time.RFC3339)
	select {
	case e := <-stopped:
		if e.Reason != "quit" || e.Timestamp != want {
			t.Errorf("stopped event = %+v, want reason quit at %s", e, want)
		}
	case <-time.After(time.Second):
		t.Fatal("no session stopped event")
	}

	deadline := time.After(time.Second)
	for {
		select {
		case e := <-attachment:
			if e.State != "absent" {
				continue
			}
			if e.Timestamp != want {
				t.Errorf("absent event at %s, want %s", e.Timestamp, want)
			}
			return
		case <-deadline:
			t.Fatal("no absent attachment event after Stop")
		}
	}
}

func TestIdentityOverride(t *testing.T) {
	h := newHarness(t, func(o *Options, _ *harness) {
		o.Identity = synthetic(t, 32, 32)
	})
	h.loop.Start()
	h.settle()

	for _, c := range h.bus.Controls() {
		if c.Request == 0x41 {
			t.Fatalf("identity read from hardware despite override: %+v", c)
		}
	}
	frames := h.rec.Frames()
	if len(frames) == 0 || frames[0].Width != 32 || frames[0].Height != 32 {
		t.Errorf("frames = %d, first %+v; want 32x32", len(frames), frames)
	}
}

func TestIdentityFailureRetriesNextTick(t *testing.T) {
	h := newHarness(t, nil)
	h.bus.FailOn = 2
	h.loop.Start()

	for i := 0; i < 10; i++ {
		h.tick()
	}
	if h.loop.State() != StateIdle {
		t.Fatalf("loop state = %v with failing identity read", h.loop.State())
	}
	if h.loop.Attachment().Parked() {
		t.Error("identity failure should not park the attachment")
	}
	if h.opens != 0 {
		t.Errorf("display opened %d times without an identity block", h.opens)
	}
	if h.bus.OpenHandles() != 0 {
		t.Errorf("open handles = %d after failed reads, want 0", h.bus.OpenHandles())
	}

	h.bus.FailOn = 0
	h.tick()
	if h.loop.State() != StateStreaming {
		t.Errorf("loop state = %v after identity recovered, want streaming", h.loop.State())
	}
}

func TestNoBackendParksUntilArrival(t *testing.T) {
	h := newHarness(t, nil)
	h.openErr = vdisplay.ErrNoBackend
	h.loop.Start()

	for i := 0; i < 10; i++ {
		h.tick()
	}
	if !h.loop.Attachment().Parked() || h.loop.State() != StateIdle {
		t.Fatalf("parked = %v state = %v, want parked idle", h.loop.Attachment().Parked(), h.loop.State())
	}
	if h.opens != 1 {
		t.Errorf("display open attempts = %d, want 1 while parked", h.opens)
	}
	if h.bus.OpenHandles() != 0 {
		t.Errorf("open handles = %d, want 0", h.bus.OpenHandles())
	}

	h.openErr = nil
	h.src.Push(adapter.UEvent(hotplug.ActionAdd, adapter.VendorID, 0x2113, adapterRef))
	h.settle()
	if h.opens != 2 {
		t.Errorf("display open attempts = %d, want 2", h.opens)
	}
}

func TestSinkInitFailureReleasesEverything(t *testing.T) {
	h := newHarness(t, nil)
	h.rec.InitErr = errors.New("encoder busy")
	h.loop.Start()
	for i := 0; i < 10; i++ {
		h.tick()
	}
	if h.loop.State() != StateIdle || !h.loop.Attachment().Parked() {
		t.Errorf("state = %v parked = %v, want parked idle", h.loop.State(), h.loop.Attachment().Parked())
	}
	if h.bus.OpenHandles() != 0 {
		t.Errorf("open handles = %d, want 0", h.bus.OpenHandles())
	}
	if !h.device().Closed() {
		t.Error("virtual display left open after sink failure")
	}
}

func TestDPMSBlanksAndRestores(t *testing.T) {
	h := newHarness(t, nil)
	h.loop.Start()
	h.settle()

	h.device().Push(evdi.Event{Type: evdi.EventDPMS, DPMS: evdi.DPMSOff})
	h.tick()
	h.device().Push(evdi.Event{Type: evdi.EventDPMS, DPMS: evdi.DPMSOff})
	h.tick()
	h.device().Push(evdi.Event{Type: evdi.EventDPMS, DPMS: evdi.DPMSOn})
	h.tick()

	res := h.rec.Resolutions()
	if len(res) != 2 || res[0] != [2]int{0, 0} || res[1] != [2]int{64, 48} {
		t.Errorf("resolutions = %v, want [[0 0] [64 48]]", res)
	}
}

func TestCursorOverlay(t *testing.T) {
	h := newHarness(t, func(o *Options, _ *harness) { o.CursorOverlay = true })
	h.loop.Start()
	h.settle()

	h.device().Push(evdi.Event{Type: evdi.EventCursorMove, CursorX: 20, CursorY: 20})
	h.tick()

	frames := h.rec.Frames()
	last := frames[len(frames)-1]
	buf, err := frame.FromBytes(last.Pix, last.Width, last.Height, last.Pitch)
	if err != nil {
		t.Fatalf("frame.FromBytes() error: %v", err)
	}
	left, top := 20-cursor.HotspotLeft, 20-cursor.HotspotAbove
	tests := []struct {
		name string
		x, y int
		want [4]byte
	}{
		{"outline", left, top, [4]byte{0xff, 0xff, 0xff, 0xff}},
		{"fill", left + 1, top + 1, [4]byte{0x00, 0x00, 0x00, 0xff}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if px, _ := buf.At(tt.x, tt.y); px != tt.want {
				t.Errorf("pixel (%d,%d) = %v, want %v", tt.x, tt.y, px, tt.want)
			}
		})
	}
	if !last.Opaque {
		t.Error("composited frame is not opaque")
	}
}

func TestDeferredUpdatesSkipTicks(t *testing.T) {
	var dev *vdisplay.FakeDevice
	h := newHarness(t, func(o *Options, _ *harness) {
		o.Displays = vdisplay.OpenerFunc(func(b identity.Block, vo vdisplay.Options) (vdisplay.Display, error) {
			dev = &vdisplay.FakeDevice{Deferred: true}
			d, err := vdisplay.OpenDevice(dev, b, vo)
			if err != nil {
				return nil, err
			}
			return d, nil
		})
	})
	h.loop.Start()
	h.settle()

	for i := 0; i < 3; i++ {
		h.tick()
	}
	if n := len(h.rec.Frames()); n != 0 {
		t.Fatalf("forwarded %d frames before update-ready", n)
	}
	dev.Ready()
	h.tick()
	if n := len(h.rec.Frames()); n != 1 {
		t.Errorf("forwarded %d frames after update-ready, want 1", n)
	}
}

func TestX11Source(t *testing.T) {
	srv := &capture.FakeServer{Topology: capture.Topology{Outputs: []capture.Output{
		{Name: "eDP-1", Width: 80, Height: 60, Connection: capture.Connected},
		{Name: capture.DefaultExtendedOutput, X: 80, Width: 40, Height: 30, Connection: capture.Connected},
	}}}
	h := newHarness(t, func(o *Options, _ *harness) {
		o.Source = SourceX11
		o.Extended = true
		o.Screen = srv
	})
	h.loop.Start()
	h.settle()
	h.tick()

	frames := h.rec.Frames()
	if len(frames) != 2 {
		t.Fatalf("forwarded %d frames, want 2", len(frames))
	}
	for _, f := range frames {
		if f.Width != 40 || f.Height != 30 || !f.Opaque {
			t.Errorf("frame %dx%d opaque=%v, want 40x30 opaque", f.Width, f.Height, f.Opaque)
		}
	}
	if srv.LiveImages() != 0 {
		t.Errorf("%d shared images leaked", srv.LiveImages())
	}

	// Later failures are transient.
	srv.FillErr = errors.New("BadMatch")
	h.tick()
	if h.loop.State() != StateStreaming {
		t.Errorf("loop state = %v after transient capture failure", h.loop.State())
	}
}

func TestX11FirstCaptureFailureIsFatal(t *testing.T) {
	srv := &capture.FakeServer{}
	h := newHarness(t, func(o *Options, _ *harness) {
		o.Source = SourceX11
		o.Screen = srv
	})
	h.loop.Start()

	var err error
	for i := 0; i < 20 && err == nil; i++ {
		h.now = h.now.Add(h.loop.Period())
		err = h.loop.Tick(h.now)
	}
	var be *Error
	if !errors.As(err, &be) || be.Code != ErrCodeFirstCapture {
		t.Fatalf("Tick() error = %v, want %s", err, ErrCodeFirstCapture)
	}
	if ExitCode(err) != ExitFailure {
		t.Errorf("ExitCode() = %d, want %d", ExitCode(err), ExitFailure)
	}
}

func TestStopTearsDown(t *testing.T) {
	h := newHarness(t, nil)
	h.loop.Start()
	h.settle()

	h.loop.Stop()
	if h.loop.State() != StateStopping {
		t.Errorf("state = %v, want stopping", h.loop.State())
	}
	if h.bus.OpenHandles() != 0 || !h.device().Closed() || h.rec.Active() {
		t.Error("Stop() left resources open")
	}
	if st := h.loop.Attachment().State(); st != adapter.StateAbsent {
		t.Errorf("attachment = %v after Stop, want absent", st)
	}
	before := len(h.rec.Frames())
	h.tick()
	if len(h.rec.Frames()) != before {
		t.Error("Tick() after Stop forwarded a frame")
	}
	if st := h.loop.Status(); st.State != "stopping" {
		t.Errorf("Status().State = %q, want stopping", st.State)
	}
}

func TestStatusSnapshot(t *testing.T) {
	h := newHarness(t, nil)
	if st := h.loop.Status(); st.State != "idle" || st.Attachment != "absent" {
		t.Errorf("initial status = %+v", st)
	}
	h.loop.Start()
	h.settle()
	h.tick()

	st := h.loop.Status()
	if st.State != "streaming" || st.Attachment != "streaming" {
		t.Errorf("status = %+v, want streaming/streaming", st)
	}
	if st.Device != "001/004" || st.Mode == "" || st.Fingerprint == "" || st.Frames != 2 {
		t.Errorf("status = %+v", st)
	}
}

func TestPublishesEvents(t *testing.T) {
	bus := events.New()
	started := make(chan events.SessionStartedEvent, 1)
	stopped := make(chan events.SessionStoppedEvent, 1)
	defer bus.Subscribe(func(e events.SessionStartedEvent) { started <- e })()
	defer bus.Subscribe(func(e events.SessionStoppedEvent) { stopped <- e })()

	h := newHarness(t, func(o *Options, _ *harness) { o.Events = bus })
	h.loop.Start()
	h.settle()
	h.src.Push(adapter.UEvent(hotplug.ActionRemove, adapter.VendorID, 0x2113, adapterRef))
	h.tick()

	select {
	case e := <-started:
		if e.Device != "001/004" || e.Width != 64 || e.Height != 48 {
			t.Errorf("started event = %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("no session started event")
	}
	select {
	case e := <-stopped:
		if e.Reason != "removal" || e.Frames != 1 {
			t.Errorf("stopped event = %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("no session stopped event")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	h := newHarness(t, func(o *Options, _ *harness) { o.FPS = 100 })
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.loop.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
	if h.loop.State() != StateStopping {
		t.Errorf("state after Run = %v, want stopping", h.loop.State())
	}
}

func TestNewValidates(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Error("New() without collaborators should fail")
	}
	bus := &adapter.FakeBus{}
	_, err := New(Options{
		Source:   SourceX11,
		Bus:      bus,
		Monitor:  adapter.NewMonitor(bus, nil, adapter.DefaultMonitorConfig()),
		Displays: vdisplay.OpenerFunc(func(identity.Block, vdisplay.Options) (vdisplay.Display, error) { return nil, nil }),
		NewSink:  func() (sink.Sink, error) { return sink.NewDiscard(), nil },
	})
	if err == nil {
		t.Error("New() with x11 source and no server should fail")
	}
}
