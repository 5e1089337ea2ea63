// Package bridge runs the frame loop: it applies adapter bus events to the
// attachment, starts and stops streaming sessions, and forwards one frame
// per tick from the frame source to the sink.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/smazurov/usbdisplay/internal/adapter"
	"github.com/smazurov/usbdisplay/internal/capture"
	"github.com/smazurov/usbdisplay/internal/cursor"
	"github.com/smazurov/usbdisplay/internal/events"
	"github.com/smazurov/usbdisplay/internal/identity"
	"github.com/smazurov/usbdisplay/internal/logging"
	"github.com/smazurov/usbdisplay/internal/metrics"
	"github.com/smazurov/usbdisplay/internal/sink"
	"github.com/smazurov/usbdisplay/internal/vdisplay"
)

// DefaultFPS is the tick rate.
const DefaultFPS = 20

// State is the loop state.
type State int

// Loop states. Stopping is terminal.
const (
	StateIdle State = iota
	StateStreaming
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateStopping:
		return "stopping"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Options wire a Loop. Bus, Monitor, Displays and NewSink are required.
// Screen is required when Source is SourceX11.
type Options struct {
	FPS           int
	Source        SourceKind
	Extended      bool
	ExtendedName  string
	CursorOverlay bool
	// Identity, when non-empty, replaces the block read from the adapter.
	Identity identity.Block

	Bus      adapter.Bus
	Monitor  *adapter.Monitor
	Displays vdisplay.Opener
	Screen   capture.Server
	NewSink  func() (sink.Sink, error)
	Events   *events.Bus
}

// Loop is the single-threaded reactor. Every method except Status must be
// called from the goroutine running it.
type Loop struct {
	opts     Options
	attach   *adapter.Attachment
	reader   *adapter.IdentityReader
	capturer *capture.Capturer
	cursor   cursor.State
	state    State
	sess     *session
	captured bool      // an X capture has succeeded
	now      time.Time // time of the current or last tick
	status   atomic.Pointer[Status]
	logger   *slog.Logger
}

// New returns an idle loop.
func New(opts Options) (*Loop, error) {
	if opts.Bus == nil || opts.Monitor == nil || opts.Displays == nil || opts.NewSink == nil {
		return nil, errors.New("bridge: bus, monitor, displays and sink are required")
	}
	if opts.FPS <= 0 {
		opts.FPS = DefaultFPS
	}
	if opts.Source == "" {
		opts.Source = SourceVirtual
	}
	if opts.Source == SourceX11 && opts.Screen == nil {
		return nil, errors.New("bridge: x11 source requires a display server")
	}

	l := &Loop{
		opts:   opts,
		attach: adapter.NewAttachment(),
		reader: adapter.NewIdentityReader(opts.Bus),
		logger: logging.GetLogger("bridge"),
	}
	if opts.Screen != nil {
		var cur *cursor.State
		if opts.CursorOverlay {
			cur = &l.cursor
		}
		l.capturer = capture.NewCapturer(opts.Screen, opts.ExtendedName, cur)
	}
	l.publishStatus()
	return l, nil
}

// Period returns the tick period.
func (l *Loop) Period() time.Duration {
	return time.Second / time.Duration(l.opts.FPS)
}

// State returns the loop state.
func (l *Loop) State() State { return l.state }

// Attachment returns the attachment owned by the loop.
func (l *Loop) Attachment() *adapter.Attachment { return l.attach }

// Start runs the startup bus scan. Devices already present produce no
// hot-plug event.
func (l *Loop) Start() {
	found, err := l.opts.Monitor.Scan()
	if err != nil {
		l.logger.Warn("Startup bus scan failed", "error", err)
		return
	}
	if !found {
		l.logger.Info("No display adapter connected, waiting for hot-plug")
	}
}

// Run scans the bus, then ticks until ctx is cancelled or a tick fails
// fatally. Everything is torn down before it returns.
func (l *Loop) Run(ctx context.Context) error {
	l.Start()
	l.logger.Info("Frame loop running", "fps", l.opts.FPS, "source", l.opts.Source, "extended", l.opts.Extended)

	ticker := time.NewTicker(l.Period())
	defer ticker.Stop()

	if err := l.Tick(time.Now()); err != nil {
		l.Stop()
		return err
	}
	for {
		select {
		case <-ctx.Done():
			l.Stop()
			return nil
		case now := <-ticker.C:
			if err := l.Tick(now); err != nil {
				l.Stop()
				return err
			}
		}
	}
}

// Tick runs one reactor step at now. The returned error is fatal.
func (l *Loop) Tick(now time.Time) error {
	if l.state == StateStopping {
		return nil
	}
	l.now = now
	metrics.IncTicks()
	defer l.publishStatus()

	evs, err := l.opts.Monitor.Poll()
	if err != nil {
		l.logger.Warn("USB event poll failed", "error", err)
		if errors.Is(err, adapter.ErrEventsLost) {
			evs = append(evs, l.resync()...)
		}
	}
	for _, ev := range evs {
		l.apply(ev, now)
	}

	if l.state == StateIdle && l.attach.Ready(now) {
		l.tryStart(now)
	}
	if l.state == StateStreaming {
		return l.forward(now)
	}
	return nil
}

// Stop tears down any session, forgets the adapter and enters the terminal
// state.
func (l *Loop) Stop() {
	if l.state == StateStopping {
		return
	}
	now := l.clock()
	if l.sess != nil {
		l.stopSession(stopQuit, now)
	}
	if l.attach.State() != adapter.StateAbsent {
		l.attach.Reset()
		l.publishAttachment(now, "")
	}
	l.state = StateStopping
	l.publishStatus()
	l.logger.Info("Frame loop stopped")
}

func (l *Loop) apply(ev adapter.Event, now time.Time) {
	switch ev.Kind {
	case adapter.Arrival:
		if l.sess != nil {
			l.logger.Info("Adapter arrived during session, restarting", "device", ev.Device)
			l.stopSession(stopArrival, now)
		}
		l.attach.RequestAttach(ev.Device, now.Add(ev.Settle))
		l.logger.Debug("Adapter settling", "device", ev.Device, "origin", ev.Origin, "settle", ev.Settle)
		l.publishAttachment(now, ev.Origin)
	case adapter.Removal:
		if l.attach.State() == adapter.StateAbsent {
			return
		}
		if ev.Device.Ref.Known() && l.attach.Device().Ref.Known() {
			// Located removals only end the session of the device they name.
			if !l.attach.Matches(ev.Device.Ref) {
				l.logger.Debug("Removal of another device ignored", "device", ev.Device, "attached", l.attach.Device())
				return
			}
		} else if !ev.Matched {
			return
		}
		if l.sess != nil {
			l.stopSession(stopRemoval, now)
		}
		l.attach.RequestDetach()
		l.publishAttachment(now, ev.Origin)
		l.attach.Reset()
		l.publishAttachment(now, ev.Origin)
	}
}

// resync rescans the bus after the kernel dropped uevents.
func (l *Loop) resync() []adapter.Event {
	var attached adapter.DeviceRef
	if l.attach.State() != adapter.StateAbsent {
		attached = l.attach.Device().Ref
	}
	evs, err := l.opts.Monitor.Resync(attached)
	if err != nil {
		l.logger.Warn("USB rescan after lost events failed", "error", err)
	}
	return evs
}

// clock returns the reactor's time: the last tick, or the wall clock
// before the first one.
func (l *Loop) clock() time.Time {
	if l.now.IsZero() {
		return time.Now()
	}
	return l.now
}

func (l *Loop) tryStart(now time.Time) {
	err := l.startSession(now)
	if err == nil {
		return
	}
	var be *Error
	if errors.As(err, &be) && be.Code == ErrCodeIdentityRead {
		l.logger.Warn("Identity read failed, retrying next tick", "device", l.attach.Device(), "error", err)
		return
	}
	l.logger.Error("Session start failed, waiting for next arrival", "device", l.attach.Device(), "error", err)
	l.attach.Park()
}

func (l *Loop) forward(now time.Time) error {
	s := l.sess
	if err := s.display.HandleEvents(); err != nil {
		l.logger.Debug("Virtual display event drain failed", "error", err)
	}
	buf, err := s.src.acquire()
	if err != nil {
		switch {
		case errors.Is(err, vdisplay.ErrNotReady):
			metrics.IncAcquireFailure(metrics.ReasonNotReady)
			l.logger.Debug("Frame not ready")
			return nil
		case l.opts.Source == SourceX11 && !l.captured:
			return NewError(ErrCodeFirstCapture, "first screen capture failed", err)
		default:
			metrics.IncAcquireFailure(metrics.ReasonCapture)
			l.logger.Warn("Frame acquisition failed", "error", err)
			return nil
		}
	}
	if l.opts.Source == SourceX11 {
		l.captured = true
	}

	if l.opts.CursorOverlay {
		cursor.Overlay(buf, l.cursor)
	}
	err = s.sink.StartEncode(buf)
	buf.Release()
	if err != nil {
		metrics.IncAcquireFailure(metrics.ReasonSink)
		l.logger.Warn("Sink rejected frame", "error", err)
		return nil
	}

	s.frames++
	metrics.IncFramesForwarded()
	if l.attach.MarkStreaming() {
		l.logger.Info("Streaming", "device", s.device, "mode", s.display.Mode().String())
		l.publishAttachment(now, "")
	}
	return nil
}

func (l *Loop) publish(ev events.Event) {
	if l.opts.Events != nil {
		l.opts.Events.Publish(ev)
	}
}

func (l *Loop) publishAttachment(now time.Time, origin adapter.Origin) {
	st := l.attach.State()
	metrics.SetAttachmentState(int(st))
	dev := l.attach.Device()
	l.publish(events.AttachmentChangedEvent{
		State:     st.String(),
		Device:    dev.Ref.String(),
		Vendor:    dev.Vendor,
		Product:   dev.Product,
		Origin:    string(origin),
		Timestamp: now.Format(time.RFC3339),
	})
}
