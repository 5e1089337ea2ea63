package bridge

import (
	"errors"
	"time"

	"github.com/smazurov/usbdisplay/internal/adapter"
	"github.com/smazurov/usbdisplay/internal/cursor"
	"github.com/smazurov/usbdisplay/internal/events"
	"github.com/smazurov/usbdisplay/internal/identity"
	"github.com/smazurov/usbdisplay/internal/metrics"
	"github.com/smazurov/usbdisplay/internal/sink"
	"github.com/smazurov/usbdisplay/internal/vdisplay"
)

// Session stop reasons.
const (
	stopRemoval = "removal"
	stopArrival = "arrival"
	stopQuit    = "quit"
)

// session is everything opened for one streaming run. Only the loop
// holds it.
type session struct {
	device  adapter.DeviceInfo
	block   identity.Block
	fpr     string
	display vdisplay.Display
	src     source
	sink    sink.Sink
	frames  uint64
	blanked bool
	started time.Time
}

func (l *Loop) startSession(now time.Time) (err error) {
	dev := l.attach.Device()

	block := l.opts.Identity
	if block.Empty() {
		block, err = l.reader.Read(dev.Ref)
		if err != nil {
			return NewError(ErrCodeIdentityRead, "read identity block", err)
		}
	}

	s := &session{device: dev, block: block, fpr: block.Fingerprint(), started: now}
	// Undo partial setup in reverse order.
	defer func() {
		if err != nil {
			l.release(s)
			l.attach.Unstream()
		}
	}()

	s.display, err = l.opts.Displays.Open(block, vdisplay.Options{
		CursorEvents: l.opts.CursorOverlay,
		Callbacks:    l.callbacks(),
	})
	if err != nil {
		if errors.Is(err, vdisplay.ErrNoBackend) {
			return NewError(ErrCodeNoBackend, "open virtual display", err)
		}
		return NewError(ErrCodeSession, "open virtual display", err)
	}

	h, err := l.opts.Bus.Open(dev.Ref)
	if err != nil {
		return NewError(ErrCodeSession, "open streaming handle", err)
	}
	l.attach.Bind(h)

	snk, err := l.opts.NewSink()
	if err != nil {
		return NewError(ErrCodeSession, "create sink", err)
	}
	if err = snk.Init(h); err != nil {
		return NewError(ErrCodeSession, "initialize sink", err)
	}
	s.sink = snk

	switch l.opts.Source {
	case SourceX11:
		s.src = &screenSource{capturer: l.capturer, extended: l.opts.Extended}
	default:
		s.src = &displaySource{display: s.display, logger: l.logger}
	}

	l.sess = s
	l.state = StateStreaming
	l.cursor = cursor.State{}
	metrics.IncSessionsStarted()

	pm := s.display.Preferred()
	l.logger.Info("Session started",
		"device", dev,
		"source", l.opts.Source,
		"preferred", pm.String(),
		"fingerprint", s.fpr,
		"override", !l.opts.Identity.Empty())
	l.publish(events.SessionStartedEvent{
		Device:      dev.Ref.String(),
		Source:      string(l.opts.Source),
		Width:       pm.Width,
		Height:      pm.Height,
		RefreshHz:   pm.RefreshHz,
		Fingerprint: s.fpr,
		Timestamp:   now.Format(time.RFC3339),
	})
	return nil
}

// stopSession tears the session down in reverse order of setup and
// returns the loop to idle. The attachment keeps its device; callers
// handling removal or quit reset it afterwards.
func (l *Loop) stopSession(reason string, now time.Time) {
	s := l.sess
	if s == nil {
		return
	}
	l.sess = nil
	l.release(s)
	l.attach.Unstream()
	if l.state == StateStreaming {
		l.state = StateIdle
	}

	metrics.IncSessionsStopped(reason)
	l.logger.Info("Session stopped", "device", s.device, "reason", reason, "frames", s.frames,
		"duration", now.Sub(s.started).Round(time.Millisecond))
	l.publish(events.SessionStoppedEvent{
		Device:    s.device.Ref.String(),
		Reason:    reason,
		Frames:    s.frames,
		Timestamp: now.Format(time.RFC3339),
	})
}

func (l *Loop) release(s *session) {
	if s.sink != nil {
		if err := s.sink.Teardown(); err != nil {
			l.logger.Warn("Sink teardown failed", "error", err)
		}
	}
	if s.display != nil {
		if err := s.display.Close(); err != nil {
			l.logger.Warn("Virtual display close failed", "error", err)
		}
	}
}

func (l *Loop) callbacks() vdisplay.Callbacks {
	cb := vdisplay.Callbacks{
		OnDPMS:       l.onDPMS,
		OnModeChange: l.onModeChange,
	}
	if l.opts.CursorOverlay && l.opts.Source == SourceVirtual {
		cb.OnCursorMove = l.cursor.Move
	}
	return cb
}

func (l *Loop) onDPMS(mode int) {
	s := l.sess
	if s == nil {
		return
	}
	l.logger.Info("Display power mode changed", "dpms", mode)
	switch {
	case mode == vdisplay.DPMSOff && !s.blanked:
		if err := s.sink.SetResolution(0, 0); err != nil {
			l.logger.Warn("Failed to blank display", "error", err)
		}
		s.blanked = true
	case mode == vdisplay.DPMSOn && s.blanked:
		if m := s.display.Mode(); m.Valid() {
			if err := s.sink.SetResolution(m.Width, m.Height); err != nil {
				l.logger.Warn("Failed to restore resolution", "error", err)
			}
		}
		s.blanked = false
	}
	l.publish(events.DPMSChangedEvent{Mode: mode, Timestamp: l.clock().Format(time.RFC3339)})
}

func (l *Loop) onModeChange(m vdisplay.Mode) {
	l.logger.Info("Virtual display mode changed", "mode", m.String())
	l.publish(events.ModeChangedEvent{
		Width:     m.Width,
		Height:    m.Height,
		RefreshHz: m.RefreshHz,
		Timestamp: l.clock().Format(time.RFC3339),
	})
}
