package adapter

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/smazurov/usbdisplay/internal/logging"
)

// State is the attachment state.
type State int

// Attachment states.
const (
	StateAbsent State = iota
	StateAttached
	StateStreaming
	StateDetached
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateAttached:
		return "attached"
	case StateStreaming:
		return "streaming"
	case StateDetached:
		return "detached"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Attachment is the single adapter tracked by the frame loop. It is owned
// by one goroutine and changed only through its transition methods.
type Attachment struct {
	state   State
	device  DeviceInfo
	readyAt time.Time
	parked  bool
	handle  Handle
	logger  *slog.Logger
}

// NewAttachment returns an ABSENT attachment.
func NewAttachment() *Attachment {
	return &Attachment{logger: logging.GetLogger("adapter")}
}

// State returns the current state.
func (a *Attachment) State() State { return a.state }

// Device returns the attached device. Valid unless the state is ABSENT.
func (a *Attachment) Device() DeviceInfo { return a.device }

// Handle returns the streaming handle, or nil.
func (a *Attachment) Handle() Handle { return a.handle }

// Parked reports whether session start is suspended until the next arrival.
func (a *Attachment) Parked() bool { return a.parked }

// RequestAttach records an arrival. The device becomes usable at readyAt.
// Any previous streaming handle must have been released by the caller.
// It returns the previous state.
func (a *Attachment) RequestAttach(dev DeviceInfo, readyAt time.Time) State {
	prev := a.state
	if a.handle != nil {
		a.releaseHandle()
	}
	a.state = StateAttached
	a.device = dev
	a.readyAt = readyAt
	a.parked = false
	return prev
}

// Ready reports whether a session may be started at now.
func (a *Attachment) Ready(now time.Time) bool {
	return a.state == StateAttached && !a.parked && !now.Before(a.readyAt)
}

// ReadyAt returns the end of the settle delay.
func (a *Attachment) ReadyAt() time.Time { return a.readyAt }

// Bind stores the streaming handle opened for a session.
func (a *Attachment) Bind(h Handle) {
	if a.handle != nil && a.handle != h {
		a.releaseHandle()
	}
	a.handle = h
}

// MarkStreaming moves ATTACHED to STREAMING after the first forwarded
// frame. It reports whether the state changed.
func (a *Attachment) MarkStreaming() bool {
	if a.state != StateAttached {
		return false
	}
	a.state = StateStreaming
	return true
}

// Unstream moves STREAMING back to ATTACHED when a session ends while the
// device stays plugged in.
func (a *Attachment) Unstream() {
	if a.state == StateStreaming {
		a.state = StateAttached
	}
	if a.handle != nil {
		a.releaseHandle()
	}
}

// Park suspends session starts until the next RequestAttach.
func (a *Attachment) Park() {
	a.parked = true
}

// Matches reports whether ref is the attached device.
func (a *Attachment) Matches(ref DeviceRef) bool {
	if a.state == StateAbsent || !ref.Known() {
		return false
	}
	return a.device.Ref == ref
}

// RequestDetach closes any open handle and moves the attachment to DETACHED.
// Calling it on an ABSENT attachment is a no-op. It returns the previous
// state.
func (a *Attachment) RequestDetach() State {
	prev := a.state
	if prev == StateAbsent {
		return prev
	}
	if a.handle != nil {
		a.releaseHandle()
	}
	a.state = StateDetached
	a.parked = false
	return prev
}

// Reset releases any handle and returns the attachment to ABSENT,
// forgetting the device.
func (a *Attachment) Reset() {
	if a.handle != nil {
		a.releaseHandle()
	}
	*a = Attachment{logger: a.logger}
}

func (a *Attachment) releaseHandle() {
	if err := a.handle.Close(); err != nil {
		a.logger.Warn("Failed to close streaming handle", "device", a.device, "error", err)
	}
	a.handle = nil
}
