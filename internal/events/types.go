package events

// Event type constants for kelindar/event.
const (
	TypeAttachmentChanged uint32 = iota + 1
	TypeSessionStarted
	TypeSessionStopped
	TypeModeChanged
	TypeDPMSChanged
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// AttachmentChangedEvent is published when the adapter attachment changes state.
type AttachmentChangedEvent struct {
	State     string `json:"state" example:"attached" doc:"Attachment state: absent, attached, streaming, detached"`
	Device    string `json:"device" example:"001/004" doc:"Bus number and address"`
	Vendor    uint16 `json:"vendor" example:"13511" doc:"USB vendor id"`
	Product   uint16 `json:"product" example:"8451" doc:"USB product id"`
	Origin    string `json:"origin,omitempty" example:"hotplug" doc:"scan or hotplug"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for AttachmentChangedEvent.
func (e AttachmentChangedEvent) Type() uint32 { return TypeAttachmentChanged }

// SessionStartedEvent is published once a streaming session is set up.
type SessionStartedEvent struct {
	Device      string `json:"device" example:"001/004" doc:"Bus number and address"`
	Source      string `json:"source" example:"virtual" doc:"Frame source: virtual or x11"`
	Width       int    `json:"width" example:"1920" doc:"Preferred width"`
	Height      int    `json:"height" example:"1080" doc:"Preferred height"`
	RefreshHz   int    `json:"refresh_hz" example:"60" doc:"Preferred refresh rate"`
	Fingerprint string `json:"fingerprint" example:"9c1f0d3a5b7e2c44" doc:"Identity block fingerprint"`
	Timestamp   string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SessionStartedEvent.
func (e SessionStartedEvent) Type() uint32 { return TypeSessionStarted }

// SessionStoppedEvent is published after a session is torn down.
type SessionStoppedEvent struct {
	Device    string `json:"device" example:"001/004" doc:"Bus number and address"`
	Reason    string `json:"reason" example:"removal" doc:"removal, arrival, error or quit"`
	Frames    uint64 `json:"frames" example:"1200" doc:"Frames forwarded during the session"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SessionStoppedEvent.
func (e SessionStoppedEvent) Type() uint32 { return TypeSessionStopped }

// ModeChangedEvent is published when the virtual display reports a new mode.
type ModeChangedEvent struct {
	Width     int    `json:"width" example:"1920" doc:"Mode width"`
	Height    int    `json:"height" example:"1080" doc:"Mode height"`
	RefreshHz int    `json:"refresh_hz" example:"60" doc:"Mode refresh rate"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ModeChangedEvent.
func (e ModeChangedEvent) Type() uint32 { return TypeModeChanged }

// DPMSChangedEvent is published when the virtual display power mode changes.
type DPMSChangedEvent struct {
	Mode      int    `json:"mode" example:"3" doc:"DPMS mode: 0 on, 3 off"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DPMSChangedEvent.
func (e DPMSChangedEvent) Type() uint32 { return TypeDPMSChanged }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2026-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"bridge" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
