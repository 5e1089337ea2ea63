package events

import (
	"time"

	"github.com/smazurov/usbdisplay/internal/logging"
)

// FromLogEntry converts a buffered log entry to its event form.
func FromLogEntry(entry logging.LogEntry) LogEntryEvent {
	return LogEntryEvent{
		Seq:        entry.Seq,
		Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
		Level:      entry.Level,
		Module:     entry.Module,
		Message:    entry.Message,
		Attributes: entry.Attributes,
	}
}

// PublishLogs returns a logging callback that publishes every entry on bus.
func PublishLogs(bus *Bus) logging.LogCallback {
	return func(entry logging.LogEntry) {
		bus.Publish(FromLogEntry(entry))
	}
}
