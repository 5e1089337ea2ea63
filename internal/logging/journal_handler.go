package logging

import (
	"context"
	"log/slog"
	"maps"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/journal"
)

// SyslogIdentifier tags every journal entry.
const SyslogIdentifier = "usbdisplay"

// JournalHandler is a slog.Handler that sends records to the systemd
// journal as structured fields, so `journalctl -t usbdisplay MODULE=bridge`
// filters by module.
type JournalHandler struct {
	level  slog.Leveler
	preset map[string]string // fields from WithAttrs, already prefixed
	groups []string
}

// NewJournalHandler creates a new journal handler.
func NewJournalHandler(level slog.Leveler) *JournalHandler {
	return &JournalHandler{level: level}
}

// Enabled reports whether the handler handles records at the given level.
func (h *JournalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle sends the record to the journal.
func (h *JournalHandler) Handle(_ context.Context, r slog.Record) error {
	return journal.Send(r.Message, mapLevelToPriority(r.Level), h.fields(r))
}

// fields builds the journal variables for r. MESSAGE and PRIORITY are
// added by journal.Send.
func (h *JournalHandler) fields(r slog.Record) map[string]string {
	fields := maps.Clone(h.preset)
	if fields == nil {
		fields = make(map[string]string)
	}
	fields["SYSLOG_IDENTIFIER"] = SyslogIdentifier
	if r.PC != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		if frame.File != "" {
			fields["CODE_FILE"] = frame.File
			fields["CODE_LINE"] = strconv.Itoa(frame.Line)
			fields["CODE_FUNC"] = frame.Function
		}
	}
	r.Attrs(func(attr slog.Attr) bool {
		addAttrToFields(fields, attr, h.groups)
		return true
	})
	return fields
}

// WithAttrs returns a new handler with additional attributes.
func (h *JournalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	preset := maps.Clone(h.preset)
	if preset == nil {
		preset = make(map[string]string, len(attrs))
	}
	for _, attr := range attrs {
		addAttrToFields(preset, attr, h.groups)
	}
	return &JournalHandler{
		level:  h.level,
		preset: preset,
		groups: h.groups,
	}
}

// WithGroup returns a new handler with a group prefix.
func (h *JournalHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &JournalHandler{
		level:  h.level,
		preset: h.preset,
		groups: append(slices.Clip(h.groups), name),
	}
}

// mapLevelToPriority maps slog levels to journal priorities.
func mapLevelToPriority(level slog.Level) journal.Priority {
	switch {
	case level >= slog.LevelError:
		return journal.PriErr
	case level >= slog.LevelWarn:
		return journal.PriWarning
	case level >= slog.LevelInfo:
		return journal.PriInfo
	default:
		return journal.PriDebug
	}
}

// journalKey joins groups and key into a journal field name: uppercase
// letters, digits and underscores, never starting with an underscore
// (those are reserved for journald).
func journalKey(groups []string, key string) string {
	name := strings.ToUpper(strings.Join(append(slices.Clip(groups), key), "_"))
	name = strings.Map(func(r rune) rune {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return '_'
	}, name)
	name = strings.TrimLeft(name, "_")
	if name == "" || (name[0] >= '0' && name[0] <= '9') {
		name = "F_" + name
	}
	return name
}

// addAttrToFields adds an slog attribute to journal fields.
func addAttrToFields(fields map[string]string, attr slog.Attr, groups []string) {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return
	}

	if attr.Value.Kind() == slog.KindGroup {
		inner := groups
		if attr.Key != "" {
			inner = append(slices.Clip(groups), attr.Key)
		}
		for _, a := range attr.Value.Group() {
			addAttrToFields(fields, a, inner)
		}
		return
	}

	var value string
	switch attr.Value.Kind() {
	case slog.KindFloat64:
		value = strconv.FormatFloat(attr.Value.Float64(), 'f', -1, 64)
	case slog.KindTime:
		value = attr.Value.Time().Format(time.RFC3339Nano)
	default:
		value = attr.Value.String()
	}
	fields[journalKey(groups, attr.Key)] = value
}

// IsJournalAvailable checks if systemd journal is available.
func IsJournalAvailable() bool {
	return journal.Enabled()
}
