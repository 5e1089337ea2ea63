// Package sink defines the encoder/transport boundary frames are forwarded
// to, and the sinks shipped with the daemon.
package sink

import (
	"fmt"
	"strings"

	"github.com/smazurov/usbdisplay/internal/frame"
)

// Device is the streaming handle of an attached adapter.
type Device interface {
	Control(rType, request uint8, val, idx uint16, data []byte) (int, error)
}

// Sink consumes composited frames. StartEncode must not retain buf after it
// returns. SetResolution(0, 0) blanks the display.
type Sink interface {
	Init(dev Device) error
	StartEncode(buf *frame.Buffer) error
	SetResolution(width, height int) error
	Teardown() error
}

// Kind names a shipped sink.
type Kind string

// Shipped sinks.
const (
	KindDiscard Kind = "discard"
	KindDump    Kind = "dump"
)

// Config selects and configures a sink.
type Config struct {
	Kind     Kind
	DumpPath string
}

// ParseKind maps a config value to a Kind. Empty selects discard.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "", KindDiscard:
		return KindDiscard, nil
	case KindDump:
		return KindDump, nil
	default:
		return "", fmt.Errorf("unknown sink %q (want discard or dump)", s)
	}
}

// New builds the sink described by cfg. A new sink is built per session.
func New(cfg Config) (Sink, error) {
	switch cfg.Kind {
	case "", KindDiscard:
		return NewDiscard(), nil
	case KindDump:
		if cfg.DumpPath == "" {
			return nil, fmt.Errorf("dump sink requires a path")
		}
		return NewDump(cfg.DumpPath), nil
	default:
		return nil, fmt.Errorf("unknown sink %q", cfg.Kind)
	}
}
