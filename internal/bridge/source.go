package bridge

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/smazurov/usbdisplay/internal/capture"
	"github.com/smazurov/usbdisplay/internal/frame"
	"github.com/smazurov/usbdisplay/internal/metrics"
	"github.com/smazurov/usbdisplay/internal/vdisplay"
)

// SourceKind selects where frames come from.
type SourceKind string

// Frame sources.
const (
	SourceVirtual SourceKind = "virtual"
	SourceX11     SourceKind = "x11"
)

// ParseSourceKind maps a config value to a SourceKind. Empty selects virtual.
func ParseSourceKind(s string) (SourceKind, error) {
	switch k := SourceKind(strings.ToLower(strings.TrimSpace(s))); k {
	case "", SourceVirtual:
		return SourceVirtual, nil
	case SourceX11:
		return SourceX11, nil
	default:
		return "", fmt.Errorf("unknown capture source %q (want virtual or x11)", s)
	}
}

// source yields at most one owned frame per call.
type source interface {
	acquire() (*frame.Buffer, error)
}

// displaySource reads frames from the virtual display.
type displaySource struct {
	display vdisplay.Display
	logger  *slog.Logger
}

func (s *displaySource) acquire() (*frame.Buffer, error) {
	rects, err := s.display.GrabRects()
	if err != nil {
		return nil, err
	}
	metrics.ObserveDirtyRects(len(rects))
	if len(rects) > 1 {
		s.logger.Debug("Redrawing dirty rectangles", "count", len(rects), "rects", rects)
	}
	return s.display.Buffer()
}

// screenSource captures an X output.
type screenSource struct {
	capturer *capture.Capturer
	extended bool
}

func (s *screenSource) acquire() (*frame.Buffer, error) {
	buf, _, err := s.capturer.Capture(s.extended)
	return buf, err
}
