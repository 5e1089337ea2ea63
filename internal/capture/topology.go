package capture

import (
	"errors"
	"fmt"
)

// DefaultExtendedOutput is the RandR name of the virtual display output.
const DefaultExtendedOutput = "DVI-I-1-1"

// ErrNoOutput is returned when no connected primary output exists.
var ErrNoOutput = errors.New("no connected output")

// Connection is the RandR connection state of an output.
type Connection int

// Connection states, in RandR wire order.
const (
	Connected Connection = iota
	Disconnected
	Unknown
)

func (c Connection) String() string {
	switch c {
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Output is one RandR output and the geometry of the CRTC driving it.
// Width and Height are zero when no CRTC is assigned.
type Output struct {
	Name       string
	X, Y       int
	Width      int
	Height     int
	Connection Connection
}

func (o Output) String() string {
	return fmt.Sprintf("%s %dx%d+%d+%d (%s)", o.Name, o.Width, o.Height, o.X, o.Y, o.Connection)
}

// Usable reports whether the output is connected and has a geometry.
func (o Output) Usable() bool {
	return o.Connection == Connected && o.Width > 0 && o.Height > 0
}

// Topology is the ordered list of outputs reported by the server.
type Topology struct {
	Outputs []Output
}

// Primary returns the first usable output not named extendedName.
func (t Topology) Primary(extendedName string) (Output, bool) {
	for _, o := range t.Outputs {
		if o.Name != extendedName && o.Usable() {
			return o, true
		}
	}
	return Output{}, false
}

// Extended returns the output named name when it is usable.
func (t Topology) Extended(name string) (Output, bool) {
	for _, o := range t.Outputs {
		if o.Name == name {
			return o, o.Usable()
		}
	}
	return Output{}, false
}

// Select picks the extended output when asked for and usable, falling back
// to the primary output otherwise.
func (t Topology) Select(extended bool, extendedName string) (Output, error) {
	if extended {
		if o, ok := t.Extended(extendedName); ok {
			return o, nil
		}
	}
	if o, ok := t.Primary(extendedName); ok {
		return o, nil
	}
	return Output{}, ErrNoOutput
}
