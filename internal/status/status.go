// Package status computes the language indicator shown by the host.
package status

import "fmt"

// Display is the indicator state.
type Display int

const (
	// Off means automatic switching is disabled.
	Off Display = iota
	// Disconnected means no worker is reachable.
	Disconnected
	// ServerError means the worker reported errors on stderr.
	ServerError
	// English means the caret is inside math.
	English
	// Hebrew means the caret is in prose.
	Hebrew
)

var displayNames = [...]string{
	Off:          "off",
	Disconnected: "disconnected",
	ServerError:  "server_error",
	English:      "english",
	Hebrew:       "hebrew",
}

var displayLabels = [...]string{
	Off:          "Lang: Off",
	Disconnected: "Lang: Disconnected",
	ServerError:  "Lang: Server Error",
	English:      "Lang: EN",
	Hebrew:       "Lang: HE",
}

// String returns a stable machine-readable name.
func (d Display) String() string {
	if d < 0 || int(d) >= len(displayNames) {
		return fmt.Sprintf("display(%d)", int(d))
	}
	return displayNames[d]
}

// Label returns the indicator text.
func (d Display) Label() string {
	if d < 0 || int(d) >= len(displayLabels) {
		return ""
	}
	return displayLabels[d]
}

// Healthy reports whether the display is one of the context labels.
func (d Display) Healthy() bool {
	return d == English || d == Hebrew
}

// Health is the last known reachability of the worker.
type Health int

const (
	// Unknown means no health result since the worker started.
	Unknown Health = iota
	// Reachable means the last request got a response.
	Reachable
	// Unreachable means the last request failed in transport.
	Unreachable
)

// String returns the health name.
func (h Health) String() string {
	switch h {
	case Unknown:
		return "unknown"
	case Reachable:
		return "reachable"
	case Unreachable:
		return "unreachable"
	default:
		return fmt.Sprintf("health(%d)", int(h))
	}
}

// Inputs is everything the indicator depends on.
type Inputs struct {
	Enabled     bool
	Live        bool
	InsideMath  bool
	ServerError bool
	Health      Health
}

// Compute picks the display. Priority runs disabled, disconnected,
// server error, then the context label.
func Compute(in Inputs) Display {
	switch {
	case !in.Enabled:
		return Off
	case !in.Live || in.Health == Unreachable:
		return Disconnected
	case in.ServerError:
		return ServerError
	case in.InsideMath:
		return English
	default:
		return Hebrew
	}
}

// Status is a computed snapshot handed to observers.
type Status struct {
	Display Display
	Label   string
	Inputs  Inputs
}

// New computes the status for in.
func New(in Inputs) Status {
	d := Compute(in)
	return Status{Display: d, Label: d.Label(), Inputs: in}
}
