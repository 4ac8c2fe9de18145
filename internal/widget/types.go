// Package widget holds the named, typed UI-bound state values a controller can drive.
// This package has NO external dependencies and performs no I/O.
package widget

import "fmt"

// Kind identifies one of the four widget collections.
type Kind int

// Widget kinds.
const (
	KindButton Kind = iota
	KindSlider
	KindToggle
	KindRGB
)

// String returns the lower-case kind name used in logs and echo changes.
func (k Kind) String() string {
	switch k {
	case KindButton:
		return "button"
	case KindSlider:
		return "slider"
	case KindToggle:
		return "toggle"
	case KindRGB:
		return "rgb"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Channel indexes one component of an RGB widget.
type Channel int

const (
	Red Channel = iota
	Green
	Blue
)

// DefaultCapacity is the number of slots per kind when none is configured.
const DefaultCapacity = 16

// Button is a momentary or long-press input.
type Button struct {
	Name      string
	Pressed   bool
	LongPress bool // long presses are not cleared on read
}

// Slider is a 0-255 value.
type Slider struct {
	Name  string
	Value uint8
}

// Toggle is an on/off switch.
type Toggle struct {
	Name string
	On   bool
}

// RGB is a three-channel colour value.
type RGB struct {
	Name     string
	Channels [3]uint8
}

// Handle addresses one entry of a Registry. It stays valid for the registry's
// lifetime because entries are never removed.
type Handle struct {
	Kind  Kind
	index int
}

// State is an ordered copy of every registered widget.
type State struct {
	Buttons []Button
	Sliders []Slider
	Toggles []Toggle
	RGBs    []RGB
}
