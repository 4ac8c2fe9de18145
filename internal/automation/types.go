// Package automation runs the single local automation rule: it watches widget
// values, waits for a condition to hold inside a daily time window for the
// debounce duration, then fires a linked action on another device.
//
// The engine never sleeps or reads the monotonic clock itself; observation
// times are passed in so the state machine is deterministic under test.
package automation

import (
	"fmt"
	"math"
	"time"
)

// Logic selects what the rule compares.
type Logic uint8

const (
	// LogicState compares a toggle against TargetState.
	LogicState Logic = 0
	// LogicNumeric compares a scalar against Target using Comparator.
	LogicNumeric Logic = 1
)

// String returns the rule-set command spelling.
func (l Logic) String() string {
	if l == LogicNumeric {
		return "numeric"
	}
	return "state"
}

// Comparator is the numeric comparison applied as value <op> target.
type Comparator uint8

const (
	// Less fires when value < target.
	Less Comparator = 0
	// Equal fires when value == target.
	Equal Comparator = 1
	// Greater fires when value > target.
	Greater Comparator = 2
)

// String returns the rule-set command spelling.
func (c Comparator) String() string {
	switch c {
	case Less:
		return "less"
	case Equal:
		return "equal"
	case Greater:
		return "greater"
	default:
		return fmt.Sprintf("comparator(%d)", uint8(c))
	}
}

// Compare applies the comparator.
func (c Comparator) Compare(value, target float64) bool {
	switch c {
	case Less:
		return value < target
	case Equal:
		return value == target
	case Greater:
		return value > target
	}
	return false
}

// TriggerState is the transient state of the rule's trigger.
type TriggerState string

const (
	// Idle waits for the condition to become true.
	Idle TriggerState = "idle"
	// Debouncing holds while the condition stays true for the debounce.
	Debouncing TriggerState = "debouncing"
	// Fired means the action ran; it rearms once the condition goes false.
	Fired TriggerState = "fired"
)

// MinutesPerDay bounds window endpoints. An end of 1440 covers the last minute.
const MinutesPerDay = 1440

// MaxDebounce is the longest debounce the persistent record can hold.
const MaxDebounce = 63 * time.Minute

// Window is a daily range of minutes since midnight, inclusive at both ends.
// Start > End wraps past midnight; Start == End never matches.
type Window struct {
	Start int
	End   int
}

// FullDay matches every minute.
var FullDay = Window{Start: 0, End: MinutesPerDay}

// Contains reports whether minute falls inside the window.
func (w Window) Contains(minute int) bool {
	switch {
	case w.Start < w.End:
		return minute >= w.Start && minute <= w.End
	case w.Start > w.End:
		return minute >= w.Start || minute <= w.End
	default:
		return false
	}
}

// Link describes the downstream action fired when the rule triggers.
// The fields are opaque to the engine.
type Link struct {
	DeviceID string
	Type     string
	Payload  string
}

// Rule is the automation rule. TargetState is used by LogicState rules,
// Comparator and Target by LogicNumeric rules.
type Rule struct {
	Enabled     bool
	Logic       Logic
	TargetState bool
	Comparator  Comparator
	Target      float64
	Debounce    time.Duration // whole minutes, at most MaxDebounce
	Window      Window
	Link        Link
}

// Normalize returns r at the precision the persistent record keeps: whole
// minutes of debounce and a float32 target. A normalized rule compares the
// same before and after a restart.
func (r Rule) Normalize() Rule {
	r.Debounce = r.Debounce.Truncate(time.Minute)
	r.Target = float64(float32(r.Target))
	return r
}

// Validate returns an ErrMalformedRule error when a field does not fit the
// persistent record.
func (r Rule) Validate() error {
	switch {
	case r.Logic > LogicNumeric:
		return fmt.Errorf("%w: logic %d", ErrMalformedRule, r.Logic)
	case r.Logic == LogicNumeric && r.Comparator > Greater:
		return fmt.Errorf("%w: %s", ErrMalformedRule, r.Comparator)
	case r.Debounce < 0 || r.Debounce > MaxDebounce:
		return fmt.Errorf("%w: debounce %s out of range", ErrMalformedRule, r.Debounce)
	case !validMinute(r.Window.Start) || !validMinute(r.Window.End):
		return fmt.Errorf("%w: window %d-%d out of range", ErrMalformedRule, r.Window.Start, r.Window.End)
	case math.IsInf(float64(float32(r.Target)), 0) && !math.IsInf(r.Target, 0):
		return fmt.Errorf("%w: target %g out of range", ErrMalformedRule, r.Target)
	}
	return nil
}

// Status is a point-in-time view of the engine for display.
type Status struct {
	Rule  Rule
	State TriggerState
	Since time.Time // start of the current debounce, zero when idle
	Fires int       // linked actions fired since startup
}
