package automation

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// fireTimeout bounds a single linked-action call.
const fireTimeout = 5 * time.Second

// Clock reports calendar readiness and the local minute of day.
type Clock interface {
	Synced() bool
	MinuteOfDay() int
}

// Caller performs a linked action.
type Caller interface {
	Fire(ctx context.Context, link Link) error
}

// Options configures an Engine.
type Options struct {
	Clock  Clock
	Caller Caller
	// Store, if set, is loaded by NewEngine and written by Replace.
	Store *Store
	// WatchToggle and WatchSlider restrict which widget names drive the rule.
	// Empty means any.
	WatchToggle string
	WatchSlider string
	Logger      *slog.Logger
}

// Engine evaluates the rule and drives the trigger state machine.
// Not safe for concurrent use.
type Engine struct {
	rule        Rule
	state       TriggerState
	since       time.Time
	fires       int
	clock       Clock
	caller      Caller
	store       *Store
	watchToggle string
	watchSlider string
	log         *slog.Logger

	// Latest accepted inputs, replayed by Reevaluate.
	lastOn    bool
	haveOn    bool
	lastValue float64
	haveValue bool
}

// NewEngine creates an Engine and loads the stored rule. A missing or
// corrupt record leaves the rule disabled.
func NewEngine(opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	e := &Engine{
		state:       Idle,
		clock:       opts.Clock,
		caller:      opts.Caller,
		store:       opts.Store,
		watchToggle: opts.WatchToggle,
		watchSlider: opts.WatchSlider,
		log:         log,
	}
	if e.store != nil {
		r, err := e.store.Load()
		switch {
		case errors.Is(err, ErrNoRecord):
			log.Info("no stored automation rule")
		case err != nil:
			log.Warn("stored automation rule unreadable, disabling", "error", err)
		default:
			e.rule = r
			log.Info("automation rule loaded",
				"enabled", r.Enabled,
				"logic", r.Logic.String(),
				"debounce", r.Debounce,
				"window_start", r.Window.Start,
				"window_end", r.Window.End)
		}
	}
	return e
}

// Rule returns the current rule.
func (e *Engine) Rule() Rule { return e.rule }

// State returns the trigger state.
func (e *Engine) State() TriggerState { return e.state }

// Status returns a copy of the engine state for display.
func (e *Engine) Status() Status {
	return Status{Rule: e.rule, State: e.state, Since: e.since, Fires: e.fires}
}

// Replace installs r, resets the trigger and persists the rule. r is
// normalized first; a rule failing Validate is rejected and the current rule
// kept. Otherwise the new rule is active even if saving fails.
func (e *Engine) Replace(r Rule) error {
	r = r.Normalize()
	if err := r.Validate(); err != nil {
		e.log.Warn("automation rule rejected", "error", err)
		return err
	}
	e.rule = r
	e.reset()
	e.log.Info("automation rule replaced",
		"enabled", r.Enabled,
		"logic", r.Logic.String(),
		"link_device", r.Link.DeviceID,
		"link_type", r.Link.Type)
	if e.store == nil {
		return nil
	}
	return e.store.Save(r)
}

// ObserveToggle evaluates a state rule against a toggle value.
func (e *Engine) ObserveToggle(name string, on bool, at time.Time) {
	if e.watchToggle != "" && name != e.watchToggle {
		return
	}
	e.lastOn, e.haveOn = on, true
	if e.rule.Logic != LogicState {
		return
	}
	e.evaluate(on == e.rule.TargetState, at)
}

// ObserveSlider evaluates a numeric rule against a slider value.
func (e *Engine) ObserveSlider(name string, v uint8, at time.Time) {
	if e.watchSlider != "" && name != e.watchSlider {
		return
	}
	e.ObserveValue(float64(v), at)
}

// ObserveValue evaluates a numeric rule against an arbitrary scalar, such as
// a sensor reading supplied by the application.
func (e *Engine) ObserveValue(v float64, at time.Time) {
	e.lastValue, e.haveValue = v, true
	if e.rule.Logic != LogicNumeric {
		return
	}
	e.evaluate(e.compare(v), at)
}

// Reevaluate runs the rule against the latest observed input so a debounce
// can complete without a new observation. It does nothing before the first
// observation of the rule's kind.
func (e *Engine) Reevaluate(at time.Time) {
	switch {
	case e.rule.Logic == LogicState && e.haveOn:
		e.evaluate(e.lastOn == e.rule.TargetState, at)
	case e.rule.Logic == LogicNumeric && e.haveValue:
		e.evaluate(e.compare(e.lastValue), at)
	}
}

// compare applies the numeric condition at the float32 precision the target
// is stored with.
func (e *Engine) compare(v float64) bool {
	return e.rule.Comparator.Compare(float64(float32(v)), e.rule.Target)
}

func (e *Engine) evaluate(holds bool, at time.Time) {
	if e.clock == nil || !e.clock.Synced() {
		return
	}
	if !e.rule.Enabled {
		e.reset()
		return
	}
	if minute := e.clock.MinuteOfDay(); !e.rule.Window.Contains(minute) {
		if e.state != Idle {
			e.log.Debug("outside time window", "minute", minute)
		}
		e.reset()
		return
	}
	if !holds {
		e.reset()
		return
	}

	switch e.state {
	case Idle:
		e.state = Debouncing
		e.since = at
		fallthrough
	case Debouncing:
		if at.Sub(e.since) >= e.rule.Debounce {
			e.fire()
		}
	case Fired:
		// Stay fired until the condition clears.
	}
}

func (e *Engine) fire() {
	e.state = Fired
	e.fires++
	link := e.rule.Link
	if e.caller == nil {
		e.log.Warn("rule triggered with no linked-action caller", "link_device", link.DeviceID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), fireTimeout)
	defer cancel()

	if err := e.caller.Fire(ctx, link); err != nil {
		e.log.Error("linked action failed",
			"link_device", link.DeviceID,
			"link_type", link.Type,
			"error", err)
		return
	}
	e.log.Info("linked action fired", "link_device", link.DeviceID, "link_type", link.Type)
}

func (e *Engine) reset() {
	e.state = Idle
	e.since = time.Time{}
}
