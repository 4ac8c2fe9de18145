// Package device is the sync engine: it applies inbound controller messages
// to the widget registry, answers get commands, echoes changes back over the
// transport and feeds widget values to the automation engine.
//
// A Device is driven from a single loop and is not safe for concurrent use.
package device

import (
	"errors"
	"log/slog"
	"time"

	"github.com/sweeney/widget-sync/internal/automation"
	"github.com/sweeney/widget-sync/internal/query"
	"github.com/sweeney/widget-sync/internal/transport"
	"github.com/sweeney/widget-sync/internal/widget"
)

// Command and value words of the controller protocol.
const (
	FieldGet     = "get"
	FieldState   = "state"
	FieldVersion = "version"
	FieldJoy     = "joy"
	FieldAHRS    = "ahrs"
	FieldGPS     = "gps"
	FieldVibrate = "vibrate"

	ValueOn  = "on"
	ValueOff = "off"

	ButtonTap      = "tap"
	ButtonPressed  = "pressed"
	ButtonReleased = "released"
)

// State tags sent with a snapshot. MQTT channels report online; direct
// channels report connected.
const (
	StateOnline    = "online"
	StateConnected = "connected"
)

// ErrHandshakeFailed is returned when the attitude stream could not be
// attached.
var ErrHandshakeFailed = errors.New("device: attitude handshake failed")

// Options configures a Device.
type Options struct {
	Registry   *widget.Registry
	Transport  transport.Transport
	Finder     query.Finder
	Automation *automation.Engine // optional
	Version    string
	StateTag   string
	Now        func() time.Time
	Logger     *slog.Logger
}

// Change is one widget mutation produced by a message.
type Change struct {
	Kind  string
	Name  string
	Value any
}

// Result describes what processing one message did.
type Result struct {
	// Changed is true when any widget changed or a command was handled.
	Changed bool
	// RuleSet is true when the message was an automation rule-set command.
	RuleSet bool
	// Command is the handled get command, if any.
	Command string
	Changes []Change
}

// Device owns the registry and the current inbound message.
type Device struct {
	reg      *widget.Registry
	tr       transport.Transport
	finder   query.Finder
	auto     *automation.Engine
	version  string
	stateTag string
	now      func() time.Time
	log      *slog.Logger

	// msg is the message of the current cycle; empty between cycles.
	msg string
	// applied holds the widgets already updated from msg.
	applied map[widgetKey]struct{}
	// changed is set when msg mutated anything.
	changed bool

	sensors      Sensors
	gpsRequested time.Time
}

// New creates a Device. Missing registry, finder and clock default to a
// registry of widget.DefaultCapacity, query.JSON and time.Now.
func New(opts Options) *Device {
	d := &Device{
		reg:      opts.Registry,
		tr:       opts.Transport,
		finder:   opts.Finder,
		auto:     opts.Automation,
		version:  opts.Version,
		stateTag: opts.StateTag,
		now:      opts.Now,
		log:      opts.Logger,
		sensors:  defaultSensors(),
		applied:  make(map[widgetKey]struct{}),
	}
	if d.reg == nil {
		d.reg = widget.NewRegistry(widget.DefaultCapacity)
	}
	if d.finder == nil {
		d.finder = query.JSON{}
	}
	if d.now == nil {
		d.now = time.Now
	}
	if d.log == nil {
		d.log = slog.Default()
	}
	if d.stateTag == "" {
		d.stateTag = StateConnected
	}
	return d
}

// Registry returns the widget registry.
func (d *Device) Registry() *widget.Registry { return d.reg }

// Register adds a widget. It reports false when the kind is full.
func (d *Device) Register(kind widget.Kind, name string) bool {
	_, ok := d.reg.Ensure(kind, name)
	if !ok {
		d.log.Warn("widget capacity exceeded", "kind", kind.String(), "name", name)
	}
	return ok
}

// State returns an ordered copy of every registered widget.
func (d *Device) State() widget.State { return d.reg.State() }

// Poll takes the next inbound message from the transport, if any, and
// processes it. When nothing is waiting the current cycle ends, so later
// accessor calls take the read path.
func (d *Device) Poll() (Result, bool) {
	if d.tr == nil || !d.tr.CheckAvailable() {
		d.Done()
		return Result{}, false
	}
	return d.Process(d.tr.RawMessage()), true
}

// Done ends the current message cycle.
func (d *Device) Done() {
	d.msg = ""
	clear(d.applied)
	d.changed = false
}

// Changed reports whether the current message has mutated any widget or
// answered a command, through Process or an accessor.
func (d *Device) Changed() bool { return d.changed }

// Process starts a message cycle. A rule-set command goes to the automation
// engine only. Otherwise get commands are answered first, then every
// registered button, slider, toggle and RGB widget is updated from the
// message in registration order, followed by joystick, attitude and GPS.
// Changed widget values are echoed in one frame.
//
// The message stays current until the next Poll or Done. Each widget takes
// its value from it at most once, so accessors for widgets not yet
// registered still see it.
func (d *Device) Process(msg string) Result {
	d.Done()
	d.msg = msg
	var res Result

	if automation.IsRuleSet(d.finder, msg) {
		res.RuleSet = true
		res.Changed = true
		d.applyRuleSet(msg)
		d.msg = ""
		d.changed = true
		return res
	}

	if cmd, ok := d.finder.String(msg, FieldGet); ok {
		switch cmd {
		case FieldState:
			if err := d.EmitState(); err != nil {
				d.log.Warn("send state failed", "error", err)
			}
			res.Command = cmd
			res.Changed = true
		case FieldVersion:
			d.send(transport.Single(FieldVersion, d.version))
			res.Command = cmd
			res.Changed = true
		}
	}

	at := d.now()
	for _, b := range d.reg.Buttons() {
		if c, ok := d.updateButton(b.Name); ok {
			res.Changes = append(res.Changes, c)
		}
	}
	for _, s := range d.reg.Sliders() {
		if c, ok := d.updateSlider(s.Name, at); ok {
			res.Changes = append(res.Changes, c)
		}
	}
	for _, t := range d.reg.Toggles() {
		if c, ok := d.updateToggle(t.Name, at); ok {
			res.Changes = append(res.Changes, c)
		}
	}
	for _, r := range d.reg.RGBs() {
		if c, ok := d.updateRGB(r.Name); ok {
			res.Changes = append(res.Changes, c)
		}
	}
	for _, update := range []func() (Change, bool){d.updateJoystick, d.updateAttitude, d.updateGPS} {
		if c, ok := update(); ok {
			res.Changes = append(res.Changes, c)
		}
	}

	if len(res.Changes) > 0 {
		res.Changed = true
		d.echo(res.Changes)
	}
	d.changed = res.Changed
	return res
}

func (d *Device) applyRuleSet(msg string) {
	if d.auto == nil {
		d.log.Warn("rule-set command ignored, automation disabled")
		return
	}
	r, err := automation.ParseRuleSet(d.finder, msg)
	if err != nil {
		d.log.Warn("rule-set command rejected", "error", err)
		return
	}
	if err := d.auto.Replace(r); err != nil {
		d.log.Error("save automation rule failed", "error", err)
	}
}

// Refresh re-runs the automation rule against the latest observed input.
func (d *Device) Refresh(at time.Time) {
	if d.auto != nil {
		d.auto.Reevaluate(at)
	}
}

// ReportValue feeds an application-supplied scalar, such as a sensor
// reading, to a numeric rule.
func (d *Device) ReportValue(v float64) {
	if d.auto != nil {
		d.auto.ObserveValue(v, d.now())
	}
}

// widgetKey identifies a widget within one message cycle.
type widgetKey struct {
	kind widget.Kind
	name string
}

// take reports whether the named widget still has to be updated from the
// current message, and marks it updated.
func (d *Device) take(kind widget.Kind, name string) bool {
	if d.msg == "" {
		return false
	}
	k := widgetKey{kind, name}
	if _, done := d.applied[k]; done {
		return false
	}
	d.applied[k] = struct{}{}
	return true
}

// accessorChange echoes a change decoded on the accessor path.
func (d *Device) accessorChange(c Change) {
	d.changed = true
	d.echo([]Change{c})
}

func (d *Device) send(f transport.Frame) {
	if d.tr == nil {
		return
	}
	if err := d.tr.Send(f); err != nil {
		d.log.Warn("send failed", "keys", f.Keys(), "error", err)
	}
}
