// Package status provides a thread-safe status tracker for the widget-sync daemon.
// It is written by the run loop and read by HTTP handlers.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/widget-sync/internal/automation"
	"github.com/sweeney/widget-sync/internal/device"
	"github.com/sweeney/widget-sync/internal/widget"
)

// Config contains daemon configuration for display.
type Config struct {
	DeviceID   string
	Version    string
	PollMs     int64
	Broker     string
	HTTPAddr   string
	Timezone   string
	Automation bool
}

// ClockInfo is the calendar state seen by the automation engine.
type ClockInfo struct {
	Synced      bool
	MinuteOfDay int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type; the widget slices are copies owned by the snapshot.
type Snapshot struct {
	Widgets       widget.State
	Sensors       device.Sensors
	Automation    automation.Status
	Clock         ClockInfo
	Messages      int
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	MQTTBuffered  int
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
			Clock:     ClockInfo{MinuteOfDay: -1},
		},
		now: time.Now,
	}
}

// Update sets the widget and sensor state and the count of processed
// controller messages. Called from runLoop on every tick.
func (t *Tracker) Update(w widget.State, s device.Sensors, messages int) {
	t.mu.Lock()
	t.snap.Widgets = w
	t.snap.Sensors = s
	t.snap.Messages = messages
	t.mu.Unlock()
}

// SetAutomation records the engine status.
func (t *Tracker) SetAutomation(a automation.Status) {
	t.mu.Lock()
	t.snap.Automation = a
	t.mu.Unlock()
}

// SetClock records whether the calendar is synced and the current minute.
func (t *Tracker) SetClock(synced bool, minuteOfDay int) {
	t.mu.Lock()
	t.snap.Clock = ClockInfo{Synced: synced, MinuteOfDay: minuteOfDay}
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status and the number of
// publishes held for replay.
func (t *Tracker) SetMQTTConnected(connected bool, buffered int) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.snap.MQTTBuffered = buffered
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Widgets = copyState(t.snap.Widgets)
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}

func copyState(w widget.State) widget.State {
	return widget.State{
		Buttons: append([]widget.Button(nil), w.Buttons...),
		Sliders: append([]widget.Slider(nil), w.Sliders...),
		Toggles: append([]widget.Toggle(nil), w.Toggles...),
		RGBs:    append([]widget.RGB(nil), w.RGBs...),
	}
}
