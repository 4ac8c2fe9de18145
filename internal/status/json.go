package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/widget-sync/internal/automation"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string         `json:"event,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	DeviceID      string         `json:"device_id"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	StartTime     string         `json:"start_time"`
	Timestamp     string         `json:"timestamp"`
	MQTT          MQTTStatus     `json:"mqtt"`
	Clock         ClockJSON      `json:"clock"`
	Widgets       WidgetsJSON    `json:"widgets"`
	Sensors       SensorsJSON    `json:"sensors"`
	Automation    AutomationJSON `json:"automation"`
	Messages      int            `json:"messages"`
	Config        ConfigJSON     `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
	Buffered  int    `json:"buffered"`
}

// ClockJSON reports calendar state.
type ClockJSON struct {
	Synced      bool `json:"synced"`
	MinuteOfDay int  `json:"minute_of_day"`
}

// WidgetsJSON maps widget names to values, per kind.
type WidgetsJSON struct {
	Buttons map[string]bool     `json:"buttons"`
	Sliders map[string]uint8    `json:"sliders"`
	Toggles map[string]bool     `json:"toggles"`
	RGB     map[string][3]uint8 `json:"rgb"`
}

// SensorsJSON is the JSON representation of controller sensor feeds.
type SensorsJSON struct {
	Joystick [2]uint8  `json:"joystick"`
	Attitude [3]int    `json:"attitude"`
	GPS      [2]string `json:"gps"`
}

// RuleJSON is the JSON representation of the automation rule.
type RuleJSON struct {
	Enabled     bool    `json:"enabled"`
	Logic       string  `json:"logic"`
	TargetState string  `json:"target_state,omitempty"`
	Comparator  string  `json:"comparator,omitempty"`
	Target      float64 `json:"target"`
	DebounceMin int     `json:"debounce_minutes"`
	Window      [2]int  `json:"window"`
	LinkDevice  string  `json:"link_device"`
	LinkType    string  `json:"link_type"`
	LinkData    string  `json:"link_data"`
}

// AutomationJSON reports the rule and its trigger.
type AutomationJSON struct {
	Enabled bool     `json:"enabled"`
	Rule    RuleJSON `json:"rule"`
	Trigger string   `json:"trigger"`
	Since   string   `json:"since,omitempty"`
	Fires   int      `json:"fires"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs   int64  `json:"poll_ms"`
	Broker   string `json:"broker"`
	HTTPAddr string `json:"http_addr"`
	Timezone string `json:"timezone"`
}

// NewRuleJSON converts a rule for display.
func NewRuleJSON(r automation.Rule) RuleJSON {
	rj := RuleJSON{
		Enabled:     r.Enabled,
		Logic:       r.Logic.String(),
		DebounceMin: int(r.Debounce / time.Minute),
		Window:      [2]int{r.Window.Start, r.Window.End},
		LinkDevice:  r.Link.DeviceID,
		LinkType:    r.Link.Type,
		LinkData:    r.Link.Payload,
	}
	if r.Logic == automation.LogicState {
		rj.TargetState = "off"
		if r.TargetState {
			rj.TargetState = "on"
		}
	} else {
		rj.Comparator = r.Comparator.String()
		rj.Target = r.Target
	}
	return rj
}

func buildWidgets(snap Snapshot) WidgetsJSON {
	w := WidgetsJSON{
		Buttons: make(map[string]bool, len(snap.Widgets.Buttons)),
		Sliders: make(map[string]uint8, len(snap.Widgets.Sliders)),
		Toggles: make(map[string]bool, len(snap.Widgets.Toggles)),
		RGB:     make(map[string][3]uint8, len(snap.Widgets.RGBs)),
	}
	for _, b := range snap.Widgets.Buttons {
		w.Buttons[b.Name] = b.Pressed
	}
	for _, s := range snap.Widgets.Sliders {
		w.Sliders[s.Name] = s.Value
	}
	for _, t := range snap.Widgets.Toggles {
		w.Toggles[t.Name] = t.On
	}
	for _, c := range snap.Widgets.RGBs {
		w.RGB[c.Name] = c.Channels
	}
	return w
}

func buildInner(snap Snapshot) StatusInner {
	trigger := string(snap.Automation.State)
	if trigger == "" {
		trigger = string(automation.Idle)
	}
	auto := AutomationJSON{
		Enabled: snap.Config.Automation,
		Rule:    NewRuleJSON(snap.Automation.Rule),
		Trigger: trigger,
		Fires:   snap.Automation.Fires,
	}
	if !snap.Automation.Since.IsZero() {
		auto.Since = snap.Automation.Since.UTC().Format(time.RFC3339)
	}

	return StatusInner{
		DeviceID:      snap.Config.DeviceID,
		Version:       snap.Config.Version,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT: MQTTStatus{
			Connected: snap.MQTTConnected,
			Broker:    snap.Config.Broker,
			Buffered:  snap.MQTTBuffered,
		},
		Clock:   ClockJSON{Synced: snap.Clock.Synced, MinuteOfDay: snap.Clock.MinuteOfDay},
		Widgets: buildWidgets(snap),
		Sensors: SensorsJSON{
			Joystick: snap.Sensors.Joystick,
			Attitude: snap.Sensors.Attitude,
			GPS:      snap.Sensors.GPS,
		},
		Automation: auto,
		Messages:   snap.Messages,
		Config: ConfigJSON{
			PollMs:   snap.Config.PollMs,
			Broker:   snap.Config.Broker,
			HTTPAddr: snap.Config.HTTPAddr,
			Timezone: snap.Config.Timezone,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT lifecycle event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
