package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/widget-sync/internal/automation"
	"github.com/sweeney/widget-sync/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"hhmm": func(minute int) string {
		if minute < 0 {
			return "--:--"
		}
		return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
	},
	"minutes": func(d time.Duration) int {
		return int(d / time.Minute)
	},
	"onOff": func(on bool) string {
		if on {
			return "on"
		}
		return "off"
	},
	"hex": func(c [3]uint8) string {
		return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
	},
	"trigger": func(s automation.TriggerState) string {
		if s == "" {
			return string(automation.Idle)
		}
		return string(s)
	},
	"numeric": func(l automation.Logic) bool {
		return l == automation.LogicNumeric
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>Widget Sync: {{.Config.DeviceID}}</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.idle { color: #888; }
.debouncing { color: orange; }
.fired { color: green; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
.swatch { display: inline-block; width: 12px; height: 12px; margin-right: 6px; vertical-align: middle; border: 1px solid #444; }
</style>
</head>
<body>
<h1>Widget Sync: {{.Config.DeviceID}}</h1>

<h2>Widgets</h2>
<table>
{{range .Widgets.Toggles}}<tr><th>{{.Name}}</th><td class="{{onOff .On}}">{{onOff .On}}</td></tr>
{{end}}{{range .Widgets.Sliders}}<tr><th>{{.Name}}</th><td>{{.Value}}</td></tr>
{{end}}{{range .Widgets.RGBs}}<tr><th>{{.Name}}</th><td><span class="swatch" style="background: {{hex .Channels}}"></span>{{index .Channels 0}}, {{index .Channels 1}}, {{index .Channels 2}}</td></tr>
{{end}}{{range .Widgets.Buttons}}<tr><th>{{.Name}}</th><td class="{{if .Pressed}}on{{else}}off{{end}}">{{if .Pressed}}{{if .LongPress}}held{{else}}pressed{{end}}{{else}}released{{end}}</td></tr>
{{end}}</table>

<h2>Automation</h2>
<table>
<tr><th>Rule</th><td class="{{if .Automation.Rule.Enabled}}on{{else}}off{{end}}">{{if .Automation.Rule.Enabled}}enabled{{else}}disabled{{end}}</td></tr>
{{if numeric .Automation.Rule.Logic}}<tr><th>Condition</th><td>value {{.Automation.Rule.Comparator}} {{.Automation.Rule.Target}}</td></tr>
{{else}}<tr><th>Condition</th><td>toggle {{onOff .Automation.Rule.TargetState}}</td></tr>
{{end}}<tr><th>Debounce</th><td>{{minutes .Automation.Rule.Debounce}}m</td></tr>
<tr><th>Window</th><td>{{hhmm .Automation.Rule.Window.Start}} to {{hhmm .Automation.Rule.Window.End}}</td></tr>
<tr><th>Link</th><td>{{.Automation.Rule.Link.Type}} {{.Automation.Rule.Link.DeviceID}}</td></tr>
<tr><th>Trigger</th><td id="trigger" class="{{trigger .Automation.State}}">{{trigger .Automation.State}}</td></tr>
<tr><th>Fired</th><td>{{.Automation.Fires}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Buffered</th><td>{{.MQTTBuffered}}</td></tr>
<tr><th>Messages</th><td>{{.Messages}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Clock</th><td>{{if .Clock.Synced}}{{hhmm .Clock.MinuteOfDay}} {{.Config.Timezone}}{{else}}not synced{{end}}</td></tr>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Version</th><td>{{.Config.Version}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	return indexTmpl.Execute(w, data)
}
