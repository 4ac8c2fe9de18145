package internal

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/sweeney/widget-sync/internal/action"
	"github.com/sweeney/widget-sync/internal/automation"
	"github.com/sweeney/widget-sync/internal/clock"
	"github.com/sweeney/widget-sync/internal/device"
	"github.com/sweeney/widget-sync/internal/gpio"
	"github.com/sweeney/widget-sync/internal/mqtt"
	"github.com/sweeney/widget-sync/internal/status"
	"github.com/sweeney/widget-sync/internal/storage"
	"github.com/sweeney/widget-sync/internal/transport"
	"github.com/sweeney/widget-sync/internal/widget"
)

// recordingPublisher captures linked-action publishes.
type recordingPublisher struct {
	topics   []string
	payloads [][]byte
}

func (r *recordingPublisher) Publish(_ context.Context, topic string, payload []byte) error {
	r.topics = append(r.topics, topic)
	r.payloads = append(r.payloads, payload)
	return nil
}

// stack is a device wired the way the daemon wires it, over fakes.
type stack struct {
	dev    *device.Device
	tr     *transport.Fake
	engine *automation.Engine
	lines  *gpio.FakeWriter
	pub    *recordingPublisher
	now    time.Time
}

func newStack(t *testing.T, blocks storage.Blocks, wall *time.Time) *stack {
	t.Helper()
	s := &stack{
		tr:    transport.NewFake(),
		lines: gpio.NewFakeWriter(17, 27),
		pub:   &recordingPublisher{},
	}
	router := action.NewRouter().
		Handle("gpio", gpio.NewActuator(s.lines)).
		Default(mqtt.NewLinkPublisher(s.pub, "widget-sync/link", "kitchen"))

	clk := clock.New(time.UTC, func() time.Time { return *wall })
	s.engine = automation.NewEngine(automation.Options{
		Clock:  clk,
		Caller: router,
		Store:  automation.NewStore(blocks, 0, 0),
	})
	s.dev = device.New(device.Options{
		Registry:   widget.NewRegistry(4),
		Transport:  s.tr,
		Automation: s.engine,
		Version:    "1.0.0",
		StateTag:   device.StateOnline,
		Now:        func() time.Time { return *wall },
	})
	s.dev.Register(widget.KindToggle, "porch")
	s.dev.Register(widget.KindSlider, "temp")
	return s
}

// deliver pushes msg and runs one poll, as the daemon does per message.
func (s *stack) deliver(t *testing.T, msg string) device.Result {
	t.Helper()
	s.tr.Push(msg)
	res, ok := s.dev.Poll()
	if !ok {
		t.Fatalf("message %s not delivered", msg)
	}
	return res
}

// TestIntegrationStateRuleDrivesGPIO sets a state rule from the controller,
// toggles the watched switch and checks the output line after the debounce.
func TestIntegrationStateRuleDrivesGPIO(t *testing.T) {
	wall := time.Date(2026, 3, 3, 18, 0, 0, 0, time.UTC)
	s := newStack(t, storage.NewMemory(storage.DefaultSize), &wall)

	res := s.deliver(t, `{"set":{"auto":true,"logicType":"state","targetState":"on","duration":3,`+
		`"timeSlot":[1020,1380],"linkDevice":"17","linkType":"gpio","linkData":"on"}}`)
	if !res.RuleSet {
		t.Fatal("expected rule-set result")
	}
	if len(s.tr.Sent) != 0 {
		t.Errorf("rule-set should not echo, got %d frames", len(s.tr.Sent))
	}

	s.deliver(t, `{"porch":"on"}`)
	if len(s.tr.Sent) != 1 {
		t.Fatalf("expected echo frame, got %d", len(s.tr.Sent))
	}

	for i := 1; i <= 2; i++ {
		wall = wall.Add(time.Minute)
		s.dev.Refresh(wall)
	}
	if len(s.lines.Writes) != 0 {
		t.Fatalf("fired before debounce: %+v", s.lines.Writes)
	}

	wall = wall.Add(time.Minute)
	s.dev.Refresh(wall)
	if len(s.lines.Writes) != 1 || !s.lines.Levels[17] {
		t.Fatalf("expected line 17 driven high, got %+v", s.lines.Writes)
	}

	// Holding the switch on must not repeat the action.
	for i := 0; i < 10; i++ {
		wall = wall.Add(time.Minute)
		s.dev.Refresh(wall)
	}
	if len(s.lines.Writes) != 1 {
		t.Errorf("action repeated: %d writes", len(s.lines.Writes))
	}
	if s.engine.State() != automation.Fired {
		t.Errorf("state: got %q, want fired", s.engine.State())
	}
}

// TestIntegrationNumericRuleOutsideWindow drives a numeric slider rule across
// the edge of its time window.
func TestIntegrationNumericRuleOutsideWindow(t *testing.T) {
	wall := time.Date(2026, 3, 3, 7, 0, 0, 0, time.UTC)
	s := newStack(t, storage.NewMemory(storage.DefaultSize), &wall)

	s.deliver(t, `{"set":{"auto":true,"logicType":"numeric","compareType":"greater","targetData":25,`+
		`"timeSlot":[480,1020],"linkDevice":"fan","linkType":"toggle","linkData":{"sw":"on"}}}`)

	s.deliver(t, `{"temp":30}`)
	if len(s.pub.payloads) != 0 {
		t.Fatal("fired outside the window")
	}
	if s.engine.State() != automation.Idle {
		t.Errorf("state outside window: got %q, want idle", s.engine.State())
	}

	wall = time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC)
	s.dev.Refresh(wall)
	if len(s.pub.payloads) != 1 {
		t.Fatalf("expected 1 link publish, got %d", len(s.pub.payloads))
	}
	if s.pub.topics[0] != "widget-sync/link/fan" {
		t.Errorf("topic: got %q", s.pub.topics[0])
	}

	var req mqtt.LinkRequest
	if err := json.Unmarshal(s.pub.payloads[0], &req); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if req.From != "kitchen" || req.Type != "toggle" {
		t.Errorf("request: got %+v", req)
	}
	if string(req.Data) != `{"sw":"on"}` {
		t.Errorf("data: got %s", req.Data)
	}
}

// TestIntegrationClockNotSynced checks that nothing fires before the wall
// clock is set.
func TestIntegrationClockNotSynced(t *testing.T) {
	wall := time.Unix(120, 0).UTC()
	s := newStack(t, storage.NewMemory(storage.DefaultSize), &wall)

	s.deliver(t, `{"set":{"auto":true,"logicType":"state","targetState":"on","linkDevice":"17","linkType":"gpio","linkData":"on"}}`)
	s.deliver(t, `{"porch":"on"}`)

	if len(s.lines.Writes) != 0 {
		t.Fatal("fired with an unsynced clock")
	}

	wall = time.Date(2026, 3, 3, 12, 0, 0, 0, time.UTC)
	s.dev.Refresh(wall)
	if len(s.lines.Writes) != 1 {
		t.Errorf("expected fire once synced, got %d writes", len(s.lines.Writes))
	}
}

// TestIntegrationRulePersistsAcrossRestart stores a rule through SQLite and
// loads it into a fresh stack.
func TestIntegrationRulePersistsAcrossRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eeprom.db")
	wall := time.Date(2026, 3, 3, 12, 0, 0, 0, time.UTC)

	db, err := storage.OpenSQLite(path, storage.DefaultSize)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s := newStack(t, db, &wall)
	s.deliver(t, `{"set":{"auto":true,"logicType":"numeric","compareType":"less","targetData":18.5,`+
		`"duration":10,"timeSlot":[1320,360],"linkDevice":"heater","linkType":"toggle","linkData":"on"}}`)
	want := s.engine.Rule()
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db2, err := storage.OpenSQLite(path, storage.DefaultSize)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db2.Close()

	restarted := newStack(t, db2, &wall)
	got := restarted.engine.Rule()
	if got != want {
		t.Errorf("rule after restart:\n got %+v\nwant %+v", got, want)
	}
	if got.Window != (automation.Window{Start: 1320, End: 360}) {
		t.Errorf("window: got %+v", got.Window)
	}
	if restarted.engine.State() != automation.Idle {
		t.Errorf("trigger state should not persist, got %q", restarted.engine.State())
	}
}

// TestIntegrationCorruptStorageDisablesRule flips a stored byte and checks
// the device starts with automation off, then accepts a new rule.
func TestIntegrationCorruptStorageDisablesRule(t *testing.T) {
	wall := time.Date(2026, 3, 3, 12, 0, 0, 0, time.UTC)
	mem := storage.NewMemory(storage.DefaultSize)

	s := newStack(t, mem, &wall)
	s.deliver(t, `{"set":{"auto":true,"logicType":"state","targetState":"on","linkDevice":"17","linkType":"gpio","linkData":"on"}}`)

	b, _ := mem.ReadBlock(2, 1)
	if err := mem.WriteBlock(2, []byte{b[0] ^ 0x01}); err != nil {
		t.Fatalf("corrupt: %v", err)
	}

	restarted := newStack(t, mem, &wall)
	if restarted.engine.Rule().Enabled {
		t.Fatal("corrupt record should load as a disabled rule")
	}
	restarted.deliver(t, `{"porch":"on"}`)
	if len(restarted.lines.Writes) != 0 {
		t.Error("disabled rule fired")
	}

	restarted.deliver(t, `{"set":{"auto":true,"logicType":"state","targetState":"off","linkDevice":"27","linkType":"gpio","linkData":"off"}}`)
	if !newStack(t, mem, &wall).engine.Rule().Enabled {
		t.Error("new rule-set should replace the corrupt record")
	}
}

// TestIntegrationStateSnapshotAndStatus answers get commands and checks the
// status JSON built from the same device.
func TestIntegrationStateSnapshotAndStatus(t *testing.T) {
	wall := time.Date(2026, 3, 3, 12, 0, 0, 0, time.UTC)
	s := newStack(t, storage.NewMemory(storage.DefaultSize), &wall)

	s.deliver(t, `{"porch":"on","temp":21}`)
	s.tr.Reset()

	s.deliver(t, `{"get":"state"}`)
	if len(s.tr.Sent) != 1 {
		t.Fatalf("expected 1 state frame, got %d", len(s.tr.Sent))
	}
	payload, err := json.Marshal(s.tr.Sent[0])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(payload) != `{"state":"online","porch":"on","temp":21}` {
		t.Errorf("state frame: got %s", payload)
	}

	s.deliver(t, `{"get":"version"}`)
	if v, _ := s.tr.Sent[1].Get(device.FieldVersion); v != "1.0.0" {
		t.Errorf("version: got %v", v)
	}

	tracker := status.NewTracker(wall, status.Config{DeviceID: "kitchen"})
	tracker.Update(s.dev.State(), s.dev.Sensors(), 3)
	tracker.SetAutomation(s.engine.Status())

	var sj status.StatusJSON
	if err := json.Unmarshal(status.FormatJSON(tracker.Snapshot()), &sj); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if !sj.Status.Widgets.Toggles["porch"] || sj.Status.Widgets.Sliders["temp"] != 21 {
		t.Errorf("widgets: got %+v", sj.Status.Widgets)
	}
	if sj.Status.Sensors.GPS != [2]string{device.GPSUnknown, device.GPSUnknown} {
		t.Errorf("gps: got %v", sj.Status.Sensors.GPS)
	}
}
