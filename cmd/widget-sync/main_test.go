package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/sweeney/widget-sync/internal/automation"
	"github.com/sweeney/widget-sync/internal/config"
	"github.com/sweeney/widget-sync/internal/device"
	"github.com/sweeney/widget-sync/internal/status"
	"github.com/sweeney/widget-sync/internal/storage"
	"github.com/sweeney/widget-sync/internal/transport"
	"github.com/sweeney/widget-sync/internal/widget"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	synced bool
	minute int
}

func (c *fakeClock) Synced() bool     { return c.synced }
func (c *fakeClock) MinuteOfDay() int { return c.minute }

type fakeCaller struct{ links []automation.Link }

func (c *fakeCaller) Fire(_ context.Context, l automation.Link) error {
	c.links = append(c.links, l)
	return nil
}

type event struct {
	topic   string
	payload []byte
}

type fakeEvents struct {
	events []event
	err    error
}

func (f *fakeEvents) Publish(_ context.Context, topic string, payload []byte) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event{topic: topic, payload: payload})
	return nil
}

// harness wires a loop over fakes. The device reads the same clock as the
// loop; both are only touched from the loop goroutine.
type harness struct {
	loop    *loop
	tr      *transport.Fake
	caller  *fakeCaller
	events  *fakeEvents
	tracker *status.Tracker
	engine  *automation.Engine
	now     time.Time
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		tr:     transport.NewFake(),
		caller: &fakeCaller{},
		events: &fakeEvents{},
		now:    t0,
	}
	clk := &fakeClock{synced: true, minute: 720}
	h.engine = automation.NewEngine(automation.Options{
		Clock:  clk,
		Caller: h.caller,
		Store:  automation.NewStore(storage.NewMemory(storage.DefaultSize), 0, 0),
		Logger: discardLogger(),
	})
	dev := device.New(device.Options{
		Transport:  h.tr,
		Automation: h.engine,
		Version:    "test",
		StateTag:   device.StateOnline,
		Now:        func() time.Time { return h.now },
		Logger:     discardLogger(),
	})
	registerWidgets(dev, config.WidgetsConfig{Toggles: []string{"sw"}, Sliders: []string{"lvl"}})

	h.tracker = status.NewTracker(t0, status.Config{DeviceID: "dev1", Automation: true})
	h.loop = &loop{
		dev:        dev,
		tr:         h.tr,
		engine:     h.engine,
		clock:      clk,
		tracker:    h.tracker,
		log:        discardLogger(),
		events:     h.events,
		eventTopic: "widget-sync/dev1/events",
		buffered:   func() int { return 0 },
		wasUp:      true,
	}
	return h
}

// runTicks drives run with one tick per step, advancing the clock by step
// at each tick, then sends sig and returns run's error.
func (h *harness) runTicks(t *testing.T, steps []time.Duration, sig os.Signal) error {
	t.Helper()
	tick := make(chan time.Time)
	sigCh := make(chan os.Signal, 1)

	i := 0
	now := func() time.Time {
		h.now = h.now.Add(steps[i])
		i++
		return h.now
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- h.loop.run(now, tick, sigCh)
	}()

	for range steps {
		tick <- time.Time{}
	}
	sigCh <- sig
	return <-errCh
}

func sentKeys(frames []transport.Frame) []string {
	var keys []string
	for _, f := range frames {
		keys = append(keys, strings.Join(f.Keys(), ","))
	}
	return keys
}

func TestRunLoopProcessesAndEchoes(t *testing.T) {
	h := newHarness(t)
	h.tr.Push(`{"sw":"on"}`)
	h.tr.Push(`{"lvl":42}`)

	if err := h.runTicks(t, []time.Duration{100 * time.Millisecond}, syscall.SIGTERM); err != nil {
		t.Fatalf("run returned error: %v", err)
	}

	if got := sentKeys(h.tr.Sent); len(got) != 2 || got[0] != "sw" || got[1] != "lvl" {
		t.Errorf("echo frames: got %v, want [sw lvl]", got)
	}
	if h.tr.RunCalls != 1 {
		t.Errorf("RunCalls: got %d, want 1", h.tr.RunCalls)
	}

	snap := h.tracker.Snapshot()
	if snap.Messages != 2 {
		t.Errorf("Messages: got %d, want 2", snap.Messages)
	}
	if !snap.Widgets.Toggles[0].On {
		t.Error("expected toggle sw on in tracker")
	}
	if snap.Widgets.Sliders[0].Value != 42 {
		t.Errorf("slider lvl: got %d, want 42", snap.Widgets.Sliders[0].Value)
	}
	if !snap.Clock.Synced || snap.Clock.MinuteOfDay != 720 {
		t.Errorf("Clock: got %+v", snap.Clock)
	}
}

func TestRunLoopShutdownEvent(t *testing.T) {
	for _, sig := range []os.Signal{syscall.SIGTERM, syscall.SIGINT} {
		t.Run(signalName(sig), func(t *testing.T) {
			h := newHarness(t)
			if err := h.runTicks(t, nil, sig); err != nil {
				t.Fatalf("run returned error: %v", err)
			}

			if len(h.events.events) != 1 {
				t.Fatalf("expected 1 event, got %d", len(h.events.events))
			}
			ev := h.events.events[0]
			if ev.topic != "widget-sync/dev1/events" {
				t.Errorf("topic: got %q", ev.topic)
			}
			var parsed status.StatusJSON
			if err := json.Unmarshal(ev.payload, &parsed); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if parsed.Status.Event != eventShutdown {
				t.Errorf("Event: got %q, want SHUTDOWN", parsed.Status.Event)
			}
			if parsed.Status.Reason != signalName(sig) {
				t.Errorf("Reason: got %q, want %s", parsed.Status.Reason, signalName(sig))
			}
		})
	}
}

func TestRunLoopShutdownPublishErrorStillExits(t *testing.T) {
	h := newHarness(t)
	h.events.err = errors.New("broker gone")

	if err := h.runTicks(t, nil, syscall.SIGTERM); err != nil {
		t.Fatalf("run returned error: %v", err)
	}
}

func TestRunLoopReconnectsWithBackoff(t *testing.T) {
	h := newHarness(t)
	h.tr.Up = false
	h.loop.wasUp = false
	h.tr.ConnectResults = []bool{false, true}

	// First tick attempts and fails; the next two fall inside the backoff;
	// the fourth attempts again and succeeds.
	steps := []time.Duration{time.Second, time.Second, time.Second, reconnectInterval}
	if err := h.runTicks(t, steps, syscall.SIGTERM); err != nil {
		t.Fatalf("run returned error: %v", err)
	}

	if len(h.tr.ConnectResults) != 0 {
		t.Errorf("expected both connect attempts used, %d left", len(h.tr.ConnectResults))
	}
	if len(h.tr.Sent) != 1 {
		t.Fatalf("expected one state frame after reconnect, got %d frames", len(h.tr.Sent))
	}
	tag, _ := h.tr.Sent[0].Get(device.FieldState)
	if tag != device.StateOnline {
		t.Errorf("state tag: got %v, want online", tag)
	}
	if !h.tracker.Snapshot().MQTTConnected {
		t.Error("expected tracker to show connected")
	}
}

func TestRunLoopCompletesDebounceWithoutMessages(t *testing.T) {
	h := newHarness(t)
	h.tr.Push(`{"set":{"auto":true,"logicType":"state","targetState":"on","duration":2,` +
		`"linkDevice":"lamp","linkType":"toggle","linkData":"on"}}`)
	h.tr.Push(`{"sw":"on"}`)

	steps := []time.Duration{time.Second, time.Minute, time.Minute}
	if err := h.runTicks(t, steps, syscall.SIGTERM); err != nil {
		t.Fatalf("run returned error: %v", err)
	}

	if len(h.caller.links) != 1 {
		t.Fatalf("expected 1 linked action, got %d", len(h.caller.links))
	}
	if h.caller.links[0].DeviceID != "lamp" {
		t.Errorf("link device: got %q, want lamp", h.caller.links[0].DeviceID)
	}
	snap := h.tracker.Snapshot()
	if snap.Automation.State != automation.Fired {
		t.Errorf("tracker trigger: got %q, want fired", snap.Automation.State)
	}
	if snap.Automation.Fires != 1 {
		t.Errorf("tracker fires: got %d, want 1", snap.Automation.Fires)
	}
}

func TestRunLoopBoundsMessagesPerTick(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < maxMessagesPerTick+8; i++ {
		h.tr.Push(`{"other":1}`)
	}

	if err := h.runTicks(t, []time.Duration{time.Millisecond}, syscall.SIGTERM); err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	if got := h.tracker.Snapshot().Messages; got != maxMessagesPerTick {
		t.Errorf("Messages after one tick: got %d, want %d", got, maxMessagesPerTick)
	}
	if len(h.tr.Inbound) != 8 {
		t.Errorf("left in queue: got %d, want 8", len(h.tr.Inbound))
	}
}

func TestRegisterWidgets(t *testing.T) {
	dev := device.New(device.Options{Registry: widget.NewRegistry(2)})
	registerWidgets(dev, config.WidgetsConfig{
		Buttons: []string{"go"},
		Sliders: []string{"a", "b", "c"},
		RGB:     []string{"col"},
	})

	s := dev.State()
	if len(s.Buttons) != 1 || s.Buttons[0].Name != "go" {
		t.Errorf("Buttons: got %+v", s.Buttons)
	}
	if len(s.Sliders) != 2 {
		t.Errorf("Sliders: got %d, want capacity 2", len(s.Sliders))
	}
	if len(s.RGBs) != 1 || s.RGBs[0].Name != "col" {
		t.Errorf("RGBs: got %+v", s.RGBs)
	}
}

func TestPrintRule(t *testing.T) {
	mem := storage.NewMemory(storage.DefaultSize)
	cfg := config.Default()
	store := ruleStore(mem, cfg)
	if err := store.Save(automation.Rule{
		Enabled:    true,
		Logic:      automation.LogicNumeric,
		Comparator: automation.Less,
		Target:     18,
		Debounce:   10 * time.Minute,
		Window:     automation.Window{Start: 1320, End: 360},
		Link:       automation.Link{DeviceID: "17", Type: linkTypeGPIO, Payload: "on"},
	}); err != nil {
		t.Fatalf("save: %v", err)
	}

	var buf bytes.Buffer
	if err := printRule(&buf, store); err != nil {
		t.Fatalf("printRule: %v", err)
	}

	var got status.RuleJSON
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.Comparator != "less" || got.Target != 18 || got.DebounceMin != 10 {
		t.Errorf("rule: got %+v", got)
	}
	if got.Window != [2]int{1320, 360} {
		t.Errorf("window: got %v", got.Window)
	}
	if got.LinkType != "gpio" || got.LinkDevice != "17" {
		t.Errorf("link: got %s %s", got.LinkType, got.LinkDevice)
	}
}

func TestPrintRuleEmptyStorage(t *testing.T) {
	store := ruleStore(storage.NewMemory(storage.DefaultSize), config.Default())

	err := printRule(&bytes.Buffer{}, store)
	if !errors.Is(err, automation.ErrNoRecord) {
		t.Errorf("got %v, want ErrNoRecord", err)
	}
}

func TestOpenStorageInMemory(t *testing.T) {
	blocks, err := openStorage(config.StorageConfig{Size: 64})
	if err != nil {
		t.Fatalf("openStorage: %v", err)
	}
	if _, ok := blocks.(*storage.Memory); !ok {
		t.Errorf("got %T, want *storage.Memory", blocks)
	}
}

func TestVersionCommand(t *testing.T) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if strings.TrimSpace(out.String()) != version {
		t.Errorf("got %q, want %q", out.String(), version)
	}
}

func TestSignalName(t *testing.T) {
	if got := signalName(syscall.SIGINT); got != "SIGINT" {
		t.Errorf("got %q", got)
	}
	if got := signalName(syscall.SIGHUP); got != "UNKNOWN" {
		t.Errorf("got %q", got)
	}
}
