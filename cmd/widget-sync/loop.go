package main

import (
	"context"
	"log/slog"
	"os"
	"syscall"
	"time"

	"github.com/sweeney/widget-sync/internal/automation"
	"github.com/sweeney/widget-sync/internal/device"
	"github.com/sweeney/widget-sync/internal/status"
	"github.com/sweeney/widget-sync/internal/transport"
)

const (
	// reconnectInterval spaces out connect attempts while the broker is down.
	reconnectInterval = 5 * time.Second
	// maxMessagesPerTick bounds inbound processing so status keeps updating
	// under a message flood.
	maxMessagesPerTick = 32
	eventTimeout       = 5 * time.Second
)

// Lifecycle events published on the events topic.
const (
	eventStartup  = "STARTUP"
	eventShutdown = "SHUTDOWN"
)

// eventPublisher sends lifecycle events. Satisfied by *mqtt.Client.
type eventPublisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// loop holds everything the run loop drives. Only the run loop goroutine
// touches dev, tr and engine.
type loop struct {
	dev     *device.Device
	tr      transport.Transport
	engine  *automation.Engine // nil when automation is disabled
	clock   automation.Clock
	tracker *status.Tracker
	log     *slog.Logger

	events     eventPublisher // optional
	eventTopic string
	buffered   func() int // optional

	messages    int
	lastConnect time.Time
	wasUp       bool
}

// publishEvent sends a lifecycle event carrying a full status snapshot.
func (l *loop) publishEvent(event, reason string) {
	if l.events == nil || l.eventTopic == "" {
		return
	}
	l.updateStatus()
	payload := status.FormatStatusEvent(l.tracker.Snapshot(), event, reason)

	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()
	if err := l.events.Publish(ctx, l.eventTopic, payload); err != nil {
		l.log.Warn("publish lifecycle event failed", "event", event, "error", err)
		return
	}
	l.log.Info("published lifecycle event", "event", event)
}

// run processes ticks until a signal arrives. now is injected for tests.
func (l *loop) run(now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			l.log.Info("shutting down", "signal", s.String())
			l.publishEvent(eventShutdown, signalName(s))
			return nil

		case <-tick:
			l.step(now())
		}
	}
}

// step is one run loop iteration.
func (l *loop) step(t time.Time) {
	l.maintain(t)
	l.tr.Run()

	for i := 0; i < maxMessagesPerTick; i++ {
		res, ok := l.dev.Poll()
		if !ok {
			break
		}
		l.messages++
		if res.Changed {
			l.log.Debug("message applied",
				"changes", len(res.Changes),
				"rule_set", res.RuleSet,
				"command", res.Command)
		}
	}

	l.dev.Refresh(t)
	l.updateStatus()
}

// maintain reconnects when the channel is down and sends a state snapshot
// each time it comes up.
func (l *loop) maintain(t time.Time) {
	up := l.tr.Connected()
	if !up && (l.lastConnect.IsZero() || t.Sub(l.lastConnect) >= reconnectInterval) {
		l.lastConnect = t
		up = l.tr.Connect()
	}
	if up && !l.wasUp {
		l.log.Info("channel up, sending state")
		if err := l.dev.EmitState(); err != nil {
			l.log.Warn("send state failed", "error", err)
		}
	}
	if !up && l.wasUp {
		l.log.Warn("channel down")
	}
	l.wasUp = up
}

func (l *loop) updateStatus() {
	if l.tracker == nil {
		return
	}
	l.tracker.Update(l.dev.State(), l.dev.Sensors(), l.messages)
	if l.clock != nil {
		l.tracker.SetClock(l.clock.Synced(), l.clock.MinuteOfDay())
	}
	if l.engine != nil {
		l.tracker.SetAutomation(l.engine.Status())
	}
	buffered := 0
	if l.buffered != nil {
		buffered = l.buffered()
	}
	l.tracker.SetMQTTConnected(l.tr.Connected(), buffered)
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}
