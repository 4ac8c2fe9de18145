package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/widget-sync/internal/transport"
)

const (
	defaultConnectTimeout = 10 * time.Second
	publishTimeout        = 5 * time.Second
	disconnectQuiesceMs   = 250
	defaultInboundQueue   = 32
	defaultOfflineBuffer  = 64
)

// Options configures a Client.
type Options struct {
	Broker   string
	ClientID string
	Username string
	Password string
	// Prefix is the topic root, e.g. "widget-sync".
	Prefix   string
	DeviceID string
	// InboundQueue bounds inbound messages waiting for the run loop.
	InboundQueue int
	// OfflineBuffer bounds publishes held while disconnected.
	OfflineBuffer  int
	ConnectTimeout time.Duration
	Logger         *slog.Logger
}

// Client is a transport.Transport over MQTT. Inbound messages arrive on the
// device's rx topic and are queued until the run loop takes them with
// CheckAvailable; frames are published on the tx topic. Publishes made while
// disconnected are held in a ring buffer and replayed by Run.
type Client struct {
	client         paho.Client
	topics         Topics
	log            *slog.Logger
	connectTimeout time.Duration

	inbound chan string
	current string

	mu     sync.Mutex
	buffer *ringBuffer
}

var _ transport.Transport = (*Client)(nil)

// NewClient builds a Client. It does not dial; call Connect.
func NewClient(opts Options) *Client {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if opts.InboundQueue <= 0 {
		opts.InboundQueue = defaultInboundQueue
	}
	if opts.OfflineBuffer <= 0 {
		opts.OfflineBuffer = defaultOfflineBuffer
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaultConnectTimeout
	}

	c := &Client{
		topics:         TopicsFor(opts.Prefix, opts.DeviceID),
		log:            log,
		connectTimeout: opts.ConnectTimeout,
		inbound:        make(chan string, opts.InboundQueue),
		buffer:         newRingBuffer(opts.OfflineBuffer),
	}

	po := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(time.Minute).
		SetCleanSession(true).
		SetWill(c.topics.Status, StatusOffline, 1, true)
	if opts.Username != "" {
		po.SetUsername(opts.Username)
		po.SetPassword(opts.Password)
	}
	po.SetOnConnectHandler(func(_ paho.Client) { c.handleConnect() })
	po.SetConnectionLostHandler(func(_ paho.Client, err error) {
		c.log.Warn("mqtt connection lost", "error", err)
	})
	po.SetReconnectingHandler(func(_ paho.Client, _ *paho.ClientOptions) {
		c.log.Info("mqtt reconnecting")
	})

	c.client = paho.NewClient(po)
	return c
}

// Topics returns the device topic set.
func (c *Client) Topics() Topics { return c.topics }

// Connected reports whether the broker connection is open.
func (c *Client) Connected() bool {
	return c.client.IsConnectionOpen()
}

// Connect dials the broker unless a connection (or automatic reconnection)
// is already in progress, and reports whether the connection is open.
func (c *Client) Connect() bool {
	if c.client.IsConnected() {
		return c.Connected()
	}
	token := c.client.Connect()
	if !token.WaitTimeout(c.connectTimeout) {
		c.log.Warn("mqtt connect timed out", "timeout", c.connectTimeout)
		return false
	}
	if err := token.Error(); err != nil {
		c.log.Warn("mqtt connect failed", "error", err)
		return false
	}
	return c.Connected()
}

// handleConnect runs on every (re)connection.
func (c *Client) handleConnect() {
	c.client.Subscribe(c.topics.Inbound, 1, func(_ paho.Client, m paho.Message) {
		c.handleMessage(m.Payload())
	})
	c.client.Publish(c.topics.Status, 1, true, StatusOnline)
	c.log.Info("mqtt connected", "inbound", c.topics.Inbound, "outbound", c.topics.Outbound)
}

// handleMessage queues an inbound payload without blocking the paho router.
func (c *Client) handleMessage(payload []byte) {
	select {
	case c.inbound <- string(payload):
	default:
		c.log.Warn("inbound queue full, dropping message", "capacity", cap(c.inbound))
	}
}

// Run replays held publishes once the connection is open.
func (c *Client) Run() {
	if !c.Connected() {
		return
	}
	c.mu.Lock()
	held := c.buffer.drainAll()
	c.mu.Unlock()
	if len(held) == 0 {
		return
	}

	c.log.Info("replaying buffered publishes", "count", len(held))
	for i, q := range held {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		err := c.publishNow(ctx, q)
		cancel()
		if err != nil {
			// Put the rest back for the next attempt.
			c.mu.Lock()
			for _, rest := range held[i:] {
				c.buffer.push(rest)
			}
			c.mu.Unlock()
			c.log.Warn("replay interrupted", "remaining", len(held)-i, "error", err)
			return
		}
	}
}

// Send publishes a frame on the outbound topic.
func (c *Client) Send(f transport.Frame) error {
	payload, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	return c.publish(ctx, queued{topic: c.topics.Outbound, payload: payload})
}

// Publish sends payload on topic at QoS 1. Used for linked actions.
func (c *Client) Publish(ctx context.Context, topic string, payload []byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	return c.publish(ctx, queued{topic: topic, payload: payload, qos: 1})
}

func (c *Client) publish(ctx context.Context, q queued) error {
	if !c.Connected() {
		c.mu.Lock()
		overwrote := c.buffer.push(q)
		n := c.buffer.len()
		c.mu.Unlock()
		if overwrote {
			c.log.Warn("offline buffer full, dropped oldest publish", "capacity", n)
		} else {
			c.log.Debug("offline, publish buffered", "topic", q.topic, "held", n)
		}
		return nil
	}
	return c.publishNow(ctx, q)
}

func (c *Client) publishNow(ctx context.Context, q queued) error {
	token := c.client.Publish(q.topic, q.qos, q.retained, q.payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, q.topic, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, q.topic, err)
	}
	return nil
}

// Buffered returns the number of publishes held for replay.
func (c *Client) Buffered() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffer.len()
}

// CheckAvailable takes the next queued inbound message, if any.
func (c *Client) CheckAvailable() bool {
	select {
	case m := <-c.inbound:
		c.current = m
		return true
	default:
		return false
	}
}

// RawMessage returns the current inbound message.
func (c *Client) RawMessage() string { return c.current }

// Close marks the device offline and disconnects.
func (c *Client) Close() error {
	if c.Connected() {
		token := c.client.Publish(c.topics.Status, 1, true, StatusOffline)
		token.WaitTimeout(publishTimeout)
	}
	c.client.Disconnect(disconnectQuiesceMs)
	return nil
}
