package mqtt

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/sweeney/widget-sync/internal/automation"
)

// Publisher sends a payload on a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// LinkRequest is the payload of a linked-action publish.
type LinkRequest struct {
	ID   string          `json:"id"`
	From string          `json:"from"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// LinkPublisher fires linked actions by publishing a LinkRequest to the
// target device's link topic.
type LinkPublisher struct {
	pub    Publisher
	prefix string
	from   string
	newID  func() string
}

var _ automation.Caller = (*LinkPublisher)(nil)

// NewLinkPublisher creates a LinkPublisher. from identifies this device in
// outgoing requests.
func NewLinkPublisher(pub Publisher, prefix, from string) *LinkPublisher {
	return &LinkPublisher{
		pub:    pub,
		prefix: prefix,
		from:   from,
		newID:  func() string { return uuid.New().String() },
	}
}

// Fire publishes the request for link.
func (p *LinkPublisher) Fire(ctx context.Context, link automation.Link) error {
	if link.DeviceID == "" {
		return fmt.Errorf("%w: link has no device", ErrInvalidTopic)
	}
	payload, err := FormatLinkRequest(p.newID(), p.from, link)
	if err != nil {
		return err
	}
	return p.pub.Publish(ctx, LinkTopic(p.prefix, link.DeviceID), payload)
}

// FormatLinkRequest encodes a LinkRequest. A payload that is valid JSON is
// embedded as-is; anything else is sent as a JSON string.
func FormatLinkRequest(id, from string, link automation.Link) ([]byte, error) {
	data := json.RawMessage(link.Payload)
	if !json.Valid(data) {
		quoted, err := json.Marshal(link.Payload)
		if err != nil {
			return nil, fmt.Errorf("encode link data: %w", err)
		}
		data = quoted
	}
	b, err := json.Marshal(LinkRequest{ID: id, From: from, Type: link.Type, Data: data})
	if err != nil {
		return nil, fmt.Errorf("encode link request: %w", err)
	}
	return b, nil
}
