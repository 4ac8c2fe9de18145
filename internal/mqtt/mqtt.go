// Package mqtt carries the controller channel and linked-action requests over
// an MQTT broker.
package mqtt

import (
	"errors"
	"fmt"
)

// Status payloads published retained on the status topic.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

var (
	// ErrPublishFailed is returned when the broker does not accept a publish.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrInvalidTopic is returned when a topic would be empty.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")
)

// Topics holds the per-device topic names.
type Topics struct {
	// Inbound carries controller commands to the device.
	Inbound string
	// Outbound carries device frames to the controller.
	Outbound string
	// Status carries the retained online/offline marker (also the LWT).
	Status string
	// Events carries daemon lifecycle events (startup, shutdown).
	Events string
}

// TopicsFor builds the topic set for a device under prefix.
//
// Example: widget-sync/kitchen-01/rx
func TopicsFor(prefix, deviceID string) Topics {
	base := fmt.Sprintf("%s/%s", prefix, deviceID)
	return Topics{
		Inbound:  base + "/rx",
		Outbound: base + "/tx",
		Status:   base + "/status",
		Events:   base + "/events",
	}
}

// LinkTopic returns the topic a linked-action request for deviceID is
// published on.
//
// Example: widget-sync/link/lamp-01
func LinkTopic(prefix, deviceID string) string {
	return fmt.Sprintf("%s/%s", prefix, deviceID)
}
