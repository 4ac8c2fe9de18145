// Package transport defines the controller channel a device talks over and
// the frame format of outbound messages.
package transport

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotConnected is returned when a frame cannot be delivered because the
// channel is down and the implementation does not queue.
var ErrNotConnected = errors.New("transport: not connected")

// Transport is a bidirectional message channel to the controller.
type Transport interface {
	// Connected reports whether the channel is up.
	Connected() bool

	// Connect establishes the channel if needed and reports whether it is up.
	Connect() bool

	// Run performs periodic housekeeping. Called once per loop iteration.
	Run()

	// Send delivers one outbound frame.
	Send(f Frame) error

	// CheckAvailable reports whether a new inbound message has arrived since
	// the last call. If so, that message becomes the current message.
	CheckAvailable() bool

	// RawMessage returns the text of the current inbound message.
	RawMessage() string
}

// Field is one key/value pair of a frame. Value is marshalled with
// encoding/json; use json.RawMessage for pre-encoded values.
type Field struct {
	Key   string
	Value any
}

// Frame is an ordered set of fields, encoded as a single JSON object with
// keys in insertion order.
type Frame []Field

// Single builds a frame with one field.
func Single(key string, value any) Frame {
	return Frame{{Key: key, Value: value}}
}

// Add appends a field and returns the extended frame.
func (f Frame) Add(key string, value any) Frame {
	return append(f, Field{Key: key, Value: value})
}

// Get returns the value of the first field named key.
func (f Frame) Get(key string) (any, bool) {
	for _, fl := range f {
		if fl.Key == key {
			return fl.Value, true
		}
	}
	return nil, false
}

// Keys returns the field names in order.
func (f Frame) Keys() []string {
	keys := make([]string, len(f))
	for i, fl := range f {
		keys[i] = fl.Key
	}
	return keys
}

// MarshalJSON encodes the frame as an object, preserving field order.
func (f Frame) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, fl := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(fl.Key)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", fl.Key, err)
		}
		v, err := json.Marshal(fl.Value)
		if err != nil {
			return nil, fmt.Errorf("marshal value for %q: %w", fl.Key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
