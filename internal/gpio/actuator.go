package gpio

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/sweeney/widget-sync/internal/automation"
)

// Actuator fires linked actions by driving an output line. The link's
// DeviceID is the line offset and its payload the level.
type Actuator struct {
	w Writer
}

var _ automation.Caller = (*Actuator)(nil)

// NewActuator creates an Actuator over w.
func NewActuator(w Writer) *Actuator {
	return &Actuator{w: w}
}

// Fire sets the line named by link.
func (a *Actuator) Fire(ctx context.Context, link automation.Link) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	offset, err := strconv.Atoi(strings.TrimSpace(link.DeviceID))
	if err != nil {
		return fmt.Errorf("%w: line %q", ErrUnknownLine, link.DeviceID)
	}
	on, err := ParseLevel(link.Payload)
	if err != nil {
		return err
	}
	return a.w.Set(offset, on)
}

// ParseLevel decodes on/off, 1/0, true/false or high/low, optionally as a
// JSON string.
func ParseLevel(s string) (bool, error) {
	s = strings.TrimSpace(s)
	var quoted string
	if json.Unmarshal([]byte(s), &quoted) == nil {
		s = quoted
	}
	switch strings.ToLower(s) {
	case "on", "1", "true", "high":
		return true, nil
	case "off", "0", "false", "low":
		return false, nil
	}
	return false, fmt.Errorf("%w: %q", ErrInvalidLevel, s)
}
