package automation

import (
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/widget-sync/internal/query"
)

// Rule-set command fields.
const (
	FieldSet         = "set"
	FieldAuto        = "auto"
	FieldLogicType   = "logicType"
	FieldTargetState = "targetState"
	FieldCompareType = "compareType"
	FieldTargetData  = "targetData"
	FieldDuration    = "duration"
	FieldTimeSlot    = "timeSlot"
	FieldLinkDevice  = "linkDevice"
	FieldLinkType    = "linkType"
	FieldLinkData    = "linkData"
)

// ErrMalformedRule is returned for a rule-set command or rule that cannot be
// applied or stored.
var ErrMalformedRule = errors.New("automation: malformed rule")

// IsRuleSet reports whether msg is a rule-set command.
func IsRuleSet(f query.Finder, msg string) bool {
	return f.Contains(msg, FieldSet) && f.Contains(msg, FieldAuto)
}

// ParseRuleSet decodes a rule-set command. It must only be called when
// IsRuleSet is true. Every field of the returned rule comes from msg.
func ParseRuleSet(f query.Finder, msg string) (Rule, error) {
	var r Rule

	auto, _ := f.String(msg, FieldAuto)
	r.Enabled = auto == "true"

	logic, ok := f.String(msg, FieldLogicType)
	if !ok {
		return Rule{}, fmt.Errorf("%w: missing %s", ErrMalformedRule, FieldLogicType)
	}
	switch logic {
	case "state":
		r.Logic = LogicState
		target, _ := f.String(msg, FieldTargetState)
		switch target {
		case "on":
			r.TargetState = true
		case "off":
			r.TargetState = false
		default:
			return Rule{}, fmt.Errorf("%w: %s %q", ErrMalformedRule, FieldTargetState, target)
		}
	case "numeric", "numberic":
		r.Logic = LogicNumeric
		cmp, _ := f.String(msg, FieldCompareType)
		switch cmp {
		case "less":
			r.Comparator = Less
		case "equal":
			r.Comparator = Equal
		case "greater":
			r.Comparator = Greater
		default:
			return Rule{}, fmt.Errorf("%w: %s %q", ErrMalformedRule, FieldCompareType, cmp)
		}
		target, ok := f.Float(msg, FieldTargetData)
		if !ok {
			return Rule{}, fmt.Errorf("%w: missing %s", ErrMalformedRule, FieldTargetData)
		}
		r.Target = target
	default:
		return Rule{}, fmt.Errorf("%w: %s %q", ErrMalformedRule, FieldLogicType, logic)
	}

	if minutes, ok := f.Number(msg, FieldDuration); ok {
		d := time.Duration(minutes) * time.Minute
		if d < 0 || d > MaxDebounce {
			return Rule{}, fmt.Errorf("%w: %s %d out of range", ErrMalformedRule, FieldDuration, minutes)
		}
		r.Debounce = d
	}

	r.Window = FullDay
	if start, ok := f.ArrayNumber(msg, FieldTimeSlot, 0); ok {
		end, ok := f.ArrayNumber(msg, FieldTimeSlot, 1)
		if !ok || !validMinute(start) || !validMinute(end) {
			return Rule{}, fmt.Errorf("%w: %s", ErrMalformedRule, FieldTimeSlot)
		}
		r.Window = Window{Start: start, End: end}
	}

	r.Link.DeviceID, _ = f.String(msg, FieldLinkDevice)
	r.Link.Type, _ = f.String(msg, FieldLinkType)
	if data, ok := f.String(msg, FieldLinkData); ok {
		r.Link.Payload = data
	} else if raw, ok := f.Raw(msg, FieldLinkData); ok {
		r.Link.Payload = raw
	}
	return r.Normalize(), nil
}

func validMinute(m int) bool {
	return m >= 0 && m <= MinutesPerDay
}
