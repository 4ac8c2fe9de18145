// Package query pulls named fields out of raw inbound controller messages.
package query

import (
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Finder extracts fields from raw message text. Every method reports absence
// (or a value that cannot be decoded as requested) with a false second return.
type Finder interface {
	// String returns a scalar field as text. Booleans become "true"/"false".
	String(msg, field string) (string, bool)
	// Number returns an integral field. Numeric strings are accepted.
	Number(msg, field string) (int, bool)
	// Float returns a numeric field.
	Float(msg, field string) (float64, bool)
	// ArrayNumber returns element index of an array field as an integer.
	ArrayNumber(msg, field string, index int) (int, bool)
	// ArrayString returns element index of an array field as text.
	ArrayString(msg, field string, index int) (string, bool)
	// Contains reports whether the field is present at all.
	Contains(msg, field string) bool
	// Raw returns the unparsed text of a field's value.
	Raw(msg, field string) (string, bool)
}

// JSON finds fields in JSON messages. A field name matches at any depth;
// keys of the top-level object win over nested ones.
type JSON struct{}

var _ Finder = JSON{}

// String returns a string, number or boolean field as text.
func (JSON) String(msg, field string) (string, bool) {
	v, ok := lookup(msg, field)
	if !ok {
		return "", false
	}
	return scalarText(v)
}

// Number returns an integral number or numeric string field.
func (JSON) Number(msg, field string) (int, bool) {
	v, ok := lookup(msg, field)
	if !ok {
		return 0, false
	}
	return integer(v)
}

// Float returns a number or numeric string field.
func (JSON) Float(msg, field string) (float64, bool) {
	v, ok := lookup(msg, field)
	if !ok {
		return 0, false
	}
	switch v.Type {
	case gjson.Number:
		return v.Num, true
	case gjson.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// ArrayNumber returns element index of an array field as an integer.
func (JSON) ArrayNumber(msg, field string, index int) (int, bool) {
	v, ok := element(msg, field, index)
	if !ok {
		return 0, false
	}
	return integer(v)
}

// ArrayString returns element index of an array field as text.
func (JSON) ArrayString(msg, field string, index int) (string, bool) {
	v, ok := element(msg, field, index)
	if !ok {
		return "", false
	}
	return scalarText(v)
}

// Contains reports whether field appears anywhere in msg.
func (JSON) Contains(msg, field string) bool {
	_, ok := lookup(msg, field)
	return ok
}

// Raw returns the field value exactly as it appears in msg.
func (JSON) Raw(msg, field string) (string, bool) {
	v, ok := lookup(msg, field)
	if !ok {
		return "", false
	}
	return v.Raw, true
}

func lookup(msg, field string) (gjson.Result, bool) {
	if !gjson.Valid(msg) {
		return gjson.Result{}, false
	}
	return search(gjson.Parse(msg), field)
}

// search looks at the direct keys of v first, then descends.
func search(v gjson.Result, field string) (gjson.Result, bool) {
	if !v.IsObject() && !v.IsArray() {
		return gjson.Result{}, false
	}
	var (
		found gjson.Result
		ok    bool
	)
	if v.IsObject() {
		v.ForEach(func(k, val gjson.Result) bool {
			if k.String() == field {
				found, ok = val, true
				return false
			}
			return true
		})
		if ok {
			return found, true
		}
	}
	v.ForEach(func(_, val gjson.Result) bool {
		found, ok = search(val, field)
		return !ok
	})
	return found, ok
}

func element(msg, field string, index int) (gjson.Result, bool) {
	v, ok := lookup(msg, field)
	if !ok || !v.IsArray() || index < 0 {
		return gjson.Result{}, false
	}
	arr := v.Array()
	if index >= len(arr) {
		return gjson.Result{}, false
	}
	return arr[index], true
}

func scalarText(v gjson.Result) (string, bool) {
	switch v.Type {
	case gjson.String:
		return v.Str, true
	case gjson.Number:
		return v.Raw, true
	case gjson.True:
		return "true", true
	case gjson.False:
		return "false", true
	}
	return "", false
}

func integer(v gjson.Result) (int, bool) {
	switch v.Type {
	case gjson.Number:
		if v.Num != math.Trunc(v.Num) {
			return 0, false
		}
		return int(v.Num), true
	case gjson.String:
		n, err := strconv.Atoi(strings.TrimSpace(v.Str))
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}
