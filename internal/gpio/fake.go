package gpio

import "fmt"

// FakeWriter is a test double that records line levels.
type FakeWriter struct {
	// Levels holds the last level set per offset.
	Levels map[int]bool

	// Writes records every Set call in order.
	Writes []Write

	// Lines, if non-nil, restricts which offsets may be set.
	Lines map[int]bool

	// SetError, if set, will be returned by Set.
	SetError error

	// Closed tracks if Close was called.
	Closed bool
}

// Write is one recorded Set call.
type Write struct {
	Offset int
	On     bool
}

// NewFakeWriter creates a FakeWriter. With no offsets, any line may be set.
func NewFakeWriter(offsets ...int) *FakeWriter {
	f := &FakeWriter{Levels: make(map[int]bool)}
	if len(offsets) > 0 {
		f.Lines = make(map[int]bool, len(offsets))
		for _, off := range offsets {
			f.Lines[off] = true
		}
	}
	return f
}

// Set records the level.
func (f *FakeWriter) Set(offset int, on bool) error {
	if f.SetError != nil {
		return f.SetError
	}
	if f.Lines != nil && !f.Lines[offset] {
		return fmt.Errorf("%w: %d", ErrUnknownLine, offset)
	}
	f.Levels[offset] = on
	f.Writes = append(f.Writes, Write{Offset: offset, On: on})
	return nil
}

// Close marks the writer as closed.
func (f *FakeWriter) Close() error {
	f.Closed = true
	return nil
}

// Reset clears recorded writes.
func (f *FakeWriter) Reset() {
	f.Levels = make(map[int]bool)
	f.Writes = nil
	f.SetError = nil
	f.Closed = false
}
