//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealWriter drives output lines on actual hardware using the Linux GPIO
// character device.
type RealWriter struct {
	chip  *gpiocdev.Chip
	lines map[int]*gpiocdev.Line
}

// NewRealWriter requests the given offsets as outputs, initially inactive.
// With activeLow, logical on drives the line low.
func NewRealWriter(chipName string, offsets []int, activeLow bool) (*RealWriter, error) {
	if chipName == "" {
		chipName = DefaultChip
	}
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	w := &RealWriter{chip: chip, lines: make(map[int]*gpiocdev.Line, len(offsets))}
	for _, off := range offsets {
		opts := []gpiocdev.LineReqOption{gpiocdev.AsOutput(0)}
		if activeLow {
			opts = append(opts, gpiocdev.AsActiveLow)
		}
		line, err := chip.RequestLine(off, opts...)
		if err != nil {
			w.Close()
			return nil, fmt.Errorf("request line %d: %w", off, err)
		}
		w.lines[off] = line
	}
	return w, nil
}

// Set drives the line at offset.
func (w *RealWriter) Set(offset int, on bool) error {
	line, ok := w.lines[offset]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownLine, offset)
	}
	v := 0
	if on {
		v = 1
	}
	if err := line.SetValue(v); err != nil {
		return fmt.Errorf("set line %d: %w", offset, err)
	}
	return nil
}

// Close releases GPIO resources.
// Lines are returned to input with pull-down (the Pi boot default) before
// closing so attached relays are not left energised.
func (w *RealWriter) Close() error {
	var errs []error

	for off, line := range w.lines {
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure line %d: %w", off, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close line %d: %w", off, err))
		}
	}
	w.lines = nil
	if w.chip != nil {
		if err := w.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		w.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
