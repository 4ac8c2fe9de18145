// Package gpio drives output lines used as linked actions.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "errors"

// DefaultChip is the GPIO chip used when none is configured.
const DefaultChip = "gpiochip0"

var (
	// ErrUnknownLine is returned when setting a line that was not requested.
	ErrUnknownLine = errors.New("gpio: line not configured")

	// ErrInvalidLevel is returned for a payload that is not a line level.
	ErrInvalidLevel = errors.New("gpio: invalid level")
)

// Writer drives GPIO output lines.
type Writer interface {
	// Set drives the line at offset to the logical level on.
	Set(offset int, on bool) error

	// Close releases GPIO resources.
	Close() error
}
