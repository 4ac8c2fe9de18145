// Package storage provides a small byte-addressable persistent image, modelled
// on microcontroller EEPROM: reads and writes address a fixed-size region and
// only Commit makes writes durable.
package storage

import (
	"errors"
	"fmt"
)

// DefaultSize is the size of the image in bytes.
const DefaultSize = 256

// erased is the value of a byte that has never been written.
const erased = 0xFF

// ErrOutOfRange is returned when an access falls outside the image.
var ErrOutOfRange = errors.New("storage: address out of range")

// Blocks is a byte-addressable persistent image.
type Blocks interface {
	// ReadBlock returns a copy of size bytes starting at addr.
	ReadBlock(addr, size int) ([]byte, error)

	// WriteBlock stages data at addr. It is not durable until Commit.
	WriteBlock(addr int, data []byte) error

	// Commit persists staged writes.
	Commit() error
}

// image is the in-memory buffer shared by every implementation.
type image struct {
	buf []byte
}

func newImage(size int) image {
	if size <= 0 {
		size = DefaultSize
	}
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = erased
	}
	return image{buf: buf}
}

func (im *image) check(addr, size int) error {
	if addr < 0 || size < 0 || addr+size > len(im.buf) {
		return fmt.Errorf("%w: [%d,%d) of %d", ErrOutOfRange, addr, addr+size, len(im.buf))
	}
	return nil
}

func (im *image) read(addr, size int) ([]byte, error) {
	if err := im.check(addr, size); err != nil {
		return nil, err
	}
	out := make([]byte, size)
	copy(out, im.buf[addr:addr+size])
	return out, nil
}

func (im *image) write(addr int, data []byte) error {
	if err := im.check(addr, len(data)); err != nil {
		return err
	}
	copy(im.buf[addr:], data)
	return nil
}

// Memory is a volatile image. Commit only counts calls; it is used in tests
// and when no storage path is configured.
type Memory struct {
	image
	// Commits counts successful Commit calls.
	Commits int
	// CommitError, if set, is returned by Commit.
	CommitError error
}

// NewMemory creates an erased image of the given size.
func NewMemory(size int) *Memory {
	return &Memory{image: newImage(size)}
}

// ReadBlock returns a copy of size bytes at addr.
func (m *Memory) ReadBlock(addr, size int) ([]byte, error) { return m.read(addr, size) }

// WriteBlock writes data at addr.
func (m *Memory) WriteBlock(addr int, data []byte) error { return m.write(addr, data) }

// Commit records the call.
func (m *Memory) Commit() error {
	if m.CommitError != nil {
		return m.CommitError
	}
	m.Commits++
	return nil
}
