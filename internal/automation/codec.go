package automation

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"math"
	"strings"
	"time"
)

// Packed word layout, most significant bit first:
//
//	31     enabled
//	30     logic (0 state, 1 numeric)
//	29-28  target state (0/1) or comparator (0 less, 1 equal, 2 greater)
//	27-22  debounce minutes (0-63)
//	21-11  window start minute (0-2047)
//	10-0   window end minute (0-2047)
const (
	enabledShift = 31
	logicShift   = 30
	targetShift  = 28
	targetMask   = 0x03
	debShift     = 22
	debMask      = 0x3f
	startShift   = 11
	minuteMask   = 0x7ff
)

// Record layout relative to the store's base address:
//
//	0      marker
//	1-4    packed word, little endian
//	5-8    numeric target, float32 little endian
//	9-10   link length n, little endian
//	11..   link text: device, type, payload separated by 0x1f
//	11+n   CRC-32 (IEEE) of bytes [0, 11+n), little endian
const (
	// Marker identifies an initialised record.
	Marker byte = 0x42

	headerSize = 11
	crcSize    = 4
	linkSep    = "\x1f"
)

var (
	// ErrNoRecord means the marker byte is missing: the region was never written.
	ErrNoRecord = errors.New("automation: no stored rule")
	// ErrCorrupt means the marker is present but the record does not verify.
	ErrCorrupt = errors.New("automation: stored rule corrupt")
	// ErrRecordTooLarge means the link text does not fit the record.
	ErrRecordTooLarge = errors.New("automation: rule record too large")
)

// Pack encodes everything except Target and Link into the 32-bit word.
// Debounce is truncated to whole minutes.
func Pack(r Rule) uint32 {
	var w uint32
	if r.Enabled {
		w |= 1 << enabledShift
	}
	w |= uint32(r.Logic&0x01) << logicShift
	if r.Logic == LogicState {
		if r.TargetState {
			w |= 1 << targetShift
		}
	} else {
		w |= uint32(r.Comparator&targetMask) << targetShift
	}
	w |= (uint32(r.Debounce/time.Minute) & debMask) << debShift
	w |= (uint32(r.Window.Start) & minuteMask) << startShift
	w |= uint32(r.Window.End) & minuteMask
	return w
}

// Unpack decodes a packed word. Target is only meaningful for numeric rules.
func Unpack(w uint32, target float64) Rule {
	r := Rule{
		Enabled:  w>>enabledShift&0x01 == 1,
		Logic:    Logic(w >> logicShift & 0x01),
		Debounce: time.Duration(w>>debShift&debMask) * time.Minute,
		Window: Window{
			Start: int(w >> startShift & minuteMask),
			End:   int(w & minuteMask),
		},
	}
	if r.Logic == LogicState {
		r.TargetState = w>>targetShift&targetMask != 0
	} else {
		r.Comparator = Comparator(w >> targetShift & targetMask)
		r.Target = target
	}
	return r
}

// MarshalRecord encodes a rule into its storage record. Fields that do not
// fit the packed word are rejected with ErrMalformedRule.
func MarshalRecord(r Rule, maxSize int) ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	link := strings.Join([]string{r.Link.DeviceID, r.Link.Type, r.Link.Payload}, linkSep)
	size := headerSize + len(link) + crcSize
	if len(link) > math.MaxUint16 || size > maxSize {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrRecordTooLarge, size, maxSize)
	}

	b := make([]byte, size)
	b[0] = Marker
	binary.LittleEndian.PutUint32(b[1:5], Pack(r))
	binary.LittleEndian.PutUint32(b[5:9], math.Float32bits(float32(r.Target)))
	binary.LittleEndian.PutUint16(b[9:11], uint16(len(link)))
	copy(b[headerSize:], link)
	binary.LittleEndian.PutUint32(b[size-crcSize:], crc32.ChecksumIEEE(b[:size-crcSize]))
	return b, nil
}

// recordLength returns the total record size announced by a header.
func recordLength(header []byte) (int, error) {
	if len(header) < headerSize || header[0] != Marker {
		return 0, ErrNoRecord
	}
	return headerSize + int(binary.LittleEndian.Uint16(header[9:11])) + crcSize, nil
}

// UnmarshalRecord decodes a complete record.
func UnmarshalRecord(b []byte) (Rule, error) {
	n, err := recordLength(b)
	if err != nil {
		return Rule{}, err
	}
	if len(b) < n {
		return Rule{}, fmt.Errorf("%w: truncated", ErrCorrupt)
	}
	b = b[:n]
	if crc32.ChecksumIEEE(b[:n-crcSize]) != binary.LittleEndian.Uint32(b[n-crcSize:]) {
		return Rule{}, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}

	target := float64(math.Float32frombits(binary.LittleEndian.Uint32(b[5:9])))
	r := Unpack(binary.LittleEndian.Uint32(b[1:5]), target)

	parts := strings.SplitN(string(b[headerSize:n-crcSize]), linkSep, 3)
	if len(parts) != 3 {
		return Rule{}, fmt.Errorf("%w: malformed link", ErrCorrupt)
	}
	r.Link = Link{DeviceID: parts[0], Type: parts[1], Payload: parts[2]}
	return r, nil
}
