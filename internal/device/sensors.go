package device

import (
	"context"
	"fmt"
	"time"

	"github.com/sweeney/widget-sync/internal/transport"
)

// Joystick axes.
type Axis int

const (
	AxisX Axis = iota
	AxisY
)

// Attitude angles reported by the controller's orientation sensor.
type Angle int

const (
	Yaw Angle = iota
	Pitch
	Roll
)

// GPS coordinates.
type Coord int

const (
	Longitude Coord = iota
	Latitude
)

const (
	// JoystickCentre is the axis value before any joystick input.
	JoystickCentre = 128
	// GPSUnknown is the coordinate text before any fix.
	GPSUnknown = "0.000000"
	// GPSRequestInterval limits how often reads ask the controller for a fix.
	GPSRequestInterval = 30 * time.Second
	// DefaultVibrate and MaxVibrate bound the vibrate command.
	DefaultVibrate = 200 * time.Millisecond
	MaxVibrate     = time.Second
)

// Sensors holds the controller-side inputs that are not registry widgets.
type Sensors struct {
	Joystick [2]uint8
	Attitude [3]int
	GPS      [2]string
}

func defaultSensors() Sensors {
	return Sensors{
		Joystick: [2]uint8{JoystickCentre, JoystickCentre},
		GPS:      [2]string{GPSUnknown, GPSUnknown},
	}
}

// Sensors returns a copy of the joystick, attitude and GPS values.
func (d *Device) Sensors() Sensors { return d.sensors }

func (d *Device) updateJoystick() (Change, bool) {
	if d.msg == "" || !d.finder.Contains(d.msg, FieldJoy) {
		return Change{}, false
	}
	var v [2]uint8
	for i := range v {
		n, ok := d.finder.ArrayNumber(d.msg, FieldJoy, i)
		if !ok || !byteRange(n) {
			return Change{}, false
		}
		v[i] = uint8(n)
	}
	d.sensors.Joystick = v
	return Change{Kind: FieldJoy, Name: FieldJoy, Value: v}, true
}

// Joystick returns one joystick axis.
func (d *Device) Joystick(axis Axis) uint8 {
	d.updateJoystick()
	if axis < AxisX || axis > AxisY {
		return 0
	}
	return d.sensors.Joystick[axis]
}

func (d *Device) updateAttitude() (Change, bool) {
	if d.msg == "" || !d.finder.Contains(d.msg, FieldAHRS) {
		return Change{}, false
	}
	var v [3]int
	for i := range v {
		n, ok := d.finder.ArrayNumber(d.msg, FieldAHRS, i)
		if !ok {
			return Change{}, false
		}
		v[i] = n
	}
	d.sensors.Attitude = v
	return Change{Kind: FieldAHRS, Name: FieldAHRS, Value: v}, true
}

// Attitude returns one orientation angle. It is zero until the stream is
// attached.
func (d *Device) Attitude(a Angle) int {
	d.updateAttitude()
	if a < Yaw || a > Roll {
		return 0
	}
	return d.sensors.Attitude[a]
}

func (d *Device) updateGPS() (Change, bool) {
	if d.msg == "" {
		return Change{}, false
	}
	var v [2]string
	for i := range v {
		s, ok := d.finder.ArrayString(d.msg, FieldGPS, i)
		if !ok || s == "" {
			return Change{}, false
		}
		v[i] = s
	}
	d.sensors.GPS = v
	return Change{Kind: FieldGPS, Name: FieldGPS, Value: v}, true
}

// GPS returns one coordinate of the last fix. Reads ask the controller for a
// new fix at most once per GPSRequestInterval; the answer arrives with a later
// message.
func (d *Device) GPS(c Coord) string {
	if now := d.now(); d.gpsRequested.IsZero() || now.Sub(d.gpsRequested) >= GPSRequestInterval {
		d.send(transport.Single(FieldGet, FieldGPS))
		d.gpsRequested = now
	}
	d.updateGPS()
	if c < Longitude || c > Latitude {
		return ""
	}
	return d.sensors.GPS[c]
}

// Vibrate asks the controller to vibrate for dur. Zero or negative means
// DefaultVibrate; longer than MaxVibrate is clamped.
func (d *Device) Vibrate(dur time.Duration) {
	switch {
	case dur <= 0:
		dur = DefaultVibrate
	case dur > MaxVibrate:
		dur = MaxVibrate
	}
	d.send(transport.Single(FieldVibrate, dur.Milliseconds()))
}

// HandshakeOptions bounds AttachAttitude.
type HandshakeOptions struct {
	// Timeout is how long each attempt waits for a reply.
	Timeout time.Duration
	// MaxAttempts bounds the number of requests. Zero means unbounded;
	// the context still applies.
	MaxAttempts int
	// Interval is the transport polling period.
	Interval time.Duration
}

// DefaultHandshake waits 10s per attempt, up to 3 attempts.
var DefaultHandshake = HandshakeOptions{
	Timeout:     10 * time.Second,
	MaxAttempts: 3,
	Interval:    10 * time.Millisecond,
}

// AttachAttitude asks the controller to stream orientation data and waits
// until a message carrying it arrives. The request is repeated after each
// attempt times out. Other messages received meanwhile are processed
// normally.
func (d *Device) AttachAttitude(ctx context.Context, opts HandshakeOptions) error {
	if d.tr == nil {
		return fmt.Errorf("%w: %w", ErrHandshakeFailed, transport.ErrNotConnected)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultHandshake.Timeout
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultHandshake.Interval
	}

	tick := time.NewTicker(opts.Interval)
	defer tick.Stop()

	for attempt := 1; opts.MaxAttempts == 0 || attempt <= opts.MaxAttempts; attempt++ {
		d.send(transport.Single(FieldAHRS, ValueOn))
		timer := time.NewTimer(opts.Timeout)

	wait:
		for {
			d.tr.Run()
			for d.tr.CheckAvailable() {
				msg := d.tr.RawMessage()
				attached := d.finder.Contains(msg, FieldAHRS)
				d.Process(msg)
				if attached {
					timer.Stop()
					d.log.Info("attitude stream attached", "attempt", attempt)
					return nil
				}
			}
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("%w: %w", ErrHandshakeFailed, ctx.Err())
			case <-timer.C:
				d.log.Warn("attitude attach timed out, retrying", "attempt", attempt)
				break wait
			case <-tick.C:
			}
		}
	}
	return fmt.Errorf("%w: no reply after %d attempts", ErrHandshakeFailed, opts.MaxAttempts)
}

// DetachAttitude stops the orientation stream and zeroes the angles.
func (d *Device) DetachAttitude() {
	d.send(transport.Single(FieldAHRS, ValueOff))
	d.sensors.Attitude = [3]int{}
}
