package device

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sweeney/widget-sync/internal/widget"
)

// field looks up a widget's value in the current message, once per cycle.
func (d *Device) field(kind widget.Kind, name string) (string, bool) {
	if !d.take(kind, name) {
		return "", false
	}
	return d.finder.String(d.msg, name)
}

func decodeButton(v string) (pressed, long, ok bool) {
	switch v {
	case ButtonTap:
		return true, false, true
	case ButtonPressed:
		return true, true, true
	case ButtonReleased:
		return false, false, true
	}
	return false, false, false
}

func decodeToggle(v string) (on, ok bool) {
	switch v {
	case ValueOn:
		return true, true
	case ValueOff:
		return false, true
	}
	return false, false
}

func onOff(on bool) string {
	if on {
		return ValueOn
	}
	return ValueOff
}

func byteRange(n int) bool { return n >= 0 && n <= 255 }

func rgbJSON(c [3]uint8) json.RawMessage {
	return json.RawMessage(fmt.Sprintf("[%d,%d,%d]", c[0], c[1], c[2]))
}

func (d *Device) malformed(kind widget.Kind, name string) {
	d.log.Debug("malformed widget value ignored", "kind", kind.String(), "name", name)
}

// updateButton applies a button field from the current message.
func (d *Device) updateButton(name string) (Change, bool) {
	v, ok := d.field(widget.KindButton, name)
	if !ok {
		return Change{}, false
	}
	pressed, long, ok := decodeButton(v)
	if !ok {
		d.malformed(widget.KindButton, name)
		return Change{}, false
	}
	h, ok := d.reg.Ensure(widget.KindButton, name)
	if !ok {
		return Change{}, false
	}
	d.reg.SetPressed(h, pressed, long)
	return Change{Kind: widget.KindButton.String(), Name: name, Value: v}, true
}

// Button reports whether the named button is pressed. A tap is cleared once
// read; a long press stays set until released. A value for the button in the
// current message is applied and echoed first.
func (d *Device) Button(name string) bool {
	if c, ok := d.updateButton(name); ok {
		d.accessorChange(c)
	}
	h, ok := d.reg.Ensure(widget.KindButton, name)
	if !ok {
		return false
	}
	b := d.reg.Button(h)
	if !b.LongPress {
		d.reg.SetPressed(h, false, false)
	}
	return b.Pressed
}

// updateSlider applies a slider field from the current message.
func (d *Device) updateSlider(name string, at time.Time) (Change, bool) {
	if !d.take(widget.KindSlider, name) {
		return Change{}, false
	}
	n, ok := d.finder.Number(d.msg, name)
	if !ok {
		if d.finder.Contains(d.msg, name) {
			d.malformed(widget.KindSlider, name)
		}
		return Change{}, false
	}
	if !byteRange(n) {
		d.malformed(widget.KindSlider, name)
		return Change{}, false
	}
	h, ok := d.reg.Ensure(widget.KindSlider, name)
	if !ok {
		return Change{}, false
	}
	d.reg.SetValue(h, uint8(n))
	if d.auto != nil {
		d.auto.ObserveSlider(name, uint8(n), at)
	}
	return Change{Kind: widget.KindSlider.String(), Name: name, Value: n}, true
}

// Slider returns the named slider's value.
func (d *Device) Slider(name string) uint8 {
	at := d.now()
	if c, ok := d.updateSlider(name, at); ok {
		d.accessorChange(c)
		h, _ := d.reg.Find(widget.KindSlider, name)
		return d.reg.Slider(h).Value
	}
	h, ok := d.reg.Ensure(widget.KindSlider, name)
	if !ok {
		return 0
	}
	v := d.reg.Slider(h).Value
	if d.auto != nil {
		d.auto.ObserveSlider(name, v, at)
	}
	return v
}

// updateToggle applies a toggle field from the current message.
func (d *Device) updateToggle(name string, at time.Time) (Change, bool) {
	v, ok := d.field(widget.KindToggle, name)
	if !ok {
		return Change{}, false
	}
	on, ok := decodeToggle(v)
	if !ok {
		d.malformed(widget.KindToggle, name)
		return Change{}, false
	}
	h, ok := d.reg.Ensure(widget.KindToggle, name)
	if !ok {
		return Change{}, false
	}
	d.reg.SetOn(h, on)
	if d.auto != nil {
		d.auto.ObserveToggle(name, on, at)
	}
	return Change{Kind: widget.KindToggle.String(), Name: name, Value: v}, true
}

// Toggle returns the named toggle's state.
func (d *Device) Toggle(name string) bool {
	at := d.now()
	if c, ok := d.updateToggle(name, at); ok {
		d.accessorChange(c)
		h, _ := d.reg.Find(widget.KindToggle, name)
		return d.reg.Toggle(h).On
	}
	h, ok := d.reg.Ensure(widget.KindToggle, name)
	if !ok {
		return false
	}
	on := d.reg.Toggle(h).On
	if d.auto != nil {
		d.auto.ObserveToggle(name, on, at)
	}
	return on
}

// updateRGB applies an RGB array field from the current message. All three
// channels are written together.
func (d *Device) updateRGB(name string) (Change, bool) {
	if !d.take(widget.KindRGB, name) || !d.finder.Contains(d.msg, name) {
		return Change{}, false
	}
	var c [3]uint8
	for i := range c {
		n, ok := d.finder.ArrayNumber(d.msg, name, i)
		if !ok || !byteRange(n) {
			d.malformed(widget.KindRGB, name)
			return Change{}, false
		}
		c[i] = uint8(n)
	}
	h, ok := d.reg.Ensure(widget.KindRGB, name)
	if !ok {
		return Change{}, false
	}
	d.reg.SetChannels(h, c)
	return Change{Kind: widget.KindRGB.String(), Name: name, Value: rgbJSON(c)}, true
}

// RGB returns one channel of the named colour widget.
func (d *Device) RGB(name string, ch widget.Channel) uint8 {
	if ch < widget.Red || ch > widget.Blue {
		return 0
	}
	if c, ok := d.updateRGB(name); ok {
		d.accessorChange(c)
	}
	h, ok := d.reg.Ensure(widget.KindRGB, name)
	if !ok {
		return 0
	}
	return d.reg.RGB(h).Channels[ch]
}
