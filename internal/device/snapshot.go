package device

import (
	"github.com/sweeney/widget-sync/internal/transport"
	"github.com/sweeney/widget-sync/internal/widget"
)

// Snapshot builds the state frame: the state tag, then every toggle, slider
// and RGB widget in registration order. Buttons are not included.
func (d *Device) Snapshot() transport.Frame {
	f := transport.Single(FieldState, d.stateTag)
	for _, t := range d.reg.Toggles() {
		f = f.Add(t.Name, onOff(t.On))
	}
	for _, s := range d.reg.Sliders() {
		f = f.Add(s.Name, int(s.Value))
	}
	for _, c := range d.reg.RGBs() {
		f = f.Add(c.Name, rgbJSON(c.Channels))
	}
	return f
}

// EmitState sends the snapshot frame.
func (d *Device) EmitState() error {
	if d.tr == nil {
		return transport.ErrNotConnected
	}
	return d.tr.Send(d.Snapshot())
}

// echo sends the changed widget values in one frame.
func (d *Device) echo(changes []Change) {
	var f transport.Frame
	for _, c := range changes {
		switch c.Kind {
		case widget.KindButton.String(), widget.KindSlider.String(),
			widget.KindToggle.String(), widget.KindRGB.String():
			f = f.Add(c.Name, c.Value)
		}
	}
	if len(f) > 0 {
		d.send(f)
	}
}
