package widget

// slots is an append-only, capacity-bounded list keyed by name.
type slots[T any] struct {
	names    []string
	items    []T
	capacity int
}

func (s *slots[T]) find(name string) (int, bool) {
	for i, n := range s.names {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

func (s *slots[T]) ensure(name string, zero T) (int, bool) {
	if i, ok := s.find(name); ok {
		return i, true
	}
	if len(s.items) >= s.capacity {
		return 0, false
	}
	s.names = append(s.names, name)
	s.items = append(s.items, zero)
	return len(s.items) - 1, true
}

func (s *slots[T]) snapshot() []T {
	out := make([]T, len(s.items))
	copy(out, s.items)
	return out
}

// Registry holds the four widget collections.
// Not safe for concurrent use.
type Registry struct {
	buttons slots[Button]
	sliders slots[Slider]
	toggles slots[Toggle]
	rgbs    slots[RGB]
}

// NewRegistry creates a Registry with the given capacity per kind.
// A non-positive capacity selects DefaultCapacity.
func NewRegistry(capacity int) *Registry {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Registry{
		buttons: slots[Button]{capacity: capacity},
		sliders: slots[Slider]{capacity: capacity},
		toggles: slots[Toggle]{capacity: capacity},
		rgbs:    slots[RGB]{capacity: capacity},
	}
}

// Ensure returns the handle for name, creating a zero-valued entry if the kind
// has room. An existing entry is never reset. Returns false when the name is
// unknown and the kind is full.
func (r *Registry) Ensure(kind Kind, name string) (Handle, bool) {
	var (
		i  int
		ok bool
	)
	switch kind {
	case KindButton:
		i, ok = r.buttons.ensure(name, Button{Name: name})
	case KindSlider:
		i, ok = r.sliders.ensure(name, Slider{Name: name})
	case KindToggle:
		i, ok = r.toggles.ensure(name, Toggle{Name: name})
	case KindRGB:
		i, ok = r.rgbs.ensure(name, RGB{Name: name})
	}
	if !ok {
		return Handle{}, false
	}
	return Handle{Kind: kind, index: i}, true
}

// Find looks up name within a kind.
func (r *Registry) Find(kind Kind, name string) (Handle, bool) {
	var (
		i  int
		ok bool
	)
	switch kind {
	case KindButton:
		i, ok = r.buttons.find(name)
	case KindSlider:
		i, ok = r.sliders.find(name)
	case KindToggle:
		i, ok = r.toggles.find(name)
	case KindRGB:
		i, ok = r.rgbs.find(name)
	}
	if !ok {
		return Handle{}, false
	}
	return Handle{Kind: kind, index: i}, true
}

// Len returns the number of registered entries of a kind.
func (r *Registry) Len(kind Kind) int {
	switch kind {
	case KindButton:
		return len(r.buttons.items)
	case KindSlider:
		return len(r.sliders.items)
	case KindToggle:
		return len(r.toggles.items)
	case KindRGB:
		return len(r.rgbs.items)
	}
	return 0
}

// Full reports whether a kind has no free slots.
func (r *Registry) Full(kind Kind) bool {
	switch kind {
	case KindButton:
		return len(r.buttons.items) >= r.buttons.capacity
	case KindSlider:
		return len(r.sliders.items) >= r.sliders.capacity
	case KindToggle:
		return len(r.toggles.items) >= r.toggles.capacity
	case KindRGB:
		return len(r.rgbs.items) >= r.rgbs.capacity
	}
	return true
}

// Button returns the button at h.
func (r *Registry) Button(h Handle) Button { return r.buttons.items[h.index] }

// Slider returns the slider at h.
func (r *Registry) Slider(h Handle) Slider { return r.sliders.items[h.index] }

// Toggle returns the toggle at h.
func (r *Registry) Toggle(h Handle) Toggle { return r.toggles.items[h.index] }

// RGB returns the colour widget at h.
func (r *Registry) RGB(h Handle) RGB { return r.rgbs.items[h.index] }

// SetPressed updates a button. Releasing always clears the long-press flag.
func (r *Registry) SetPressed(h Handle, pressed, long bool) {
	b := &r.buttons.items[h.index]
	b.Pressed = pressed
	b.LongPress = pressed && long
}

// SetValue updates a slider.
func (r *Registry) SetValue(h Handle, v uint8) {
	r.sliders.items[h.index].Value = v
}

// SetOn updates a toggle.
func (r *Registry) SetOn(h Handle, on bool) {
	r.toggles.items[h.index].On = on
}

// SetChannels writes all three channels of an RGB widget.
func (r *Registry) SetChannels(h Handle, c [3]uint8) {
	r.rgbs.items[h.index].Channels = c
}

// Buttons returns the buttons in registration order.
func (r *Registry) Buttons() []Button { return r.buttons.snapshot() }

// Sliders returns the sliders in registration order.
func (r *Registry) Sliders() []Slider { return r.sliders.snapshot() }

// Toggles returns the toggles in registration order.
func (r *Registry) Toggles() []Toggle { return r.toggles.snapshot() }

// RGBs returns the colour widgets in registration order.
func (r *Registry) RGBs() []RGB { return r.rgbs.snapshot() }

// State returns a copy of every collection.
func (r *Registry) State() State {
	return State{
		Buttons: r.Buttons(),
		Sliders: r.Sliders(),
		Toggles: r.Toggles(),
		RGBs:    r.RGBs(),
	}
}
