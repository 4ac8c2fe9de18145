package transport

// Fake is an in-memory Transport for tests. Inbound messages are queued in
// Inbound and consumed one per CheckAvailable call.
type Fake struct {
	// Inbound holds messages not yet delivered.
	Inbound []string

	// Sent records every frame passed to Send, in order.
	Sent []Frame

	// Up controls the return value of Connected.
	Up bool

	// ConnectResults scripts successive Connect results. When exhausted,
	// Connect returns Up.
	ConnectResults []bool

	// RunCalls counts Run invocations.
	RunCalls int

	// SendError, if set, is returned by Send and the frame is not recorded.
	SendError error

	// OnSend, if set, is called after a frame is recorded. Tests use it to
	// script replies.
	OnSend func(f Frame)

	current string
}

var _ Transport = (*Fake)(nil)

// NewFake creates a connected Fake with the given inbound queue.
func NewFake(inbound ...string) *Fake {
	return &Fake{Up: true, Inbound: inbound}
}

// Push queues an inbound message.
func (f *Fake) Push(msg string) {
	f.Inbound = append(f.Inbound, msg)
}

// Connected reports Up.
func (f *Fake) Connected() bool { return f.Up }

// Connect consumes the next scripted result.
func (f *Fake) Connect() bool {
	if len(f.ConnectResults) > 0 {
		f.Up = f.ConnectResults[0]
		f.ConnectResults = f.ConnectResults[1:]
	}
	return f.Up
}

// Run counts the call.
func (f *Fake) Run() { f.RunCalls++ }

// Send records the frame.
func (f *Fake) Send(fr Frame) error {
	if f.SendError != nil {
		return f.SendError
	}
	f.Sent = append(f.Sent, fr)
	if f.OnSend != nil {
		f.OnSend(fr)
	}
	return nil
}

// CheckAvailable pops the next inbound message.
func (f *Fake) CheckAvailable() bool {
	if len(f.Inbound) == 0 {
		return false
	}
	f.current = f.Inbound[0]
	f.Inbound = f.Inbound[1:]
	return true
}

// RawMessage returns the current message.
func (f *Fake) RawMessage() string { return f.current }

// Last returns the most recently sent frame.
func (f *Fake) Last() (Frame, bool) {
	if len(f.Sent) == 0 {
		return nil, false
	}
	return f.Sent[len(f.Sent)-1], true
}

// Reset clears recorded frames and queued messages.
func (f *Fake) Reset() {
	f.Inbound = nil
	f.Sent = nil
	f.RunCalls = 0
	f.SendError = nil
	f.current = ""
}
