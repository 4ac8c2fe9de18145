package mqtt

// queued is a serialized publish held for replay after reconnection.
type queued struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// ringBuffer is a fixed-capacity FIFO that holds publishes while offline.
// When full, the oldest entry is overwritten. Not safe for concurrent use.
type ringBuffer struct {
	buf      []queued
	capacity int
	head     int // next write position
	count    int
	dropped  int // entries overwritten since the last drain
}

func newRingBuffer(capacity int) *ringBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &ringBuffer{
		buf:      make([]queued, capacity),
		capacity: capacity,
	}
}

// push stores msg and reports whether an older entry was overwritten.
func (r *ringBuffer) push(msg queued) bool {
	r.buf[r.head] = msg
	r.head = (r.head + 1) % r.capacity
	if r.count == r.capacity {
		r.dropped++
		return true
	}
	r.count++
	return false
}

// drainAll returns the held entries oldest first and empties the buffer.
func (r *ringBuffer) drainAll() []queued {
	if r.count == 0 {
		return nil
	}

	result := make([]queued, r.count)
	start := (r.head - r.count + r.capacity) % r.capacity
	for i := 0; i < r.count; i++ {
		result[i] = r.buf[(start+i)%r.capacity]
	}

	r.count = 0
	r.head = 0
	r.dropped = 0
	return result
}

func (r *ringBuffer) len() int {
	return r.count
}
