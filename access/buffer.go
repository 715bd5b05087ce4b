package access

// buffer is a fixed-capacity event arena owned by exactly one worker.
//
// Appends are plain stores: the owning worker is the only writer, and
// readers only look at the buffer after the worker has joined, so the
// join is the sole synchronization point. When the arena is full the
// oldest slot is overwritten ring-style; the drop count is surfaced on
// the merged Log as RecorderOverflow rather than failing the run.
type buffer struct {
	thread int32
	slots  []Event
	// n counts total appends, not occupied slots. n % len(slots) is
	// the next write position once the ring has wrapped.
	n int
}

func newBuffer(thread int32, capacity int) *buffer {
	return &buffer{
		thread: thread,
		slots:  make([]Event, capacity),
	}
}

// append records one access. Hot path: one slot store and one counter
// increment, no allocation, no synchronization.
func (b *buffer) append(object string, kind Kind, ts int64) {
	b.slots[b.n%len(b.slots)] = Event{
		Object: object,
		Thread: b.thread,
		TS:     ts,
		Kind:   kind,
	}
	b.n++
}

// dropped reports how many events were overwritten by ring wraparound.
func (b *buffer) dropped() int {
	if b.n <= len(b.slots) {
		return 0
	}
	return b.n - len(b.slots)
}

// snapshot returns the surviving events in append order. Must only be
// called after the owning worker has joined.
func (b *buffer) snapshot() []Event {
	if b.n <= len(b.slots) {
		out := make([]Event, b.n)
		copy(out, b.slots[:b.n])
		return out
	}
	// Ring has wrapped: oldest surviving event sits at the write
	// position, the newest just before it.
	head := b.n % len(b.slots)
	out := make([]Event, 0, len(b.slots))
	out = append(out, b.slots[head:]...)
	out = append(out, b.slots[:head]...)
	return out
}

// reset clears the arena for reuse by a fresh run.
func (b *buffer) reset() {
	b.n = 0
}
