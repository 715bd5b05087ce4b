package access

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/petermattis/goid"
)

// DefaultBufferCapacity is the per-thread event capacity used when the
// caller does not specify one. At 24 bytes per Event this keeps a
// default 8-thread run under 1 MiB of arena memory.
const DefaultBufferCapacity = 4096

// ErrBadThread is returned by Attach when the thread index does not
// name a pre-allocated buffer.
var ErrBadThread = errors.New("access: thread index out of range")

// Recorder owns the per-thread event buffers for one stress-test run.
//
// Lifecycle:
//  1. NewRecorder allocates one arena per worker thread.
//  2. Each worker calls Attach(i) from its own goroutine before the
//     first tracked operation, and Detach on the way out.
//  3. Proxies route events to the calling worker's arena.
//  4. After the workers join, Merge produces the frozen Log.
//
// Thread Safety: Attach, Detach and the proxy-facing record path are
// safe for concurrent use. The routing map is a sync.Map keyed by
// goroutine ID; lookups on the hot path are lock-free for attached
// workers. Merge and Reset must only be called while no worker is
// actively recording.
//
// Performance: one recorded access costs a goroutine-ID read, one
// lock-free map lookup, one monotonic clock read and one slot store.
// No allocation after construction.
type Recorder struct {
	buffers []*buffer
	// workers routes a goroutine ID to its attached arena. Entries
	// exist only between Attach and Detach, so accesses from
	// unattached goroutines (the single-threaded baseline phase, or
	// stray callers) are dropped rather than mixed into the log.
	workers sync.Map // int64 → *buffer
	base    time.Time
}

// NewRecorder allocates arenas for the given number of worker threads.
//
// threads below 1 is treated as 1. capacity below 1 falls back to
// DefaultBufferCapacity. The monotonic timestamp base is captured here;
// all events are stamped relative to it.
func NewRecorder(threads, capacity int) *Recorder {
	if threads < 1 {
		threads = 1
	}
	if capacity < 1 {
		capacity = DefaultBufferCapacity
	}
	r := &Recorder{
		buffers: make([]*buffer, threads),
		base:    time.Now(),
	}
	for i := range r.buffers {
		r.buffers[i] = newBuffer(int32(i), capacity)
	}
	return r
}

// Threads returns the number of pre-allocated worker arenas.
func (r *Recorder) Threads() int { return len(r.buffers) }

// Attach binds the calling goroutine to the buffer for thread index i.
//
// Must be called from the worker goroutine itself: the binding is
// keyed by the caller's goroutine ID. Attaching a second goroutine to
// the same index is allowed (the baseline phase reuses index 0) but
// two goroutines must not record through the same index concurrently.
//
// Returns ErrBadThread if i does not name a pre-allocated buffer.
func (r *Recorder) Attach(i int) error {
	if i < 0 || i >= len(r.buffers) {
		return fmt.Errorf("%w: %d of %d", ErrBadThread, i, len(r.buffers))
	}
	r.workers.Store(goid.Get(), r.buffers[i])
	return nil
}

// Detach removes the calling goroutine's binding. Safe to call when
// not attached.
func (r *Recorder) Detach() {
	r.workers.Delete(goid.Get())
}

// record is the proxy-facing hot path. Events from goroutines that
// never attached are dropped on purpose.
func (r *Recorder) record(object string, kind Kind) {
	v, ok := r.workers.Load(goid.Get())
	if !ok {
		return
	}
	v.(*buffer).append(object, kind, time.Since(r.base).Nanoseconds())
}

// Merge assembles the frozen Log from the per-thread arenas.
//
// With no arguments every arena is merged; this requires all workers
// to have joined first. Passing explicit thread indices merges only
// those arenas, which is how a timed-out run excludes workers that are
// still executing (their buffers cannot be read safely).
//
// Events are concatenated in thread-index order and stably sorted by
// timestamp, so the merged order is deterministic for a fixed set of
// captured events. Out-of-range indices are ignored.
func (r *Recorder) Merge(threads ...int) *Log {
	picked := r.buffers
	if len(threads) > 0 {
		picked = make([]*buffer, 0, len(threads))
		for _, i := range threads {
			if i >= 0 && i < len(r.buffers) {
				picked = append(picked, r.buffers[i])
			}
		}
	}

	total, dropped := 0, 0
	for _, b := range picked {
		if b.n < len(b.slots) {
			total += b.n
		} else {
			total += len(b.slots)
		}
		dropped += b.dropped()
	}

	events := make([]Event, 0, total)
	for _, b := range picked {
		events = append(events, b.snapshot()...)
	}
	sortEvents(events)

	return &Log{
		Events:    events,
		Dropped:   dropped,
		Truncated: dropped > 0,
	}
}

// Reset clears every arena and restarts the timestamp base so the
// recorder can serve a fresh run. Must not be called while any worker
// is attached and recording.
func (r *Recorder) Reset() {
	for _, b := range r.buffers {
		b.reset()
	}
	r.base = time.Now()
}
