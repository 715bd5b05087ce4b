// Package access records reads and writes against tracked shared state.
//
// It is the instrumentation layer of the race-testing harness: shared
// values are wrapped in proxy cells (Var, List, Map) that forward every
// operation to the underlying value while appending an Event to a
// per-thread buffer owned by a Recorder.
//
// # Design
//
// The recorder deliberately contains no locks on its hot path. A lock
// inside the recorder would serialize the very accesses under test,
// masking real races and fabricating timing artifacts. Instead each
// worker thread owns a pre-allocated buffer exclusively; the only
// shared structure is a lock-free goroutine-ID routing map populated
// once per worker at attach time.
//
// Buffers are merged into a single time-sorted Log only after all
// workers have joined. The Log is frozen: analysis reads it, nothing
// writes it.
//
// # Quick Start
//
//	rec := access.NewRecorder(4, 1024)
//	counter := access.TrackVar(rec, "counter", 0)
//
//	// inside worker i, before the first tracked operation:
//	rec.Attach(i)
//	defer rec.Detach()
//
//	counter.Set(counter.Get() + 1) // emits Read then Write
//
//	// after all workers joined:
//	log := rec.Merge()
//
// # Limitations
//
// Tracked accesses are intentionally unsynchronized, so running a racy
// target under Go's built-in race detector reports the tracked accesses
// themselves; both detectors are observing the same hazard. Concurrent
// writers to a Map proxy may additionally trip the runtime's concurrent
// map write fault, which aborts the process before a verdict can be
// produced; prefer Var cells for state you expect to race.
package access
