package racetest

import "sync/atomic"

// Outcome is the record of one target invocation. Immutable once
// created.
type Outcome struct {
	// Thread is the worker index, or -1 for the baseline phase.
	Thread int32 `json:"threadId"`
	// Iteration is the zero-based call index within the worker.
	Iteration int `json:"iteration"`
	// Success is true when the call returned a nil error and did not
	// panic.
	Success bool `json:"success"`
	// Error carries the error text or recovered panic, empty on
	// success.
	Error string `json:"error,omitempty"`
	// DurationNanos is the wall time of the call.
	DurationNanos int64 `json:"durationNanos"`
	// Fingerprint summarizes the returned value for pure targets.
	Fingerprint string `json:"resultFingerprint,omitempty"`
}

// outcomes is a fixed-capacity arena owned by one worker, readable
// while the worker is still running.
//
// The worker stores a slot and then publishes the new count with an
// atomic store; a reader loads the count and reads only slots below
// it. Slots are never rewritten, so a timed-out run can snapshot every
// arena without racing the workers it abandoned.
type outcomes struct {
	slots []Outcome
	n     atomic.Int32
}

func newOutcomes(capacity int) *outcomes {
	return &outcomes{slots: make([]Outcome, capacity)}
}

// append records one outcome. Single writer: the owning worker.
func (a *outcomes) append(o Outcome) {
	i := a.n.Load()
	if int(i) >= len(a.slots) {
		return
	}
	a.slots[i] = o
	a.n.Store(i + 1)
}

// snapshot copies the published outcomes. Safe concurrently with the
// owning worker.
func (a *outcomes) snapshot() []Outcome {
	k := a.n.Load()
	out := make([]Outcome, k)
	copy(out, a.slots[:k])
	return out
}
