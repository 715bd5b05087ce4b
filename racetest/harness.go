package racetest

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kolkov/racehound/access"
	"github.com/kolkov/racehound/conflict"
)

// baselineThread marks outcomes produced by the single-threaded
// reference phase.
const baselineThread int32 = -1

// Harness runs a target under controlled contention and aggregates
// the evidence into a Result.
//
// A harness owns one Recorder: tracked state created through Track
// routes its events here. Runs are sequential; Run returns
// ErrHarnessBusy if one is already in flight and ErrHarnessTainted
// once a run has timed out, because abandoned daemon workers may still
// be writing their buffers.
type Harness struct {
	opts     Options
	rec      *access.Recorder
	analyzer *conflict.Analyzer
	running  atomic.Bool
	tainted  atomic.Bool
}

// New validates the options and builds a harness with its recorder
// and analyzer.
func New(opts Options) (*Harness, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Harness{
		opts: opts,
		rec:  access.NewRecorder(opts.Threads, opts.EventBufferSize),
		analyzer: &conflict.Analyzer{
			Epsilon:      opts.Epsilon,
			MaxWindow:    opts.MaxWindow,
			MaxConflicts: opts.MaxConflicts,
		},
	}, nil
}

// Recorder exposes the run's recorder for callers that build proxies
// with the access package directly.
func (h *Harness) Recorder() *access.Recorder { return h.rec }

// Track wraps an initial value in an instrumented cell whose events
// feed this harness. Methods cannot be generic, hence the free
// functions.
func Track[T any](h *Harness, id string, initial T) *access.Var[T] {
	return access.TrackVar(h.rec, id, initial)
}

// TrackList wraps a slice in an instrumented cell bound to this
// harness.
func TrackList[T any](h *Harness, id string, initial []T) *access.List[T] {
	return access.TrackList(h.rec, id, initial)
}

// TrackMap wraps a map in an instrumented cell bound to this harness.
func TrackMap[K comparable, V any](h *Harness, id string, initial map[K]V) *access.Map[K, V] {
	return access.TrackMap(h.rec, id, initial)
}

// Run executes the full pipeline: concurrent phase, single-threaded
// baseline, conflict analysis, verdict. The error return covers
// harness infrastructure only; target errors and timeouts are
// reported through the Result.
//
// Run never blocks past Options.Timeout (plus scheduling slack):
// workers that ignore the cancellation flag are abandoned as daemons
// and their event buffers are excluded from analysis. Cancelling ctx
// aborts collection the same way the deadline does.
func (h *Harness) Run(ctx context.Context, target Target) (*Result, error) {
	if target == nil {
		return nil, ErrNilTarget
	}
	if h.tainted.Load() {
		return nil, ErrHarnessTainted
	}
	if !h.running.CompareAndSwap(false, true) {
		return nil, ErrHarnessBusy
	}
	defer h.running.Store(false)

	if ctx == nil {
		ctx = context.Background()
	}
	runID := uuid.NewString()
	log := h.opts.Logger.With("runId", runID)
	deadline := time.Now().Add(h.opts.Timeout)

	h.rec.Reset()
	log.Debug("concurrent phase starting",
		"threads", h.opts.Threads, "iterations", h.opts.Iterations)

	conc := h.runConcurrent(ctx, target, deadline)
	if conc.err != nil {
		return nil, conc.err
	}
	status := conc.status
	log.Debug("concurrent phase done",
		"status", status.String(), "outcomes", len(conc.outcomes))

	var baseline []Outcome
	baselineRan := false
	if status == Completed {
		b := h.runBaseline(ctx, target, deadline)
		baseline = b.outcomes
		baselineRan = b.completed
		if !b.completed {
			status = Timeout
		}
		log.Debug("baseline phase done",
			"completed", b.completed, "outcomes", len(baseline))
	}

	if status == Timeout {
		h.tainted.Store(true)
		log.Warn("run timed out; harness tainted",
			"joined", len(conc.joined), "threads", h.opts.Threads)
	}

	accessLog := h.rec.Merge(conc.joined...)
	conflicts, conflictsTruncated := h.analyzer.Analyze(accessLog)
	if accessLog.Truncated {
		log.Warn("recorder overflow; oldest events dropped",
			"dropped", accessLog.Dropped)
	}

	res := buildResult(runID, &h.opts, status, conc.wall,
		conc.outcomes, baseline, baselineRan,
		conflicts, conflictsTruncated, accessLog.Truncated)
	log.Debug("run finished",
		"raceDetected", res.RaceDetected, "reason", res.Reason.String(),
		"conflicts", len(res.Conflicts), "failures", res.FailureCount)
	return res, nil
}

// concurrentPhase is what runConcurrent hands back to Run.
type concurrentPhase struct {
	outcomes []Outcome
	joined   []int
	status   Status
	wall     time.Duration
	err      error
}

// runConcurrent spawns the workers, releases them through the barrier
// and collects whatever the deadline allows.
func (h *Harness) runConcurrent(ctx context.Context, target Target, deadline time.Time) concurrentPhase {
	n := h.opts.Threads
	iters := h.opts.Iterations

	arenas := make([]*outcomes, n)
	for i := range arenas {
		arenas[i] = newOutcomes(iters)
	}
	joined := make([]atomic.Bool, n)

	var cancel atomic.Bool
	start := make(chan struct{}) // Barrier: closed once all workers are ready.
	var ready, workers sync.WaitGroup
	errCh := make(chan error, n)

	ready.Add(n)
	workers.Add(n)
	for i := 0; i < n; i++ {
		go func(idx int) {
			defer workers.Done()
			// Dedicated OS thread per worker: the defect class under
			// test is preemption-induced interleaving, not cooperative
			// switching.
			runtime.LockOSThread()
			if err := h.rec.Attach(idx); err != nil {
				errCh <- fmt.Errorf("racetest: attach worker %d: %w", idx, err)
				ready.Done()
				return
			}
			defer h.rec.Detach()
			ready.Done()
			<-start
			for it := 0; it < iters; it++ {
				if cancel.Load() {
					break
				}
				arenas[idx].append(invoke(target, int32(idx), it, h.opts.Pure))
			}
			joined[idx].Store(true)
		}(i)
	}

	ready.Wait()
	select {
	case err := <-errCh:
		// Infrastructure failure before the barrier: release and
		// cancel everyone, then propagate.
		cancel.Store(true)
		close(start)
		workers.Wait()
		return concurrentPhase{err: err}
	default:
	}

	t0 := time.Now()
	close(start)

	doneCh := make(chan struct{})
	go func() {
		workers.Wait()
		close(doneCh)
	}()

	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	status := Completed
	select {
	case <-doneCh:
	case <-timer.C:
		cancel.Store(true)
		status = Timeout
	case <-ctx.Done():
		cancel.Store(true)
		status = Timeout
	}
	wall := time.Since(t0)

	var out []Outcome
	var joinedIdx []int
	for i := 0; i < n; i++ {
		out = append(out, arenas[i].snapshot()...)
		if joined[i].Load() {
			joinedIdx = append(joinedIdx, i)
		}
	}
	return concurrentPhase{outcomes: out, joined: joinedIdx, status: status, wall: wall}
}

// baselinePhase is what runBaseline hands back to Run.
type baselinePhase struct {
	outcomes  []Outcome
	completed bool
}

// runBaseline replays the same iteration count on one worker. It runs
// after the concurrent phase so first-touch state (lazy singletons)
// is exercised cold by the phase that matters, and it stays off the
// recorder: baseline accesses never reach the log. Bounded by the
// same run deadline.
func (h *Harness) runBaseline(ctx context.Context, target Target, deadline time.Time) baselinePhase {
	iters := h.opts.Iterations
	arena := newOutcomes(iters)

	var cancel atomic.Bool
	done := make(chan struct{})
	go func() {
		defer close(done)
		runtime.LockOSThread()
		for it := 0; it < iters; it++ {
			if cancel.Load() {
				return
			}
			arena.append(invoke(target, baselineThread, it, h.opts.Pure))
		}
	}()

	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	completed := true
	select {
	case <-done:
	case <-timer.C:
		cancel.Store(true)
		completed = false
	case <-ctx.Done():
		cancel.Store(true)
		completed = false
	}
	return baselinePhase{outcomes: arena.snapshot(), completed: completed}
}

// invoke times one target call and folds it into an Outcome. Panics
// count as failures, never crash the worker.
func invoke(target Target, thread int32, iteration int, pure bool) Outcome {
	t0 := time.Now()
	val, err := call(target)
	d := time.Since(t0)

	o := Outcome{Thread: thread, Iteration: iteration, DurationNanos: d.Nanoseconds()}
	if err != nil {
		o.Error = err.Error()
		return o
	}
	o.Success = true
	if pure {
		o.Fingerprint = fingerprintOf(val)
	}
	return o
}

func call(target Target) (val any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return target()
}
