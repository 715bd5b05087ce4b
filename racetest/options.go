package racetest

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Target is the callable under test. It takes no arguments; fixture
// state is bound by closure. The returned value participates in
// fingerprint comparison when Options.Pure is set, and a non-nil error
// (or a recovered panic) marks the invocation failed. Both are
// recorded per invocation and never abort the run.
type Target func() (any, error)

// Validation errors returned by New and Run.
var (
	// ErrInvalidOptions reports an Options field outside its contract.
	ErrInvalidOptions = errors.New("racetest: invalid options")
	// ErrNilTarget reports a nil target passed to Run.
	ErrNilTarget = errors.New("racetest: nil target")
	// ErrHarnessBusy reports a Run while another Run is in flight.
	ErrHarnessBusy = errors.New("racetest: run already in progress")
	// ErrHarnessTainted reports reuse of a harness whose previous run
	// timed out and may have abandoned daemon workers.
	ErrHarnessTainted = errors.New("racetest: harness tainted by timed-out run")
)

// Default option values applied by New.
const (
	DefaultTimeout        = 30 * time.Second
	DefaultVarianceFactor = 10.0
)

// Options configures a Harness.
type Options struct {
	// Threads is the number of concurrent workers. Must be >= 1.
	Threads int
	// Iterations is the number of target calls per worker. Must be >= 1.
	Iterations int
	// Timeout bounds the whole run, concurrent phase and baseline
	// included. Zero means DefaultTimeout.
	Timeout time.Duration
	// Epsilon is the conflict window handed to the analyzer. Zero
	// means the analyzer default (1µs).
	Epsilon time.Duration
	// Pure declares that the target returns the same value on every
	// call absent races, enabling the fingerprint-divergence rule.
	Pure bool
	// VarianceFactor is the contention-warning threshold: concurrent
	// timing variance above VarianceFactor times the baseline variance
	// raises a warning. Zero means DefaultVarianceFactor.
	VarianceFactor float64
	// EventBufferSize is the per-thread recorder capacity. Zero means
	// the recorder default.
	EventBufferSize int
	// MaxWindow and MaxConflicts tune the conflict analyzer. Zero
	// means the analyzer defaults.
	MaxWindow    int
	MaxConflicts int
	// Logger receives debug-level run lifecycle events. Nil discards.
	Logger *slog.Logger
}

// validate checks the hard contract and fills defaults in place.
func (o *Options) validate() error {
	if o.Threads < 1 {
		return fmt.Errorf("%w: threads %d, want >= 1", ErrInvalidOptions, o.Threads)
	}
	if o.Iterations < 1 {
		return fmt.Errorf("%w: iterations %d, want >= 1", ErrInvalidOptions, o.Iterations)
	}
	if o.Timeout < 0 {
		return fmt.Errorf("%w: negative timeout %v", ErrInvalidOptions, o.Timeout)
	}
	if o.Timeout == 0 {
		o.Timeout = DefaultTimeout
	}
	if o.VarianceFactor <= 0 {
		o.VarianceFactor = DefaultVarianceFactor
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return nil
}
