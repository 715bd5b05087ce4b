package racetest

import (
	"fmt"
	"sort"
	"time"

	"github.com/kolkov/racehound/conflict"
)

// verdictContext carries everything the rules may inspect. All of it
// is collected data: evaluating the same context twice always yields
// the same verdict.
type verdictContext struct {
	outcomes    []Outcome // concurrent phase, thread-major order
	baseline    []Outcome
	baselineRan bool
	conflicts   []conflict.Conflict
	pure        bool

	varianceFactor float64
	timing         TimingStats
	baseStats      TimingStats
}

// verdictRules is the race-inference policy: an explicit ordered list
// where the first match wins. Order is part of the contract: an
// unexpected error outranks fingerprint divergence, which outranks raw
// conflicts.
var verdictRules = []struct {
	reason Reason
	match  func(*verdictContext) bool
}{
	{NewException, func(vc *verdictContext) bool {
		return len(newExceptions(vc.outcomes, vc.baseline)) > 0
	}},
	{DivergentResults, func(vc *verdictContext) bool {
		return vc.pure && fingerprintsDiverge(vc.outcomes)
	}},
	{ConflictObserved, func(vc *verdictContext) bool {
		return len(vc.conflicts) > 0
	}},
}

// evaluate runs the rule list and returns the first matching reason,
// or NoRace.
func evaluate(vc *verdictContext) Reason {
	for _, rule := range verdictRules {
		if rule.match(vc) {
			return rule.reason
		}
	}
	return NoRace
}

// contentionWarnings applies the soft timing rule: variance beyond
// varianceFactor times the baseline variance suggests lock contention.
// Never a race verdict on its own.
func contentionWarnings(vc *verdictContext) []string {
	if !vc.baselineRan || vc.timing.Count == 0 {
		return nil
	}
	threshold := vc.varianceFactor * vc.baseStats.Variance
	if vc.timing.Variance > threshold {
		return []string{fmt.Sprintf(
			"timing variance %.0f exceeds %.0fx baseline variance %.0f; possible lock contention",
			vc.timing.Variance, vc.varianceFactor, vc.baseStats.Variance)}
	}
	return nil
}

// distinctErrors returns the sorted set of error texts among failed
// outcomes.
func distinctErrors(ocs []Outcome) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, o := range ocs {
		if o.Success || o.Error == "" {
			continue
		}
		if _, ok := seen[o.Error]; !ok {
			seen[o.Error] = struct{}{}
			out = append(out, o.Error)
		}
	}
	sort.Strings(out)
	return out
}

// newExceptions returns concurrent error texts the baseline never
// produced, sorted.
func newExceptions(concurrent, baseline []Outcome) []string {
	base := make(map[string]struct{})
	for _, o := range baseline {
		if !o.Success && o.Error != "" {
			base[o.Error] = struct{}{}
		}
	}
	var out []string
	for _, e := range distinctErrors(concurrent) {
		if _, ok := base[e]; !ok {
			out = append(out, e)
		}
	}
	return out
}

// fingerprintsDiverge reports whether successful invocations returned
// more than one distinct fingerprint.
func fingerprintsDiverge(ocs []Outcome) bool {
	first := ""
	seenAny := false
	for _, o := range ocs {
		if !o.Success {
			continue
		}
		if !seenAny {
			first = o.Fingerprint
			seenAny = true
			continue
		}
		if o.Fingerprint != first {
			return true
		}
	}
	return false
}

// buildResult folds collected run data into the immutable Result.
// Deterministic: same inputs, same result (modulo the fresh RunID).
func buildResult(
	runID string,
	opts *Options,
	status Status,
	wall time.Duration,
	concurrent []Outcome,
	baseline []Outcome,
	baselineRan bool,
	conflicts []conflict.Conflict,
	conflictsTruncated bool,
	logTruncated bool,
) *Result {
	success := 0
	for _, o := range concurrent {
		if o.Success {
			success++
		}
	}

	vc := &verdictContext{
		outcomes:       concurrent,
		baseline:       baseline,
		baselineRan:    baselineRan,
		conflicts:      conflicts,
		pure:           opts.Pure,
		varianceFactor: opts.VarianceFactor,
		timing:         computeStats(concurrent),
		baseStats:      computeStats(baseline),
	}
	reason := evaluate(vc)

	return &Result{
		RunID:              runID,
		Threads:            opts.Threads,
		Iterations:         opts.Iterations,
		TotalIterations:    len(concurrent),
		SuccessCount:       success,
		FailureCount:       len(concurrent) - success,
		Status:             status,
		RaceDetected:       reason != NoRace,
		Reason:             reason,
		Warnings:           contentionWarnings(vc),
		Timing:             vc.timing,
		Baseline:           vc.baseStats,
		Conflicts:          conflicts,
		ConflictsTruncated: conflictsTruncated,
		Exceptions:         distinctErrors(concurrent),
		NewExceptions:      newExceptions(concurrent, baseline),
		Truncated:          logTruncated,
		WallNanos:          wall.Nanoseconds(),
	}
}
