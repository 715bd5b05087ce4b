package racetest

import (
	"strconv"

	"github.com/kolkov/racehound/conflict"
)

// Status reports how a run ended.
type Status uint8

const (
	// Completed means every worker joined within the timeout.
	Completed Status = iota
	// Timeout means the wall-clock deadline expired first; workers
	// that did not observe cancellation were abandoned as daemons.
	Timeout
)

// String returns "Completed" or "Timeout".
func (s Status) String() string {
	switch s {
	case Completed:
		return "Completed"
	case Timeout:
		return "Timeout"
	default:
		return "Unknown(" + strconv.Itoa(int(s)) + ")"
	}
}

// MarshalJSON encodes the status as its string name.
func (s Status) MarshalJSON() ([]byte, error) {
	return strconv.AppendQuote(nil, s.String()), nil
}

// Reason names the verdict rule that set RaceDetected, evaluated in
// priority order; the first match wins.
type Reason uint8

const (
	// NoRace means no rule matched.
	NoRace Reason = iota
	// NewException: an error occurred concurrently that the baseline
	// never produced.
	NewException
	// DivergentResults: a pure target returned differing fingerprints.
	DivergentResults
	// ConflictObserved: the analyzer found at least one access conflict.
	ConflictObserved
)

// String returns the rule name.
func (r Reason) String() string {
	switch r {
	case NoRace:
		return "None"
	case NewException:
		return "NewException"
	case DivergentResults:
		return "DivergentResults"
	case ConflictObserved:
		return "ConflictObserved"
	default:
		return "Unknown(" + strconv.Itoa(int(r)) + ")"
	}
}

// MarshalJSON encodes the reason as its string name.
func (r Reason) MarshalJSON() ([]byte, error) {
	return strconv.AppendQuote(nil, r.String()), nil
}

// TimingStats summarizes invocation durations in nanoseconds.
type TimingStats struct {
	Count    int     `json:"count"`
	MeanNano float64 `json:"meanNanos"`
	MinNano  int64   `json:"minNanos"`
	MaxNano  int64   `json:"maxNanos"`
	// Variance is the population variance of the durations, in ns².
	Variance float64 `json:"variance"`
}

// computeStats folds outcome durations in slice order, so a fixed
// outcome collection always yields bit-identical stats.
func computeStats(ocs []Outcome) TimingStats {
	if len(ocs) == 0 {
		return TimingStats{}
	}
	st := TimingStats{
		Count:   len(ocs),
		MinNano: ocs[0].DurationNanos,
		MaxNano: ocs[0].DurationNanos,
	}
	var sum float64
	for _, o := range ocs {
		d := o.DurationNanos
		sum += float64(d)
		if d < st.MinNano {
			st.MinNano = d
		}
		if d > st.MaxNano {
			st.MaxNano = d
		}
	}
	st.MeanNano = sum / float64(len(ocs))
	var sq float64
	for _, o := range ocs {
		diff := float64(o.DurationNanos) - st.MeanNano
		sq += diff * diff
	}
	st.Variance = sq / float64(len(ocs))
	return st
}

// Result is the aggregate of one harness run. Built once after the
// join, read-only afterward. RaceDetected is derived from the other
// fields by the verdict rules and is never set directly.
type Result struct {
	// RunID correlates this result with external report artifacts.
	RunID string `json:"runId"`
	// Threads and Iterations echo the options the run was started with.
	Threads    int `json:"threads"`
	Iterations int `json:"iterations"`

	// TotalIterations counts invocations that actually completed and
	// were recorded; on a timeout it falls short of Threads×Iterations.
	TotalIterations int `json:"totalIterations"`
	SuccessCount    int `json:"successCount"`
	FailureCount    int `json:"failureCount"`

	Status       Status `json:"status"`
	RaceDetected bool   `json:"raceDetected"`
	Reason       Reason `json:"reason"`
	// Warnings carries soft findings, currently the timing-variance
	// contention note.
	Warnings []string `json:"warnings,omitempty"`

	Timing TimingStats `json:"timingStats"`
	// Baseline holds the single-threaded reference stats; Count is 0
	// when the baseline was skipped because the concurrent phase
	// timed out.
	Baseline TimingStats `json:"baselineStats"`

	Conflicts          []conflict.Conflict `json:"conflicts"`
	ConflictsTruncated bool                `json:"conflictsTruncated,omitempty"`

	// Exceptions lists the distinct error texts seen concurrently,
	// sorted; NewExceptions is the subset absent from the baseline.
	Exceptions    []string `json:"exceptions,omitempty"`
	NewExceptions []string `json:"newExceptions,omitempty"`

	// Truncated is true when any recorder arena overflowed and oldest
	// events were dropped.
	Truncated bool `json:"truncated"`
	// WallNanos is the wall time of the concurrent phase.
	WallNanos int64 `json:"wallNanos"`
}
