// Package conflict infers racy access pairs from a frozen access log.
//
// The analyzer makes a single pass per tracked object over the merged,
// time-sorted event sequence, holding a sliding window of recent
// events. Two events conflict when they touch the same object from
// different threads within epsilon of each other and at least one of
// them is a write. Cost is O(E·W) after the O(E log E) merge already
// paid by the recorder, with W bounded by MaxWindow.
package conflict

import (
	"strconv"
	"time"

	"github.com/kolkov/racehound/access"
)

// Default tuning for Analyzer zero values.
const (
	// DefaultEpsilon is the widest gap at which two accesses are
	// considered concurrent. One microsecond comfortably exceeds the
	// monotonic clock's resolution while staying well under scheduler
	// quanta.
	DefaultEpsilon = time.Microsecond
	// DefaultMaxWindow bounds how many predecessors each event is
	// compared against.
	DefaultMaxWindow = 64
	// DefaultMaxConflicts caps the conflict list on pathological logs.
	DefaultMaxConflicts = 1000
)

// PairKind classifies a conflict by the kinds of its two accesses, in
// log order.
type PairKind uint8

const (
	WriteWrite PairKind = iota
	WriteRead
	ReadWrite
)

// String returns the kind as "Write-Write", "Write-Read" or "Read-Write".
func (k PairKind) String() string {
	switch k {
	case WriteWrite:
		return "Write-Write"
	case WriteRead:
		return "Write-Read"
	case ReadWrite:
		return "Read-Write"
	default:
		return "Unknown(" + strconv.Itoa(int(k)) + ")"
	}
}

// MarshalJSON encodes the pair kind as its string name.
func (k PairKind) MarshalJSON() ([]byte, error) {
	return strconv.AppendQuote(nil, k.String()), nil
}

// Conflict is a pair of cross-thread accesses to the same object
// within epsilon, at least one of them a write. First precedes Second
// in the merged log; equal timestamps keep merge order.
type Conflict struct {
	Object   string       `json:"objectId"`
	First    access.Event `json:"first"`
	Second   access.Event `json:"second"`
	Pair     PairKind     `json:"pairKind"`
	GapNanos int64        `json:"gapNanos"`
}

// Analyzer scans frozen access logs for conflicting pairs.
//
// The zero value is usable: unset fields fall back to the package
// defaults. An Analyzer holds no per-run state, so one instance may
// serve any number of sequential Analyze calls.
type Analyzer struct {
	// Epsilon is the concurrency window. Accesses further apart than
	// this are never conflicts.
	Epsilon time.Duration
	// MaxWindow bounds the number of predecessors compared per event.
	MaxWindow int
	// MaxConflicts stops the scan once this many conflicts have been
	// collected.
	MaxConflicts int
}

// NewAnalyzer returns an Analyzer with the package defaults.
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		Epsilon:      DefaultEpsilon,
		MaxWindow:    DefaultMaxWindow,
		MaxConflicts: DefaultMaxConflicts,
	}
}

func (a *Analyzer) epsilonNanos() int64 {
	if a.Epsilon <= 0 {
		return DefaultEpsilon.Nanoseconds()
	}
	return a.Epsilon.Nanoseconds()
}

func (a *Analyzer) window() int {
	if a.MaxWindow <= 0 {
		return DefaultMaxWindow
	}
	return a.MaxWindow
}

func (a *Analyzer) limit() int {
	if a.MaxConflicts <= 0 {
		return DefaultMaxConflicts
	}
	return a.MaxConflicts
}

// Analyze scans every object in the log, in sorted object order, and
// returns the conflicts found. The second result is true when the scan
// stopped early because MaxConflicts was reached.
//
// Output order is deterministic for a fixed log: objects ascending,
// then conflicts by the position of their later event, nearest
// predecessor first.
func (a *Analyzer) Analyze(log *access.Log) ([]Conflict, bool) {
	byObject := log.ByObject()
	var out []Conflict
	for _, id := range log.Objects() {
		rest, truncated := a.scan(byObject[id], a.limit()-len(out))
		out = append(out, rest...)
		if truncated {
			return out, true
		}
	}
	return out, false
}

// AnalyzeObject scans one object's time-sorted event sequence.
func (a *Analyzer) AnalyzeObject(events []access.Event) []Conflict {
	out, _ := a.scan(events, a.limit())
	return out
}

// scan is the sliding-window pass. events must be time-sorted; budget
// is the remaining conflict allowance.
func (a *Analyzer) scan(events []access.Event, budget int) ([]Conflict, bool) {
	eps := a.epsilonNanos()
	win := a.window()

	var out []Conflict
	for i := 1; i < len(events); i++ {
		second := events[i]
		lo := i - win
		if lo < 0 {
			lo = 0
		}
		for j := i - 1; j >= lo; j-- {
			first := events[j]
			gap := second.TS - first.TS
			if gap >= eps {
				// Sorted input: every earlier predecessor is at
				// least this far away.
				break
			}
			if first.Thread == second.Thread {
				continue
			}
			if first.Kind == access.Read && second.Kind == access.Read {
				continue
			}
			out = append(out, Conflict{
				Object:   second.Object,
				First:    first,
				Second:   second,
				Pair:     classify(first.Kind, second.Kind),
				GapNanos: gap,
			})
			if len(out) >= budget {
				return out, true
			}
		}
	}
	return out, false
}

func classify(first, second access.Kind) PairKind {
	switch {
	case first == access.Write && second == access.Write:
		return WriteWrite
	case first == access.Write:
		return WriteRead
	default:
		return ReadWrite
	}
}
