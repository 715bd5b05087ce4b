package racetest

import (
	"reflect"
	"testing"
	"time"

	"github.com/kolkov/racehound/access"
	"github.com/kolkov/racehound/conflict"
)

func okOutcome(thread int32, iter int, dur int64) Outcome {
	return Outcome{Thread: thread, Iteration: iter, Success: true, DurationNanos: dur}
}

func errOutcome(thread int32, iter int, msg string) Outcome {
	return Outcome{Thread: thread, Iteration: iter, Error: msg, DurationNanos: 100}
}

func someConflict() conflict.Conflict {
	return conflict.Conflict{
		Object: "x",
		First:  access.Event{Object: "x", Thread: 0, TS: 100, Kind: access.Write},
		Second: access.Event{Object: "x", Thread: 1, TS: 150, Kind: access.Write},
		Pair:   conflict.WriteWrite,
	}
}

func TestVerdictPriorityOrder(t *testing.T) {
	tests := []struct {
		name string
		vc   verdictContext
		want Reason
	}{
		{
			name: "new exception outranks everything",
			vc: verdictContext{
				outcomes:  []Outcome{errOutcome(0, 0, "boom")},
				baseline:  []Outcome{okOutcome(-1, 0, 100)},
				conflicts: []conflict.Conflict{someConflict()},
				pure:      true,
			},
			want: NewException,
		},
		{
			name: "divergence outranks conflicts",
			vc: verdictContext{
				outcomes: []Outcome{
					{Thread: 0, Success: true, Fingerprint: "int=1"},
					{Thread: 1, Success: true, Fingerprint: "int=2"},
				},
				conflicts: []conflict.Conflict{someConflict()},
				pure:      true,
			},
			want: DivergentResults,
		},
		{
			name: "conflicts alone are sufficient",
			vc: verdictContext{
				outcomes:  []Outcome{okOutcome(0, 0, 100)},
				conflicts: []conflict.Conflict{someConflict()},
			},
			want: ConflictObserved,
		},
		{
			name: "clean run",
			vc: verdictContext{
				outcomes: []Outcome{okOutcome(0, 0, 100), okOutcome(1, 0, 110)},
				baseline: []Outcome{okOutcome(-1, 0, 105)},
			},
			want: NoRace,
		},
		{
			name: "baseline error is not new",
			vc: verdictContext{
				outcomes: []Outcome{errOutcome(0, 0, "always fails")},
				baseline: []Outcome{errOutcome(-1, 0, "always fails")},
			},
			want: NoRace,
		},
		{
			name: "divergence ignored when not declared pure",
			vc: verdictContext{
				outcomes: []Outcome{
					{Thread: 0, Success: true, Fingerprint: "int=1"},
					{Thread: 1, Success: true, Fingerprint: "int=2"},
				},
			},
			want: NoRace,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := evaluate(&tt.vc); got != tt.want {
				t.Errorf("evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFingerprintDivergenceIgnoresFailures(t *testing.T) {
	vc := verdictContext{
		pure: true,
		outcomes: []Outcome{
			{Thread: 0, Success: true, Fingerprint: "int=4"},
			{Thread: 1, Error: "boom", Fingerprint: ""},
			{Thread: 2, Success: true, Fingerprint: "int=4"},
		},
		// The failed invocation's empty fingerprint must not count as
		// a divergent value.
		baseline: []Outcome{errOutcome(-1, 0, "boom")},
	}
	if got := evaluate(&vc); got != NoRace {
		t.Errorf("evaluate() = %v, want NoRace", got)
	}
}

func TestContentionWarning(t *testing.T) {
	vc := &verdictContext{
		baselineRan:    true,
		varianceFactor: 10,
		timing:         TimingStats{Count: 10, Variance: 2000},
		baseStats:      TimingStats{Count: 10, Variance: 100},
	}
	if w := contentionWarnings(vc); len(w) != 1 {
		t.Fatalf("got %d warnings, want 1", len(w))
	}

	vc.timing.Variance = 900 // below 10x threshold
	if w := contentionWarnings(vc); len(w) != 0 {
		t.Fatalf("got warnings %v below threshold", w)
	}

	vc.timing.Variance = 2000
	vc.baselineRan = false // no baseline, no comparison
	if w := contentionWarnings(vc); len(w) != 0 {
		t.Fatalf("got warnings %v without a baseline", w)
	}
}

func TestNewExceptionsSetDifference(t *testing.T) {
	concurrent := []Outcome{
		errOutcome(0, 0, "b"),
		errOutcome(1, 0, "a"),
		errOutcome(1, 1, "a"),
		errOutcome(2, 0, "known"),
	}
	baseline := []Outcome{errOutcome(-1, 0, "known")}

	got := newExceptions(concurrent, baseline)
	want := []string{"a", "b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("newExceptions = %v, want %v", got, want)
	}
}

func TestComputeStats(t *testing.T) {
	ocs := []Outcome{
		okOutcome(0, 0, 1),
		okOutcome(0, 1, 2),
		okOutcome(1, 0, 3),
		okOutcome(1, 1, 4),
	}
	st := computeStats(ocs)
	if st.Count != 4 || st.MinNano != 1 || st.MaxNano != 4 {
		t.Fatalf("stats = %+v", st)
	}
	if st.MeanNano != 2.5 {
		t.Errorf("mean = %v, want 2.5", st.MeanNano)
	}
	if st.Variance != 1.25 {
		t.Errorf("variance = %v, want 1.25", st.Variance)
	}
	if zero := computeStats(nil); zero.Count != 0 || zero.Variance != 0 {
		t.Errorf("empty stats = %+v", zero)
	}
}

func TestBuildResultIsDeterministic(t *testing.T) {
	opts := Options{Threads: 2, Iterations: 2, VarianceFactor: 10, Pure: true}
	concurrent := []Outcome{
		okOutcome(0, 0, 100),
		errOutcome(0, 1, "torn"),
		okOutcome(1, 0, 140),
	}
	baseline := []Outcome{okOutcome(-1, 0, 110), okOutcome(-1, 1, 120)}
	conflicts := []conflict.Conflict{someConflict()}

	a := buildResult("id", &opts, Completed, time.Millisecond,
		concurrent, baseline, true, conflicts, false, false)
	b := buildResult("id", &opts, Completed, time.Millisecond,
		concurrent, baseline, true, conflicts, false, false)
	if !reflect.DeepEqual(a, b) {
		t.Error("identical inputs produced different results")
	}

	if !a.RaceDetected || a.Reason != NewException {
		t.Errorf("result = detected %v reason %v, want NewException", a.RaceDetected, a.Reason)
	}
	if a.TotalIterations != 3 || a.SuccessCount != 2 || a.FailureCount != 1 {
		t.Errorf("counts = %d/%d/%d", a.TotalIterations, a.SuccessCount, a.FailureCount)
	}
	if !reflect.DeepEqual(a.NewExceptions, []string{"torn"}) {
		t.Errorf("new exceptions = %v", a.NewExceptions)
	}
}

func TestStatusAndReasonStrings(t *testing.T) {
	if Completed.String() != "Completed" || Timeout.String() != "Timeout" {
		t.Error("Status names changed")
	}
	if NoRace.String() != "None" || NewException.String() != "NewException" ||
		DivergentResults.String() != "DivergentResults" ||
		ConflictObserved.String() != "ConflictObserved" {
		t.Error("Reason names changed")
	}
}
