package conflict

import (
	"reflect"
	"testing"
	"time"

	"github.com/kolkov/racehound/access"
)

func ev(obj string, thread int32, ts int64, kind access.Kind) access.Event {
	return access.Event{Object: obj, Thread: thread, TS: ts, Kind: kind}
}

func logOf(events ...access.Event) *access.Log {
	return &access.Log{Events: events}
}

func TestWriteReadWithinEpsilonIsOneConflict(t *testing.T) {
	a := NewAnalyzer()
	got := a.AnalyzeObject([]access.Event{
		ev("x", 0, 100, access.Write),
		ev("x", 1, 600, access.Read),
	})
	if len(got) != 1 {
		t.Fatalf("got %d conflicts, want 1", len(got))
	}
	c := got[0]
	if c.Pair != WriteRead {
		t.Errorf("pair = %v, want Write-Read", c.Pair)
	}
	if c.Object != "x" || c.GapNanos != 500 {
		t.Errorf("conflict = %+v, want object x gap 500", c)
	}
}

func TestReadReadNeverConflicts(t *testing.T) {
	a := NewAnalyzer()
	got := a.AnalyzeObject([]access.Event{
		ev("x", 0, 100, access.Read),
		ev("x", 1, 100, access.Read), // equal timestamps, different threads
		ev("x", 2, 150, access.Read),
	})
	if len(got) != 0 {
		t.Fatalf("got %d conflicts from reads only, want 0", len(got))
	}
}

func TestSameThreadNeverConflicts(t *testing.T) {
	a := NewAnalyzer()
	got := a.AnalyzeObject([]access.Event{
		ev("x", 0, 100, access.Write),
		ev("x", 0, 101, access.Write),
		ev("x", 0, 102, access.Read),
	})
	if len(got) != 0 {
		t.Fatalf("got %d conflicts from one thread, want 0", len(got))
	}
}

func TestEqualTimestampWritePairsConflict(t *testing.T) {
	a := NewAnalyzer()
	got := a.AnalyzeObject([]access.Event{
		ev("x", 0, 100, access.Read),
		ev("x", 1, 100, access.Write),
	})
	if len(got) != 1 {
		t.Fatalf("got %d conflicts, want 1", len(got))
	}
	if got[0].Pair != ReadWrite {
		t.Errorf("pair = %v, want Read-Write", got[0].Pair)
	}
}

func TestGapAtOrBeyondEpsilonIsNotConcurrent(t *testing.T) {
	a := &Analyzer{Epsilon: 500 * time.Nanosecond}
	got := a.AnalyzeObject([]access.Event{
		ev("x", 0, 0, access.Write),
		ev("x", 1, 500, access.Write), // gap == epsilon: outside the open window
	})
	if len(got) != 0 {
		t.Fatalf("got %d conflicts at gap==epsilon, want 0", len(got))
	}
}

func TestPairClassification(t *testing.T) {
	tests := []struct {
		name   string
		first  access.Kind
		second access.Kind
		want   PairKind
	}{
		{"write then write", access.Write, access.Write, WriteWrite},
		{"write then read", access.Write, access.Read, WriteRead},
		{"read then write", access.Read, access.Write, ReadWrite},
	}
	a := NewAnalyzer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.AnalyzeObject([]access.Event{
				ev("x", 0, 10, tt.first),
				ev("x", 1, 20, tt.second),
			})
			if len(got) != 1 || got[0].Pair != tt.want {
				t.Fatalf("got %+v, want one %v conflict", got, tt.want)
			}
		})
	}
}

func TestWindowBoundsComparisons(t *testing.T) {
	// Five simultaneous writers but a window of 2: each event only
	// pairs with its two nearest predecessors.
	a := &Analyzer{MaxWindow: 2}
	var events []access.Event
	for i := int32(0); i < 5; i++ {
		events = append(events, ev("x", i, 100, access.Write))
	}
	got := a.AnalyzeObject(events)
	// Events 1..4 contribute min(i, 2) pairs: 1+2+2+2.
	if len(got) != 7 {
		t.Fatalf("got %d conflicts with window 2, want 7", len(got))
	}
}

func TestMaxConflictsTruncates(t *testing.T) {
	a := &Analyzer{MaxConflicts: 3}
	var events []access.Event
	for i := int32(0); i < 6; i++ {
		events = append(events, ev("x", i, 100, access.Write))
	}
	got, truncated := a.Analyze(logOf(events...))
	if !truncated {
		t.Error("expected truncation flag")
	}
	if len(got) != 3 {
		t.Fatalf("got %d conflicts, want cap of 3", len(got))
	}
}

func TestAnalyzeKeepsObjectsSeparate(t *testing.T) {
	a := NewAnalyzer()
	got, truncated := a.Analyze(logOf(
		ev("a", 0, 100, access.Write),
		ev("b", 1, 150, access.Write), // different object, no pairing with a
		ev("a", 1, 200, access.Read),
		ev("b", 0, 900, access.Read),
	))
	if truncated {
		t.Fatal("unexpected truncation")
	}
	if len(got) != 2 {
		t.Fatalf("got %d conflicts, want 2 (one per object)", len(got))
	}
	// Sorted object order: a before b.
	if got[0].Object != "a" || got[0].Pair != WriteRead {
		t.Errorf("first = %+v, want Write-Read on a", got[0])
	}
	if got[1].Object != "b" || got[1].Pair != WriteRead {
		t.Errorf("second = %+v, want Write-Read on b", got[1])
	}
}

func TestAnalyzeIsDeterministic(t *testing.T) {
	a := NewAnalyzer()
	log := logOf(
		ev("a", 0, 100, access.Write),
		ev("a", 1, 100, access.Write),
		ev("a", 2, 300, access.Read),
		ev("b", 0, 400, access.Write),
		ev("b", 1, 450, access.Write),
	)
	first, _ := a.Analyze(log)
	second, _ := a.Analyze(log)
	if !reflect.DeepEqual(first, second) {
		t.Error("repeated analysis of the same log diverged")
	}
}

func TestPairKindString(t *testing.T) {
	if WriteWrite.String() != "Write-Write" ||
		WriteRead.String() != "Write-Read" ||
		ReadWrite.String() != "Read-Write" {
		t.Error("PairKind names changed")
	}
}
