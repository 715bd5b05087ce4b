package access

import "testing"

// attach binds the test goroutine to thread 0 and returns a detach func.
func attach(t *testing.T, rec *Recorder) func() {
	t.Helper()
	if err := rec.Attach(0); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	return rec.Detach
}

func TestVarForwardsAndRecords(t *testing.T) {
	rec := NewRecorder(1, 32)
	defer attach(t, rec)()

	v := TrackVar(rec, "counter", 10)
	if got := v.Get(); got != 10 {
		t.Fatalf("Get: got %d, want 10", got)
	}
	v.Set(11)
	if got := v.Get(); got != 11 {
		t.Fatalf("Get after Set: got %d, want 11", got)
	}
	if v.ID() != "counter" {
		t.Errorf("ID() = %q, want counter", v.ID())
	}

	log := rec.Merge()
	wantKinds := []Kind{Read, Write, Read}
	if log.Len() != len(wantKinds) {
		t.Fatalf("recorded %d events, want %d", log.Len(), len(wantKinds))
	}
	for i, ev := range log.Events {
		if ev.Kind != wantKinds[i] {
			t.Errorf("event %d: kind %v, want %v", i, ev.Kind, wantKinds[i])
		}
		if ev.Object != "counter" || ev.Thread != 0 {
			t.Errorf("event %d: %+v, want object=counter thread=0", i, ev)
		}
	}
}

func TestListForwardsAndRecords(t *testing.T) {
	rec := NewRecorder(1, 32)
	defer attach(t, rec)()

	l := TrackList(rec, "items", []string{"a"})
	l.Append("b")
	l.SetAt(0, "A")
	if got := l.Len(); got != 2 {
		t.Fatalf("Len: got %d, want 2", got)
	}
	if got := l.At(0); got != "A" {
		t.Fatalf("At(0): got %q, want A", got)
	}
	snap := l.Snapshot()
	if len(snap) != 2 || snap[1] != "b" {
		t.Fatalf("Snapshot: got %v", snap)
	}
	snap[1] = "mutated"
	if l.At(1) != "b" {
		t.Error("Snapshot must copy, not alias")
	}

	log := rec.Merge()
	wantKinds := []Kind{Write, Write, Read, Read, Read, Read}
	if log.Len() != len(wantKinds) {
		t.Fatalf("recorded %d events, want %d", log.Len(), len(wantKinds))
	}
	for i, ev := range log.Events {
		if ev.Kind != wantKinds[i] {
			t.Errorf("event %d: kind %v, want %v", i, ev.Kind, wantKinds[i])
		}
	}
}

func TestMapForwardsAndRecords(t *testing.T) {
	rec := NewRecorder(1, 32)
	defer attach(t, rec)()

	m := TrackMap(rec, "cache", map[string]int(nil))
	m.Put("k", 1)
	if v, ok := m.Get("k"); !ok || v != 1 {
		t.Fatalf("Get(k): got %d,%v", v, ok)
	}
	if got := m.Len(); got != 1 {
		t.Fatalf("Len: got %d, want 1", got)
	}
	m.Delete("k")
	if _, ok := m.Get("k"); ok {
		t.Fatal("Get after Delete: key still present")
	}

	log := rec.Merge()
	wantKinds := []Kind{Write, Read, Read, Write, Read}
	if log.Len() != len(wantKinds) {
		t.Fatalf("recorded %d events, want %d", log.Len(), len(wantKinds))
	}
	for i, ev := range log.Events {
		if ev.Kind != wantKinds[i] {
			t.Errorf("event %d: kind %v, want %v", i, ev.Kind, wantKinds[i])
		}
	}
}

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{Read, "Read"},
		{Write, "Write"},
		{Kind(9), "Unknown(9)"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}
