package access

// Var is an instrumented scalar cell.
//
// It exposes the value's capability surface by composition: Get
// forwards the load and emits a Read event, Set forwards the store and
// emits a Write event. The cell itself adds no synchronization, so the
// wrapped value races exactly as the bare value would.
type Var[T any] struct {
	rec *Recorder
	id  string
	v   T
}

// TrackVar wraps an initial value in an instrumented cell bound to rec
// under the given object ID.
func TrackVar[T any](rec *Recorder, id string, initial T) *Var[T] {
	return &Var[T]{rec: rec, id: id, v: initial}
}

// ID returns the caller-assigned object identifier.
func (c *Var[T]) ID() string { return c.id }

// Get records a Read and returns the current value.
func (c *Var[T]) Get() T {
	c.rec.record(c.id, Read)
	return c.v
}

// Set records a Write and stores the value.
func (c *Var[T]) Set(v T) {
	c.rec.record(c.id, Write)
	c.v = v
}

// List is an instrumented slice cell. Reads (Len, At, Snapshot) and
// writes (Append, SetAt) are forwarded unsynchronized, like Var.
type List[T any] struct {
	rec   *Recorder
	id    string
	items []T
}

// TrackList wraps a slice in an instrumented cell. The initial slice
// is used directly, not copied.
func TrackList[T any](rec *Recorder, id string, initial []T) *List[T] {
	return &List[T]{rec: rec, id: id, items: initial}
}

// ID returns the caller-assigned object identifier.
func (l *List[T]) ID() string { return l.id }

// Len records a Read and returns the current length.
func (l *List[T]) Len() int {
	l.rec.record(l.id, Read)
	return len(l.items)
}

// At records a Read and returns the element at index i.
func (l *List[T]) At(i int) T {
	l.rec.record(l.id, Read)
	return l.items[i]
}

// Append records a Write and appends v.
func (l *List[T]) Append(v T) {
	l.rec.record(l.id, Write)
	l.items = append(l.items, v)
}

// SetAt records a Write and replaces the element at index i.
func (l *List[T]) SetAt(i int, v T) {
	l.rec.record(l.id, Write)
	l.items[i] = v
}

// Snapshot records a Read and returns a copy of the current elements.
func (l *List[T]) Snapshot() []T {
	l.rec.record(l.id, Read)
	out := make([]T, len(l.items))
	copy(out, l.items)
	return out
}

// Map is an instrumented map cell. Concurrent writers may trip the
// runtime's concurrent map write fault, which aborts the process
// before any verdict is produced; prefer Var for state expected to
// race (see the package documentation).
type Map[K comparable, V any] struct {
	rec *Recorder
	id  string
	m   map[K]V
}

// TrackMap wraps a map in an instrumented cell. A nil initial map is
// replaced with an empty one.
func TrackMap[K comparable, V any](rec *Recorder, id string, initial map[K]V) *Map[K, V] {
	if initial == nil {
		initial = make(map[K]V)
	}
	return &Map[K, V]{rec: rec, id: id, m: initial}
}

// ID returns the caller-assigned object identifier.
func (m *Map[K, V]) ID() string { return m.id }

// Get records a Read and looks up k.
func (m *Map[K, V]) Get(k K) (V, bool) {
	m.rec.record(m.id, Read)
	v, ok := m.m[k]
	return v, ok
}

// Len records a Read and returns the entry count.
func (m *Map[K, V]) Len() int {
	m.rec.record(m.id, Read)
	return len(m.m)
}

// Put records a Write and stores v under k.
func (m *Map[K, V]) Put(k K, v V) {
	m.rec.record(m.id, Write)
	m.m[k] = v
}

// Delete records a Write and removes k.
func (m *Map[K, V]) Delete(k K) {
	m.rec.record(m.id, Write)
	delete(m.m, k)
}
