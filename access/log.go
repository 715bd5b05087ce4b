package access

import "sort"

// Log is the merged, time-sorted access log of one run.
//
// A Log is frozen: it is built once by Recorder.Merge after the
// workers join, read by conflict analysis, and discarded with the run.
// Nothing mutates it.
type Log struct {
	// Events holds every surviving event across all tracked objects,
	// sorted by timestamp (stable over thread index for ties).
	Events []Event `json:"events"`
	// Dropped counts events lost to arena wraparound.
	Dropped int `json:"droppedEvents"`
	// Truncated is true when any arena overflowed during the run.
	Truncated bool `json:"truncated"`
}

// Len returns the number of surviving events.
func (l *Log) Len() int { return len(l.Events) }

// Objects returns the distinct tracked object IDs present in the log,
// sorted for deterministic iteration.
func (l *Log) Objects() []string {
	seen := make(map[string]struct{})
	var ids []string
	for i := range l.Events {
		id := l.Events[i].Object
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// ByObject splits the log into per-object event sequences, preserving
// the merged time order within each object.
func (l *Log) ByObject() map[string][]Event {
	out := make(map[string][]Event)
	for _, ev := range l.Events {
		out[ev.Object] = append(out[ev.Object], ev)
	}
	return out
}

// sortEvents orders events by timestamp. The sort is stable, and the
// input is concatenated in thread-index order with each thread's
// events already time-ordered, so equal-timestamp events keep a fixed
// thread-major order. Repeated merges of the same capture produce
// byte-identical logs.
func sortEvents(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].TS < events[j].TS
	})
}
