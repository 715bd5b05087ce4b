package access

import "strconv"

// Kind classifies a tracked access as a read or a write.
type Kind uint8

const (
	// Read is a forwarded get on a tracked value.
	Read Kind = iota
	// Write is a forwarded set on a tracked value.
	Write
)

// String returns "Read" or "Write".
func (k Kind) String() string {
	switch k {
	case Read:
		return "Read"
	case Write:
		return "Write"
	default:
		return "Unknown(" + strconv.Itoa(int(k)) + ")"
	}
}

// MarshalJSON encodes the kind as its string name, the form the
// external report renderers consume.
func (k Kind) MarshalJSON() ([]byte, error) {
	return strconv.AppendQuote(nil, k.String()), nil
}

// Event is one recorded access to a tracked object.
//
// Events are immutable once created. Timestamp is taken from the
// monotonic clock, in nanoseconds since the owning Recorder's start,
// so sub-microsecond gaps between truly concurrent operations remain
// distinguishable.
type Event struct {
	// Object is the caller-assigned identifier of the tracked value.
	Object string `json:"objectId"`
	// Thread is the worker index that performed the access.
	Thread int32 `json:"threadId"`
	// TS is the monotonic timestamp in nanoseconds since recorder start.
	TS int64 `json:"timestampNanos"`
	// Kind is Read or Write.
	Kind Kind `json:"kind"`
}
