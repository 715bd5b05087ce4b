package racetest

import "fmt"

// fingerprintOf summarizes a returned value for divergence comparison.
//
// %#v includes the concrete type and prints map keys in sorted order,
// so equal values always produce equal fingerprints. Values containing
// pointers, channels or functions render their addresses and will
// diverge between calls; pure targets are expected to return plain
// values.
func fingerprintOf(v any) string {
	return fmt.Sprintf("%T=%#v", v, v)
}
