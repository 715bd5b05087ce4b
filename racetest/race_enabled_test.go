//go:build race

package racetest

// underRaceDetector skips tests whose targets race on purpose; Go's
// detector would report the tracked accesses themselves.
const underRaceDetector = true
