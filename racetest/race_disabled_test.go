//go:build !race

package racetest

const underRaceDetector = false
