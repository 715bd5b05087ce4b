// Package report folds stress-run results and static findings into one
// summary. Everything here is a pure transformation: no clocks, no
// I/O, and identical inputs always produce an identical Summary.
package report

import (
	"fmt"

	"github.com/kolkov/racehound/hazard"
	"github.com/kolkov/racehound/racetest"
)

// Summary is the roll-up across any number of stress runs and scans.
type Summary struct {
	Runs   RunSummary    `json:"runs"`
	Static StaticSummary `json:"static"`
}

// RunSummary aggregates dynamic stress results.
type RunSummary struct {
	Total         int            `json:"total"`
	RacesDetected int            `json:"racesDetected"`
	Timeouts      int            `json:"timeouts"`
	Iterations    int            `json:"iterations"`
	Failures      int            `json:"failures"`
	Conflicts     int            `json:"conflicts"`
	Reasons       map[string]int `json:"reasons,omitempty"`
	Warnings      []string       `json:"warnings,omitempty"`
}

// StaticSummary aggregates scanner output.
type StaticSummary struct {
	FilesScanned  int            `json:"filesScanned"`
	Findings      int            `json:"findings"`
	ScanErrors    int            `json:"scanErrors"`
	BySeverity    map[string]int `json:"bySeverity,omitempty"`
	ByKind        map[string]int `json:"byKind,omitempty"`
	WorstSeverity string         `json:"worstSeverity,omitempty"`
}

// Aggregate merges runs and scans. Nil entries are skipped; order of
// the inputs only affects the order of aggregated warnings.
func Aggregate(runs []*racetest.Result, scans []*hazard.Report) Summary {
	var s Summary
	for _, r := range runs {
		if r == nil {
			continue
		}
		s.Runs.Total++
		if r.RaceDetected {
			s.Runs.RacesDetected++
		}
		if r.Status == racetest.Timeout {
			s.Runs.Timeouts++
		}
		s.Runs.Iterations += r.TotalIterations
		s.Runs.Failures += r.FailureCount
		s.Runs.Conflicts += len(r.Conflicts)
		if s.Runs.Reasons == nil {
			s.Runs.Reasons = make(map[string]int)
		}
		s.Runs.Reasons[r.Reason.String()]++
		s.Runs.Warnings = append(s.Runs.Warnings, r.Warnings...)
	}

	worst, haveWorst := hazard.Low, false
	for _, rep := range scans {
		if rep == nil {
			continue
		}
		s.Static.FilesScanned += rep.FilesScanned
		s.Static.ScanErrors += len(rep.Errors)
		s.Static.Findings += len(rep.Findings)
		for _, f := range rep.Findings {
			if s.Static.BySeverity == nil {
				s.Static.BySeverity = make(map[string]int)
			}
			if s.Static.ByKind == nil {
				s.Static.ByKind = make(map[string]int)
			}
			s.Static.BySeverity[f.Severity.String()]++
			s.Static.ByKind[f.Kind.String()]++
		}
		if max, ok := rep.MaxSeverity(); ok {
			if !haveWorst || max > worst {
				worst, haveWorst = max, true
			}
		}
	}
	if haveWorst {
		s.Static.WorstSeverity = worst.String()
	}
	return s
}

// Gate turns a summary into a pass or fail decision for CI.
type Gate struct {
	// FailOn fails the gate when any finding sits at or above this
	// severity.
	FailOn hazard.Severity

	// FailOnRace fails the gate when any stress run detected a race.
	FailOnRace bool
}

// DefaultGate fails on High findings and on detected races.
func DefaultGate() Gate {
	return Gate{FailOn: hazard.High, FailOnRace: true}
}

// Check returns one message per violated condition. An empty slice
// means the gate passes. Messages come out in a fixed order.
func (g Gate) Check(s Summary) []string {
	var out []string
	if g.FailOnRace && s.Runs.RacesDetected > 0 {
		out = append(out, fmt.Sprintf("%d of %d stress runs detected a race",
			s.Runs.RacesDetected, s.Runs.Total))
	}
	n := 0
	for _, sev := range []hazard.Severity{hazard.Critical, hazard.High, hazard.Medium, hazard.Low} {
		if sev >= g.FailOn {
			n += s.Static.BySeverity[sev.String()]
		}
	}
	if n > 0 {
		out = append(out, fmt.Sprintf("%d findings at or above %s", n, g.FailOn))
	}
	return out
}
