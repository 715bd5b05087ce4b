// Package hazard statically flags shared-state patterns likely to race.
//
// The scanner parses Go source, builds a per-type model of field reads,
// writes and synchronization sites, and evaluates an ordered rule list
// over it. Nothing is executed. Findings are heuristic: they point at
// code that deserves a stress test, they do not prove a race.
package hazard

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind names a detected pattern.
type Kind uint8

const (
	// UnprotectedSharedWrite: a field written from two or more methods
	// of a type that contains no synchronization at all.
	UnprotectedSharedWrite Kind = iota
	// CheckThenAct: a field tested and then written inside the same
	// conditional with no intervening lock.
	CheckThenAct
	// LazyInitWithoutLock: a check-then-act whose test is a nil check
	// and whose act is first-time construction.
	LazyInitWithoutLock
)

// String returns the pattern name used in reports.
func (k Kind) String() string {
	switch k {
	case UnprotectedSharedWrite:
		return "UnprotectedSharedWrite"
	case CheckThenAct:
		return "CheckThenAct"
	case LazyInitWithoutLock:
		return "LazyInitWithoutLock"
	default:
		return "Unknown(" + strconv.Itoa(int(k)) + ")"
	}
}

// MarshalJSON encodes the kind as its string name.
func (k Kind) MarshalJSON() ([]byte, error) {
	return strconv.AppendQuote(nil, k.String()), nil
}

// Severity ranks findings. The numeric order matches report order:
// higher is more severe.
type Severity uint8

const (
	Low Severity = iota
	Medium
	High
	Critical
)

// String returns the severity name.
func (s Severity) String() string {
	switch s {
	case Low:
		return "Low"
	case Medium:
		return "Medium"
	case High:
		return "High"
	case Critical:
		return "Critical"
	default:
		return "Unknown(" + strconv.Itoa(int(s)) + ")"
	}
}

// MarshalJSON encodes the severity as its string name.
func (s Severity) MarshalJSON() ([]byte, error) {
	return strconv.AppendQuote(nil, s.String()), nil
}

// ParseSeverity maps a case-insensitive name to a Severity.
func ParseSeverity(name string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "low":
		return Low, nil
	case "medium":
		return Medium, nil
	case "high":
		return High, nil
	case "critical":
		return Critical, nil
	default:
		return Low, fmt.Errorf("hazard: unknown severity %q", name)
	}
}

// Finding is one detected hazard, bound to a source position.
type Finding struct {
	File       string   `json:"filePath"`
	Line       int      `json:"lineNumber"`
	TypeName   string   `json:"typeName"`
	Field      string   `json:"field"`
	Method     string   `json:"method,omitempty"`
	Kind       Kind     `json:"patternKind"`
	Severity   Severity `json:"severity"`
	Message    string   `json:"message"`
	Suggestion string   `json:"suggestion"`
}

// ScanError records a file that could not be read or parsed. The scan
// skips it and continues.
type ScanError struct {
	File    string `json:"filePath"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e ScanError) Error() string {
	return e.File + ": " + e.Message
}

// Report is the outcome of one scan: findings ordered severity-first,
// plus the files that could not be scanned.
type Report struct {
	Findings     []Finding   `json:"findings"`
	Errors       []ScanError `json:"scanErrors,omitempty"`
	FilesScanned int         `json:"filesScanned"`
}

// MaxSeverity returns the highest severity present, and false when
// there are no findings.
func (r *Report) MaxSeverity() (Severity, bool) {
	if len(r.Findings) == 0 {
		return Low, false
	}
	max := r.Findings[0].Severity
	for _, f := range r.Findings[1:] {
		if f.Severity > max {
			max = f.Severity
		}
	}
	return max, true
}

// CountBySeverity tallies findings per severity.
func (r *Report) CountBySeverity() map[Severity]int {
	out := make(map[Severity]int)
	for _, f := range r.Findings {
		out[f.Severity]++
	}
	return out
}

// sortFindings fixes the report order: severity descending, then file,
// line, kind and field. Two scans of unchanged source produce
// identical ordered lists.
func sortFindings(fs []Finding) {
	sort.Slice(fs, func(i, j int) bool {
		a, b := fs[i], fs[j]
		if a.Severity != b.Severity {
			return a.Severity > b.Severity
		}
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Field < b.Field
	})
}
