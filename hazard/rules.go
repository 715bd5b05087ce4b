package hazard

import (
	"fmt"
	"sort"
	"strings"
)

// Policy holds the tunable heuristics that downgrade severities.
// Numbers are ratios in [0,1]; the zero value means defaults.
type Policy struct {
	// WriteOnceRatio is the fraction of a field's writes that must sit
	// in init-like methods before an unprotected write stops being
	// Critical. Fields written almost exclusively during setup are
	// usually published once and read thereafter.
	WriteOnceRatio float64

	// GuardedRatio is the fraction of a field's accesses that must be
	// under a lock before a pattern counts as mostly mitigated.
	GuardedRatio float64
}

// DefaultPolicy returns the tuning the CLI ships with.
func DefaultPolicy() Policy {
	return Policy{WriteOnceRatio: 0.85, GuardedRatio: 0.95}
}

func (p Policy) normalized() Policy {
	if p.WriteOnceRatio <= 0 || p.WriteOnceRatio > 1 {
		p.WriteOnceRatio = 0.85
	}
	if p.GuardedRatio <= 0 || p.GuardedRatio > 1 {
		p.GuardedRatio = 0.95
	}
	return p
}

// Rule couples a pattern with its documentation and its check.
// Rules run in slice order over each type model; a check-then-act site
// is claimed by the first rule that matches it and never reported
// twice.
type Rule struct {
	Kind      Kind
	Severity  Severity // worst case the rule can emit
	Summary   string
	Rationale string
	Bad       string
	Good      string

	check func(Policy, *typeModel) []Finding
}

// rules is the evaluation order. LazyInitWithoutLock runs before
// CheckThenAct so a nil-check initialization is reported once, under
// the more specific kind.
var rules = []Rule{lazyInitRule, checkThenActRule, unprotectedWriteRule}

// Rules returns the catalog in evaluation order.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

var lazyInitRule = Rule{
	Kind:     LazyInitWithoutLock,
	Severity: Critical,
	Summary:  "field initialized on first use behind a bare nil check",

	Rationale: `Two goroutines can both observe nil and both run the
initialization. At best the value is constructed twice; at worst one
goroutine uses a half-built value the other is still filling in.`,

	Bad: `if s.conn == nil {
	s.conn = dial()
}
return s.conn`,

	Good: `s.once.Do(func() { s.conn = dial() })
return s.conn`,

	check: func(p Policy, m *typeModel) []Finding {
		var out []Finding
		seen := make(map[string]bool)
		for _, site := range m.checkActs {
			if !site.lazyInit || site.guarded {
				continue
			}
			key := dedupeKey(site)
			if seen[key] {
				continue
			}
			seen[key] = true
			sev := Critical
			switch {
			case mostlyGuarded(p, m.fields[site.field]):
				sev = Medium
			case m.synchronizesAnything():
				sev = High
			}
			out = append(out, Finding{
				File:     site.file,
				Line:     site.line,
				TypeName: m.key.name,
				Field:    site.field,
				Method:   site.method,
				Kind:     LazyInitWithoutLock,
				Severity: sev,
				Message: fmt.Sprintf("%s.%s is lazily initialized behind a nil check with no lock in %s",
					m.key.name, site.field, site.method),
				Suggestion: fmt.Sprintf("initialize %s once with sync.Once, or re-check it under a mutex", site.field),
			})
		}
		return out
	},
}

var checkThenActRule = Rule{
	Kind:     CheckThenAct,
	Severity: High,
	Summary:  "field tested and then written with no lock across the window",

	Rationale: `The state can change between the test and the write.
A balance check followed by a debit, or a "not yet registered" check
followed by an insert, silently does the wrong thing under contention
even though each step looks correct on its own.`,

	Bad: `if s.balance >= amount {
	s.balance -= amount
}`,

	Good: `s.mu.Lock()
if s.balance >= amount {
	s.balance -= amount
}
s.mu.Unlock()`,

	check: func(p Policy, m *typeModel) []Finding {
		var out []Finding
		seen := make(map[string]bool)
		for _, site := range m.checkActs {
			if site.lazyInit || site.guarded {
				continue
			}
			key := dedupeKey(site)
			if seen[key] {
				continue
			}
			seen[key] = true
			sev := High
			if mostlyGuarded(p, m.fields[site.field]) {
				sev = Medium
			}
			out = append(out, Finding{
				File:     site.file,
				Line:     site.line,
				TypeName: m.key.name,
				Field:    site.field,
				Method:   site.method,
				Kind:     CheckThenAct,
				Severity: sev,
				Message: fmt.Sprintf("%s.%s is tested and then written in %s with no lock across the window",
					m.key.name, site.field, site.method),
				Suggestion: fmt.Sprintf("hold one lock across both the check and the update of %s", site.field),
			})
		}
		return out
	},
}

var unprotectedWriteRule = Rule{
	Kind:     UnprotectedSharedWrite,
	Severity: Critical,
	Summary:  "field written from several methods of a type with no synchronization at all",

	Rationale: `When nothing in the type locks, every pair of concurrent
method calls that touch the field is a potential lost update. Fields
only written during initialization rank lower: they are usually
published once before any goroutine starts.`,

	Bad: `func (c *Counter) Incr() { c.n++ }
func (c *Counter) Clear() { c.n = 0 }`,

	Good: `func (c *Counter) Incr() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}`,

	check: func(p Policy, m *typeModel) []Finding {
		if !m.declared || m.synchronizesAnything() {
			return nil
		}
		var out []Finding
		for _, name := range m.fieldOrder {
			fi := m.fields[name]
			if !fi.declared || fi.syncType || fi.writerCount() < 2 {
				continue
			}
			first := fi.writes[0]
			ratio := initLikeWriteRatio(fi)
			sev := Critical
			switch {
			case ratio >= p.GuardedRatio:
				sev = Low
			case ratio >= p.WriteOnceRatio:
				sev = Medium
			}
			out = append(out, Finding{
				File:     first.file,
				Line:     first.line,
				TypeName: m.key.name,
				Field:    name,
				Method:   first.method,
				Kind:     UnprotectedSharedWrite,
				Severity: sev,
				Message: fmt.Sprintf("%s.%s is written from %d methods and nothing in %s synchronizes",
					m.key.name, name, fi.writerCount(), m.key.name),
				Suggestion: fmt.Sprintf("guard %s with a sync.Mutex held by every accessor, or use an atomic type", name),
			})
		}
		return out
	},
}

func dedupeKey(site checkActSite) string {
	return fmt.Sprintf("%s:%d:%s", site.file, site.line, site.field)
}

// mostlyGuarded reports whether at least GuardedRatio of the field's
// accesses happen under a lock.
func mostlyGuarded(p Policy, fi *fieldInfo) bool {
	if fi == nil {
		return false
	}
	total, guarded := 0, 0
	for _, a := range fi.writes {
		total++
		if a.guarded {
			guarded++
		}
	}
	for _, a := range fi.reads {
		total++
		if a.guarded {
			guarded++
		}
	}
	if total == 0 {
		return false
	}
	return float64(guarded)/float64(total) >= p.GuardedRatio
}

// initLikeWriteRatio is the fraction of writes made from init-like
// methods. High values suggest a write-once field.
func initLikeWriteRatio(fi *fieldInfo) float64 {
	if len(fi.writes) == 0 {
		return 0
	}
	n := 0
	for _, w := range fi.writes {
		if isInitLike(w.method) {
			n++
		}
	}
	return float64(n) / float64(len(fi.writes))
}

func isInitLike(method string) bool {
	l := strings.ToLower(method)
	return strings.HasPrefix(l, "init") ||
		strings.HasPrefix(l, "reset") ||
		strings.HasPrefix(l, "setdefault")
}

// evaluateModels runs the rule list over every type, visiting types in
// source order so repeated scans emit identical reports.
func evaluateModels(p Policy, models map[typeKey]*typeModel) []Finding {
	p = p.normalized()
	keys := make([]typeKey, 0, len(models))
	for k := range models {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := models[keys[i]], models[keys[j]]
		if a.file != b.file {
			return a.file < b.file
		}
		if a.line != b.line {
			return a.line < b.line
		}
		return keys[i].name < keys[j].name
	})
	var out []Finding
	for _, k := range keys {
		for _, r := range rules {
			out = append(out, r.check(p, models[k])...)
		}
	}
	sortFindings(out)
	return out
}
