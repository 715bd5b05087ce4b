package hazard

import "testing"

func TestParseSeverity(t *testing.T) {
	cases := []struct {
		in      string
		want    Severity
		wantErr bool
	}{
		{"low", Low, false},
		{"Medium", Medium, false},
		{"HIGH", High, false},
		{" critical ", Critical, false},
		{"fatal", Low, true},
		{"", Low, true},
	}
	for _, tc := range cases {
		got, err := ParseSeverity(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseSeverity(%q) = %v, want error", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseSeverity(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseSeverity(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestSeverityOrdering(t *testing.T) {
	if !(Low < Medium && Medium < High && High < Critical) {
		t.Fatalf("severity constants are not ordered: %d %d %d %d", Low, Medium, High, Critical)
	}
}

func TestReportMaxSeverity(t *testing.T) {
	var rep Report
	if _, ok := rep.MaxSeverity(); ok {
		t.Errorf("empty report claims a max severity")
	}

	rep.Findings = []Finding{
		{Severity: Medium},
		{Severity: Critical},
		{Severity: Low},
	}
	max, ok := rep.MaxSeverity()
	if !ok || max != Critical {
		t.Errorf("MaxSeverity = %v, %v, want Critical, true", max, ok)
	}

	counts := rep.CountBySeverity()
	if counts[Critical] != 1 || counts[Medium] != 1 || counts[Low] != 1 || counts[High] != 0 {
		t.Errorf("CountBySeverity = %v", counts)
	}
}

func TestKindAndSeverityStrings(t *testing.T) {
	if UnprotectedSharedWrite.String() != "UnprotectedSharedWrite" ||
		CheckThenAct.String() != "CheckThenAct" ||
		LazyInitWithoutLock.String() != "LazyInitWithoutLock" {
		t.Errorf("kind names changed: %v %v %v",
			UnprotectedSharedWrite, CheckThenAct, LazyInitWithoutLock)
	}
	if Critical.String() != "Critical" || Low.String() != "Low" {
		t.Errorf("severity names changed: %v %v", Critical, Low)
	}
	if Kind(99).String() == "" || Severity(99).String() == "" {
		t.Errorf("out-of-range values must still print")
	}
}
