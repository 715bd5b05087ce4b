// Package commands implements the racehound subcommands.
package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/kolkov/racehound/hazard"
	"github.com/kolkov/racehound/internal/cli/config"
	"github.com/kolkov/racehound/report"
)

// NewScanCommand creates the scan command.
func NewScanCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "scan [paths...]",
		Short: "Statically scan Go source for concurrency hazards",
		Long: `Scan parses Go source and flags shared-state patterns that tend to
race: unprotected shared writes, check-then-act windows and lazy
initialization without a lock.

Paths may be files, directories or package patterns like ./...
Without arguments the configured default paths are scanned. Findings
print ordered by severity; the command fails when any finding reaches
the fail-on threshold.`,
		Example: `  # Scan the current module
  racehound scan ./...

  # Scan one package and fail the build on Medium findings
  racehound scan --fail-on medium ./internal/store`,
		RunE: runScan,
	}
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg := config.FromContext(cmd.Context())
	log := config.Logger(cmd.Context())

	paths := args
	if len(paths) == 0 {
		paths = cfg.Paths
	}

	scanner := hazard.NewScanner(cfg.ScanOptions(log))
	rep, err := scanner.Scan(paths...)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	renderFindings(out, rep)
	renderScanErrors(out, rep)

	summary := report.Aggregate(nil, []*hazard.Report{rep})
	renderSummary(out, summary)

	gate := report.Gate{FailOn: cfg.GateSeverity(), FailOnRace: true}
	if violations := gate.Check(summary); len(violations) > 0 {
		return fmt.Errorf("gate failed: %s", strings.Join(violations, "; "))
	}
	return nil
}

func renderFindings(w io.Writer, rep *hazard.Report) {
	if len(rep.Findings) == 0 {
		_, _ = fmt.Fprintln(w, "No hazards found.")
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Severity", "Kind", "Location", "Field", "Message"})
	for _, f := range rep.Findings {
		t.AppendRow(table.Row{
			f.Severity,
			f.Kind,
			fmt.Sprintf("%s:%d", f.File, f.Line),
			fmt.Sprintf("%s.%s", f.TypeName, f.Field),
			f.Message,
		})
	}
	t.Render()
}

func renderScanErrors(w io.Writer, rep *hazard.Report) {
	for _, e := range rep.Errors {
		_, _ = fmt.Fprintf(w, "skipped %s: %s\n", e.File, e.Message)
	}
}

func renderSummary(w io.Writer, s report.Summary) {
	_, _ = fmt.Fprintf(w, "\n%d files scanned, %d findings", s.Static.FilesScanned, s.Static.Findings)
	if s.Static.WorstSeverity != "" {
		_, _ = fmt.Fprintf(w, " (worst: %s)", s.Static.WorstSeverity)
	}
	if s.Static.ScanErrors > 0 {
		_, _ = fmt.Fprintf(w, ", %d files skipped", s.Static.ScanErrors)
	}
	_, _ = fmt.Fprintln(w)

	if len(s.Static.BySeverity) > 0 {
		parts := make([]string, 0, 4)
		for _, sev := range []hazard.Severity{hazard.Critical, hazard.High, hazard.Medium, hazard.Low} {
			if n := s.Static.BySeverity[sev.String()]; n > 0 {
				parts = append(parts, fmt.Sprintf("%s: %d", sev, n))
			}
		}
		_, _ = fmt.Fprintln(w, strings.Join(parts, ", "))
	}
}
