package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/kolkov/racehound/hazard"
)

// NewRulesCommand creates the rules command.
func NewRulesCommand() *cobra.Command {
	var full bool
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List the hazard patterns the scanner detects",
		Long: `Rules lists the detection rules in the order the scanner evaluates
them. Use --full for the rationale and a bad/good example per rule.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listRules(cmd.OutOrStdout(), full)
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "show rationale and examples")
	return cmd
}

func listRules(w io.Writer, full bool) error {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Kind", "Max severity", "Summary"})
	for _, r := range hazard.Rules() {
		t.AppendRow(table.Row{r.Kind, r.Severity, r.Summary})
	}
	t.Render()

	if !full {
		return nil
	}
	for _, r := range hazard.Rules() {
		_, _ = fmt.Fprintf(w, "\n%s\n", r.Kind)
		_, _ = fmt.Fprintf(w, "  %s\n", strings.ReplaceAll(strings.TrimSpace(r.Rationale), "\n", "\n  "))
		_, _ = fmt.Fprintf(w, "\n  Bad:\n%s\n", indent(r.Bad, "    "))
		_, _ = fmt.Fprintf(w, "\n  Good:\n%s\n", indent(r.Good, "    "))
	}
	return nil
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
