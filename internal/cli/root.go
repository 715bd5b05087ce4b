// Package cli provides the racehound command-line interface.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kolkov/racehound/internal/cli/commands"
	"github.com/kolkov/racehound/internal/cli/config"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "racehound",
		Short: "Concurrency hazard detection for Go code",
		Long: `Racehound finds concurrency hazards two ways: a static scanner flags
risky shared-state patterns in Go source, and a stress harness hammers
instrumented code from many OS threads to catch races in the act.

The scan command covers the static side. The stress harness lives in
the racetest package and runs inside your own tests.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands.
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}
			cfg, err := config.Load(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}
			level := slog.LevelWarn
			if cfg.Verbose {
				level = slog.LevelDebug
			}
			log := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
				Level: level,
			}))
			if cfg.ConfigFile != "" {
				log.Debug("using config file", "path", cfg.ConfigFile)
			}
			cmd.SetContext(config.NewContext(cmd.Context(), cfg, log))
			return nil
		},
	}

	rootCmd.SetVersionTemplate("racehound {{.Version}}\n")

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: racehound.yaml, searched upward)")
	flags.BoolP("verbose", "v", false, "verbose output")
	flags.String("fail-on", "", "severity that fails the gate (low|medium|high|critical)")
	flags.Bool("include-tests", false, "scan _test.go files too")
	flags.Int("parallelism", 0, "concurrent file parses (0 = GOMAXPROCS)")

	rootCmd.AddCommand(commands.NewScanCommand())
	rootCmd.AddCommand(commands.NewRulesCommand())
	rootCmd.AddCommand(commands.NewVersionCommand(Version, GitCommit, BuildDate))

	return rootCmd
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}
