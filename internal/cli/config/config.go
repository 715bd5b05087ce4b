// Package config loads the racehound CLI configuration.
//
// Precedence (highest to lowest): flags > environment variables >
// config file > defaults. The config file is racehound.yaml or
// racehound.yml, searched upward from the working directory.
package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/kolkov/racehound/hazard"
)

// maxUpwardSearchLevels limits how far up the directory tree the
// config file search goes.
const maxUpwardSearchLevels = 10

// Config holds all CLI settings.
type Config struct {
	// Paths are the default scan targets when the command line names
	// none.
	Paths []string `koanf:"paths"`

	// FailOn is the severity at which findings trip the gate.
	FailOn string `koanf:"fail_on"`

	IncludeTests bool `koanf:"include_tests"`
	Parallelism  int  `koanf:"parallelism"`
	Verbose      bool `koanf:"verbose"`

	Policy PolicyConfig `koanf:"policy"`

	// ConfigFile is where the values came from, empty when no file
	// was found.
	ConfigFile string `koanf:"-"`
}

// PolicyConfig mirrors hazard.Policy in file form.
type PolicyConfig struct {
	WriteOnceRatio float64 `koanf:"write_once_ratio"`
	GuardedRatio   float64 `koanf:"guarded_ratio"`
}

// Default returns the built-in configuration.
func Default() *Config {
	p := hazard.DefaultPolicy()
	return &Config{
		Paths:  []string{"./..."},
		FailOn: "high",
		Policy: PolicyConfig{
			WriteOnceRatio: p.WriteOnceRatio,
			GuardedRatio:   p.GuardedRatio,
		},
	}
}

func defaults() map[string]interface{} {
	d := Default()
	return map[string]interface{}{
		"paths":                   d.Paths,
		"fail_on":                 d.FailOn,
		"include_tests":           d.IncludeTests,
		"parallelism":             d.Parallelism,
		"verbose":                 d.Verbose,
		"policy.write_once_ratio": d.Policy.WriteOnceRatio,
		"policy.guarded_ratio":    d.Policy.GuardedRatio,
	}
}

// Load assembles the configuration. cfgFile forces a specific config
// file; flags override everything else when explicitly set.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	used := findConfigFile(cfgFile)
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("read config %s: %w", used, err)
		}
	}

	// RACEHOUND_FAIL_ON=critical maps to fail_on.
	if err := k.Load(env.Provider("RACEHOUND_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "RACEHOUND_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			// Only flags the user actually set may override.
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.ConfigFile = used
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// findConfigFile resolves the config file path. An explicit path is
// returned as-is so a missing file fails loudly instead of silently
// falling back.
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for i := 0; i < maxUpwardSearchLevels; i++ {
		for _, name := range []string{"racehound.yaml", "racehound.yml"} {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// Validate checks severity names and policy ratios.
func (c *Config) Validate() error {
	if _, err := hazard.ParseSeverity(c.FailOn); err != nil {
		return fmt.Errorf("fail_on: %w", err)
	}
	if r := c.Policy.WriteOnceRatio; r <= 0 || r > 1 {
		return fmt.Errorf("policy.write_once_ratio must be in (0, 1], got %v", r)
	}
	if r := c.Policy.GuardedRatio; r <= 0 || r > 1 {
		return fmt.Errorf("policy.guarded_ratio must be in (0, 1], got %v", r)
	}
	if c.Parallelism < 0 {
		return fmt.Errorf("parallelism must not be negative, got %d", c.Parallelism)
	}
	return nil
}

// GateSeverity returns the parsed fail_on severity. Load validated it.
func (c *Config) GateSeverity() hazard.Severity {
	sev, err := hazard.ParseSeverity(c.FailOn)
	if err != nil {
		return hazard.High
	}
	return sev
}

// ScanOptions builds scanner options from the configuration.
func (c *Config) ScanOptions(log *slog.Logger) hazard.ScanOptions {
	return hazard.ScanOptions{
		Policy: hazard.Policy{
			WriteOnceRatio: c.Policy.WriteOnceRatio,
			GuardedRatio:   c.Policy.GuardedRatio,
		},
		IncludeTests: c.IncludeTests,
		Parallelism:  c.Parallelism,
		Logger:       log,
	}
}

type configKey struct{}
type loggerKey struct{}

// NewContext stashes the config and logger for command handlers.
func NewContext(ctx context.Context, cfg *Config, log *slog.Logger) context.Context {
	ctx = context.WithValue(ctx, configKey{}, cfg)
	return context.WithValue(ctx, loggerKey{}, log)
}

// FromContext returns the loaded config, or the defaults when the
// root command has not run (direct command construction in tests).
func FromContext(ctx context.Context) *Config {
	if c, ok := ctx.Value(configKey{}).(*Config); ok {
		return c
	}
	return Default()
}

// Logger retrieves the logger from ctx, discarding when absent.
func Logger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}
