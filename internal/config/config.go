// Package config provides configuration types and defaults for strata.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zjrosen/strata/internal/log"
	"github.com/zjrosen/strata/internal/tracing"
)

// Config holds all configuration options for strata.
type Config struct {
	Strict   bool           `mapstructure:"strict"`
	Devtools bool           `mapstructure:"devtools"`
	Getters  GettersConfig  `mapstructure:"getters"`
	Log      LogConfig      `mapstructure:"log"`
	Watch    WatchConfig    `mapstructure:"watch"`
	Tracing  tracing.Config `mapstructure:"tracing"`
}

// GettersConfig controls derived value evaluation.
type GettersConfig struct {
	// Cache keeps getter results until the next commit. Disable it to
	// re-run getters on every read.
	Cache bool `mapstructure:"cache"`
}

// LogConfig holds logging options.
type LogConfig struct {
	// Path of the log file. Empty disables file logging.
	Path  string `mapstructure:"path"`
	Level string `mapstructure:"level"` // debug, info (default), warn, error
}

// WatchConfig holds hot reload options.
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// DefaultTracesFilePath returns the default path for trace file export.
// Returns ~/.config/strata/traces/traces.jsonl or empty string if home dir unavailable.
func DefaultTracesFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "strata", "traces", "traces.jsonl")
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	traceCfg := tracing.DefaultConfig()
	traceCfg.FilePath = DefaultTracesFilePath()

	return Config{
		Strict:   false,
		Devtools: false,
		Getters:  GettersConfig{Cache: true},
		Log: LogConfig{
			Level: "info",
		},
		Watch: WatchConfig{
			Debounce: 300 * time.Millisecond,
		},
		Tracing: traceCfg,
	}
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	if err := ValidateLog(c.Log); err != nil {
		return err
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative, got %s", c.Watch.Debounce)
	}
	return ValidateTracing(c.Tracing)
}

// ValidateLog checks logging configuration for errors.
func ValidateLog(cfg LogConfig) error {
	switch cfg.Level {
	case "", "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("log.level must be \"debug\", \"info\", \"warn\", or \"error\", got %q", cfg.Level)
	}
}

// ValidateTracing checks tracing configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateTracing(cfg tracing.Config) error {
	if cfg.SampleRate < 0.0 || cfg.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", cfg.SampleRate)
	}

	if cfg.Exporter != "" {
		switch cfg.Exporter {
		case tracing.ExporterNone, tracing.ExporterFile, tracing.ExporterStdout, tracing.ExporterOTLP:
		default:
			return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", cfg.Exporter)
		}
	}

	// Path requirements only matter when tracing is on
	if cfg.Enabled {
		if cfg.Exporter == tracing.ExporterFile && cfg.FilePath == "" {
			return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
		}
		if cfg.Exporter == tracing.ExporterOTLP && cfg.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}

	return nil
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# Strata Configuration

# Panic when state changes outside a mutation handler (development only)
strict: false

# Publish store:init, store:mutation and store:error events to the log
devtools: false

getters:
  cache: true   # Keep getter results until the next commit

log:
  # path: strata.log   # Log file (default: no file logging)
  level: info          # debug, info, warn, error

# Hot reload of manifests (strata run --watch)
watch:
  debounce: 300ms

# Distributed tracing of commits, dispatches and module operations
# tracing:
#   enabled: false                 # Enable/disable tracing (default: false)
#   exporter: file                 # Export backend: none, file, stdout, otlp (default: file)
#   file_path: ~/.config/strata/traces/traces.jsonl  # Output file for file exporter
#   otlp_endpoint: localhost:4317  # OTLP collector endpoint (for otlp exporter)
#   sample_rate: 1.0               # Trace sampling rate 0.0-1.0 (default: 1.0)
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
