// Package config provides configuration management for the melport CLI.
//
// Values are layered, highest priority last: built-in defaults, a
// melport.yaml config file, MELPORT_ environment variables, then explicitly
// set command-line flags.
package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// loggerKey stores the logger in the command context.
type loggerKey struct{}

// configKey stores the loaded config in the command context.
type configKey struct{}

// Default configuration values.
const (
	DefaultAddress     = "127.0.0.1:7001"
	DefaultDialTimeout = 5 * time.Second
	DefaultExecTimeout = 30 * time.Second
	DefaultLogLevel    = "warn"
	DefaultLogFormat   = "text"
)

// Config holds all CLI configuration options.
type Config struct {
	Address     string        `koanf:"address"`
	EchoAddress string        `koanf:"echo_address"`
	DialTimeout time.Duration `koanf:"dial_timeout"`
	ExecTimeout time.Duration `koanf:"exec_timeout"`
	LogLevel    string        `koanf:"log_level"`
	LogFormat   string        `koanf:"log_format"`
	HistoryFile string        `koanf:"history_file"`
	Verbose     bool          `koanf:"verbose"`
}

// findConfigFile finds the config file to use.
// Priority: explicit path > melport.yaml > melport.yml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{"melport.yaml", "melport.yml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

func defaultHistoryFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".melport_history")
}

// Load loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, string, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(map[string]any{
		"address":      DefaultAddress,
		"echo_address": "",
		"dial_timeout": DefaultDialTimeout.String(),
		"exec_timeout": DefaultExecTimeout.String(),
		"log_level":    DefaultLogLevel,
		"log_format":   DefaultLogFormat,
		"history_file": defaultHistoryFile(),
		"verbose":      false,
	}, "."), nil); err != nil {
		return nil, "", fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	configFileUsed := findConfigFile(cfgFile)
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, "", fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Environment variables: MELPORT_DIAL_TIMEOUT -> dial_timeout
	if err := k.Load(env.Provider("MELPORT_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "MELPORT_"))
	}), nil); err != nil {
		return nil, "", fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags, only the ones explicitly set
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, "", fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, "", fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, "", err
	}
	return &cfg, configFileUsed, nil
}

func (c *Config) validate() error {
	if c.Address == "" {
		return fmt.Errorf("address must not be empty")
	}
	if c.DialTimeout <= 0 {
		return fmt.Errorf("dial_timeout must be positive, got %s", c.DialTimeout)
	}
	if c.ExecTimeout <= 0 {
		return fmt.Errorf("exec_timeout must be positive, got %s", c.ExecTimeout)
	}
	if _, err := c.level(); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}
	return nil
}

func (c *Config) level() (slog.Level, error) {
	name := c.LogLevel
	if c.Verbose {
		name = "debug"
	}
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("log_level must be debug, info, warn or error, got %q", c.LogLevel)
	}
}

// LogHandler builds the slog handler the configuration describes.
func (c *Config) LogHandler(w io.Writer) slog.Handler {
	level, err := c.level()
	if err != nil {
		level = slog.LevelWarn
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// WithLogger stores a logger in the context.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger retrieves the logger from the command context, falling back to a
// discard logger.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

// WithConfig stores the loaded config in the context.
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// GetConfig retrieves the loaded config from the command context.
func GetConfig(ctx context.Context) *Config {
	if c, ok := ctx.Value(configKey{}).(*Config); ok {
		return c
	}
	return nil
}
