// Package config manages goems server configuration using koanf/v2.
//
// Supports YAML files, environment variables, and code defaults. The
// rendezvous pipe path and access delay are ordinarily pinned by the
// server's CLI positional arguments (spec.md §6); this package covers
// everything the CLI leaves unset: max_sessions, log level/format, and
// the metrics HTTP listener.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds the complete goems server configuration.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Metrics MetricsConfig `koanf:"metrics"`
	Log     LogConfig     `koanf:"log"`
}

// ServerConfig holds the core session-dispatch parameters.
type ServerConfig struct {
	// RendezvousPath is the well-known named pipe clients send setup
	// frames to. The goems server requires it as the CLI's first
	// positional argument, which always overrides this field.
	RendezvousPath string `koanf:"rendezvous_path"`

	// MaxSessions is the fixed worker pool size and session queue
	// capacity (MAX_SESSIONS in spec.md §3; reference value 8).
	MaxSessions int `koanf:"max_sessions"`

	// AccessDelay is a per-operation delay applied inside the event
	// catalog, for pedagogical/observability purposes (spec.md
	// GLOSSARY "Access delay"). Normally supplied as the CLI's second
	// positional argument.
	AccessDelay time.Duration `koanf:"access_delay"`
}

// MetricsConfig holds the Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	// Addr is the HTTP listen address for the metrics endpoint (e.g., ":9100").
	Addr string `koanf:"addr"`
	// Path is the URL path for the metrics endpoint (e.g., "/metrics").
	Path string `koanf:"path"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `koanf:"level"`
	// Format is the log output format: "json" or "text".
	Format string `koanf:"format"`
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultConfig returns a Config populated with sensible defaults.
// MaxSessions defaults to 8, the reference MAX_SESSIONS value spec.md
// §3 names.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			RendezvousPath: "/tmp/goems.rendezvous",
			MaxSessions:    8,
			AccessDelay:    0,
		},
		Metrics: MetricsConfig{
			Addr: ":9100",
			Path: "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for goems configuration.
// Variables are named GOEMS_<section>_<key>, e.g., GOEMS_SERVER_MAX_SESSIONS.
const envPrefix = "GOEMS_"

// Load reads configuration from a YAML file at path (if path is
// non-empty; a missing or unreadable file is an error), overlays environment variable
// overrides (GOEMS_ prefix), and merges on top of DefaultConfig().
// Missing fields inherit defaults.
//
// Environment variable mapping:
//
//	GOEMS_SERVER_RENDEZVOUS_PATH -> server.rendezvous_path
//	GOEMS_SERVER_MAX_SESSIONS    -> server.max_sessions
//	GOEMS_SERVER_ACCESS_DELAY    -> server.access_delay
//	GOEMS_METRICS_ADDR           -> metrics.addr
//	GOEMS_METRICS_PATH           -> metrics.path
//	GOEMS_LOG_LEVEL              -> log.level
//	GOEMS_LOG_FORMAT             -> log.format
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// envKeyMapper transforms GOEMS_SERVER_MAX_SESSIONS -> server.max_sessions.
// Strips the GOEMS_ prefix, lowercases, and replaces only the first _
// (the one after the section name) with a dot; underscores inside the
// key are kept (koanf resolves nested keys by dot).
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	parts := strings.SplitN(s, "_", 2)
	if len(parts) != 2 {
		return s
	}
	return parts[0] + "." + parts[1]
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"server.rendezvous_path": defaults.Server.RendezvousPath,
		"server.max_sessions":    defaults.Server.MaxSessions,
		"server.access_delay":    defaults.Server.AccessDelay.String(),
		"metrics.addr":           defaults.Metrics.Addr,
		"metrics.path":           defaults.Metrics.Path,
		"log.level":              defaults.Log.Level,
		"log.format":             defaults.Log.Format,
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

// Validation errors.
var (
	// ErrEmptyRendezvousPath indicates the rendezvous pipe path is empty.
	ErrEmptyRendezvousPath = errors.New("server.rendezvous_path must not be empty")

	// ErrInvalidMaxSessions indicates max_sessions is not positive.
	ErrInvalidMaxSessions = errors.New("server.max_sessions must be >= 1")

	// ErrInvalidAccessDelay indicates a negative access delay.
	ErrInvalidAccessDelay = errors.New("server.access_delay must be >= 0")

	// ErrEmptyMetricsAddr indicates the metrics listen address is empty.
	ErrEmptyMetricsAddr = errors.New("metrics.addr must not be empty")
)

// Validate checks the configuration for logical errors. Returns the
// first validation error encountered.
func Validate(cfg *Config) error {
	if cfg.Server.RendezvousPath == "" {
		return ErrEmptyRendezvousPath
	}
	if cfg.Server.MaxSessions < 1 {
		return ErrInvalidMaxSessions
	}
	if cfg.Server.AccessDelay < 0 {
		return ErrInvalidAccessDelay
	}
	if cfg.Metrics.Addr == "" {
		return ErrEmptyMetricsAddr
	}
	return nil
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the
// corresponding slog.Level. Unknown values default to slog.LevelInfo.
//
// Recognized values: "debug", "info", "warn", "error" (case-insensitive).
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
