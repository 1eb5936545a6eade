package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dantte-lp/goems/internal/config"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, config.Validate(config.DefaultConfig()))
}

func TestDefaultConfigMaxSessionsIsReferenceValue(t *testing.T) {
	assert.Equal(t, 8, config.DefaultConfig().Server.MaxSessions)
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig().Server.MaxSessions, cfg.Server.MaxSessions)
	assert.Equal(t, config.DefaultConfig().Metrics.Addr, cfg.Metrics.Addr)
}

func TestLoadFromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  rendezvous_path: /tmp/custom.rendezvous
  max_sessions: 4
log:
  level: debug
  format: text
`), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom.rendezvous", cfg.Server.RendezvousPath)
	assert.Equal(t, 4, cfg.Server.MaxSessions)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  max_sessions: 4
`), 0o644))

	t.Setenv("GOEMS_SERVER_MAX_SESSIONS", "16")
	t.Setenv("GOEMS_LOG_LEVEL", "warn")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Server.MaxSessions)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestValidateRejectsEmptyRendezvousPath(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.RendezvousPath = ""
	assert.ErrorIs(t, config.Validate(cfg), config.ErrEmptyRendezvousPath)
}

func TestValidateRejectsNonPositiveMaxSessions(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.MaxSessions = 0
	assert.ErrorIs(t, config.Validate(cfg), config.ErrInvalidMaxSessions)
}

func TestValidateRejectsEmptyMetricsAddr(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Metrics.Addr = ""
	assert.ErrorIs(t, config.Validate(cfg), config.ErrEmptyMetricsAddr)
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]string{
		"debug": "DEBUG",
		"info":  "INFO",
		"warn":  "WARN",
		"error": "ERROR",
		"bogus": "INFO",
	}
	for input, want := range cases {
		t.Run(input, func(t *testing.T) {
			assert.Equal(t, want, config.ParseLogLevel(input).String())
		})
	}
}
