package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "sqlite", cfg.Collector.Database.Driver)
	assert.Equal(t, 10*time.Second, cfg.Collector.CacheRefreshInterval)
	assert.Equal(t, 5*time.Second, cfg.Fleet.SendInterval)
	assert.Equal(t, 10*time.Second, cfg.Fleet.PollInterval)
	assert.Equal(t, 5, cfg.Fleet.Workers)
	assert.Equal(t, 3, cfg.Fleet.MaxAttempts)
}

func TestLoad_MissingFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Collector.HTTPAddr)
}

func TestLoad_YAMLOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "envmon.yaml")
	body := `
log_level: debug
collector:
  http_addr: ":9090"
  database:
    driver: postgres
    dsn: postgres://localhost/envmon
fleet:
  send_interval: 2s
  workers: 8
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, ":9090", cfg.Collector.HTTPAddr)
	assert.Equal(t, "postgres", cfg.Collector.Database.Driver)
	assert.Equal(t, 2*time.Second, cfg.Fleet.SendInterval)
	assert.Equal(t, 8, cfg.Fleet.Workers)
	// Untouched values keep their defaults.
	assert.Equal(t, 3, cfg.Fleet.MaxAttempts)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ENVMON_DB_DSN", "/tmp/override.db")
	t.Setenv("ENVMON_FLEET_SEND_INTERVAL", "1s")
	t.Setenv("ENVMON_USE_CACHED_LOOKUP", "true")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/tmp/override.db", cfg.Collector.Database.DSN)
	assert.Equal(t, time.Second, cfg.Fleet.SendInterval)
	assert.True(t, cfg.Collector.UseCachedLookup)
}

func TestValidate_Errors(t *testing.T) {
	cfg := Default()
	cfg.Collector.Database.Driver = "oracle"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Fleet.Workers = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Fleet.SendInterval = 0
	assert.Error(t, cfg.Validate())
}
