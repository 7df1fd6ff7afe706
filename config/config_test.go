package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, StoreMemory, cfg.Store.Driver)
	assert.Equal(t, 8, cfg.Executor.MaxWorkers)
	assert.Equal(t, 30*time.Second, cfg.Executor.ShardTimeout)
	assert.Equal(t, 10*time.Second, cfg.Monitor.Interval)
	assert.Equal(t, 3, cfg.Monitor.MaxFailures)
}

func TestLoad_YAMLAndEnv(t *testing.T) {
	t.Chdir(t.TempDir())

	path := filepath.Join(t.TempDir(), "shardd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  addr: ":9000"
store:
  driver: postgres
  database_url: postgres://localhost/meta
executor:
  max_workers: 2
  shard_timeout: 5s
monitor:
  interval: 1m
`), 0o600))

	t.Setenv("SHARDD_MAX_WORKERS", "16")
	t.Setenv("SHARDD_LOG_LEVEL", "debug")
	t.Setenv("SHARDD_ALLOWED_ORIGINS", "http://localhost:5173, ,https://ui.internal")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.HTTP.Addr)
	assert.Equal(t, StorePostgres, cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/meta", cfg.Store.DatabaseURL)
	assert.Equal(t, 16, cfg.Executor.MaxWorkers)
	assert.Equal(t, 5*time.Second, cfg.Executor.ShardTimeout)
	assert.Equal(t, time.Minute, cfg.Monitor.Interval)
	assert.Equal(t, 3, cfg.Monitor.MaxFailures)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, []string{"http://localhost:5173", "https://ui.internal"}, cfg.HTTP.AllowedOrigins)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SHARDD_HTTP_ADDR=:7070\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("SHARDD_HTTP_ADDR") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.HTTP.Addr)
}

func TestLoad_Errors(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("SHARDD_SHARD_TIMEOUT", "soon")
		_, err := Load("")
		assert.ErrorContains(t, err, "SHARDD_SHARD_TIMEOUT")
	})

	t.Run("bad worker count", func(t *testing.T) {
		t.Setenv("SHARDD_MAX_WORKERS", "many")
		_, err := Load("")
		assert.ErrorContains(t, err, "SHARDD_MAX_WORKERS")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"unknown driver", func(c *Config) { c.Store.Driver = "oracle" }, "unknown store driver"},
		{"postgres without url", func(c *Config) { c.Store.Driver = StorePostgres }, "database_url"},
		{"empty addr", func(c *Config) { c.HTTP.Addr = "" }, "http.addr"},
		{"zero workers", func(c *Config) { c.Executor.MaxWorkers = 0 }, "max_workers"},
		{"zero timeout", func(c *Config) { c.Executor.ShardTimeout = 0 }, "shard_timeout"},
		{"zero interval", func(c *Config) { c.Monitor.Interval = 0 }, "interval"},
		{"zero failures", func(c *Config) { c.Monitor.MaxFailures = 0 }, "max_failures"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.errMsg)
		})
	}
}
