package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoader_DefaultsWithoutFile(t *testing.T) {
	chdirTemp(t)
	t.Setenv("NO_DOTENV", "1")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Minute, cfg.Sparkline.MemoryTTL)
	assert.Equal(t, 24*time.Hour, cfg.Sparkline.PersistentTTL)
	assert.Equal(t, 150, cfg.Sparkline.MaxMemoryEntries)
	assert.Equal(t, 200, cfg.Sparkline.MaxPersistentEntries)
	assert.Equal(t, 12, cfg.Sparkline.BatchSize)
	assert.Equal(t, 2, cfg.Sparkline.MaxParallelBatches)
	assert.Equal(t, 250*time.Millisecond, cfg.Sparkline.BatchDelay)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.Equal(t, time.Second, cfg.Retry.InitialDelay)
	assert.Equal(t, 15*time.Minute, cfg.Sparkline.RefreshInterval)
	assert.Equal(t, "memory", cfg.Store.Backend)
}

func TestLoader_FileAndEnvOverrides(t *testing.T) {
	dir := chdirTemp(t)
	t.Setenv("NO_DOTENV", "1")

	yaml := []byte(`
sparkline:
  memory_ttl: 10m
  batch_size: 6
store:
  backend: redis
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))

	t.Setenv("SPARKLINE_PERSISTENT_TTL", "48h")
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("WARMUP_SYMBOLS", "BTC, ETH ,,xyz:TSLA")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 10*time.Minute, cfg.Sparkline.MemoryTTL)
	assert.Equal(t, 48*time.Hour, cfg.Sparkline.PersistentTTL)
	assert.Equal(t, 6, cfg.Sparkline.BatchSize)
	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, "cache:6380", cfg.Store.Redis.Addr)
	assert.Equal(t, []string{"BTC", "ETH", "xyz:TSLA"}, cfg.Sparkline.WarmupSymbols)
	assert.NoError(t, NewValidator().Validate(cfg))
}

func TestLoader_DotenvFile(t *testing.T) {
	dir := chdirTemp(t)
	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("LOG_LEVEL=debug\n"), 0o600))
	t.Setenv("ENV_FILE", envFile)
	t.Setenv("NO_DOTENV", "")
	t.Cleanup(func() { _ = os.Unsetenv("LOG_LEVEL") })

	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestGetEnvironment(t *testing.T) {
	t.Setenv("ENV", "")
	t.Setenv("ENVIRONMENT", "")
	assert.Equal(t, "development", GetEnvironment())

	t.Setenv("ENVIRONMENT", "Production")
	assert.Equal(t, "production", GetEnvironment())
}
