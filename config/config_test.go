package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"finplotter/internal/chart"
	"finplotter/internal/indicator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"SQLITE_PATH", "REDIS_ADDR", "REDIS_PASSWORD", "CACHE_TTL_SEC", "HTTP_ADDR",
		"LOG_LEVEL", "CHART_SETUP", "STREAM_INDICATORS", "SNAPSHOT_INTERVAL_SEC",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "data/candles.db", cfg.SQLitePath)
	assert.Empty(t, cfg.RedisAddr)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, time.Minute, cfg.SnapshotInterval)

	configs, err := cfg.StreamConfigs()
	require.NoError(t, err)
	assert.Equal(t, []indicator.StreamConfig{
		{Type: "SMA", Period: 5}, {Type: "SMA", Period: 26},
		{Type: "EMA", Period: 12}, {Type: "EMA", Period: 26},
		{Type: "RSI", Period: 14},
	}, configs)

	setup, err := cfg.Setup()
	require.NoError(t, err)
	assert.Equal(t, chart.DefaultSetup(), setup)
}

func TestLoad_Environment(t *testing.T) {
	clearEnv(t)
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("CACHE_TTL_SEC", "30")
	t.Setenv("STREAM_INDICATORS", "rsi:7")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)

	configs, err := cfg.StreamConfigs()
	require.NoError(t, err)
	assert.Equal(t, []indicator.StreamConfig{{Type: "RSI", Period: 7}}, configs)
}

func TestLoad_DotenvFile(t *testing.T) {
	clearEnv(t)
	// godotenv never overrides variables that are set, even to "".
	// clearEnv restores them on cleanup.
	require.NoError(t, os.Unsetenv("HTTP_ADDR"))
	require.NoError(t, os.Unsetenv("LOG_LEVEL"))

	path := filepath.Join(t.TempDir(), ".env.local")
	require.NoError(t, os.WriteFile(path, []byte("HTTP_ADDR=:9999\nLOG_LEVEL=debug\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_InvalidTTL(t *testing.T) {
	clearEnv(t)
	t.Setenv("CACHE_TTL_SEC", "soon")

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestLoad_SnapshotInterval(t *testing.T) {
	for _, v := range []string{"0", "-5", "1.5"} {
		clearEnv(t)
		t.Setenv("SNAPSHOT_INTERVAL_SEC", v)
		_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
		assert.Error(t, err, "SNAPSHOT_INTERVAL_SEC=%s", v)
	}

	clearEnv(t)
	t.Setenv("SNAPSHOT_INTERVAL_SEC", "1")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, time.Second, cfg.SnapshotInterval)

	// A zero cache TTL stays valid.
	clearEnv(t)
	t.Setenv("CACHE_TTL_SEC", "0")
	cfg, err = Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), cfg.CacheTTL)
}

func TestStreamConfigs_Invalid(t *testing.T) {
	cfg := &Config{StreamIndicators: "SMA:0"}
	_, err := cfg.StreamConfigs()
	assert.ErrorIs(t, err, indicator.ErrInvalidParameter)
}
