package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"finplotter/internal/chart"
	"finplotter/internal/indicator"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// DefaultDotenvFile is loaded by Load when it exists.
const DefaultDotenvFile = ".env.local"

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Storage
	SQLitePath    string
	RedisAddr     string // empty disables the chart cache
	RedisPassword string
	CacheTTL      time.Duration

	// Server
	HTTPAddr string
	LogLevel string

	// Charts: path to a YAML chart setup, empty for the default setup
	ChartSetup string

	// Streaming indicators, e.g. "SMA:5,SMA:26,EMA:12,EMA:26,RSI:14"
	StreamIndicators string
	SnapshotInterval time.Duration
}

// Load reads the dotenv files (DefaultDotenvFile when none are given) that
// exist, then builds the configuration from the environment with defaults.
// Variables already present in the environment win over dotenv values.
func Load(dotenvFiles ...string) (*Config, error) {
	if len(dotenvFiles) == 0 {
		dotenvFiles = []string{DefaultDotenvFile}
	}
	for _, f := range dotenvFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, errors.Wrapf(err, "load dotenv %s", f)
		}
		slog.Debug("loaded dotenv file", "component", "config", "file", f)
	}

	ttl, err := getSeconds("CACHE_TTL_SEC", 300, 0)
	if err != nil {
		return nil, err
	}
	snapEvery, err := getSeconds("SNAPSHOT_INTERVAL_SEC", 60, 1)
	if err != nil {
		return nil, err
	}

	return &Config{
		SQLitePath:    getEnv("SQLITE_PATH", "data/candles.db"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		CacheTTL:      ttl,

		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		ChartSetup: getEnv("CHART_SETUP", ""),

		StreamIndicators: getEnv("STREAM_INDICATORS", "SMA:5,SMA:26,EMA:12,EMA:26,RSI:14"),
		SnapshotInterval: snapEvery,
	}, nil
}

// StreamConfigs parses and validates StreamIndicators.
func (c *Config) StreamConfigs() ([]indicator.StreamConfig, error) {
	return indicator.ParseStreamSpecs(c.StreamIndicators)
}

// Setup returns the chart setup from ChartSetup, or the default setup.
func (c *Config) Setup() (chart.Setup, error) {
	if c.ChartSetup == "" {
		return chart.DefaultSetup(), nil
	}
	return chart.LoadSetup(c.ChartSetup)
}

// getSeconds reads a whole number of seconds no smaller than min.
func getSeconds(key string, fallback, min int) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return time.Duration(fallback) * time.Second, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min {
		return 0, errors.Errorf("config: %s must be an integer >= %d, got %q", key, min, v)
	}
	return time.Duration(n) * time.Second, nil
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}
