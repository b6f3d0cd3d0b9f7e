package redis

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"finplotter/internal/model"

	goredis "github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

const (
	defaultChartTTL     = 5 * time.Minute
	defaultMaxFailures  = 5
	defaultResetTimeout = 10 * time.Second
	scanBatch           = 200
)

// Cache results reported through Cache.OnResult.
const (
	ResultHit    = "hit"
	ResultMiss   = "miss"
	ResultError  = "error"
	ResultBypass = "bypass"
)

var _ model.ChartCache = (*Cache)(nil)

// Config configures the Redis chart cache.
type Config struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int
	TTL      time.Duration

	MaxFailures  int
	ResetTimeout time.Duration
}

// Cache stores encoded charts in Redis behind a circuit breaker.
// A nil client disables caching: every lookup misses and writes are dropped.
type Cache struct {
	client *goredis.Client
	cb     *CircuitBreaker
	ttl    time.Duration

	// OnResult, when set, receives one of the Result* constants per lookup.
	OnResult func(result string)
}

// New connects to Redis and returns a Cache. An empty Addr returns a
// disabled cache without error.
func New(cfg Config) (*Cache, error) {
	if cfg.Addr == "" {
		slog.Info("chart cache disabled", "component", "redis")
		return NewWithClient(nil, cfg.TTL, nil), nil
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "redis ping %s", cfg.Addr)
	}

	maxFailures := cfg.MaxFailures
	if maxFailures <= 0 {
		maxFailures = defaultMaxFailures
	}
	reset := cfg.ResetTimeout
	if reset <= 0 {
		reset = defaultResetTimeout
	}

	slog.Info("connected", "component", "redis", "addr", cfg.Addr)
	return NewWithClient(client, cfg.TTL, NewCircuitBreaker(maxFailures, reset)), nil
}

// NewWithClient wraps an existing client. A nil breaker gets the defaults.
func NewWithClient(client *goredis.Client, ttl time.Duration, cb *CircuitBreaker) *Cache {
	if ttl <= 0 {
		ttl = defaultChartTTL
	}
	if cb == nil {
		cb = NewCircuitBreaker(defaultMaxFailures, defaultResetTimeout)
	}
	return &Cache{client: client, cb: cb, ttl: ttl}
}

// Key builds the cache key of a chart: "chart:{symbol}:{setupHash}:{limit}".
func Key(symbol, setupHash string, limit int) string {
	return symbolPrefix(symbol) + setupHash + ":" + strconv.Itoa(limit)
}

func symbolPrefix(symbol string) string {
	return "chart:" + safe(symbol) + ":"
}

// safe replaces characters that would break the key layout.
func safe(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	return strings.ReplaceAll(s, ":", "_")
}

// Enabled reports whether the cache has a backing client.
func (c *Cache) Enabled() bool { return c.client != nil }

// Client returns the underlying Redis client for health checks and publishing.
func (c *Cache) Client() *goredis.Client { return c.client }

// Breaker returns the circuit breaker guarding every Redis call.
func (c *Cache) Breaker() *CircuitBreaker { return c.cb }

// GetChart returns the cached payload for key. Errors and an open breaker
// are reported as misses.
func (c *Cache) GetChart(ctx context.Context, key string) ([]byte, bool) {
	if c.client == nil {
		c.report(ResultBypass)
		return nil, false
	}

	var data []byte
	err := c.cb.Execute(func() error {
		b, err := c.client.Get(ctx, key).Bytes()
		if err == goredis.Nil {
			return nil
		}
		data = b
		return err
	})
	switch {
	case err != nil:
		if !errors.Is(err, ErrCircuitOpen) {
			slog.Warn("chart cache get failed", "component", "redis", "key", key, "error", err)
		}
		c.report(ResultError)
		return nil, false
	case len(data) == 0:
		c.report(ResultMiss)
		return nil, false
	default:
		c.report(ResultHit)
		return data, true
	}
}

// SetChart stores data under key with the configured TTL. Best effort.
func (c *Cache) SetChart(ctx context.Context, key string, data []byte) {
	if c.client == nil || len(data) == 0 {
		return
	}
	err := c.cb.Execute(func() error {
		return c.client.Set(ctx, key, data, c.ttl).Err()
	})
	if err != nil && !errors.Is(err, ErrCircuitOpen) {
		slog.Warn("chart cache set failed", "component", "redis", "key", key, "error", err)
	}
}

// InvalidateSymbol deletes every cached chart of symbol using SCAN.
func (c *Cache) InvalidateSymbol(ctx context.Context, symbol string) {
	if c.client == nil {
		return
	}
	pattern := symbolPrefix(symbol) + "*"
	err := c.cb.Execute(func() error {
		var cursor uint64
		for {
			keys, next, err := c.client.Scan(ctx, cursor, pattern, scanBatch).Result()
			if err != nil {
				return err
			}
			if len(keys) > 0 {
				if err := c.client.Del(ctx, keys...).Err(); err != nil {
					return err
				}
			}
			cursor = next
			if cursor == 0 {
				return nil
			}
		}
	})
	if err != nil && !errors.Is(err, ErrCircuitOpen) {
		slog.Warn("chart cache invalidate failed", "component", "redis", "symbol", symbol, "error", err)
	}
}

func (c *Cache) report(result string) {
	if c.OnResult != nil {
		c.OnResult(result)
	}
}

// Close closes the Redis client, if any.
func (c *Cache) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}
