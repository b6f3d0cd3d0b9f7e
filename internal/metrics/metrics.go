package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for finplotter.
type Metrics struct {
	registry *prometheus.Registry

	// Chart building
	IndicatorComputeDur *prometheus.HistogramVec // labels: indicator
	ChartBuildsTotal    *prometheus.CounterVec   // labels: result=ok|invalid|error|cached

	// Chart cache
	CacheRequestsTotal *prometheus.CounterVec // labels: result=hit|miss|error|bypass
	CacheBreakerState  prometheus.Gauge       // 0=closed, 1=open, 2=half-open

	// Streaming
	WSClients              prometheus.Gauge
	CandlesIngestedTotal   prometheus.Counter
	StreamResultsTotal     prometheus.Counter
	StreamResultDropsTotal prometheus.Counter
}

// NewMetrics creates every collector on a dedicated registry together with
// the Go runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		IndicatorComputeDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "finplotter_indicator_compute_duration_seconds",
			Help:    "Batch indicator compute latency per chart build",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}, []string{"indicator"}),
		ChartBuildsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "finplotter_chart_builds_total",
			Help: "Chart requests by outcome",
		}, []string{"result"}),

		CacheRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "finplotter_cache_requests_total",
			Help: "Chart cache lookups by outcome",
		}, []string{"result"}),
		CacheBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "finplotter_cache_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),

		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "finplotter_ws_clients",
			Help: "Connected WebSocket clients",
		}),
		CandlesIngestedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "finplotter_candles_ingested_total",
			Help: "Candles appended through the service",
		}),
		StreamResultsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "finplotter_stream_results_total",
			Help: "Streaming indicator results produced",
		}),
		StreamResultDropsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "finplotter_stream_result_drops_total",
			Help: "Streaming results dropped because a subscriber was full",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.IndicatorComputeDur,
		m.ChartBuildsTotal,
		m.CacheRequestsTotal,
		m.CacheBreakerState,
		m.WSClients,
		m.CandlesIngestedTotal,
		m.StreamResultsTotal,
		m.StreamResultDropsTotal,
	)

	return m
}

// Registry returns the registry holding every collector.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveIndicator records how long one indicator took to compute.
func (m *Metrics) ObserveIndicator(name string, d time.Duration) {
	m.IndicatorComputeDur.WithLabelValues(name).Observe(d.Seconds())
}

// ChartBuild counts one chart request outcome.
func (m *Metrics) ChartBuild(result string) {
	m.ChartBuildsTotal.WithLabelValues(result).Inc()
}

// CacheResult counts one cache lookup outcome.
func (m *Metrics) CacheResult(result string) {
	m.CacheRequestsTotal.WithLabelValues(result).Inc()
}

// SetBreakerState records the numeric circuit breaker state.
func (m *Metrics) SetBreakerState(state int) {
	m.CacheBreakerState.Set(float64(state))
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	RedisEnabled   bool `json:"redis_enabled"`
	RedisConnected bool `json:"redis_connected"`
	SQLiteOK       bool `json:"sqlite_ok"`
	StreamSymbols  int  `json:"stream_symbols"`

	// Liveness probe results
	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus(redisEnabled bool) *HealthStatus {
	return &HealthStatus{
		RedisEnabled: redisEnabled,
		StartedAt:    time.Now(),
	}
}

func (h *HealthStatus) SetSQLiteOK(v bool) {
	h.mu.Lock()
	h.SQLiteOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetRedisConnected(v bool) {
	h.mu.Lock()
	h.RedisConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetStreamSymbols(n int) {
	h.mu.Lock()
	h.StreamSymbols = n
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite pings the database and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker probes the dependencies once, then every interval
// until ctx is cancelled. Either dependency may be nil.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	probe := func() {
		probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if rdb != nil {
			h.CheckRedis(probeCtx, rdb)
		}
		if sqlDB != nil {
			h.CheckSQLite(probeCtx, sqlDB)
		}
	}
	probe()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probe()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint. SQLite is required; Redis only
// degrades the status when it is enabled.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if h.RedisEnabled && !h.RedisConnected {
		overallStatus = "degraded"
	}
	if !h.SQLiteOK {
		overallStatus = "unhealthy"
		httpCode = http.StatusServiceUnavailable
	}

	lastCheck := ""
	if !h.LastCheckAt.IsZero() {
		lastCheck = h.LastCheckAt.Format(time.RFC3339)
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		RedisEnabled    bool    `json:"redis_enabled"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		StreamSymbols   int     `json:"stream_symbols"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		RedisEnabled:    h.RedisEnabled,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		StreamSymbols:   h.StreamSymbols,
		LastCheckAt:     lastCheck,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpCode)
	if err := json.NewEncoder(w).Encode(status); err != nil {
		slog.Warn("encode health status failed", "component", "metrics", "error", err)
	}
}
