// Package service wires candle storage, chart building, the chart cache and
// the streaming indicator engine into the use cases served by the API and CLI.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"finplotter/internal/chart"
	"finplotter/internal/indicator"
	"finplotter/internal/metrics"
	"finplotter/internal/model"
	redisstore "finplotter/internal/store/redis"

	"github.com/pkg/errors"
)

// ErrUnknownSymbol is returned when a symbol has no stored candles.
var ErrUnknownSymbol = errors.New("unknown symbol")

// Chart build outcomes reported to metrics.
const (
	buildOK      = "ok"
	buildCached  = "cached"
	buildInvalid = "invalid"
	buildError   = "error"
)

// CandleStore persists and reads candles.
type CandleStore interface {
	model.CandleWriter
	model.CandleReader
}

// SnapshotStore persists streaming engine checkpoints.
type SnapshotStore interface {
	SaveSnapshot(snap *indicator.EngineSnapshot) error
	ReadLatestSnapshot() (*indicator.EngineSnapshot, error)
}

// ResultPublisher distributes streaming results outside the process.
type ResultPublisher interface {
	PublishBatch(ctx context.Context, results []model.IndicatorResult) error
	Latest(ctx context.Context, symbol string) (map[string]model.IndicatorResult, error)
}

// Broadcaster delivers streaming results to connected clients.
type Broadcaster interface {
	Broadcast(r model.IndicatorResult)
}

// Options configures a Service. Store and Metrics are required; the other
// dependencies are skipped when nil.
type Options struct {
	Store       CandleStore
	Snapshots   SnapshotStore
	Cache       model.ChartCache
	Publisher   ResultPublisher
	Broadcaster Broadcaster
	Metrics     *metrics.Metrics

	Setup   chart.Setup
	Streams []indicator.StreamConfig
}

// Service implements the chart and streaming use cases.
type Service struct {
	store     CandleStore
	snapshots SnapshotStore
	cache     model.ChartCache
	publisher ResultPublisher
	hub       Broadcaster
	prom      *metrics.Metrics

	builder  *chart.Builder
	restorer *indicator.Restorer

	mu        sync.Mutex
	emitMu    sync.Mutex // orders emit calls; acquired while mu is held
	engine    *indicator.Engine
	lastDates map[string]time.Time
	latest    map[string]map[string]model.IndicatorResult
}

// New validates the setup and stream configs and returns a Service with a
// cold streaming engine. Call Restore to warm it up from storage.
func New(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, errors.New("service: candle store is required")
	}
	if opts.Metrics == nil {
		return nil, errors.New("service: metrics are required")
	}
	if err := opts.Setup.Validate(); err != nil {
		return nil, errors.Wrap(err, "chart setup")
	}
	if err := indicator.ValidateConfigs(opts.Streams); err != nil {
		return nil, errors.Wrap(err, "stream indicators")
	}

	prom := opts.Metrics
	return &Service{
		store:     opts.Store,
		snapshots: opts.Snapshots,
		cache:     opts.Cache,
		publisher: opts.Publisher,
		hub:       opts.Broadcaster,
		prom:      prom,
		builder:   &chart.Builder{Setup: opts.Setup, Observe: prom.ObserveIndicator},
		restorer:  indicator.NewRestorer(opts.Streams),
		engine:    indicator.NewEngine(opts.Streams),
		lastDates: make(map[string]time.Time),
		latest:    make(map[string]map[string]model.IndicatorResult),
	}, nil
}

// Setup returns the chart setup used by Chart.
func (s *Service) Setup() chart.Setup { return s.builder.Setup }

// Symbols lists every symbol with stored candles.
func (s *Service) Symbols(ctx context.Context) ([]string, error) {
	return s.store.Symbols(ctx)
}

// Series loads the most recent limit candles of symbol (all when limit <= 0).
func (s *Service) Series(ctx context.Context, symbol string, limit int) (*model.Series, error) {
	candles, err := s.store.ReadCandles(ctx, symbol, limit)
	if err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, errors.Wrapf(ErrUnknownSymbol, "%q", symbol)
	}
	return model.NewSeries(symbol, candles)
}

// Chart builds the chart of symbol with the service setup.
func (s *Service) Chart(ctx context.Context, symbol string, limit int) (*chart.Chart, error) {
	series, err := s.Series(ctx, symbol, limit)
	if err != nil {
		return nil, err
	}
	c, err := s.builder.Build(ctx, series)
	s.prom.ChartBuild(buildResult(err))
	return c, err
}

// ChartJSON returns the encoded chart of symbol, serving it from the cache
// when possible and filling the cache after a build.
func (s *Service) ChartJSON(ctx context.Context, symbol string, limit int) ([]byte, error) {
	key := redisstore.Key(symbol, s.builder.Setup.Hash(), limit)
	if s.cache != nil {
		if data, ok := s.cache.GetChart(ctx, key); ok {
			s.prom.ChartBuild(buildCached)
			return data, nil
		}
	}

	c, err := s.Chart(ctx, symbol, limit)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(err, "encode chart")
	}
	if s.cache != nil {
		s.cache.SetChart(ctx, key, data)
	}
	return data, nil
}

// Indicator computes a single indicator over the stored candles of symbol.
func (s *Service) Indicator(ctx context.Context, symbol, name string, period, limit int) (*chart.Chart, error) {
	setup, err := chart.SetupFor(name, period)
	if err != nil {
		return nil, err
	}
	series, err := s.Series(ctx, symbol, limit)
	if err != nil {
		return nil, err
	}
	b := &chart.Builder{Setup: setup, Observe: s.prom.ObserveIndicator}
	c, err := b.Build(ctx, series)
	s.prom.ChartBuild(buildResult(err))
	return c, err
}

func buildResult(err error) string {
	switch {
	case err == nil:
		return buildOK
	case errors.Is(err, indicator.ErrInvalidParameter), errors.Is(err, indicator.ErrEmptySeries):
		return buildInvalid
	default:
		return buildError
	}
}

// Append stores candles of symbol, invalidates its cached charts and feeds
// the candles newer than the last processed one to the streaming engine.
// Candles must be in strictly increasing date order. The streaming results
// are published, broadcast and returned.
func (s *Service) Append(ctx context.Context, symbol string, candles []model.Candle) ([]model.IndicatorResult, error) {
	if symbol == "" {
		return nil, errors.Wrap(indicator.ErrInvalidParameter, "empty symbol")
	}
	if _, err := model.NewSeries(symbol, candles); err != nil {
		return nil, err
	}
	if err := s.store.WriteCandles(ctx, symbol, candles); err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.InvalidateSymbol(ctx, symbol)
	}
	s.prom.CandlesIngestedTotal.Add(float64(len(candles)))

	s.mu.Lock()
	last, seen := s.lastDates[symbol]
	var results []model.IndicatorResult
	for _, c := range candles {
		if seen && !c.Date.After(last) {
			continue
		}
		results = append(results, s.engine.Process(symbol, c)...)
		last, seen = c.Date, true
	}
	if seen {
		s.lastDates[symbol] = last
	}
	s.remember(results)
	s.emitMu.Lock()
	s.mu.Unlock()

	s.emit(ctx, results)
	s.emitMu.Unlock()
	return results, nil
}

// Preview computes live values for a forming candle without changing any
// state. Returns nil when the engine has no state for symbol yet or the
// candle is not newer than the last processed one.
func (s *Service) Preview(ctx context.Context, symbol string, candle model.Candle) []model.IndicatorResult {
	s.mu.Lock()
	last, seen := s.lastDates[symbol]
	if !seen || !candle.Date.After(last) {
		s.mu.Unlock()
		return nil
	}
	results := s.engine.ProcessPeek(symbol, candle)
	s.emitMu.Lock()
	s.mu.Unlock()

	s.emit(ctx, results)
	s.emitMu.Unlock()
	return results
}

// StreamConfigs returns the active streaming indicator configs.
func (s *Service) StreamConfigs() []indicator.StreamConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Configs()
}

// ReloadStreams replaces the streaming indicators with specs in
// STREAM_INDICATORS form ("SMA:20,RSI:14"). Indicators present before and
// after keep their state; new ones start cold. Returns the number of
// preserved and created indicator instances across all symbols.
func (s *Service) ReloadStreams(specs string) (preserved, created int, err error) {
	configs, err := indicator.ParseStreamSpecs(specs)
	if err != nil {
		return 0, 0, err
	}
	if len(configs) == 0 {
		return 0, 0, errors.Wrap(indicator.ErrInvalidParameter, "no stream indicators")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	preserved, created = s.engine.ReloadConfigs(configs)
	return preserved, created, nil
}

// remember keeps the latest confirmed result per indicator. Requires s.mu.
func (s *Service) remember(results []model.IndicatorResult) {
	for _, r := range results {
		if !r.Ready {
			continue
		}
		m, ok := s.latest[r.Symbol]
		if !ok {
			m = make(map[string]model.IndicatorResult)
			s.latest[r.Symbol] = m
		}
		m[r.Name] = r
	}
}

func (s *Service) emit(ctx context.Context, results []model.IndicatorResult) {
	if len(results) == 0 {
		return
	}
	s.prom.StreamResultsTotal.Add(float64(len(results)))
	if s.publisher != nil {
		if err := s.publisher.PublishBatch(ctx, results); err != nil {
			slog.Warn("publish results failed", "component", "service", "results", len(results), "error", err)
		}
	}
	if s.hub != nil {
		for _, r := range results {
			s.hub.Broadcast(r)
		}
	}
}

// Latest returns the latest confirmed streaming results of symbol sorted by
// name, read from the publisher when available.
func (s *Service) Latest(ctx context.Context, symbol string) ([]model.IndicatorResult, error) {
	var byName map[string]model.IndicatorResult
	if s.publisher != nil {
		m, err := s.publisher.Latest(ctx, symbol)
		if err != nil {
			slog.Warn("read latest results failed, using local state", "component", "service", "symbol", symbol, "error", err)
		} else {
			byName = m
		}
	}
	if len(byName) == 0 {
		s.mu.Lock()
		byName = make(map[string]model.IndicatorResult, len(s.latest[symbol]))
		for k, v := range s.latest[symbol] {
			byName[k] = v
		}
		s.mu.Unlock()
	}

	out := make([]model.IndicatorResult, 0, len(byName))
	for _, r := range byName {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// StreamSymbols returns how many symbols the streaming engine tracks.
func (s *Service) StreamSymbols() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.engine.Symbols())
}
