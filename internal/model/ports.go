package model

import "context"

// ── Storage Port Interfaces ──
// These interfaces decouple the chart service from concrete storage
// implementations (SQLite, Redis). Each implementation satisfies one or more.

// CandleWriter persists candles for a symbol.
type CandleWriter interface {
	// WriteCandles upserts candles keyed by (symbol, date) in one batch.
	WriteCandles(ctx context.Context, symbol string, candles []Candle) error

	// Close releases underlying resources.
	Close() error
}

// CandleReader reads stored candles.
type CandleReader interface {
	// ReadCandles returns the most recent limit candles for symbol in
	// ascending date order. limit <= 0 returns every stored candle.
	ReadCandles(ctx context.Context, symbol string, limit int) ([]Candle, error)

	// Symbols lists every symbol with at least one stored candle.
	Symbols(ctx context.Context) ([]string, error)
}

// ChartCache stores encoded chart payloads.
// Implementations treat backend failures as misses.
type ChartCache interface {
	GetChart(ctx context.Context, key string) ([]byte, bool)
	SetChart(ctx context.Context, key string, data []byte)
	InvalidateSymbol(ctx context.Context, symbol string)
}
