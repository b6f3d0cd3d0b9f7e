package indicator

import (
	"context"
	"log/slog"
	"time"

	"finplotter/internal/model"
)

// backfillFactor scales the largest period into the number of candles read
// per symbol during a cold backfill, giving EMA-type streams room to converge.
const backfillFactor = 10

// Restorer orchestrates indicator engine state restoration on startup.
// It follows a priority chain: stored snapshot → cold start, followed by a
// replay of the candles stored after the snapshot.
type Restorer struct {
	configs []StreamConfig
}

// NewRestorer creates a new Restorer for the given stream configs.
func NewRestorer(configs []StreamConfig) *Restorer {
	return &Restorer{configs: configs}
}

// RestoreFromSnap restores an engine from a snapshot.
// If snap is nil or unusable, returns a fresh engine (cold start).
func (r *Restorer) RestoreFromSnap(snap *EngineSnapshot) *Engine {
	if snap == nil {
		slog.Info("no snapshot found, cold starting indicator engine", "component", "restorer")
		return NewEngine(r.configs)
	}

	engine, err := RestoreEngine(r.configs, snap)
	if err != nil {
		slog.Warn("snapshot restore failed, falling back to cold start",
			"component", "restorer", "error", err)
		return NewEngine(r.configs)
	}

	slog.Info("restored indicator engine from snapshot",
		"component", "restorer", "version", snap.Version,
		"saved_at", snap.SavedAt, "symbols", len(snap.Symbols))
	return engine
}

// Backfill reads stored candles for every symbol and feeds them into the
// engine. Symbols present in lastDates only receive candles newer than the
// recorded date; other symbols are warmed up from their most recent history.
// If onResults is non-nil, it is called with the indicator results of each
// replayed candle. Returns the per-symbol date of the last replayed candle.
func (r *Restorer) Backfill(ctx context.Context, engine *Engine, reader model.CandleReader,
	lastDates map[string]time.Time, onResults func([]model.IndicatorResult)) map[string]time.Time {
	out := make(map[string]time.Time, len(lastDates))
	for s, d := range lastDates {
		out[s] = d
	}
	if reader == nil {
		return out
	}

	symbols, err := reader.Symbols(ctx)
	if err != nil {
		slog.Warn("list symbols for backfill failed", "component", "restorer", "error", err)
		return out
	}

	limit := maxPeriod(r.configs) * backfillFactor
	total := 0
	for _, symbol := range symbols {
		after, restored := lastDates[symbol]
		readLimit := limit
		if restored {
			readLimit = 0
		}
		candles, err := reader.ReadCandles(ctx, symbol, readLimit)
		if err != nil {
			slog.Warn("read candles for backfill failed",
				"component", "restorer", "symbol", symbol, "error", err)
			continue
		}

		fed := 0
		for _, c := range candles {
			if restored && !c.Date.After(after) {
				continue
			}
			results := engine.Process(symbol, c)
			if onResults != nil && len(results) > 0 {
				onResults(results)
			}
			out[symbol] = c.Date
			fed++
		}
		total += fed
	}

	if total > 0 {
		slog.Info("backfilled indicator engine", "component", "restorer",
			"candles", total, "symbols", len(symbols))
	}
	return out
}
