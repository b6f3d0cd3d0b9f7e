package indicator

import (
	"log/slog"
	"sort"
	"time"

	"github.com/pkg/errors"
)

// snapshotVersion is the schema version written into every EngineSnapshot.
const snapshotVersion = 2

// Snapshottable is implemented by indicators that support state serialization.
type Snapshottable interface {
	Stream
	Snapshot() IndicatorSnapshot
	RestoreFromSnapshot(snap IndicatorSnapshot) error
}

// IndicatorSnapshot holds the serialized state of a single indicator instance.
type IndicatorSnapshot struct {
	Type   string `json:"type"`   // "SMA", "EMA", "SMMA", "RSI"
	Period int    `json:"period"` // indicator period

	// SMA fields
	Buf     []float64 `json:"buf,omitempty"`
	Idx     int       `json:"idx,omitempty"`
	Count   int       `json:"count"`
	Sum     float64   `json:"sum,omitempty"`
	Current float64   `json:"current"`

	// EMA fields
	Multiplier float64 `json:"multiplier,omitempty"`

	// RSI fields
	PrevClose float64 `json:"prev_close,omitempty"`
	AvgGain   float64 `json:"avg_gain,omitempty"`
	AvgLoss   float64 `json:"avg_loss,omitempty"`
}

// SymbolSnapshot holds indicator snapshots for a single symbol.
type SymbolSnapshot struct {
	Symbol     string              `json:"symbol"`
	LastDate   time.Time           `json:"last_date"`
	Indicators []IndicatorSnapshot `json:"indicators"`
}

// EngineSnapshot holds the full state of the indicator engine.
type EngineSnapshot struct {
	Symbols []SymbolSnapshot `json:"symbols"`
	SavedAt time.Time        `json:"saved_at"`
	Version int              `json:"version"` // schema version for forward compat
}

// SnapshotEngine captures the full state of an indicator Engine.
// lastDates records, per symbol, the date of the last candle fed to the
// engine so a restore can replay only newer candles.
func SnapshotEngine(e *Engine, lastDates map[string]time.Time) (*EngineSnapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := &EngineSnapshot{
		SavedAt: time.Now().UTC(),
		Version: snapshotVersion,
	}

	for symbol, ss := range e.state {
		sym := SymbolSnapshot{
			Symbol:     symbol,
			LastDate:   lastDates[symbol],
			Indicators: make([]IndicatorSnapshot, 0, len(ss.streams)),
		}
		for _, st := range ss.streams {
			si, ok := st.(Snapshottable)
			if !ok {
				return nil, errors.Errorf("indicator %s does not implement Snapshottable", st.Name())
			}
			sym.Indicators = append(sym.Indicators, si.Snapshot())
		}
		snap.Symbols = append(snap.Symbols, sym)
	}
	sort.Slice(snap.Symbols, func(i, j int) bool { return snap.Symbols[i].Symbol < snap.Symbols[j].Symbol })

	return snap, nil
}

// RestoreEngine rebuilds an indicator Engine from a snapshot.
// It is tolerant of config changes: indicators are matched by Type+Period
// rather than by index. Matching indicators get their state restored; new
// indicators start fresh (cold). Removed indicators are silently skipped.
func RestoreEngine(configs []StreamConfig, snap *EngineSnapshot) (*Engine, error) {
	if snap == nil {
		return nil, errors.New("nil engine snapshot")
	}
	if snap.Version != snapshotVersion {
		return nil, errors.Errorf("unsupported snapshot version %d", snap.Version)
	}

	e := NewEngine(configs)

	for _, sym := range snap.Symbols {
		ss := newSymbolStreams(configs)

		snapLookup := make(map[string]IndicatorSnapshot, len(sym.Indicators))
		for _, indSnap := range sym.Indicators {
			snapLookup[StreamConfig{Type: indSnap.Type, Period: indSnap.Period}.Key()] = indSnap
		}

		restored, cold := 0, 0
		for i, st := range ss.streams {
			indSnap, found := snapLookup[ss.configs[i].Key()]
			if !found {
				cold++
				continue // new indicator stays fresh
			}
			si, ok := st.(Snapshottable)
			if !ok {
				cold++
				continue
			}
			if err := si.RestoreFromSnapshot(indSnap); err != nil {
				// Non-fatal: leave cold
				ss.streams[i] = newStream(ss.configs[i])
				cold++
				continue
			}
			restored++
		}

		if cold > 0 {
			slog.Info("partial indicator restore",
				"component", "restorer", "symbol", sym.Symbol,
				"restored", restored, "cold", cold)
		}
		e.state[sym.Symbol] = ss
	}

	return e, nil
}

// LastDates returns the per-symbol last candle dates recorded in the snapshot.
func (es *EngineSnapshot) LastDates() map[string]time.Time {
	out := make(map[string]time.Time, len(es.Symbols))
	for _, s := range es.Symbols {
		out[s.Symbol] = s.LastDate
	}
	return out
}
