package indicator

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"finplotter/internal/model"
)

// StreamConfig specifies a single streaming indicator to compute.
type StreamConfig struct {
	Type   string `json:"type" yaml:"type"` // "SMA", "EMA", "SMMA", "RSI"
	Period int    `json:"period" yaml:"period"`
}

// Key returns "TYPE_PERIOD", the result name of the indicator.
func (c StreamConfig) Key() string {
	return c.Type + "_" + strconv.Itoa(c.Period)
}

// SymbolCandle is a candle addressed to one symbol's indicator set.
// Forming candles are previewed with Peek and never mutate state.
type SymbolCandle struct {
	Symbol  string
	Candle  model.Candle
	Forming bool
}

// symbolStreams holds live indicator instances for one symbol.
type symbolStreams struct {
	streams []Stream
	configs []StreamConfig
}

// Engine computes a configured set of streaming indicators for many symbols.
type Engine struct {
	mu      sync.Mutex
	configs []StreamConfig

	// state[symbol] → *symbolStreams
	state map[string]*symbolStreams
}

// NewEngine creates an indicator engine with the given stream configs.
func NewEngine(configs []StreamConfig) *Engine {
	return &Engine{
		configs: configs,
		state:   make(map[string]*symbolStreams, 64),
	}
}

// Configs returns a copy of the active stream configs.
func (e *Engine) Configs() []StreamConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]StreamConfig, len(e.configs))
	copy(out, e.configs)
	return out
}

// Process feeds a completed candle to every indicator of the symbol.
// Returns indicator results (may include not-ready indicators with Ready=false).
func (e *Engine) Process(symbol string, candle model.Candle) []model.IndicatorResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	ss, exists := e.state[symbol]
	if !exists {
		// First candle for this symbol: create indicator instances
		ss = newSymbolStreams(e.configs)
		e.state[symbol] = ss
	}

	results := make([]model.IndicatorResult, 0, len(ss.streams))
	for i, st := range ss.streams {
		st.Update(candle)
		results = append(results, model.IndicatorResult{
			Name:   ss.configs[i].Key(),
			Symbol: symbol,
			Value:  st.Value(),
			Date:   candle.Date,
			Ready:  st.Ready(),
		})
	}
	return results
}

// ProcessPeek computes live indicator values for a forming candle using Peek().
// Does NOT mutate indicator state. Returns nil for a symbol that has not been
// seeded by a completed candle yet.
func (e *Engine) ProcessPeek(symbol string, candle model.Candle) []model.IndicatorResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	ss, exists := e.state[symbol]
	if !exists {
		return nil
	}

	results := make([]model.IndicatorResult, 0, len(ss.streams))
	for i, st := range ss.streams {
		results = append(results, model.IndicatorResult{
			Name:   ss.configs[i].Key(),
			Symbol: symbol,
			Value:  st.Peek(candle.Close),
			Date:   candle.Date,
			Ready:  st.Ready(),
			Live:   true,
		})
	}
	return results
}

// Symbols returns the symbols the engine holds state for.
func (e *Engine) Symbols() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.state))
	for s := range e.state {
		out = append(out, s)
	}
	return out
}

// Run consumes candles and emits indicator results. Blocks until ctx is done
// or in is closed. Results are dropped when out is full.
func (e *Engine) Run(ctx context.Context, in <-chan SymbolCandle, out chan<- model.IndicatorResult) {
	for {
		select {
		case <-ctx.Done():
			return
		case sc, ok := <-in:
			if !ok {
				return
			}
			var results []model.IndicatorResult
			if sc.Forming {
				results = e.ProcessPeek(sc.Symbol, sc.Candle)
			} else {
				results = e.Process(sc.Symbol, sc.Candle)
			}
			for _, r := range results {
				select {
				case out <- r:
				default:
					// drop if channel full
				}
			}
		}
	}
}

// newStream creates a fresh indicator instance for a config.
func newStream(cfg StreamConfig) Stream {
	switch cfg.Type {
	case "EMA":
		return NewEMAStream(cfg.Period)
	case "SMMA":
		return NewSMMAStream(cfg.Period)
	case "RSI":
		return NewRSIStream(cfg.Period)
	default:
		return NewSMAStream(cfg.Period)
	}
}

func newSymbolStreams(configs []StreamConfig) *symbolStreams {
	streams := make([]Stream, len(configs))
	for i, c := range configs {
		streams[i] = newStream(c)
	}
	return &symbolStreams{streams: streams, configs: configs}
}

// ParseStreamSpecs parses "SMA:20,EMA:9,RSI:14" into stream configs.
// Type names are case-insensitive; the result is validated.
func ParseStreamSpecs(s string) ([]StreamConfig, error) {
	var configs []StreamConfig
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		tokens := strings.SplitN(part, ":", 2)
		if len(tokens) != 2 {
			return nil, invalidParam("stream spec %q: want TYPE:PERIOD", part)
		}
		period, err := strconv.Atoi(strings.TrimSpace(tokens[1]))
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidParameter, "stream spec %q: %v", part, err)
		}
		configs = append(configs, StreamConfig{
			Type:   strings.ToUpper(strings.TrimSpace(tokens[0])),
			Period: period,
		})
	}
	if err := ValidateConfigs(configs); err != nil {
		return nil, err
	}
	return configs, nil
}
