// Package indicator computes technical indicators over price series.
//
// The batch functions (SMA, EMA, RSI, MACD, SlowStochastic, BollingerBands)
// are pure: they never mutate their inputs and always return fresh slices.
// An output of length M over an input of length N is aligned to the last M
// input samples, so output[i] belongs to input[N-M+i].
//
// The Stream types compute the same values one candle at a time for live
// updates and can be checkpointed through the Snapshottable interface.
package indicator

import "finplotter/internal/model"

// Stream is the interface for all incremental indicators.
type Stream interface {
	// Name returns the indicator type (e.g., "SMA", "EMA").
	Name() string

	// Update feeds a new candle and recalculates.
	Update(candle model.Candle)

	// Value returns the current calculated value. Returns 0 if not enough data.
	Value() float64

	// Ready returns true when enough data has been accumulated.
	Ready() bool

	// Peek computes what Value() would be if a candle with this close price
	// were added next, WITHOUT mutating internal state.
	Peek(close float64) float64
}
