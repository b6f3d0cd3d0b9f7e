package indicator

import "finplotter/internal/model"

// EMA returns the exponential moving average of p with k = 2/(n+1).
// The first value is seeded with p[0]; the result has the same length as p.
// The period must lie in [1, len(p)].
func EMA(p []float64, n int) ([]float64, error) {
	if len(p) == 0 {
		return nil, emptySeries("ema")
	}
	if n < 1 || n > len(p) {
		return nil, invalidParam("ema period %d for %d samples", n, len(p))
	}

	k := 2.0 / float64(n+1)
	out := make([]float64, len(p))
	out[0] = p[0]
	for i := 1; i < len(p); i++ {
		out[i] = p[i]*k + out[i-1]*(1-k)
	}
	return out, nil
}

// EMAStream calculates Exponential Moving Average incrementally.
// O(1) per update; seeded with the first close so it matches EMA sample for sample.
type EMAStream struct {
	period     int
	multiplier float64
	current    float64
	count      int
}

// NewEMAStream creates a new EMA stream with the given period.
func NewEMAStream(period int) *EMAStream {
	return &EMAStream{
		period:     period,
		multiplier: 2.0 / float64(period+1),
	}
}

func (e *EMAStream) Name() string { return "EMA" }

func (e *EMAStream) Update(candle model.Candle) {
	e.count++
	if e.count == 1 {
		e.current = candle.Close
		return
	}
	// EMA = (Price * multiplier) + (EMA_prev * (1 - multiplier))
	e.current = (candle.Close * e.multiplier) + (e.current * (1 - e.multiplier))
}

func (e *EMAStream) Value() float64 { return e.current }

// Ready reports whether a full period of samples has been folded in.
func (e *EMAStream) Ready() bool { return e.count >= e.period }

// Peek computes what Value() would be with an additional candle without mutating state.
func (e *EMAStream) Peek(close float64) float64 {
	if e.count == 0 {
		return close
	}
	return (close * e.multiplier) + (e.current * (1 - e.multiplier))
}

// Snapshot serializes the EMA state for checkpoint persistence.
func (e *EMAStream) Snapshot() IndicatorSnapshot {
	return IndicatorSnapshot{
		Type:       "EMA",
		Period:     e.period,
		Multiplier: e.multiplier,
		Current:    e.current,
		Count:      e.count,
	}
}

// RestoreFromSnapshot restores EMA state from a checkpoint.
func (e *EMAStream) RestoreFromSnapshot(snap IndicatorSnapshot) error {
	e.period = snap.Period
	e.multiplier = snap.Multiplier
	if e.multiplier == 0 {
		e.multiplier = 2.0 / float64(snap.Period+1)
	}
	e.current = snap.Current
	e.count = snap.Count
	return nil
}
