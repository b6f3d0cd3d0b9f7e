package indicator

// Conventional slow stochastic parameters.
const (
	DefaultStochPeriod    = 14
	DefaultStochSmoothing = 3
)

// StochasticFlatValue is the raw %K reported for a window whose highest high
// equals its lowest low.
const StochasticFlatValue = 50.0

// SlowStochastic returns the slow %K and %D lines.
//
// The raw %K over a window of n samples is 100*(close-lowest)/(highest-lowest)
// where close is the last close of the window, clamped to [0, 100] for bars
// whose close lies outside their own range. Slow %K is SMA(raw, s) and %D
// is SMA(%K, s). With N samples, len(k) = N-n-s+2 and len(d) = N-n-2s+3.
func SlowStochastic(low, high, close []float64, n, s int) (k, d []float64, err error) {
	size := len(close)
	if len(low) != size || len(high) != size {
		return nil, nil, invalidParam("stochastic input lengths low=%d high=%d close=%d", len(low), len(high), size)
	}
	if size == 0 {
		return nil, nil, emptySeries("stochastic")
	}
	if n < 1 || s < 1 {
		return nil, nil, invalidParam("stochastic period %d smoothing %d", n, s)
	}
	if size < n+2*s-2 {
		return nil, nil, invalidParam("stochastic period %d smoothing %d needs %d samples, got %d", n, s, n+2*s-2, size)
	}

	lowest := rollingMin(low, n)
	highest := rollingMax(high, n)
	raw := make([]float64, len(lowest))
	for i := range raw {
		c := close[i+n-1]
		rng := highest[i] - lowest[i]
		if rng == 0 {
			raw[i] = StochasticFlatValue
			continue
		}
		raw[i] = clamp(100*(c-lowest[i])/rng, 0, 100)
	}

	if k, err = SMA(raw, s); err != nil {
		return nil, nil, err
	}
	if d, err = SMA(k, s); err != nil {
		return nil, nil, err
	}
	return k, d, nil
}
