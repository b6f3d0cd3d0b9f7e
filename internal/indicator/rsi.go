package indicator

import "finplotter/internal/model"

// DefaultRSIPeriod is the conventional RSI lookback.
const DefaultRSIPeriod = 14

// RSI returns the Relative Strength Index of close using Wilder's smoothing.
// The first average gain/loss is the simple mean of the first n deltas; each
// later average is (prev*(n-1) + x)/n. The result has length len(close)-n and
// every value lies in [0, 100].
//
// A window without losses reads 100, and a window with neither gains nor
// losses reads 0.
func RSI(close []float64, n int) ([]float64, error) {
	if len(close) == 0 {
		return nil, emptySeries("rsi")
	}
	if n < 1 || len(close) < n+1 {
		return nil, invalidParam("rsi period %d for %d samples", n, len(close))
	}

	var avgGain, avgLoss float64
	for i := 1; i <= n; i++ {
		gain, loss := splitDelta(close[i] - close[i-1])
		avgGain += gain
		avgLoss += loss
	}
	p := float64(n)
	avgGain /= p
	avgLoss /= p

	out := make([]float64, len(close)-n)
	out[0] = rsiValue(avgGain, avgLoss)
	for i := n + 1; i < len(close); i++ {
		gain, loss := splitDelta(close[i] - close[i-1])
		avgGain = wilder(avgGain, gain, p)
		avgLoss = wilder(avgLoss, loss, p)
		out[i-n] = rsiValue(avgGain, avgLoss)
	}
	return out, nil
}

// wilder is one step of Wilder's smoothing over period p.
func wilder(prev, x, p float64) float64 {
	return (prev*(p-1) + x) / p
}

func splitDelta(delta float64) (gain, loss float64) {
	if delta > 0 {
		return delta, 0
	}
	return 0, -delta
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 0
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

// RSIStream calculates the Relative Strength Index incrementally.
// Update is O(1) per candle; no history scans.
type RSIStream struct {
	period    int
	count     int
	prevClose float64
	avgGain   float64
	avgLoss   float64
	current   float64
}

// NewRSIStream creates a new RSI stream with the given period (typically 14).
func NewRSIStream(period int) *RSIStream {
	return &RSIStream{period: period}
}

func (r *RSIStream) Name() string { return "RSI" }

func (r *RSIStream) Update(candle model.Candle) {
	price := candle.Close
	r.count++

	if r.count == 1 {
		// First candle: no delta yet
		r.prevClose = price
		return
	}

	gain, loss := splitDelta(price - r.prevClose)
	r.prevClose = price

	if r.count <= r.period+1 {
		// Accumulation phase: build initial averages
		r.avgGain += gain
		r.avgLoss += loss

		if r.count == r.period+1 {
			r.avgGain /= float64(r.period)
			r.avgLoss /= float64(r.period)
			r.current = rsiValue(r.avgGain, r.avgLoss)
		}
		return
	}

	p := float64(r.period)
	r.avgGain = wilder(r.avgGain, gain, p)
	r.avgLoss = wilder(r.avgLoss, loss, p)
	r.current = rsiValue(r.avgGain, r.avgLoss)
}

func (r *RSIStream) Value() float64 { return r.current }
func (r *RSIStream) Ready() bool    { return r.count > r.period }

// Peek computes what RSI would be with an additional candle without mutating state.
func (r *RSIStream) Peek(close float64) float64 {
	if r.count <= r.period {
		return r.current
	}
	gain, loss := splitDelta(close - r.prevClose)
	p := float64(r.period)
	return rsiValue(wilder(r.avgGain, gain, p), wilder(r.avgLoss, loss, p))
}

// Snapshot serializes the RSI state for checkpoint persistence.
func (r *RSIStream) Snapshot() IndicatorSnapshot {
	return IndicatorSnapshot{
		Type:      "RSI",
		Period:    r.period,
		Count:     r.count,
		PrevClose: r.prevClose,
		AvgGain:   r.avgGain,
		AvgLoss:   r.avgLoss,
		Current:   r.current,
	}
}

// RestoreFromSnapshot restores RSI state from a checkpoint.
func (r *RSIStream) RestoreFromSnapshot(snap IndicatorSnapshot) error {
	r.period = snap.Period
	r.count = snap.Count
	r.prevClose = snap.PrevClose
	r.avgGain = snap.AvgGain
	r.avgLoss = snap.AvgLoss
	r.current = snap.Current
	return nil
}
