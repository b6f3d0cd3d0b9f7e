package indicator

import "finplotter/internal/model"

// SMA returns the simple moving average of p over windows of w samples.
// The result has length len(p)-w+1; M[i] is the mean of p[i..i+w-1] and
// always lies within that window's range. Each window is summed afresh.
func SMA(p []float64, w int) ([]float64, error) {
	if len(p) == 0 {
		return nil, emptySeries("sma")
	}
	if w < 1 || w > len(p) {
		return nil, invalidParam("sma window %d for %d samples", w, len(p))
	}

	out := make([]float64, len(p)-w+1)
	for i := range out {
		out[i] = windowMean(p[i : i+w])
	}
	return out, nil
}

// SMAStream is the simple moving average of the last period closes.
// The closes live in a ring; every value is the clamped mean of the window
// taken oldest first, so it matches SMA sample for sample.
type SMAStream struct {
	period  int
	buf     []float64 // ring of the last period closes
	idx     int       // next write position
	count   int       // total closes received
	scratch []float64 // window in chronological order, reused by Update
	current float64
}

// NewSMAStream creates a new SMA stream with the given period.
func NewSMAStream(period int) *SMAStream {
	return &SMAStream{
		period:  period,
		buf:     make([]float64, period),
		scratch: make([]float64, 0, period+1),
	}
}

func (s *SMAStream) Name() string { return "SMA" }

func (s *SMAStream) Update(candle model.Candle) {
	s.buf[s.idx] = candle.Close
	s.idx = (s.idx + 1) % s.period
	s.count++

	if s.count >= s.period {
		s.scratch = s.window(s.scratch[:0])
		s.current = windowMean(s.scratch)
	}
}

// window appends the stored closes oldest first to dst.
func (s *SMAStream) window(dst []float64) []float64 {
	if s.count < s.period {
		return append(dst, s.buf[:s.count]...)
	}
	dst = append(dst, s.buf[s.idx:]...)
	return append(dst, s.buf[:s.idx]...)
}

func (s *SMAStream) Value() float64 { return s.current }
func (s *SMAStream) Ready() bool    { return s.count >= s.period }

// Peek returns the mean after one more close without mutating state.
// Before the window fills it is the mean of every close so far.
func (s *SMAStream) Peek(close float64) float64 {
	w := s.window(make([]float64, 0, s.period+1))
	if len(w) == s.period {
		w = w[1:]
	}
	return windowMean(append(w, close))
}

// Snapshot serializes the SMA state for checkpoint persistence.
func (s *SMAStream) Snapshot() IndicatorSnapshot {
	var sum float64
	for _, v := range s.window(nil) {
		sum += v
	}
	return IndicatorSnapshot{
		Type:    "SMA",
		Period:  s.period,
		Buf:     append([]float64(nil), s.buf...),
		Idx:     s.idx,
		Count:   s.count,
		Sum:     sum,
		Current: s.current,
	}
}

// RestoreFromSnapshot restores SMA state from a checkpoint.
func (s *SMAStream) RestoreFromSnapshot(snap IndicatorSnapshot) error {
	if len(snap.Buf) != 0 && len(snap.Buf) != snap.Period {
		return invalidParam("sma snapshot buffer %d for period %d", len(snap.Buf), snap.Period)
	}
	if snap.Period < 1 || snap.Idx < 0 || snap.Idx >= snap.Period {
		return invalidParam("sma snapshot period %d index %d", snap.Period, snap.Idx)
	}
	s.period = snap.Period
	s.idx = snap.Idx
	s.count = snap.Count
	s.current = snap.Current
	s.buf = make([]float64, snap.Period)
	copy(s.buf, snap.Buf)
	s.scratch = make([]float64, 0, snap.Period+1)
	return nil
}
