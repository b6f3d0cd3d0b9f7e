package indicator

import "finplotter/internal/model"

// SMMAStream is the smoothed moving average of closes: the first value is
// the SMA of the first period closes, later values use Wilder's smoothing.
type SMMAStream struct {
	period  int
	count   int
	sum     float64 // seed accumulator, frozen once the stream is ready
	current float64
}

// NewSMMAStream returns an SMMA stream over period closes.
func NewSMMAStream(period int) *SMMAStream {
	return &SMMAStream{period: period}
}

func (s *SMMAStream) Name() string { return "SMMA" }

func (s *SMMAStream) Update(candle model.Candle) {
	s.current = s.next(candle.Close)
	if s.count < s.period {
		s.sum += candle.Close
	}
	s.count++
}

// next is the value after one more close.
// Before the seed completes it is the running mean.
func (s *SMMAStream) next(close float64) float64 {
	if s.count < s.period {
		return (s.sum + close) / float64(s.count+1)
	}
	return wilder(s.current, close, float64(s.period))
}

func (s *SMMAStream) Value() float64 {
	if !s.Ready() {
		return 0
	}
	return s.current
}

func (s *SMMAStream) Ready() bool { return s.count >= s.period }

func (s *SMMAStream) Peek(close float64) float64 { return s.next(close) }

func (s *SMMAStream) Snapshot() IndicatorSnapshot {
	return IndicatorSnapshot{Type: "SMMA", Period: s.period, Count: s.count, Sum: s.sum, Current: s.current}
}

func (s *SMMAStream) RestoreFromSnapshot(snap IndicatorSnapshot) error {
	s.period, s.count, s.sum, s.current = snap.Period, snap.Count, snap.Sum, snap.Current
	return nil
}
