package model

import (
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrEmptySeries is returned when a computation receives no samples.
	ErrEmptySeries = errors.New("empty series")

	// ErrUnorderedSeries is returned when candle dates are not strictly increasing.
	ErrUnorderedSeries = errors.New("series dates not strictly increasing")
)

// Series is a columnar OHLCV series for one symbol, oldest sample first.
// All columns have the same length.
type Series struct {
	Symbol string
	Dates  []time.Time
	Open   []float64
	High   []float64
	Low    []float64
	Close  []float64
	Volume []float64
}

// NewSeries builds a Series from candles ordered by ascending date.
// Duplicate dates are rejected along with any other ordering violation.
func NewSeries(symbol string, candles []Candle) (*Series, error) {
	n := len(candles)
	if n == 0 {
		return nil, errors.Wrapf(ErrEmptySeries, "series %s", symbol)
	}

	s := &Series{
		Symbol: symbol,
		Dates:  make([]time.Time, n),
		Open:   make([]float64, n),
		High:   make([]float64, n),
		Low:    make([]float64, n),
		Close:  make([]float64, n),
		Volume: make([]float64, n),
	}
	for i, c := range candles {
		if i > 0 && !c.Date.After(candles[i-1].Date) {
			return nil, errors.Wrapf(ErrUnorderedSeries, "series %s: %s at row %d follows %s",
				symbol, c.Date.Format(time.RFC3339), i, candles[i-1].Date.Format(time.RFC3339))
		}
		s.Dates[i] = c.Date
		s.Open[i] = c.Open
		s.High[i] = c.High
		s.Low[i] = c.Low
		s.Close[i] = c.Close
		s.Volume[i] = c.Volume
	}
	return s, nil
}

// Len returns the number of samples.
func (s *Series) Len() int { return len(s.Dates) }

// Candle returns the i-th sample as a row.
func (s *Series) Candle(i int) Candle {
	return Candle{
		Date:   s.Dates[i],
		Open:   s.Open[i],
		High:   s.High[i],
		Low:    s.Low[i],
		Close:  s.Close[i],
		Volume: s.Volume[i],
	}
}

// Candles returns the series as rows.
func (s *Series) Candles() []Candle {
	out := make([]Candle, s.Len())
	for i := range out {
		out[i] = s.Candle(i)
	}
	return out
}

// HasVolume reports whether any sample carries a non-zero volume.
func (s *Series) HasVolume() bool {
	for _, v := range s.Volume {
		if v != 0 {
			return true
		}
	}
	return false
}

// MaxHigh returns the index and value of the highest high.
// Ties resolve to the earliest sample. Returns -1 for an empty series.
func (s *Series) MaxHigh() (int, float64) {
	idx := -1
	var max float64
	for i, h := range s.High {
		if idx == -1 || h > max {
			idx, max = i, h
		}
	}
	return idx, max
}

// Tail returns a view over the last n samples. The columns share storage with s.
func (s *Series) Tail(n int) *Series {
	if n <= 0 || n >= s.Len() {
		return s
	}
	from := s.Len() - n
	return &Series{
		Symbol: s.Symbol,
		Dates:  s.Dates[from:],
		Open:   s.Open[from:],
		High:   s.High[from:],
		Low:    s.Low[from:],
		Close:  s.Close[from:],
		Volume: s.Volume[from:],
	}
}
