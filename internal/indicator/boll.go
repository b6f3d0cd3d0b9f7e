package indicator

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Conventional Bollinger Band parameters.
const (
	DefaultBollingerPeriod = 20
	DefaultBollingerK      = 2.0
)

// BollingerBands returns the lower, middle and upper bands with the
// conventional 2 standard deviation width.
func BollingerBands(close []float64, n int) (lower, middle, upper []float64, err error) {
	return BollingerBandsK(close, n, DefaultBollingerK)
}

// BollingerBandsK returns SMA(close, n) -/+ k standard deviations of each window.
// The deviation is the population standard deviation (divisor n).
// All three series have length len(close)-n+1.
func BollingerBandsK(close []float64, n int, k float64) (lower, middle, upper []float64, err error) {
	if k < 0 || math.IsNaN(k) || math.IsInf(k, 0) {
		return nil, nil, nil, invalidParam("bollinger multiplier %v", k)
	}
	middle, err = SMA(close, n)
	if err != nil {
		return nil, nil, nil, err
	}

	lower = make([]float64, len(middle))
	upper = make([]float64, len(middle))
	for i, m := range middle {
		sd := math.Sqrt(stat.Moment(2, close[i:i+n], nil))
		lower[i] = m - k*sd
		upper[i] = m + k*sd
	}
	return lower, middle, upper, nil
}
