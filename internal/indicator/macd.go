package indicator

// Conventional MACD periods.
const (
	DefaultMACDFast   = 12
	DefaultMACDSlow   = 26
	DefaultMACDSignal = 9
)

// MACD returns the fast EMA, the slow EMA and their difference (the MACD line).
// All three series have the same length as close. The signal line and the
// divergence are left to the caller; see MACDSignal.
func MACD(close []float64, fast, slow int) (emaFast, emaSlow, macd []float64, err error) {
	if len(close) == 0 {
		return nil, nil, nil, emptySeries("macd")
	}
	if fast < 1 || slow < 1 || fast > len(close) || slow > len(close) {
		return nil, nil, nil, invalidParam("macd periods fast=%d slow=%d for %d samples", fast, slow, len(close))
	}

	if emaFast, err = EMA(close, fast); err != nil {
		return nil, nil, nil, err
	}
	if emaSlow, err = EMA(close, slow); err != nil {
		return nil, nil, nil, err
	}
	return emaFast, emaSlow, Subtract(emaFast, emaSlow), nil
}

// MACDSignal derives the signal line EMA(macd, period) and the divergence
// (histogram) macd - signal. Both have the same length as macd.
func MACDSignal(macd []float64, period int) (signal, divergence []float64, err error) {
	signal, err = EMA(macd, period)
	if err != nil {
		return nil, nil, err
	}
	return signal, Subtract(macd, signal), nil
}
