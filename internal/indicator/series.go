package indicator

// Subtract returns a - b over the overlapping suffix of the two series.
// The result has length min(len(a), len(b)) and is aligned to the end of both.
func Subtract(a, b []float64) []float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	oa, ob := len(a)-n, len(b)-n
	out := make([]float64, n)
	for i := range out {
		out[i] = a[oa+i] - b[ob+i]
	}
	return out
}

// windowMean returns the mean of window clamped to [min(window), max(window)].
// The clamp absorbs the last-ulp rounding of sum/len, so a flat window
// returns its value exactly.
func windowMean(window []float64) float64 {
	lo, hi := window[0], window[0]
	var sum float64
	for _, v := range window {
		sum += v
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return clamp(sum/float64(len(window)), lo, hi)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// rollingMin returns the minimum of every window of w samples, length len(p)-w+1.
// A monotonic deque of indices keeps the whole pass O(N).
func rollingMin(p []float64, w int) []float64 {
	return rollingExtreme(p, w, func(a, b float64) bool { return a <= b })
}

// rollingMax returns the maximum of every window of w samples, length len(p)-w+1.
func rollingMax(p []float64, w int) []float64 {
	return rollingExtreme(p, w, func(a, b float64) bool { return a >= b })
}

// rollingExtreme keeps the deque head as the best index of the current window.
// better(a, b) reports whether a displaces b from the tail.
func rollingExtreme(p []float64, w int, better func(a, b float64) bool) []float64 {
	if w < 1 || w > len(p) {
		return nil
	}
	out := make([]float64, 0, len(p)-w+1)
	deque := make([]int, 0, w)
	for i, v := range p {
		for len(deque) > 0 && better(v, p[deque[len(deque)-1]]) {
			deque = deque[:len(deque)-1]
		}
		deque = append(deque, i)
		if deque[0] <= i-w {
			deque = deque[1:]
		}
		if i >= w-1 {
			out = append(out, p[deque[0]])
		}
	}
	return out
}

// maxPeriod returns the largest period across configs, 0 when empty.
func maxPeriod(configs []StreamConfig) int {
	max := 0
	for _, c := range configs {
		if c.Period > max {
			max = c.Period
		}
	}
	return max
}
