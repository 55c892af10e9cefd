package indicator

// MACDResult holds the three aligned MACD outputs.
type MACDResult struct {
	Line      []float64
	Signal    []float64
	Histogram []float64
}

// MACD computes line = EMA(fast) - EMA(slow), signal = EMA(signal) of the
// defined part of line, histogram = line - signal. The line is defined from
// index slow-1 and the signal from slow+signal-2.
func MACD(values []float64, fast, slow, signal int) MACDResult {
	n := len(values)
	res := MACDResult{Line: nanSlice(n), Signal: nanSlice(n), Histogram: nanSlice(n)}
	if fast <= 0 || signal <= 0 || fast >= slow || unusable(slow, n) {
		return res
	}

	fastEMA := EMAOf(values, fast)
	slowEMA := EMAOf(values, slow)
	for i := range values {
		if Defined(fastEMA[i]) && Defined(slowEMA[i]) {
			res.Line[i] = fastEMA[i] - slowEMA[i]
		}
	}

	res.Signal = onDefined(res.Line, func(line []float64) []float64 {
		return EMAOf(line, signal)
	})
	for i := range values {
		if Defined(res.Signal[i]) {
			res.Histogram[i] = res.Line[i] - res.Signal[i]
		}
	}
	return res
}
