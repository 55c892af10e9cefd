package indicator

// BollingerResult holds the aligned band outputs.
type BollingerResult struct {
	Middle []float64
	Upper  []float64
	Lower  []float64
}

// Bollinger computes middle = SMA(n), upper/lower = middle ± k·sd where sd
// is the sample standard deviation over the same window.
func Bollinger(values []float64, n int, k float64) BollingerResult {
	res := BollingerResult{
		Middle: SMAOf(values, n),
		Upper:  nanSlice(len(values)),
		Lower:  nanSlice(len(values)),
	}
	if unusable(n, len(values)) {
		return res
	}
	sd := RollingStdDev(values, n)
	for i := range values {
		if !Defined(res.Middle[i]) {
			continue
		}
		res.Upper[i] = res.Middle[i] + k*sd[i]
		res.Lower[i] = res.Middle[i] - k*sd[i]
	}
	return res
}

// PercentB locates close within the bands: 0 at lower, 1 at upper.
// Returns 0.5 when the bands have collapsed.
func PercentB(close, upper, lower float64) float64 {
	width := upper - lower
	if width == 0 {
		return 0.5
	}
	return (close - lower) / width
}
