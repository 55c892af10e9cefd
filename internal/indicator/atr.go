package indicator

import (
	"math"

	"trading-analytics/internal/model"
)

// TrueRange returns per-bar true range. The first bar has no previous close
// so its true range is high - low.
func TrueRange(bars []model.Bar) []float64 {
	tr := make([]float64, len(bars))
	for i, b := range bars {
		if i == 0 {
			tr[i] = b.High - b.Low
			continue
		}
		prev := bars[i-1].Close
		tr[i] = math.Max(b.High-b.Low, math.Max(math.Abs(b.High-prev), math.Abs(b.Low-prev)))
	}
	return tr
}

// ATR is Wilder-smoothed true range. The first value, at index n-1, is the
// mean of the first n true ranges.
func ATR(series *model.Series, n int) []float64 {
	if unusable(n, series.Len()) {
		return nanSlice(series.Len())
	}
	return SMMAOf(TrueRange(series.Bars), n)
}
