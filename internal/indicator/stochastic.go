package indicator

import "trading-analytics/internal/model"

// StochasticResult holds %K and its smoothed %D.
type StochasticResult struct {
	K []float64
	D []float64
}

// Stochastic computes %K = 100·(close - lowestLow)/(highestHigh - lowestLow)
// over n bars and %D = SMA(smoothing) of %K. A zero range gives %K = 50.
func Stochastic(series *model.Series, n, smoothing int) StochasticResult {
	bars := series.Bars
	res := StochasticResult{K: nanSlice(len(bars)), D: nanSlice(len(bars))}
	if unusable(n, len(bars)) || smoothing <= 0 {
		return res
	}
	for i := n - 1; i < len(bars); i++ {
		hh, ll := bars[i].High, bars[i].Low
		for j := i - n + 1; j < i; j++ {
			if bars[j].High > hh {
				hh = bars[j].High
			}
			if bars[j].Low < ll {
				ll = bars[j].Low
			}
		}
		if hh == ll {
			res.K[i] = 50
			continue
		}
		res.K[i] = 100 * (bars[i].Close - ll) / (hh - ll)
	}
	res.D = onDefined(res.K, func(k []float64) []float64 {
		return SMAOf(k, smoothing)
	})
	return res
}
