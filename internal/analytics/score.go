package analytics

import "math"

// ScoreInputs are the measures that feed the composite risk score.
type ScoreInputs struct {
	Volatility       float64 `json:"volatility"`        // annualized
	MaxDrawdown      float64 `json:"max_drawdown"`      // fraction
	ConcentrationPct float64 `json:"concentration_pct"` // largest position weight
	Leverage         float64 `json:"leverage"`
}

// ScoreThresholds is the value at which each component saturates.
type ScoreThresholds struct {
	Volatility       float64 `json:"volatility" toml:"volatility" yaml:"volatility"`
	MaxDrawdown      float64 `json:"max_drawdown" toml:"max_drawdown" yaml:"max_drawdown"`
	ConcentrationPct float64 `json:"concentration_pct" toml:"concentration_pct" yaml:"concentration_pct"`
	Leverage         float64 `json:"leverage" toml:"leverage" yaml:"leverage"`
}

// DefaultScoreThresholds saturate at 40% vol, 25% drawdown, a 25% single
// position and 2x leverage.
func DefaultScoreThresholds() ScoreThresholds {
	return ScoreThresholds{Volatility: 0.40, MaxDrawdown: 0.25, ConcentrationPct: 25, Leverage: 2}
}

// RiskScore combines four components, each worth up to 25 points as
// 25·min(1, x/threshold). The result is in [0,100] and non-decreasing in
// every input. Components with a non-positive threshold contribute 0.
func RiskScore(in ScoreInputs, th ScoreThresholds) float64 {
	return component(in.Volatility, th.Volatility) +
		component(in.MaxDrawdown, th.MaxDrawdown) +
		component(in.ConcentrationPct, th.ConcentrationPct) +
		component(in.Leverage, th.Leverage)
}

func component(x, threshold float64) float64 {
	if threshold <= 0 || math.IsNaN(x) || x <= 0 {
		return 0
	}
	return 25 * math.Min(1, x/threshold)
}
