// Package analytics computes performance and risk metrics for equity
// curves and portfolio snapshots.
//
// Statistics use the sample standard deviation (n-1 denominator).
// Degenerate inputs map to documented sentinels instead of errors:
// zero-variance Sharpe is 0, an empty curve has zero drawdown, and a
// correlation without two overlapping return periods is NaN.
package analytics

import (
	"math"

	"trading-analytics/internal/indicator"
	"trading-analytics/internal/model"
)

// EquityValues extracts TotalEquity from a curve.
func EquityValues(curve []model.EquityPoint) []float64 {
	out := make([]float64, len(curve))
	for i, p := range curve {
		out[i] = p.TotalEquity
	}
	return out
}

// Returns computes simple period returns e[t]/e[t-1] - 1. Periods whose
// starting value is zero are skipped.
func Returns(equity []float64) []float64 {
	if len(equity) < 2 {
		return nil
	}
	out := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] == 0 {
			continue
		}
		out = append(out, equity[i]/equity[i-1]-1)
	}
	return out
}

// TotalReturn is last/first - 1, 0 for fewer than two points.
func TotalReturn(equity []float64) float64 {
	if len(equity) < 2 || equity[0] == 0 {
		return 0
	}
	return equity[len(equity)-1]/equity[0] - 1
}

// Volatility annualizes the sample stddev of returns by √periodsPerYear.
func Volatility(returns []float64, periodsPerYear float64) float64 {
	return indicator.StdDev(returns) * math.Sqrt(periodsPerYear)
}

// Sharpe is (mean(r) - rfPerPeriod) / stddev(r) · √periodsPerYear.
// Returns 0 when stddev is zero.
func Sharpe(returns []float64, rfPerPeriod, periodsPerYear float64) float64 {
	sd := indicator.StdDev(returns)
	if sd == 0 || indicator.NearZero(sd, indicator.Mean(returns)) {
		return 0
	}
	return (indicator.Mean(returns) - rfPerPeriod) / sd * math.Sqrt(periodsPerYear)
}

// PerPeriodRate converts an annual rate to a per-period rate.
func PerPeriodRate(annual, periodsPerYear float64) float64 {
	if periodsPerYear <= 0 {
		return 0
	}
	return annual / periodsPerYear
}

// MaxDrawdown is the largest fractional fall from a running peak.
// The peak is tracked directly rather than rescanned.
func MaxDrawdown(equity []float64) float64 {
	var peak, maxDD float64
	for i, v := range equity {
		if i == 0 || v > peak {
			peak = v
			continue
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - v) / peak; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// TradeStats summarizes a trade log.
type TradeStats struct {
	Trades       int     `json:"trades"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	WinRate      float64 `json:"win_rate"`
	AvgWin       float64 `json:"avg_win"`
	AvgLoss      float64 `json:"avg_loss"`
	ProfitFactor float64 `json:"profit_factor"`
	NetPnL       float64 `json:"net_pnl"`
}

// ComputeTradeStats tallies wins and losses. WinRate is 0 with no trades;
// ProfitFactor is 0 when there are no losing trades.
func ComputeTradeStats(trades []model.Trade) TradeStats {
	var s TradeStats
	var grossWin, grossLoss float64
	for _, t := range trades {
		s.Trades++
		s.NetPnL += t.PnL
		if t.Win() {
			s.Wins++
			grossWin += t.PnL
		} else {
			s.Losses++
			grossLoss += -t.PnL
		}
	}
	if s.Trades > 0 {
		s.WinRate = float64(s.Wins) / float64(s.Trades)
	}
	if s.Wins > 0 {
		s.AvgWin = grossWin / float64(s.Wins)
	}
	if s.Losses > 0 {
		s.AvgLoss = grossLoss / float64(s.Losses)
	}
	if grossLoss > 0 {
		s.ProfitFactor = grossWin / grossLoss
	}
	return s
}
