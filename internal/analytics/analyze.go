package analytics

import (
	"math"

	"trading-analytics/internal/model"
)

// Request is the input to Analyze. Every part is optional: metrics are
// computed for whatever is supplied.
type Request struct {
	EquityCurve    []model.EquityPoint      `json:"equity_curve,omitempty"`
	Trades         []model.Trade            `json:"trades,omitempty"`
	Snapshot       *model.PortfolioSnapshot `json:"snapshot,omitempty"`
	Histories      []*model.Series          `json:"histories,omitempty"`
	Sectors        map[string]string        `json:"sectors,omitempty"`
	PeriodsPerYear float64                  `json:"periods_per_year"`
	RiskFreeRate   float64                  `json:"risk_free_rate"` // annual
	Thresholds     *ScoreThresholds         `json:"thresholds,omitempty"`
}

// Metrics is the analytics result record.
type Metrics struct {
	Periods        int                `json:"periods"`
	TotalReturn    float64            `json:"total_return"`
	Volatility     float64            `json:"volatility"`
	Sharpe         float64            `json:"sharpe"`
	MaxDrawdown    float64            `json:"max_drawdown"`
	PeriodsPerYear float64            `json:"periods_per_year"`
	TradeStats     *TradeStats        `json:"trade_stats,omitempty"`
	Exposure       *Exposure          `json:"exposure,omitempty"`
	Summary        *Summary           `json:"summary,omitempty"`
	Correlation    *CorrelationMatrix `json:"correlation,omitempty"`
	RiskScore      float64            `json:"risk_score"`
}

// DefaultPeriodsPerYear is used when a request leaves it unset (daily bars).
const DefaultPeriodsPerYear = 252

// Analyze computes every metric the request has inputs for.
func Analyze(req Request) Metrics {
	ppy := req.PeriodsPerYear
	if ppy <= 0 {
		ppy = DefaultPeriodsPerYear
	}
	th := DefaultScoreThresholds()
	if req.Thresholds != nil {
		th = *req.Thresholds
	}

	m := Metrics{PeriodsPerYear: ppy}
	var in ScoreInputs

	if len(req.EquityCurve) > 0 {
		eq := EquityValues(req.EquityCurve)
		rets := Returns(eq)
		m.Periods = len(rets)
		m.TotalReturn = TotalReturn(eq)
		m.Volatility = Volatility(rets, ppy)
		m.Sharpe = Sharpe(rets, PerPeriodRate(req.RiskFreeRate, ppy), ppy)
		m.MaxDrawdown = MaxDrawdown(eq)
		in.Volatility = m.Volatility
		in.MaxDrawdown = m.MaxDrawdown
	}
	if len(req.Trades) > 0 {
		ts := ComputeTradeStats(req.Trades)
		m.TradeStats = &ts
	}
	if req.Snapshot != nil {
		exp := AnalyzeExposure(*req.Snapshot, req.Sectors)
		sum := Summarize(*req.Snapshot)
		m.Exposure = &exp
		m.Summary = &sum
		in.ConcentrationPct = exp.LargestWeightPct
		in.Leverage = exp.Leverage
		if exp.Insolvent {
			in.Leverage = math.Inf(1)
		}
	}
	if len(req.Histories) > 0 {
		c := Correlations(req.Histories)
		m.Correlation = &c
	}
	m.RiskScore = RiskScore(in, th)
	return m
}
