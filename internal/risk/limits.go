// Package risk validates proposed orders against configured limits.
//
// Validate is pure: it reads a PortfolioSnapshot value and never touches
// live state, so any number of goroutines may call it on the same
// snapshot. Guard is the serialized live path that snapshots a
// portfolio.Book, validates, submits and books the fill.
package risk

import "trading-analytics/internal/model"

// Rule names, in evaluation order.
const (
	RuleOrder         = "order"
	RulePositionSize  = "position_size"
	RuleDailyLoss     = "daily_loss"
	RuleConcentration = "concentration"
	RuleLeverage      = "leverage"
)

// WarnUtilization is the fraction of a limit at which a warning is raised.
const WarnUtilization = 0.9

// DefaultRiskLimits returns conservative default limits.
func DefaultRiskLimits() model.RiskLimits {
	return model.RiskLimits{
		MaxPositionSize:              100000, // ₹1,00,000 per instrument
		MaxDailyLoss:                 5000,   // ₹5,000
		MaxPortfolioConcentrationPct: 25,
		MaxLeverage:                  1,
	}
}
