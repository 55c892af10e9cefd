package model

import "math"

// RiskLimits configures the pre-trade validator. A zero field disables
// the corresponding check; negative and non-finite values are invalid.
type RiskLimits struct {
	MaxPositionSize              float64 `json:"max_position_size" toml:"max_position_size" yaml:"max_position_size"`
	MaxDailyLoss                 float64 `json:"max_daily_loss" toml:"max_daily_loss" yaml:"max_daily_loss"`
	MaxPortfolioConcentrationPct float64 `json:"max_portfolio_concentration_pct" toml:"max_portfolio_concentration_pct" yaml:"max_portfolio_concentration_pct"`
	MaxLeverage                  float64 `json:"max_leverage" toml:"max_leverage" yaml:"max_leverage"`
}

// Validate rejects negative limits.
func (l RiskLimits) Validate() error {
	checks := []struct {
		field string
		v     float64
	}{
		{"max_position_size", l.MaxPositionSize},
		{"max_daily_loss", l.MaxDailyLoss},
		{"max_portfolio_concentration_pct", l.MaxPortfolioConcentrationPct},
		{"max_leverage", l.MaxLeverage},
	}
	for _, c := range checks {
		if math.IsNaN(c.v) || math.IsInf(c.v, 0) {
			return &ConfigurationError{Field: c.field, Reason: "must be finite"}
		}
		if c.v < 0 {
			return &ConfigurationError{Field: c.field, Reason: "must be non-negative"}
		}
	}
	return nil
}

// Severity of a risk violation.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Violation is one failed or near-limit risk rule.
type Violation struct {
	Rule     string   `json:"rule"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// RiskAssessment is the validator's verdict on a proposed order.
type RiskAssessment struct {
	Approved   bool        `json:"approved"`
	RiskScore  float64     `json:"risk_score"`
	Violations []Violation `json:"violations"`
}

// Critical returns only the rejecting violations.
func (a *RiskAssessment) Critical() []Violation {
	var out []Violation
	for _, v := range a.Violations {
		if v.Severity == SeverityCritical {
			out = append(out, v)
		}
	}
	return out
}
