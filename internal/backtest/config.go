package backtest

import (
	"math"

	"trading-analytics/internal/model"
	"trading-analytics/internal/strategy"
)

// SizingMode selects how many units an entry buys or sells.
type SizingMode string

const (
	SizingFixedFraction SizingMode = "fixed_fraction" // Value = fraction of current equity, in (0,1]
	SizingFixedQuantity SizingMode = "fixed_quantity" // Value = units per entry
	SizingFixedNotional SizingMode = "fixed_notional" // Value = currency per entry
)

// SizingPolicy converts an entry signal into a quantity.
type SizingPolicy struct {
	Mode  SizingMode `json:"mode" toml:"mode" yaml:"mode"`
	Value float64    `json:"value" toml:"value" yaml:"value"`
}

// DefaultSizing commits all current equity to each entry.
func DefaultSizing() SizingPolicy {
	return SizingPolicy{Mode: SizingFixedFraction, Value: 1.0}
}

// Validate checks the mode and its value range.
func (p SizingPolicy) Validate() error {
	switch p.Mode {
	case SizingFixedFraction:
		if !(p.Value > 0 && p.Value <= 1) {
			return &model.ConfigurationError{Field: "sizing.value", Reason: "fraction must be in (0, 1]"}
		}
	case SizingFixedQuantity, SizingFixedNotional:
		if !(p.Value > 0) || math.IsInf(p.Value, 0) {
			return &model.ConfigurationError{Field: "sizing.value", Reason: "must be positive"}
		}
	default:
		return &model.ConfigurationError{Field: "sizing.mode", Reason: "unknown sizing mode " + string(p.Mode)}
	}
	return nil
}

// Quantity returns the entry size at price given current equity,
// floored to a whole number of lots.
func (p SizingPolicy) Quantity(equity, price, lot float64) float64 {
	if price <= 0 {
		return 0
	}
	var q float64
	switch p.Mode {
	case SizingFixedFraction:
		q = equity * p.Value / price
	case SizingFixedQuantity:
		q = p.Value
	case SizingFixedNotional:
		q = p.Value / price
	}
	return floorLots(q, lot)
}

func floorLots(q, lot float64) float64 {
	if lot <= 0 {
		lot = 1
	}
	if q <= 0 {
		return 0
	}
	return math.Floor(q/lot+1e-9) * lot
}

// Config describes one backtest.
type Config struct {
	Strategy       strategy.Config `json:"strategy_config" toml:"strategy" yaml:"strategy"`
	InitialCapital float64         `json:"initial_capital" toml:"initial_capital" yaml:"initial_capital"`
	Sizing         SizingPolicy    `json:"position_sizing_policy" toml:"sizing" yaml:"sizing"`
	AllowShort     bool            `json:"allow_short" toml:"allow_short" yaml:"allow_short"`
	Pyramiding     bool            `json:"pyramiding" toml:"pyramiding" yaml:"pyramiding"`
	SlippageBps    float64         `json:"slippage_bps" toml:"slippage_bps" yaml:"slippage_bps"`
	CommissionBps  float64         `json:"commission_bps" toml:"commission_bps" yaml:"commission_bps"`
	LotSize        float64         `json:"lot_size" toml:"lot_size" yaml:"lot_size"`

	// PeriodsPerYear annualizes metrics; 0 derives it from the series interval.
	PeriodsPerYear float64 `json:"periods_per_year,omitempty" toml:"periods_per_year" yaml:"periods_per_year"`
	RiskFreeRate   float64 `json:"risk_free_rate,omitempty" toml:"risk_free_rate" yaml:"risk_free_rate"`

	// DrawdownAlert raises a notification when max drawdown exceeds it (fraction, 0 = off).
	DrawdownAlert float64 `json:"drawdown_alert,omitempty" toml:"drawdown_alert" yaml:"drawdown_alert"`
}

// DefaultConfig returns a config with the default sizing policy and no costs.
func DefaultConfig(s strategy.Config) Config {
	return Config{
		Strategy:       s,
		InitialCapital: 100000,
		Sizing:         DefaultSizing(),
		LotSize:        1,
	}
}

// withDefaults fills zero-valued optional fields.
func (c Config) withDefaults() Config {
	if c.Sizing.Mode == "" {
		c.Sizing = DefaultSizing()
	}
	if c.LotSize == 0 {
		c.LotSize = 1
	}
	return c
}

// Validate reports the first invalid field as a *model.ConfigurationError.
func (c Config) Validate() error {
	c = c.withDefaults()
	nonNeg := []struct {
		field string
		v     float64
	}{
		{"slippage_bps", c.SlippageBps},
		{"commission_bps", c.CommissionBps},
		{"periods_per_year", c.PeriodsPerYear},
		{"drawdown_alert", c.DrawdownAlert},
	}
	switch {
	case !(c.InitialCapital > 0) || math.IsInf(c.InitialCapital, 0):
		return &model.ConfigurationError{Field: "initial_capital", Reason: "must be positive"}
	case c.LotSize < 0:
		return &model.ConfigurationError{Field: "lot_size", Reason: "must be positive"}
	}
	for _, f := range nonNeg {
		if f.v < 0 || math.IsNaN(f.v) {
			return &model.ConfigurationError{Field: f.field, Reason: "must be non-negative"}
		}
	}
	return c.Sizing.Validate()
}
