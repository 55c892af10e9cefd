package strategy

import (
	"errors"
	"fmt"
	"math"

	"trading-analytics/internal/indicator"
	"trading-analytics/internal/model"
)

// Factory errors
var (
	ErrUnknownStrategyType = errors.New("unknown strategy type")
	ErrMissingPairSeries   = errors.New("Pairs_Trading requires a second series")
)

// FromConfig validates cfg and builds the strategy. pair is only used by
// Pairs_Trading and may be nil otherwise. Validation happens before any
// state is allocated; errors are *model.ConfigurationError or wrap one of
// the sentinel errors above.
func FromConfig(cfg Config, pair *model.Series) (Strategy, error) {
	p, err := checkConfig(cfg, pair)
	if err != nil {
		return nil, err
	}
	return p.build(pair), nil
}

// Warmup validates cfg exactly like FromConfig and returns the strategy's
// warm-up length without allocating its window state.
func Warmup(cfg Config, pair *model.Series) (int, error) {
	p, err := checkConfig(cfg, pair)
	if err != nil {
		return 0, err
	}
	return p.window, nil
}

// params is a validated Config. window is the warm-up length.
type params struct {
	kind      Kind
	window    int
	fast      int
	rsiPeriod int
	k         float64
	entry     float64
	exit      float64
	mode      SpreadMode
}

func (p params) build(pair *model.Series) Strategy {
	switch p.kind {
	case KindSMACrossover:
		return NewSMACrossover(p.fast, p.window, p.rsiPeriod)
	case KindMeanReversion:
		return NewMeanReversion(p.window, p.k)
	case KindMomentum:
		return NewMomentum(p.window, p.k)
	default:
		return NewPairsTrading(pair, p.window, p.entry, p.exit, p.mode)
	}
}

func checkConfig(cfg Config, pair *model.Series) (params, error) {
	switch cfg.Kind {
	case KindSMACrossover:
		return checkCrossover(cfg)
	case KindMeanReversion:
		return checkMeanReversion(cfg)
	case KindMomentum:
		return checkMomentum(cfg)
	case KindPairsTrading:
		return checkPairs(cfg, pair)
	default:
		return params{}, fmt.Errorf("%w: %q: %w", ErrUnknownStrategyType, cfg.Kind,
			&model.ConfigurationError{Field: "strategy", Reason: "unknown strategy " + string(cfg.Kind)})
	}
}

// ParseKind matches a kind name case-sensitively against Kinds.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", &model.ConfigurationError{Field: "strategy", Reason: "unknown strategy " + s}
}

func checkCrossover(cfg Config) (params, error) {
	p := params{kind: KindSMACrossover}
	var err error
	if p.fast, err = windowParam(cfg, "fast", 5); err != nil {
		return p, err
	}
	if p.window, err = windowParam(cfg, "slow", 20); err != nil {
		return p, err
	}
	if p.fast >= p.window {
		return p, &model.ConfigurationError{Field: "fast", Reason: "fast must be less than slow"}
	}
	if cfg.Param("rsi_filter", 0) > 0 {
		if p.rsiPeriod, err = windowParam(cfg, "rsi_period", 14); err != nil {
			return p, err
		}
	}
	return p, nil
}

func checkMeanReversion(cfg Config) (params, error) {
	p := params{kind: KindMeanReversion}
	var err error
	if p.window, err = windowParam(cfg, "window", 20); err != nil {
		return p, err
	}
	if p.window < 2 {
		return p, &model.ConfigurationError{Field: "window", Reason: "must be at least 2"}
	}
	p.k = cfg.Param("k", 2)
	if !(p.k > 0) || math.IsInf(p.k, 1) {
		return p, &model.ConfigurationError{Field: "k", Reason: "must be positive"}
	}
	return p, nil
}

func checkMomentum(cfg Config) (params, error) {
	p := params{kind: KindMomentum}
	var err error
	if p.window, err = windowParam(cfg, "window", 10); err != nil {
		return p, err
	}
	p.k = cfg.Param("threshold", 0.02)
	if !(p.k > 0) || math.IsInf(p.k, 1) {
		return p, &model.ConfigurationError{Field: "threshold", Reason: "must be positive"}
	}
	return p, nil
}

func checkPairs(cfg Config, pair *model.Series) (params, error) {
	p := params{kind: KindPairsTrading}
	if pair == nil {
		return p, fmt.Errorf("%w: %w", ErrMissingPairSeries,
			&model.ConfigurationError{Field: "pair", Reason: "second series required"})
	}
	var err error
	if p.window, err = windowParam(cfg, "window", 20); err != nil {
		return p, err
	}
	if p.window < 2 {
		return p, &model.ConfigurationError{Field: "window", Reason: "must be at least 2"}
	}
	p.entry = cfg.Param("entry_z", 2)
	p.exit = cfg.Param("exit_z", 0.5)
	if !(p.entry > 0) || math.IsInf(p.entry, 1) {
		return p, &model.ConfigurationError{Field: "entry_z", Reason: "must be positive"}
	}
	if !(p.exit >= 0) || p.exit >= p.entry {
		return p, &model.ConfigurationError{Field: "exit_z", Reason: "must be in [0, entry_z)"}
	}
	p.mode = SpreadMode(cfg.Option("spread_mode", string(SpreadDifference)))
	if p.mode != SpreadRatio && p.mode != SpreadDifference {
		return p, &model.ConfigurationError{Field: "spread_mode", Reason: "must be ratio or difference"}
	}
	return p, nil
}

// windowParam reads an integer parameter in [1, indicator.MaxWindow].
func windowParam(cfg Config, name string, def float64) (int, error) {
	v := cfg.Param(name, def)
	if !(v >= 1 && v <= indicator.MaxWindow) || v != math.Trunc(v) {
		return 0, &model.ConfigurationError{Field: name,
			Reason: fmt.Sprintf("must be an integer in [1, %d]", indicator.MaxWindow)}
	}
	return int(v), nil
}
