// Package strategy turns price history into directional signals.
//
// Each strategy is a fold over bars: OnBar consumes the next bar, updates
// the strategy's indicator accumulators and returns a Signal. Reset puts
// the fold back at its start, so running the same strategy twice over the
// same series yields identical signals. A Strategy instance is owned by a
// single run; concurrent runs build their own through FromConfig.
package strategy

import (
	"iter"

	"trading-analytics/internal/model"
)

// Kind enumerates the supported strategy variants.
type Kind string

const (
	KindSMACrossover  Kind = "SMA_Crossover"
	KindMeanReversion Kind = "Mean_Reversion"
	KindMomentum      Kind = "Momentum"
	KindPairsTrading  Kind = "Pairs_Trading"
)

// Kinds lists every supported variant.
var Kinds = []Kind{KindSMACrossover, KindMeanReversion, KindMomentum, KindPairsTrading}

// Strategy is the contract every variant implements.
type Strategy interface {
	// Name returns a display name including parameters, e.g. "SMA_Crossover(5,20)".
	Name() string

	// Kind returns the variant.
	Kind() Kind

	// Warmup is the number of leading bars that always produce HOLD.
	Warmup() int

	// OnBar consumes the next bar in timestamp order.
	OnBar(bar model.Bar) model.Signal

	// Reset clears accumulated state.
	Reset()
}

// Config selects a strategy and its named parameters.
type Config struct {
	Kind    Kind               `json:"strategy" toml:"strategy" yaml:"strategy"`
	Params  map[string]float64 `json:"params,omitempty" toml:"params" yaml:"params"`
	Options map[string]string  `json:"options,omitempty" toml:"options" yaml:"options"`
}

// Param returns a named parameter or def when absent.
func (c Config) Param(name string, def float64) float64 {
	if v, ok := c.Params[name]; ok {
		return v
	}
	return def
}

// Option returns a named string option or def when absent.
func (c Config) Option(name, def string) string {
	if v, ok := c.Options[name]; ok && v != "" {
		return v
	}
	return def
}

// Signals yields one signal per bar of series. The sequence is lazy,
// finite and restartable: every iteration starts from a reset strategy.
func Signals(s Strategy, series *model.Series) iter.Seq2[int, model.Signal] {
	return func(yield func(int, model.Signal) bool) {
		s.Reset()
		for i, bar := range series.Bars {
			if !yield(i, s.OnBar(bar)) {
				return
			}
		}
	}
}

// Generate collects Signals into a slice.
func Generate(s Strategy, series *model.Series) []model.Signal {
	out := make([]model.Signal, 0, series.Len())
	for _, sig := range Signals(s, series) {
		out = append(out, sig)
	}
	return out
}

// Counts tallies signals by direction.
func Counts(signals []model.Signal) map[model.Direction]int {
	out := map[model.Direction]int{model.Buy: 0, model.Sell: 0, model.Hold: 0}
	for _, s := range signals {
		out[s.Direction]++
	}
	return out
}

const reasonWarmup = "insufficient history"

func clamp01(x float64) float64 {
	switch {
	case x < 0:
		return 0
	case x > 1:
		return 1
	}
	return x
}
