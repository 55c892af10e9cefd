// Package indicator provides technical indicator calculations over price series.
//
// Two layers live here. The streaming accumulators (SMA, EMA, SMMA, RSI)
// consume one value at a time and are the explicit fold state. The pure
// functions (SMA, EMA, RSI, MACD, Bollinger, ATR, Stochastic) run those
// folds over a whole slice and return an output of the same length,
// left-padded with NaN for the warm-up window.
//
// A window larger than the input yields an all-NaN output, never an error.
// Non-positive windows also yield all-NaN; callers that need a hard failure
// validate through Spec.Validate before computing.
package indicator

import "math"

// Indicator is the interface for streaming accumulators.
type Indicator interface {
	// Name returns the indicator name (e.g., "SMA", "EMA").
	Name() string

	// Update feeds the next value and recalculates.
	Update(x float64)

	// Value returns the current calculated value. Returns 0 if not enough data.
	Value() float64

	// Ready returns true when enough data has been accumulated.
	Ready() bool

	// Peek computes what Value() would be if x were added next,
	// WITHOUT mutating internal state.
	Peek(x float64) float64

	// Reset clears accumulated state so the instance can be reused.
	Reset()
}

// MaxWindow bounds every window a Spec may ask for.
const MaxWindow = 1_000_000

// unusable reports whether an n-period window can never be filled by
// size values. Callers return an all-NaN output without allocating any
// window state.
func unusable(n, size int) bool { return n <= 0 || n > size }

// nanSlice returns n NaNs.
func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// fold runs values through ind and records Value() once Ready().
func fold(values []float64, ind Indicator) []float64 {
	out := nanSlice(len(values))
	for i, v := range values {
		ind.Update(v)
		if ind.Ready() {
			out[i] = ind.Value()
		}
	}
	return out
}

// firstDefined returns the index of the first non-NaN value, or len(values).
func firstDefined(values []float64) int {
	for i, v := range values {
		if !math.IsNaN(v) {
			return i
		}
	}
	return len(values)
}

// onDefined applies fn to the suffix of values starting at the first defined
// point and re-pads the result to the original length.
func onDefined(values []float64, fn func([]float64) []float64) []float64 {
	start := firstDefined(values)
	out := nanSlice(len(values))
	if start == len(values) {
		return out
	}
	copy(out[start:], fn(values[start:]))
	return out
}

// Defined reports whether v carries a value (is not the NaN sentinel).
func Defined(v float64) bool { return !math.IsNaN(v) }
