package indicator

import (
	"math"
	"testing"
)

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f, diff=%.6f)", label, got, want, tol, math.Abs(got-want))
	}
}

var handSeries = []float64{20, 22, 21, 24, 26, 25}

// Expected outputs over handSeries; NaN marks "not ready yet".
//
//	SMA(3):  21, (22+21+24)/3, (21+24+26)/3, (24+26+25)/3
//	EMA(3):  k=0.5, seed 21 -> 22.5 -> 24.25 -> 24.625
//	SMMA(3): seed 21 -> (42+24)/3=22 -> (44+26)/3 -> (2*23.333+25)/3
//	RSI(3):  deltas +2 -1 +3 +2 -1
//	         seed avgGain 5/3, avgLoss 1/3 -> RS 5   -> 83.333
//	         avgGain 16/9, avgLoss 2/9     -> RS 8   -> 88.889
//	         avgGain 32/27, avgLoss 13/27  -> RS 32/13 -> 71.111
func TestAccumulators_HandComputed(t *testing.T) {
	nan := math.NaN()
	cases := []struct {
		name string
		ind  Indicator
		want []float64
	}{
		{"SMA(3)", NewSMA(3), []float64{nan, nan, 21, 22.3333, 23.6667, 25}},
		{"EMA(3)", NewEMA(3), []float64{nan, nan, 21, 22.5, 24.25, 24.625}},
		{"SMMA(3)", NewSMMA(3), []float64{nan, nan, 21, 22, 23.3333, 23.8889}},
		{"RSI(3)", NewRSI(3), []float64{nan, nan, nan, 83.3333, 88.8889, 71.1111}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for i, x := range handSeries {
				tc.ind.Update(x)
				if ready := !math.IsNaN(tc.want[i]); tc.ind.Ready() != ready {
					t.Fatalf("index %d: Ready()=%v, want %v", i, tc.ind.Ready(), ready)
				}
				if tc.ind.Ready() {
					assertClose(t, tc.name, tc.ind.Value(), tc.want[i], 1e-3)
				}
			}
		})
	}
}

func TestAccumulators_MatchBatchFunctions(t *testing.T) {
	values := []float64{44, 44.34, 44.09, 43.61, 44.33, 44.83, 45.1, 45.42, 45.84, 46.08, 45.89, 46.03}
	batches := []struct {
		name  string
		ind   Indicator
		batch []float64
	}{
		{"SMA", NewSMA(4), SMAOf(values, 4)},
		{"EMA", NewEMA(4), EMAOf(values, 4)},
		{"RSI", NewRSI(4), RSIOf(values, 4)},
	}
	for _, b := range batches {
		for i, x := range values {
			b.ind.Update(x)
			if b.ind.Ready() != Defined(b.batch[i]) {
				t.Fatalf("%s[%d]: streaming ready=%v, batch=%v", b.name, i, b.ind.Ready(), b.batch[i])
			}
			if b.ind.Ready() {
				assertClose(t, b.name, b.ind.Value(), b.batch[i], 1e-12)
			}
		}
	}
}

// Peek(x) must equal what Value() becomes after Update(x) and leave the
// receiver untouched.
func TestAccumulators_PeekIsPureLookahead(t *testing.T) {
	factories := map[string]func() Indicator{
		"SMA":  func() Indicator { return NewSMA(3) },
		"EMA":  func() Indicator { return NewEMA(3) },
		"SMMA": func() Indicator { return NewSMMA(3) },
		"RSI":  func() Indicator { return NewRSI(3) },
	}
	for name, mk := range factories {
		for _, next := range []float64{10, 25, 40} {
			a, b := mk(), mk()
			for _, x := range handSeries {
				a.Update(x)
				b.Update(x)
			}
			before := a.Value()
			peeked := a.Peek(next)
			assertClose(t, name+" unchanged by Peek", a.Value(), before, 0)

			b.Update(next)
			assertClose(t, name+" Peek vs Update", peeked, b.Value(), 1e-9)
		}
	}
}

func TestRSI_Extremes(t *testing.T) {
	cases := []struct {
		name string
		step float64
		want float64
	}{
		{"rising", 1, 100},
		{"falling", -1, 0},
		{"flat", 0, 100},
	}
	for _, tc := range cases {
		rsi := NewRSI(5)
		for i := 0; i < 12; i++ {
			rsi.Update(150 + tc.step*float64(i))
		}
		assertClose(t, "RSI "+tc.name, rsi.Value(), tc.want, 1e-9)
	}

	rsi := NewRSI(5)
	for i := 0; i < 12; i++ {
		rsi.Update(150 + float64(i))
	}
	if down := rsi.Peek(120); down >= rsi.Value() {
		t.Errorf("Peek on a drop should lower RSI: peek=%.2f, current=%.2f", down, rsi.Value())
	}
}

func TestMovingAverages_TrendOrdering(t *testing.T) {
	up := make([]float64, 40)
	down := make([]float64, 40)
	for i := range up {
		up[i] = 500 + 2*float64(i)
		down[i] = 500 - 2*float64(i)
	}
	last := len(up) - 1
	if fast, slow := SMAOf(up, 5)[last], SMAOf(up, 20)[last]; fast <= slow {
		t.Errorf("uptrend: SMA(5)=%.2f should exceed SMA(20)=%.2f", fast, slow)
	}
	if fast, slow := EMAOf(up, 5)[last], SMAOf(up, 20)[last]; fast <= slow {
		t.Errorf("uptrend: EMA(5)=%.2f should exceed SMA(20)=%.2f", fast, slow)
	}
	if fast, slow := SMAOf(down, 5)[last], SMAOf(down, 20)[last]; fast >= slow {
		t.Errorf("downtrend: SMA(5)=%.2f should trail SMA(20)=%.2f", fast, slow)
	}

	// A single jump after a flat stretch moves EMA(10) further than SMA(10).
	step := make([]float64, 21)
	for i := range step {
		step[i] = 100
	}
	step[20] = 120
	if e, s := EMAOf(step, 10)[20], SMAOf(step, 10)[20]; e <= s {
		t.Errorf("EMA should react more than SMA: EMA=%.4f, SMA=%.4f", e, s)
	}
}

func TestReset_MatchesFreshInstance(t *testing.T) {
	pairs := []struct {
		name        string
		used, fresh Indicator
	}{
		{"SMA", NewSMA(5), NewSMA(5)},
		{"EMA", NewEMA(5), NewEMA(5)},
		{"SMMA", NewSMMA(3), NewSMMA(3)},
		{"RSI", NewRSI(3), NewRSI(3)},
	}
	for _, p := range pairs {
		for _, x := range []float64{10, 20, 30, 40, 50, 60, 70} {
			p.used.Update(x)
		}
		p.used.Reset()
		if p.used.Ready() {
			t.Errorf("%s: Ready() after Reset", p.name)
		}
		for _, x := range handSeries {
			p.used.Update(x)
			p.fresh.Update(x)
		}
		assertClose(t, p.name+" after Reset", p.used.Value(), p.fresh.Value(), 1e-9)
	}
}
