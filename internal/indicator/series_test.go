package indicator

import (
	"math"
	"testing"
	"time"

	"trading-analytics/internal/model"
)

func TestSMAOf_WarmupAndLength(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	out := SMAOf(values, 3)
	if len(out) != len(values) {
		t.Fatalf("len=%d, want %d", len(out), len(values))
	}
	for i := 0; i < 2; i++ {
		if !math.IsNaN(out[i]) {
			t.Errorf("index %d: expected NaN, got %v", i, out[i])
		}
	}
	assertClose(t, "SMA(3)[2]", out[2], 2, 1e-12)
	assertClose(t, "SMA(3)[9]", out[9], 9, 1e-12)
}

func TestWindowLargerThanInput_AllNaN(t *testing.T) {
	values := []float64{1, 2, 3}
	for name, out := range map[string][]float64{
		"SMA": SMAOf(values, 5),
		"EMA": EMAOf(values, 5),
		"RSI": RSIOf(values, 5),
		"BB":  Bollinger(values, 5, 2).Upper,
	} {
		for i, v := range out {
			if !math.IsNaN(v) {
				t.Errorf("%s[%d]: expected NaN, got %v", name, i, v)
			}
		}
	}
}

// Windows far beyond the input must not size any buffer from the window.
func TestHugeWindow_AllNaNWithoutAllocating(t *testing.T) {
	values := []float64{1, 2, 3}
	s := hlcSeries(t, [][3]float64{{10, 8, 9}, {11, 9, 10}, {12, 10, 11}})
	const huge = 1 << 50
	for name, out := range map[string][]float64{
		"SMA":   SMAOf(values, huge),
		"EMA":   EMAOf(values, huge),
		"SMMA":  SMMAOf(values, huge),
		"RSI":   RSIOf(values, huge),
		"BB":    Bollinger(values, huge, 2).Middle,
		"MACD":  MACD(values, 2, huge, 2).Line,
		"ATR":   ATR(s, huge),
		"STOCH": Stochastic(s, huge, 3).K,
	} {
		if len(out) != 3 {
			t.Fatalf("%s: len=%d, want 3", name, len(out))
		}
		for i, v := range out {
			if !math.IsNaN(v) {
				t.Errorf("%s[%d]: expected NaN, got %v", name, i, v)
			}
		}
	}
	if out := RSIOf(values, 3); !math.IsNaN(out[2]) {
		t.Errorf("RSI(3) over 3 values has only 2 deltas, got %v", out[2])
	}
}

func TestConstantInput_EqualsConstant(t *testing.T) {
	values := make([]float64, 40)
	for i := range values {
		values[i] = 42
	}
	for name, out := range map[string][]float64{
		"SMA": SMAOf(values, 10),
		"EMA": EMAOf(values, 10),
		"BB":  Bollinger(values, 10, 2).Middle,
		"BBu": Bollinger(values, 10, 2).Upper,
	} {
		for i := 10; i < len(out); i++ {
			assertClose(t, name, out[i], 42, 1e-9)
		}
	}
}

func TestRSIOf_RangeAndMonotone(t *testing.T) {
	values := []float64{44, 44.34, 44.09, 43.61, 44.33, 44.83, 45.1, 45.42, 45.84, 46.08, 45.89, 46.03, 45.61, 46.28}
	out := RSIOf(values, 5)
	if !math.IsNaN(out[4]) {
		t.Errorf("index 4 should be NaN, got %v", out[4])
	}
	assertClose(t, "RSI(5)[5]", out[5], 68.112, 0.1)
	for i := 5; i < len(out); i++ {
		if out[i] < 0 || out[i] > 100 {
			t.Errorf("RSI[%d]=%v out of [0,100]", i, out[i])
		}
	}

	up := make([]float64, 30)
	for i := range up {
		up[i] = 100 + float64(i)
	}
	upRSI := RSIOf(up, 14)
	for i := 14; i < len(upRSI); i++ {
		assertClose(t, "RSI monotone up", upRSI[i], 100, 1e-9)
	}
}

func TestMACD_HandComputed(t *testing.T) {
	// EMA(2): k=2/3, seed at index 1 = 1.5, then 2.5, 3.5, 4.5, 5.5
	// EMA(3): k=1/2, seed at index 2 = 2, then 3, 4, 5
	// Line from index 2 = 0.5 constant; signal EMA(2) of line from index 3 = 0.5
	m := MACD([]float64{1, 2, 3, 4, 5, 6}, 2, 3, 2)
	if !math.IsNaN(m.Line[1]) {
		t.Errorf("Line[1] should be NaN, got %v", m.Line[1])
	}
	assertClose(t, "MACD line[2]", m.Line[2], 0.5, 1e-9)
	if !math.IsNaN(m.Signal[2]) {
		t.Errorf("Signal[2] should be NaN, got %v", m.Signal[2])
	}
	assertClose(t, "MACD signal[3]", m.Signal[3], 0.5, 1e-9)
	assertClose(t, "MACD hist[5]", m.Histogram[5], 0, 1e-9)
}

func TestMACD_FastNotLessThanSlow_AllNaN(t *testing.T) {
	m := MACD([]float64{1, 2, 3, 4, 5, 6}, 3, 3, 2)
	for i, v := range m.Line {
		if !math.IsNaN(v) {
			t.Errorf("Line[%d]=%v, want NaN", i, v)
		}
	}
}

func TestBollinger_SampleStdDev(t *testing.T) {
	// mean(1,2,3)=2, sample sd=1
	b := Bollinger([]float64{1, 2, 3}, 3, 2)
	assertClose(t, "middle", b.Middle[2], 2, 1e-12)
	assertClose(t, "upper", b.Upper[2], 4, 1e-12)
	assertClose(t, "lower", b.Lower[2], 0, 1e-12)
}

func hlcSeries(t *testing.T, hlc [][3]float64) *model.Series {
	t.Helper()
	t0 := time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC)
	bars := make([]model.Bar, len(hlc))
	for i, v := range hlc {
		bars[i] = model.Bar{TS: t0.Add(time.Duration(i) * time.Minute), Open: v[2], High: v[0], Low: v[1], Close: v[2]}
	}
	s, err := model.NewSeries("TEST", time.Minute, bars)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestATR_Wilder(t *testing.T) {
	// TR: 2, 2, 2, max(2, |15-11|, |13-11|) = 4
	// ATR(3)[2] = 2, ATR(3)[3] = (2*2 + 4)/3
	s := hlcSeries(t, [][3]float64{{10, 8, 9}, {11, 9, 10}, {12, 10, 11}, {15, 13, 14}})
	out := ATR(s, 3)
	if !math.IsNaN(out[1]) {
		t.Errorf("ATR[1] should be NaN, got %v", out[1])
	}
	assertClose(t, "ATR[2]", out[2], 2, 1e-12)
	assertClose(t, "ATR[3]", out[3], 8.0/3.0, 1e-12)
}

func TestStochastic(t *testing.T) {
	// %K[2]: HH=12 LL=8 close=11 → 75
	// %K[3]: HH=15 LL=9 close=14 → 83.333
	// %D[3] = mean(75, 83.333)
	s := hlcSeries(t, [][3]float64{{10, 8, 9}, {11, 9, 10}, {12, 10, 11}, {15, 13, 14}})
	st := Stochastic(s, 3, 2)
	assertClose(t, "K[2]", st.K[2], 75, 1e-9)
	assertClose(t, "K[3]", st.K[3], 500.0/6.0, 1e-9)
	if !math.IsNaN(st.D[2]) {
		t.Errorf("D[2] should be NaN, got %v", st.D[2])
	}
	assertClose(t, "D[3]", st.D[3], (75+500.0/6.0)/2, 1e-9)
}

func TestStochastic_ZeroRange_Is50(t *testing.T) {
	s := hlcSeries(t, [][3]float64{{10, 10, 10}, {10, 10, 10}, {10, 10, 10}})
	st := Stochastic(s, 3, 1)
	assertClose(t, "K flat", st.K[2], 50, 0)
}

func TestRSIZone(t *testing.T) {
	cases := map[float64]string{75: "overbought", 70: "overbought", 50: "neutral", 30: "oversold", 10: "oversold"}
	for v, want := range cases {
		if got := RSIZone(v); got != want {
			t.Errorf("RSIZone(%v)=%q, want %q", v, got, want)
		}
	}
	if RSIZone(math.NaN()) != "" {
		t.Error("RSIZone(NaN) should be empty")
	}
}
