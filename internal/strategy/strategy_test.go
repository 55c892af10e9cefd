package strategy

import (
	"errors"
	"math"
	"testing"
	"time"

	"trading-analytics/internal/model"
)

// ────────────────────────────────────────────────────────────
// Helpers
// ────────────────────────────────────────────────────────────

var t0 = time.Date(2026, 2, 2, 9, 15, 0, 0, time.UTC)

func seriesOf(t *testing.T, symbol string, closes []float64) *model.Series {
	t.Helper()
	bars := make([]model.Bar, len(closes))
	for i, c := range closes {
		bars[i] = model.Bar{TS: t0.Add(time.Duration(i) * time.Minute), Open: c, High: c, Low: c, Close: c, Volume: 1}
	}
	s, err := model.NewSeries(symbol, time.Minute, bars)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

// crossoverFixture: 20 flat bars at 100, rise 101..130, fall 129..100.
func crossoverFixture() []float64 {
	var closes []float64
	for i := 0; i < 20; i++ {
		closes = append(closes, 100)
	}
	for p := 101.0; p <= 130; p++ {
		closes = append(closes, p)
	}
	for p := 129.0; p >= 100; p-- {
		closes = append(closes, p)
	}
	return closes
}

func nonHold(signals []model.Signal) map[int]model.Direction {
	out := make(map[int]model.Direction)
	for i, s := range signals {
		if s.Direction != model.Hold {
			out[i] = s.Direction
		}
	}
	return out
}

// ────────────────────────────────────────────────────────────
// SMA Crossover
// ────────────────────────────────────────────────────────────

func TestSMACrossover_Fixture(t *testing.T) {
	series := seriesOf(t, "TEST", crossoverFixture())
	signals := Generate(NewSMACrossover(5, 20, 0), series)

	if len(signals) != series.Len() {
		t.Fatalf("got %d signals, want %d", len(signals), series.Len())
	}
	for i := 0; i < 20; i++ {
		if signals[i].Direction != model.Hold {
			t.Errorf("bar %d: expected HOLD during warm-up, got %s", i, signals[i].Direction)
		}
	}

	got := nonHold(signals)
	if len(got) != 2 || got[20] != model.Buy || got[57] != model.Sell {
		t.Fatalf("expected BUY@20 and SELL@57, got %v", got)
	}
	for _, i := range []int{20, 57} {
		c := signals[i].Confidence
		if c <= 0 || c > 1 {
			t.Errorf("bar %d: confidence %.4f outside (0,1]", i, c)
		}
	}
}

func TestSMACrossover_Deterministic(t *testing.T) {
	series := seriesOf(t, "TEST", crossoverFixture())
	s := NewSMACrossover(5, 20, 0)
	a := Generate(s, series)
	b := Generate(s, series)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("bar %d: run 1 %+v != run 2 %+v", i, a[i], b[i])
		}
	}
}

func TestSignals_EarlyStopAndRestart(t *testing.T) {
	series := seriesOf(t, "TEST", crossoverFixture())
	s := NewSMACrossover(5, 20, 0)

	n := 0
	for i := range Signals(s, series) {
		if i == 10 {
			break
		}
		n++
	}
	if n != 10 {
		t.Errorf("consumed %d, want 10", n)
	}

	// A fresh iteration starts from a reset strategy.
	full := Generate(s, series)
	if got := nonHold(full); got[20] != model.Buy {
		t.Errorf("expected BUY@20 after restart, got %v", got)
	}
}

func TestSMACrossover_RSIFilter(t *testing.T) {
	// Flat then rising: SMA(3)/SMA(8) golden cross at bar 10. RSI(5) is 100
	// there (no losses), so the filtered variant holds.
	var closes []float64
	for i := 0; i < 10; i++ {
		closes = append(closes, 100)
	}
	for p := 101.0; p <= 120; p++ {
		closes = append(closes, p)
	}
	series := seriesOf(t, "TEST", closes)

	plain := nonHold(Generate(NewSMACrossover(3, 8, 0), series))
	if len(plain) != 1 || plain[10] != model.Buy {
		t.Fatalf("expected single BUY@10 without filter, got %v", plain)
	}

	signals := Generate(NewSMACrossover(3, 8, 5), series)
	if got := nonHold(signals); len(got) != 0 {
		t.Fatalf("expected RSI filter to suppress all signals, got %v", got)
	}
	if signals[10].Reason == "" {
		t.Error("filtered bar should carry a reason")
	}
}

// ────────────────────────────────────────────────────────────
// Mean Reversion
// ────────────────────────────────────────────────────────────

func TestMeanReversion_BuyOnDrop(t *testing.T) {
	// idx5 window [11,10,11,10,11]: z≈0.73 → HOLD
	// idx6 window [10,11,10,11,5]: mean 9.4, sd≈2.51, z≈-1.75 → BUY
	series := seriesOf(t, "TEST", []float64{10, 11, 10, 11, 10, 11, 5})
	signals := Generate(NewMeanReversion(5, 1.5), series)

	for i := 0; i < 6; i++ {
		if signals[i].Direction != model.Hold {
			t.Errorf("bar %d: expected HOLD, got %s", i, signals[i].Direction)
		}
	}
	if signals[6].Direction != model.Buy {
		t.Fatalf("bar 6: expected BUY, got %s (%s)", signals[6].Direction, signals[6].Reason)
	}
	wantConf := (4.4 / math.Sqrt(6.3)) / 3.0
	if math.Abs(signals[6].Confidence-wantConf) > 1e-9 {
		t.Errorf("confidence=%.6f, want %.6f", signals[6].Confidence, wantConf)
	}
}

func TestMeanReversion_FlatHolds(t *testing.T) {
	series := seriesOf(t, "TEST", []float64{5, 5, 5, 5, 5, 5, 5, 5})
	for i, s := range Generate(NewMeanReversion(3, 1), series) {
		if s.Direction != model.Hold {
			t.Errorf("bar %d: expected HOLD on flat series, got %s", i, s.Direction)
		}
	}
}

// ────────────────────────────────────────────────────────────
// Momentum
// ────────────────────────────────────────────────────────────

func TestMomentum_Thresholds(t *testing.T) {
	series := seriesOf(t, "TEST", []float64{100, 100, 100, 100, 110, 100, 90})
	signals := Generate(NewMomentum(3, 0.05), series)

	want := []model.Direction{model.Hold, model.Hold, model.Hold, model.Hold, model.Buy, model.Hold, model.Sell}
	for i, w := range want {
		if signals[i].Direction != w {
			t.Errorf("bar %d: got %s, want %s (%s)", i, signals[i].Direction, w, signals[i].Reason)
		}
	}
	if signals[4].Confidence != 1 {
		t.Errorf("confidence=%v, want 1", signals[4].Confidence)
	}
}

// ────────────────────────────────────────────────────────────
// Pairs Trading
// ────────────────────────────────────────────────────────────

func TestPairs_ScaledCopy_NoEntries(t *testing.T) {
	a := []float64{10, 12, 11, 15, 14, 18, 13, 16, 20, 11, 12, 17}
	b := make([]float64, len(a))
	for i := range a {
		b[i] = a[i] * 2
	}
	s := NewPairsTrading(seriesOf(t, "B", b), 4, 1.0, 0.2, SpreadRatio)
	if got := nonHold(Generate(s, seriesOf(t, "A", a))); len(got) != 0 {
		t.Errorf("expected no entries for ratio-identical pair, got %v", got)
	}
}

func TestPairs_OffsetCopy_NoEntries(t *testing.T) {
	a := []float64{10, 12, 11, 15, 14, 18, 13, 16, 20, 11, 12, 17}
	b := make([]float64, len(a))
	for i := range a {
		b[i] = a[i] + 5
	}
	s := NewPairsTrading(seriesOf(t, "B", b), 4, 1.0, 0.2, SpreadDifference)
	if got := nonHold(Generate(s, seriesOf(t, "A", a))); len(got) != 0 {
		t.Errorf("expected no entries for offset-identical pair, got %v", got)
	}
}

func TestPairs_EntryAndExit(t *testing.T) {
	// spreads: 0,1,0,1,0,1,10,0.5
	// idx6 z≈1.78 > 1.5 → SELL (short spread); idx7 z≈-0.47 → BUY (reverted)
	a := []float64{10, 11, 10, 11, 10, 11, 20, 10.5}
	b := []float64{10, 10, 10, 10, 10, 10, 10, 10}
	s := NewPairsTrading(seriesOf(t, "B", b), 5, 1.5, 0.5, SpreadDifference)
	signals := Generate(s, seriesOf(t, "A", a))

	got := nonHold(signals)
	if len(got) != 2 || got[6] != model.Sell || got[7] != model.Buy {
		t.Fatalf("expected SELL@6 BUY@7, got %v", got)
	}
}

func TestPairs_MissingBarsSkipped(t *testing.T) {
	a := seriesOf(t, "A", []float64{10, 11, 12, 13, 14})
	bBars := []model.Bar{a.Bars[0], a.Bars[2], a.Bars[4]}
	b, err := model.NewSeries("B", time.Minute, bBars)
	if err != nil {
		t.Fatal(err)
	}
	signals := Generate(NewPairsTrading(b, 2, 1, 0.1, SpreadRatio), a)
	for _, i := range []int{1, 3} {
		if signals[i].Reason != "no paired bar" {
			t.Errorf("bar %d: reason=%q, want no paired bar", i, signals[i].Reason)
		}
	}
}

// ────────────────────────────────────────────────────────────
// Factory
// ────────────────────────────────────────────────────────────

func TestFromConfig_Defaults(t *testing.T) {
	for _, k := range []Kind{KindSMACrossover, KindMeanReversion, KindMomentum} {
		s, err := FromConfig(Config{Kind: k}, nil)
		if err != nil {
			t.Fatalf("%s: %v", k, err)
		}
		if s.Kind() != k {
			t.Errorf("Kind()=%s, want %s", s.Kind(), k)
		}
	}
	s, _ := FromConfig(Config{Kind: KindSMACrossover}, nil)
	if s.Warmup() != 20 {
		t.Errorf("default crossover warm-up=%d, want 20", s.Warmup())
	}
}

func TestFromConfig_Errors(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"unknown", Config{Kind: "Grid"}},
		{"fast>=slow", Config{Kind: KindSMACrossover, Params: map[string]float64{"fast": 20, "slow": 20}}},
		{"negative window", Config{Kind: KindMeanReversion, Params: map[string]float64{"window": -3}}},
		{"zero threshold", Config{Kind: KindMomentum, Params: map[string]float64{"threshold": 0}}},
		{"pairs no series", Config{Kind: KindPairsTrading}},
		{"huge slow", Config{Kind: KindSMACrossover, Params: map[string]float64{"slow": 1e15}}},
		{"huge window", Config{Kind: KindMeanReversion, Params: map[string]float64{"window": 1125899906842624}}},
		{"fractional window", Config{Kind: KindMomentum, Params: map[string]float64{"window": 2.5}}},
		{"NaN threshold", Config{Kind: KindMomentum, Params: map[string]float64{"threshold": math.NaN()}}},
	}
	for _, c := range cases {
		_, err := FromConfig(c.cfg, nil)
		var ce *model.ConfigurationError
		if !errors.As(err, &ce) {
			t.Errorf("%s: expected ConfigurationError, got %v", c.name, err)
		}
	}

	_, err := FromConfig(Config{Kind: "Grid"}, nil)
	if !errors.Is(err, ErrUnknownStrategyType) {
		t.Errorf("expected ErrUnknownStrategyType, got %v", err)
	}
}

func TestWarmup(t *testing.T) {
	n, err := Warmup(Config{Kind: KindSMACrossover}, nil)
	if err != nil || n != 20 {
		t.Errorf("crossover warmup = %d, %v; want 20", n, err)
	}
	n, err = Warmup(Config{Kind: KindMeanReversion, Params: map[string]float64{"window": 7}}, nil)
	if err != nil || n != 7 {
		t.Errorf("mean reversion warmup = %d, %v; want 7", n, err)
	}
	if _, err = Warmup(Config{Kind: KindSMACrossover, Params: map[string]float64{"slow": 1e15}}, nil); !errors.Is(err, model.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
	if _, err = Warmup(Config{Kind: KindPairsTrading}, nil); !errors.Is(err, ErrMissingPairSeries) {
		t.Errorf("expected missing pair series, got %v", err)
	}
}

// The default spread must keep z at 0 for a constant-offset copy; the
// ratio spread of the same pair drifts with price level and does enter.
func TestFromConfig_PairsDefaultSpread_OffsetCopy(t *testing.T) {
	a := []float64{10, 12, 11, 15, 14, 18, 13, 16, 20, 11, 12, 17}
	b := make([]float64, len(a))
	for i := range a {
		b[i] = a[i] + 5
	}
	primary, pair := seriesOf(t, "A", a), seriesOf(t, "B", b)
	params := map[string]float64{"window": 4, "entry_z": 1, "exit_z": 0.2}

	s, err := FromConfig(Config{Kind: KindPairsTrading, Params: params}, pair)
	if err != nil {
		t.Fatal(err)
	}
	if got := nonHold(Generate(s, primary)); len(got) != 0 {
		t.Errorf("default spread: expected no entries, got %v", got)
	}

	ratio, err := FromConfig(Config{Kind: KindPairsTrading, Params: params,
		Options: map[string]string{"spread_mode": "ratio"}}, pair)
	if err != nil {
		t.Fatal(err)
	}
	if got := nonHold(Generate(ratio, primary)); len(got) == 0 {
		t.Error("ratio spread: expected the offset pair to trigger an entry")
	}
}

func TestFromConfig_PairsSpreadMode(t *testing.T) {
	pair := seriesOf(t, "B", []float64{1, 2, 3})
	_, err := FromConfig(Config{Kind: KindPairsTrading, Options: map[string]string{"spread_mode": "log"}}, pair)
	if err == nil {
		t.Fatal("expected error for unknown spread mode")
	}
	s, err := FromConfig(Config{Kind: KindPairsTrading, Options: map[string]string{"spread_mode": "difference"}}, pair)
	if err != nil {
		t.Fatal(err)
	}
	if s.Kind() != KindPairsTrading {
		t.Errorf("Kind()=%s", s.Kind())
	}
}
