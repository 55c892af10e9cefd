package strategy

import (
	"fmt"
	"math"

	"trading-analytics/internal/indicator"
	"trading-analytics/internal/model"
)

// SpreadMode selects how the pair spread is formed. Difference is the
// default: a pair that differs by a constant offset has a constant spread
// and never enters. Ratio is neutral to a constant scale factor instead.
type SpreadMode string

const (
	SpreadRatio      SpreadMode = "ratio"      // a / b
	SpreadDifference SpreadMode = "difference" // a - b
)

// PairsTrading trades the primary series against a second series aligned
// by timestamp. Bars of the primary without a matching pair bar are
// skipped (HOLD) and do not enter the rolling window.
//
// A spread more than entryZ deviations rich opens a short spread (SELL);
// more than entryZ cheap opens a long spread (BUY). While a spread
// position is open, |z| falling below exitZ emits the closing direction.
type PairsTrading struct {
	pair   []model.Bar
	pairAt map[int64]int
	window int
	entryZ float64
	exitZ  float64
	mode   SpreadMode

	spreads *indicator.Window
	count   int // aligned observations seen
	side    int // +1 long spread, -1 short spread, 0 flat
}

func NewPairsTrading(pair *model.Series, window int, entryZ, exitZ float64, mode SpreadMode) *PairsTrading {
	return &PairsTrading{
		pair:    pair.Bars,
		pairAt:  pair.IndexOf(),
		window:  window,
		entryZ:  entryZ,
		exitZ:   exitZ,
		mode:    mode,
		spreads: indicator.NewWindow(window),
	}
}

func (p *PairsTrading) Name() string {
	return fmt.Sprintf("%s(%d,%g,%g,%s)", KindPairsTrading, p.window, p.entryZ, p.exitZ, p.mode)
}

func (p *PairsTrading) Kind() Kind  { return KindPairsTrading }
func (p *PairsTrading) Warmup() int { return p.window }

func (p *PairsTrading) Reset() {
	p.spreads.Reset()
	p.count = 0
	p.side = 0
}

func (p *PairsTrading) spread(a, b float64) (float64, bool) {
	if p.mode == SpreadDifference {
		return a - b, true
	}
	if b == 0 {
		return 0, false
	}
	return a / b, true
}

// zScore returns 0 when the window has no dispersion.
func (p *PairsTrading) zScore(x float64) float64 {
	mean, sd := p.spreads.Mean(), p.spreads.StdDev()
	if indicator.NearZero(sd, mean) {
		return 0
	}
	return (x - mean) / sd
}

func (p *PairsTrading) OnBar(bar model.Bar) model.Signal {
	j, ok := p.pairAt[bar.TS.UnixNano()]
	if !ok {
		return model.HoldSignal(bar.TS, "no paired bar")
	}
	x, ok := p.spread(bar.Close, p.pair[j].Close)
	if !ok {
		return model.HoldSignal(bar.TS, "zero pair price")
	}

	p.count++
	p.spreads.Push(x)
	if p.count <= p.window {
		return model.HoldSignal(bar.TS, reasonWarmup)
	}

	z := p.zScore(x)
	conf := clamp01(math.Abs(z) / (2 * p.entryZ))

	if p.side != 0 {
		if math.Abs(z) < p.exitZ {
			dir := model.Sell
			if p.side < 0 {
				dir = model.Buy
			}
			p.side = 0
			return model.Signal{TS: bar.TS, Direction: dir, Confidence: 1 - conf,
				Reason: fmt.Sprintf("spread reverted (z=%.2f)", z)}
		}
		return model.HoldSignal(bar.TS, fmt.Sprintf("holding spread (z=%.2f)", z))
	}

	switch {
	case z > p.entryZ:
		p.side = -1
		return model.Signal{TS: bar.TS, Direction: model.Sell, Confidence: conf,
			Reason: fmt.Sprintf("spread rich (z=%.2f)", z)}
	case z < -p.entryZ:
		p.side = 1
		return model.Signal{TS: bar.TS, Direction: model.Buy, Confidence: conf,
			Reason: fmt.Sprintf("spread cheap (z=%.2f)", z)}
	}
	return model.HoldSignal(bar.TS, fmt.Sprintf("spread neutral (z=%.2f)", z))
}
