package strategy

import (
	"fmt"
	"math"

	"trading-analytics/internal/indicator"
	"trading-analytics/internal/model"
)

// MeanReversion buys when the close sits more than k standard deviations
// below its rolling mean and sells when it sits more than k above.
type MeanReversion struct {
	window int
	k      float64
	closes *indicator.Window
	count  int
}

func NewMeanReversion(window int, k float64) *MeanReversion {
	return &MeanReversion{window: window, k: k, closes: indicator.NewWindow(window)}
}

func (m *MeanReversion) Name() string {
	return fmt.Sprintf("%s(%d,%g)", KindMeanReversion, m.window, m.k)
}

func (m *MeanReversion) Kind() Kind  { return KindMeanReversion }
func (m *MeanReversion) Warmup() int { return m.window }

func (m *MeanReversion) Reset() {
	m.closes.Reset()
	m.count = 0
}

func (m *MeanReversion) OnBar(bar model.Bar) model.Signal {
	m.count++
	m.closes.Push(bar.Close)
	if m.count <= m.window {
		return model.HoldSignal(bar.TS, reasonWarmup)
	}

	mean, sd := m.closes.Mean(), m.closes.StdDev()
	if indicator.NearZero(sd, mean) {
		return model.HoldSignal(bar.TS, "zero volatility")
	}
	z := (bar.Close - mean) / sd
	conf := clamp01(math.Abs(z) / (2 * m.k))

	switch {
	case z < -m.k:
		return model.Signal{TS: bar.TS, Direction: model.Buy, Confidence: conf,
			Reason: fmt.Sprintf("z-score %.2f below -%g", z, m.k)}
	case z > m.k:
		return model.Signal{TS: bar.TS, Direction: model.Sell, Confidence: conf,
			Reason: fmt.Sprintf("z-score %.2f above %g", z, m.k)}
	}
	return model.HoldSignal(bar.TS, "within band")
}
