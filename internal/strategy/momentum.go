package strategy

import (
	"fmt"
	"math"

	"trading-analytics/internal/indicator"
	"trading-analytics/internal/model"
)

// Momentum compares the trailing return over window bars with a
// symmetric threshold.
type Momentum struct {
	window    int
	threshold float64
	closes    *indicator.Window // window+1 closes: oldest is close[t-window]
	count     int
}

func NewMomentum(window int, threshold float64) *Momentum {
	return &Momentum{window: window, threshold: threshold, closes: indicator.NewWindow(window + 1)}
}

func (m *Momentum) Name() string {
	return fmt.Sprintf("%s(%d,%g)", KindMomentum, m.window, m.threshold)
}

func (m *Momentum) Kind() Kind  { return KindMomentum }
func (m *Momentum) Warmup() int { return m.window }

func (m *Momentum) Reset() {
	m.closes.Reset()
	m.count = 0
}

func (m *Momentum) OnBar(bar model.Bar) model.Signal {
	m.count++
	m.closes.Push(bar.Close)
	if m.count <= m.window {
		return model.HoldSignal(bar.TS, reasonWarmup)
	}

	base := m.closes.Oldest()
	if base == 0 {
		return model.HoldSignal(bar.TS, "zero base price")
	}
	r := bar.Close/base - 1
	conf := clamp01(math.Abs(r) / (2 * m.threshold))

	switch {
	case r > m.threshold:
		return model.Signal{TS: bar.TS, Direction: model.Buy, Confidence: conf,
			Reason: fmt.Sprintf("return %.4f above %g", r, m.threshold)}
	case r < -m.threshold:
		return model.Signal{TS: bar.TS, Direction: model.Sell, Confidence: conf,
			Reason: fmt.Sprintf("return %.4f below -%g", r, m.threshold)}
	}
	return model.HoldSignal(bar.TS, "inside threshold")
}
