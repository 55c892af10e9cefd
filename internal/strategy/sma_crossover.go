package strategy

import (
	"fmt"
	"math"

	"trading-analytics/internal/indicator"
	"trading-analytics/internal/model"
)

// SMACrossover implements a simple SMA crossover strategy.
//
// Buy signal: fast SMA crosses above slow SMA (golden cross)
// Sell signal: fast SMA crosses below slow SMA (death cross)
//
// Confidence is the SMA gap scaled by the stddev of closes over the slow
// window, capped at 1.
//
// Optional RSI filter suppresses buying when overbought (>70)
// or selling when oversold (<30).
type SMACrossover struct {
	fastPeriod int
	slowPeriod int

	fast   *indicator.SMA
	slow   *indicator.SMA
	closes *indicator.Window
	rsi    *indicator.RSI // nil when the filter is off
	count  int

	// Previous SMA values for crossover detection
	prevFast float64
	prevSlow float64
}

// NewSMACrossover creates a new SMA crossover strategy.
// fastPeriod < slowPeriod (e.g., 5 and 20). rsiPeriod > 0 enables the
// RSI filter.
func NewSMACrossover(fastPeriod, slowPeriod, rsiPeriod int) *SMACrossover {
	s := &SMACrossover{
		fastPeriod: fastPeriod,
		slowPeriod: slowPeriod,
		fast:       indicator.NewSMA(fastPeriod),
		slow:       indicator.NewSMA(slowPeriod),
		closes:     indicator.NewWindow(slowPeriod),
	}
	if rsiPeriod > 0 {
		s.rsi = indicator.NewRSI(rsiPeriod)
	}
	return s
}

func (s *SMACrossover) Name() string {
	return fmt.Sprintf("%s(%d,%d)", KindSMACrossover, s.fastPeriod, s.slowPeriod)
}

func (s *SMACrossover) Kind() Kind  { return KindSMACrossover }
func (s *SMACrossover) Warmup() int { return s.slowPeriod }

func (s *SMACrossover) Reset() {
	s.fast.Reset()
	s.slow.Reset()
	s.closes.Reset()
	if s.rsi != nil {
		s.rsi.Reset()
	}
	s.count = 0
	s.prevFast, s.prevSlow = 0, 0
}

func (s *SMACrossover) OnBar(bar model.Bar) model.Signal {
	s.count++
	s.fast.Update(bar.Close)
	s.slow.Update(bar.Close)
	s.closes.Push(bar.Close)
	if s.rsi != nil {
		s.rsi.Update(bar.Close)
	}

	fastSMA, slowSMA := s.fast.Value(), s.slow.Value()
	defer func() {
		s.prevFast = fastSMA
		s.prevSlow = slowSMA
	}()

	// Need both SMAs on this bar and the previous one
	if s.count <= s.slowPeriod {
		return model.HoldSignal(bar.TS, reasonWarmup)
	}

	// Golden cross: fast crosses above slow
	if s.prevFast <= s.prevSlow && fastSMA > slowSMA {
		if s.rsi != nil && s.rsi.Ready() && s.rsi.Value() > indicator.RSIOverbought {
			return model.HoldSignal(bar.TS, fmt.Sprintf("golden cross filtered by RSI %.1f > 70", s.rsi.Value()))
		}
		return model.Signal{
			TS:         bar.TS,
			Direction:  model.Buy,
			Confidence: s.confidence(fastSMA, slowSMA),
			Reason:     "SMA golden cross (fast > slow)",
		}
	}

	// Death cross: fast crosses below slow
	if s.prevFast >= s.prevSlow && fastSMA < slowSMA {
		if s.rsi != nil && s.rsi.Ready() && s.rsi.Value() < indicator.RSIOversold {
			return model.HoldSignal(bar.TS, fmt.Sprintf("death cross filtered by RSI %.1f < 30", s.rsi.Value()))
		}
		return model.Signal{
			TS:         bar.TS,
			Direction:  model.Sell,
			Confidence: s.confidence(fastSMA, slowSMA),
			Reason:     "SMA death cross (fast < slow)",
		}
	}

	return model.HoldSignal(bar.TS, "no crossover")
}

func (s *SMACrossover) confidence(fast, slow float64) float64 {
	sd := s.closes.StdDev()
	if indicator.NearZero(sd, slow) {
		return 1
	}
	return clamp01(math.Abs(fast-slow) / sd)
}
