package backtest

import (
	"math"
	"time"

	"trading-analytics/internal/execution"
	"trading-analytics/internal/model"
	"trading-analytics/internal/portfolio"
)

// simulator holds the cash/position state of one run.
type simulator struct {
	runID    string
	symbol   string
	cfg      Config
	fills    execution.FillModel
	observer Observer

	cash float64
	pos  model.Position

	// open round trip
	entryTime  time.Time
	commission float64

	trades []model.Trade
	curve  []model.EquityPoint
}

func newSimulator(runID, symbol string, cfg Config, obs Observer) *simulator {
	return &simulator{
		runID:    runID,
		symbol:   symbol,
		cfg:      cfg,
		fills:    execution.FillModel{SlippageBps: cfg.SlippageBps, CommissionBps: cfg.CommissionBps},
		observer: obs,
		cash:     cfg.InitialCapital,
		pos:      model.Position{Symbol: symbol},
		trades:   make([]model.Trade, 0, 16),
		curve:    make([]model.EquityPoint, 0, 256),
	}
}

// onSignal turns a signal into fills at the bar close.
func (s *simulator) onSignal(bar model.Bar, sig model.Signal) {
	q := s.pos.Quantity
	switch sig.Direction {
	case model.Buy:
		switch {
		case q == 0:
			s.enter(bar, model.SideBuy)
		case q > 0:
			if s.cfg.Pyramiding {
				s.enter(bar, model.SideBuy)
			}
		default:
			s.closePosition(bar, model.ExitSignal)
			if s.cfg.AllowShort {
				s.enter(bar, model.SideBuy)
			}
		}
	case model.Sell:
		switch {
		case q > 0:
			s.closePosition(bar, model.ExitSignal)
		case q == 0:
			if s.cfg.AllowShort {
				s.enter(bar, model.SideSell)
			}
		default:
			if s.cfg.Pyramiding {
				s.enter(bar, model.SideSell)
			}
		}
	}
}

// enter opens or adds to a position sized by the sizing policy. Long
// entries are limited to what cash can pay for, commission included.
func (s *simulator) enter(bar model.Bar, side model.Side) {
	price := s.fills.Price(side, bar.Close)
	qty := s.cfg.Sizing.Quantity(s.equity(bar.Close), price, s.cfg.LotSize)
	if side == model.SideBuy {
		perUnit := price * (1 + s.cfg.CommissionBps/10000)
		qty = math.Min(qty, floorLots(s.cash/perUnit, s.cfg.LotSize))
	}
	if qty <= 0 {
		return
	}
	s.apply(s.fills.Fill(s.symbol, side, qty, bar.Close, bar.TS), "")
}

// closePosition flattens the open position, if any.
func (s *simulator) closePosition(bar model.Bar, reason string) {
	q := s.pos.Quantity
	if q == 0 {
		return
	}
	side := model.SideSell
	if q < 0 {
		side = model.SideBuy
	}
	s.apply(s.fills.Fill(s.symbol, side, math.Abs(q), bar.Close, bar.TS), reason)
}

func (s *simulator) apply(fill model.Fill, reason string) {
	before := s.pos
	next, realized := portfolio.ApplyFill(s.pos, fill)
	s.cash += portfolio.CashDelta(fill)
	s.pos = next
	if before.Quantity == 0 {
		s.entryTime = fill.TS
		s.commission = 0
	}
	s.commission += fill.Commission

	if before.Quantity != 0 && next.Quantity == 0 {
		side := model.Long
		if before.Quantity < 0 {
			side = model.Short
		}
		t := model.Trade{
			EntryTime:  s.entryTime,
			ExitTime:   fill.TS,
			Symbol:     s.symbol,
			Side:       side,
			EntryPrice: before.AvgEntryPrice,
			ExitPrice:  fill.Price,
			Quantity:   math.Abs(before.Quantity),
			PnL:        realized - s.commission,
			Commission: s.commission,
			ExitReason: reason,
		}
		s.trades = append(s.trades, t)
		s.commission = 0
		if s.observer != nil {
			s.observer.OnTrade(s.runID, t)
		}
	}
}

func (s *simulator) equity(price float64) float64 {
	return s.cash + s.pos.Quantity*price
}

// mark values the position at the bar close and appends an equity point.
func (s *simulator) mark(bar model.Bar) {
	s.pos.MarkPrice = bar.Close
	p := model.NewEquityPoint(bar.TS, s.cash, s.pos.MarketValue())
	s.curve = append(s.curve, p)
	if s.observer != nil {
		s.observer.OnEquity(s.runID, p)
	}
}
