package model

import (
	"math"
	"time"
)

// PortfolioSnapshot is a point-in-time copy of the portfolio. It is a
// value: readers never observe later mutations of the live book.
type PortfolioSnapshot struct {
	Positions        []Position `json:"positions"`
	Cash             float64    `json:"cash"`
	TS               time.Time  `json:"ts"`
	DailyRealizedPnL float64    `json:"daily_realized_pnl"`
}

// PositionsValue sums signed market values.
func (s *PortfolioSnapshot) PositionsValue() float64 {
	var v float64
	for i := range s.Positions {
		v += s.Positions[i].MarketValue()
	}
	return v
}

// Equity is cash plus signed position value.
func (s *PortfolioSnapshot) Equity() float64 {
	return s.Cash + s.PositionsValue()
}

// GrossExposure sums absolute market values.
func (s *PortfolioSnapshot) GrossExposure() float64 {
	var v float64
	for i := range s.Positions {
		v += math.Abs(s.Positions[i].MarketValue())
	}
	return v
}

// UnrealizedPnL sums open P&L across positions.
func (s *PortfolioSnapshot) UnrealizedPnL() float64 {
	var v float64
	for i := range s.Positions {
		v += s.Positions[i].UnrealizedPnL()
	}
	return v
}

// DailyPnL is today's realized plus current unrealized P&L.
func (s *PortfolioSnapshot) DailyPnL() float64 {
	return s.DailyRealizedPnL + s.UnrealizedPnL()
}

// Position returns the holding for symbol, or a flat position.
func (s *PortfolioSnapshot) Position(symbol string) Position {
	for _, p := range s.Positions {
		if p.Symbol == symbol {
			return p
		}
	}
	return Position{Symbol: symbol}
}
