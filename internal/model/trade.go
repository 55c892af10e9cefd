package model

import "time"

// TradeSide is the direction of a completed round trip.
type TradeSide string

const (
	Long  TradeSide = "LONG"
	Short TradeSide = "SHORT"
)

// Exit reasons recorded on trades.
const (
	ExitSignal      = "signal"
	ExitEndOfPeriod = "end_of_period"
)

// Trade is a completed round trip, from opening fill to the fill that
// returned the position to flat.
type Trade struct {
	EntryTime  time.Time `json:"entry_time"`
	ExitTime   time.Time `json:"exit_time"`
	Symbol     string    `json:"symbol"`
	Side       TradeSide `json:"direction"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	Quantity   float64   `json:"quantity"`
	PnL        float64   `json:"pnl"`
	Commission float64   `json:"commission"`
	ExitReason string    `json:"exit_reason"`
}

// Win reports whether the trade closed with a positive P&L.
func (t *Trade) Win() bool { return t.PnL > 0 }

// EquityPoint records account value at a bar close.
// TotalEquity is always Cash + PositionsValue.
type EquityPoint struct {
	TS             time.Time `json:"ts"`
	Cash           float64   `json:"cash"`
	PositionsValue float64   `json:"positions_value"`
	TotalEquity    float64   `json:"total_equity"`
}

// NewEquityPoint builds a point that satisfies the equity identity.
func NewEquityPoint(ts time.Time, cash, positionsValue float64) EquityPoint {
	return EquityPoint{TS: ts, Cash: cash, PositionsValue: positionsValue, TotalEquity: cash + positionsValue}
}
