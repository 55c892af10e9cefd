package model

// Position is a net holding in one symbol. Quantity is signed:
// positive = long, negative = short.
type Position struct {
	Symbol        string  `json:"symbol"`
	Quantity      float64 `json:"quantity"`
	AvgEntryPrice float64 `json:"avg_entry_price"`
	RealizedPnL   float64 `json:"realized_pnl"`
	MarkPrice     float64 `json:"mark_price"`
}

// MarketValue is the signed value of the position at MarkPrice.
func (p *Position) MarketValue() float64 {
	return p.Quantity * p.MarkPrice
}

// UnrealizedPnL is the open profit/loss at MarkPrice.
func (p *Position) UnrealizedPnL() float64 {
	return (p.MarkPrice - p.AvgEntryPrice) * p.Quantity
}

// Flat reports whether the position holds nothing.
func (p *Position) Flat() bool { return p.Quantity == 0 }
