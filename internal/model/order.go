package model

import "time"

// Side of an order or fill.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Order is a proposed trade submitted for risk validation or execution.
type Order struct {
	Symbol   string  `json:"symbol"`
	Side     Side    `json:"side"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
}

// Notional returns quantity × price.
func (o *Order) Notional() float64 { return o.Quantity * o.Price }

// SignedQty is +Quantity for buys and -Quantity for sells.
func (o *Order) SignedQty() float64 {
	if o.Side == SideSell {
		return -o.Quantity
	}
	return o.Quantity
}

// Fill is an executed order reported by the execution gateway or the
// simulator's fill model.
type Fill struct {
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	Quantity   float64   `json:"quantity"`
	Price      float64   `json:"price"`
	Commission float64   `json:"commission"`
	TS         time.Time `json:"ts"`
}

// SignedQty is +Quantity for buys and -Quantity for sells.
func (f *Fill) SignedQty() float64 {
	if f.Side == SideSell {
		return -f.Quantity
	}
	return f.Quantity
}
