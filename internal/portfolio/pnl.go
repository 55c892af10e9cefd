package portfolio

import (
	"math"

	"trading-analytics/internal/model"
)

// qtyEpsilon treats residual float quantities as flat.
const qtyEpsilon = 1e-9

// ApplyFill returns pos after fill and the price P&L realized by it.
//
// Adding to a position (or opening one) moves the average entry price to
// the quantity-weighted average. Reducing realizes (price - avg) on the
// closed quantity. A fill larger than the open quantity closes it and opens
// the remainder on the other side at the fill price. Commission is not
// included in the returned P&L.
func ApplyFill(pos model.Position, fill model.Fill) (model.Position, float64) {
	d := fill.SignedQty()
	q := pos.Quantity
	pos.MarkPrice = fill.Price
	if pos.Symbol == "" {
		pos.Symbol = fill.Symbol
	}

	if q == 0 || (q > 0) == (d > 0) {
		// Increase position: weighted average price
		total := math.Abs(q) + math.Abs(d)
		if total > 0 {
			pos.AvgEntryPrice = (math.Abs(q)*pos.AvgEntryPrice + math.Abs(d)*fill.Price) / total
		}
		pos.Quantity = q + d
		return pos, 0
	}

	// Reduce position: realize on the closed quantity
	closed := math.Min(math.Abs(d), math.Abs(q))
	realized := (fill.Price - pos.AvgEntryPrice) * closed * sign(q)
	pos.RealizedPnL += realized
	pos.Quantity = q + d

	switch {
	case math.Abs(pos.Quantity) < qtyEpsilon:
		pos.Quantity = 0
		pos.AvgEntryPrice = 0
	case sign(pos.Quantity) != sign(q):
		// Flipped: the remainder was opened at the fill price
		pos.AvgEntryPrice = fill.Price
	}
	return pos, realized
}

// CashDelta is the change in cash caused by fill, commission included.
func CashDelta(fill model.Fill) float64 {
	return -fill.SignedQty()*fill.Price - fill.Commission
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}
