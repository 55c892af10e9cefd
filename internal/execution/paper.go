// Package execution simulates order fills.
//
// FillModel prices a fill from a reference price with slippage and
// commission in basis points. The backtest simulator uses it bar by bar;
// PaperGateway wraps it as the order-execution collaborator for the
// analytics service.
package execution

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"trading-analytics/internal/model"
)

// FillModel applies slippage and commission, both in basis points of
// the reference price/notional.
type FillModel struct {
	SlippageBps   float64 `json:"slippage_bps"`   // e.g. 5 = 0.05%, buys fill higher, sells lower
	CommissionBps float64 `json:"commission_bps"` // charged on fill notional
}

// Price returns the fill price for side at reference price ref.
func (m FillModel) Price(side model.Side, ref float64) float64 {
	if m.SlippageBps <= 0 || ref <= 0 {
		return ref
	}
	slip := ref * m.SlippageBps / 10000
	if side == model.SideBuy {
		return ref + slip // buy higher
	}
	return ref - slip // sell lower
}

// Commission for qty units filled at price.
func (m FillModel) Commission(qty, price float64) float64 {
	if m.CommissionBps <= 0 {
		return 0
	}
	return qty * price * m.CommissionBps / 10000
}

// Fill builds a fill for an order executed at reference price ref.
func (m FillModel) Fill(symbol string, side model.Side, qty, ref float64, ts time.Time) model.Fill {
	price := m.Price(side, ref)
	return model.Fill{
		Symbol:     symbol,
		Side:       side,
		Quantity:   qty,
		Price:      price,
		Commission: m.Commission(qty, price),
		TS:         ts,
	}
}

// PaperFill is a fill with the paper order id assigned to it.
type PaperFill struct {
	OrderID string     `json:"order_id"`
	Fill    model.Fill `json:"fill"`
}

// FillRecorder persists paper fills; Journal implements it.
type FillRecorder interface {
	RecordFill(f PaperFill) error
}

// PaperGateway simulates order execution without real broker calls.
// Orders fill immediately at the order price adjusted by the fill model.
type PaperGateway struct {
	mu       sync.RWMutex
	model    FillModel
	fills    []PaperFill
	orderSeq int64
	recorder FillRecorder
	now      func() time.Time
}

// NewPaperGateway creates a paper gateway. recorder may be nil.
func NewPaperGateway(m FillModel, recorder FillRecorder) *PaperGateway {
	return &PaperGateway{
		model:    m,
		fills:    make([]PaperFill, 0, 256),
		recorder: recorder,
		now:      time.Now,
	}
}

// Submit fills order and returns the fill.
func (p *PaperGateway) Submit(ctx context.Context, order model.Order) (model.Fill, error) {
	if err := ctx.Err(); err != nil {
		return model.Fill{}, err
	}
	if order.Quantity <= 0 || order.Price <= 0 {
		return model.Fill{}, fmt.Errorf("paper: invalid order qty=%v price=%v", order.Quantity, order.Price)
	}

	p.mu.Lock()
	p.orderSeq++
	orderID := fmt.Sprintf("PAPER-%d", p.orderSeq)
	fill := p.model.Fill(order.Symbol, order.Side, order.Quantity, order.Price, p.now().UTC())
	pf := PaperFill{OrderID: orderID, Fill: fill}
	p.fills = append(p.fills, pf)
	p.mu.Unlock()

	slog.Info("paper fill",
		slog.String("order_id", orderID),
		slog.String("symbol", order.Symbol),
		slog.String("side", string(order.Side)),
		slog.Float64("qty", order.Quantity),
		slog.Float64("price", fill.Price),
		slog.Float64("ref", order.Price),
	)

	if p.recorder != nil {
		if err := p.recorder.RecordFill(pf); err != nil {
			slog.Error("paper journal write failed", slog.String("order_id", orderID), slog.Any("error", err))
		}
	}
	return fill, nil
}

// Fills returns a snapshot of all fills.
func (p *PaperGateway) Fills() []PaperFill {
	p.mu.RLock()
	defer p.mu.RUnlock()
	cp := make([]PaperFill, len(p.fills))
	copy(cp, p.fills)
	return cp
}
