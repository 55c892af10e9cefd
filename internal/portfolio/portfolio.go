// Package portfolio tracks positions, cash and P&L.
//
// ApplyFill is the pure position-accounting rule shared by the backtest
// simulator and the live Book. Book is the single writer for the live
// portfolio: it applies fill reports and mark prices under a mutex and
// hands out PortfolioSnapshot values to readers (risk validation,
// analytics), which never see later mutations.
package portfolio

import (
	"sort"
	"sync"
	"time"

	"trading-analytics/internal/model"
)

// Book tracks all open positions and cash.
type Book struct {
	mu            sync.RWMutex
	cash          float64
	positions     map[string]*model.Position // key = symbol
	dailyRealized float64
	peakEquity    float64
	fills         []model.Fill
	now           func() time.Time
}

// NewBook creates an empty Book holding cash.
func NewBook(cash float64) *Book {
	return &Book{
		cash:       cash,
		positions:  make(map[string]*model.Position),
		peakEquity: cash,
		fills:      make([]model.Fill, 0, 256),
		now:        time.Now,
	}
}

// FromSnapshot seeds a Book with an existing portfolio.
func FromSnapshot(s model.PortfolioSnapshot) *Book {
	b := NewBook(s.Cash)
	for _, p := range s.Positions {
		if p.Quantity == 0 {
			continue
		}
		pos := p
		b.positions[p.Symbol] = &pos
	}
	b.dailyRealized = s.DailyRealizedPnL
	b.peakEquity = s.Equity()
	return b
}

// Apply books a fill and returns the realized P&L net of commission.
func (b *Book) Apply(fill model.Fill) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	var cur model.Position
	if p, ok := b.positions[fill.Symbol]; ok {
		cur = *p
	}
	next, realized := ApplyFill(cur, fill)
	b.cash += CashDelta(fill)
	net := realized - fill.Commission
	b.dailyRealized += net
	b.fills = append(b.fills, fill)

	if next.Quantity == 0 {
		delete(b.positions, fill.Symbol)
	} else {
		b.positions[fill.Symbol] = &next
	}
	b.updatePeakLocked()
	return net
}

// Mark updates the mark price for symbol.
func (b *Book) Mark(symbol string, price float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if pos, ok := b.positions[symbol]; ok {
		pos.MarkPrice = price
		b.updatePeakLocked()
	}
}

func (b *Book) equityLocked() float64 {
	eq := b.cash
	for _, p := range b.positions {
		eq += p.MarketValue()
	}
	return eq
}

func (b *Book) updatePeakLocked() {
	if eq := b.equityLocked(); eq > b.peakEquity {
		b.peakEquity = eq
	}
}

// Snapshot returns a copy of the portfolio, positions sorted by symbol.
func (b *Book) Snapshot() model.PortfolioSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	positions := make([]model.Position, 0, len(b.positions))
	for _, p := range b.positions {
		positions = append(positions, *p)
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].Symbol < positions[j].Symbol })
	return model.PortfolioSnapshot{
		Positions:        positions,
		Cash:             b.cash,
		TS:               b.now().UTC(),
		DailyRealizedPnL: b.dailyRealized,
	}
}

// Drawdown returns the fractional decline of equity from its peak.
func (b *Book) Drawdown() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.peakEquity <= 0 {
		return 0
	}
	dd := (b.peakEquity - b.equityLocked()) / b.peakEquity
	if dd < 0 {
		return 0
	}
	return dd
}

// ResetDaily resets the daily P&L counter (call at market open).
func (b *Book) ResetDaily() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dailyRealized = 0
}

// Fills returns a copy of all booked fills.
func (b *Book) Fills() []model.Fill {
	b.mu.RLock()
	defer b.mu.RUnlock()
	cp := make([]model.Fill, len(b.fills))
	copy(cp, b.fills)
	return cp
}
