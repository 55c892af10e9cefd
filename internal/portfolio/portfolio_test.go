package portfolio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-analytics/internal/model"
)

func buy(sym string, qty, px float64) model.Fill {
	return model.Fill{Symbol: sym, Side: model.SideBuy, Quantity: qty, Price: px}
}

func sell(sym string, qty, px float64) model.Fill {
	return model.Fill{Symbol: sym, Side: model.SideSell, Quantity: qty, Price: px}
}

func TestApplyFill_WeightedAverage(t *testing.T) {
	pos, r := ApplyFill(model.Position{}, buy("A", 10, 100))
	assert.Equal(t, 0.0, r)
	pos, _ = ApplyFill(pos, buy("A", 10, 110))
	assert.Equal(t, 20.0, pos.Quantity)
	assert.InDelta(t, 105.0, pos.AvgEntryPrice, 1e-12)
	assert.Equal(t, "A", pos.Symbol)
}

func TestApplyFill_PartialCloseAndClose(t *testing.T) {
	pos, _ := ApplyFill(model.Position{}, buy("A", 10, 100))
	pos, r := ApplyFill(pos, sell("A", 4, 120))
	assert.InDelta(t, 80.0, r, 1e-12)
	assert.Equal(t, 6.0, pos.Quantity)
	assert.Equal(t, 100.0, pos.AvgEntryPrice)

	pos, r = ApplyFill(pos, sell("A", 6, 90))
	assert.InDelta(t, -60.0, r, 1e-12)
	assert.True(t, pos.Flat())
	assert.InDelta(t, 20.0, pos.RealizedPnL, 1e-12)
}

func TestApplyFill_Flip(t *testing.T) {
	pos, _ := ApplyFill(model.Position{}, buy("A", 5, 100))
	pos, r := ApplyFill(pos, sell("A", 8, 110))
	assert.InDelta(t, 50.0, r, 1e-12)
	assert.Equal(t, -3.0, pos.Quantity)
	assert.Equal(t, 110.0, pos.AvgEntryPrice)
}

func TestApplyFill_ShortRealizesOnCover(t *testing.T) {
	pos, _ := ApplyFill(model.Position{}, sell("A", 10, 50))
	pos, r := ApplyFill(pos, buy("A", 10, 40))
	assert.InDelta(t, 100.0, r, 1e-12)
	assert.True(t, pos.Flat())
}

func TestBook_CashAndSnapshot(t *testing.T) {
	b := NewBook(10000)
	f := buy("INFY", 10, 100)
	f.Commission = 1
	b.Apply(f)
	b.Apply(buy("TCS", 5, 200))

	snap := b.Snapshot()
	require.Len(t, snap.Positions, 2)
	assert.Equal(t, "INFY", snap.Positions[0].Symbol)
	assert.InDelta(t, 10000-1000-1-1000, snap.Cash, 1e-9)
	assert.InDelta(t, -1.0, snap.DailyRealizedPnL, 1e-9)

	// Snapshot is a value: later fills do not leak into it.
	b.Apply(sell("INFY", 10, 120))
	assert.Len(t, snap.Positions, 2)
	assert.Len(t, b.Snapshot().Positions, 1)
	assert.InDelta(t, 199.0, b.Snapshot().DailyRealizedPnL, 1e-9)

	b.ResetDaily()
	assert.Equal(t, 0.0, b.Snapshot().DailyRealizedPnL)
}

func TestBook_Drawdown(t *testing.T) {
	b := NewBook(1000)
	b.Apply(buy("A", 10, 100)) // all in
	b.Mark("A", 120)           // equity 1200 (peak)
	b.Mark("A", 90)            // equity 900
	assert.InDelta(t, 0.25, b.Drawdown(), 1e-12)
}

func TestFromSnapshot(t *testing.T) {
	b := FromSnapshot(model.PortfolioSnapshot{
		Cash:      500,
		Positions: []model.Position{{Symbol: "A", Quantity: 2, AvgEntryPrice: 10, MarkPrice: 12}, {Symbol: "Z"}},
	})
	snap := b.Snapshot()
	require.Len(t, snap.Positions, 1)
	assert.InDelta(t, 524.0, snap.Equity(), 1e-12)
}
