package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-analytics/internal/model"
)

var t0 = time.Date(2026, 1, 5, 3, 45, 0, 0, time.UTC)

func openPair(t *testing.T) (*Writer, *Reader) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "analytics.db")
	w, err := New(WriterConfig{DBPath: path})
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	r, err := NewReader(path)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return w, r
}

func bars(n int, start float64) []model.Bar {
	out := make([]model.Bar, n)
	for i := range out {
		c := start + float64(i)
		out[i] = model.Bar{TS: t0.Add(time.Duration(i) * time.Minute), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 10}
	}
	return out
}

func TestWriteBars_ReadSeriesRange(t *testing.T) {
	w, r := openPair(t)
	ctx := context.Background()
	require.NoError(t, w.WriteBars(ctx, "INFY", time.Minute, bars(10, 100)))

	s, err := r.ReadSeries(ctx, "INFY", time.Minute, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 10, s.Len())
	assert.Equal(t, time.Minute, s.Interval)
	assert.True(t, s.Bars[0].TS.Equal(t0))
	assert.Equal(t, 109.0, s.Bars[9].Close)

	part, err := r.ReadSeries(ctx, "INFY", time.Minute, t0.Add(2*time.Minute), t0.Add(5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, []float64{102, 103, 104}, part.Closes())

	_, err = r.ReadSeries(ctx, "TCS", time.Minute, time.Time{}, time.Time{})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = r.ReadSeries(ctx, "INFY", 5*time.Minute, time.Time{}, time.Time{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWriteBars_ReplacesSameTimestamp(t *testing.T) {
	w, r := openPair(t)
	ctx := context.Background()
	require.NoError(t, w.WriteBars(ctx, "INFY", time.Minute, bars(3, 100)))
	require.NoError(t, w.WriteBars(ctx, "INFY", time.Minute, bars(3, 200)))

	s, err := r.ReadSeries(ctx, "INFY", time.Minute, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []float64{200, 201, 202}, s.Closes())

	last, err := w.LastTimestamp(ctx, "INFY", time.Minute)
	require.NoError(t, err)
	assert.True(t, last.Equal(t0.Add(2*time.Minute)))

	none, err := w.LastTimestamp(ctx, "TCS", time.Minute)
	require.NoError(t, err)
	assert.True(t, none.IsZero())
}

func TestRun_BatchesFromChannel(t *testing.T) {
	w, r := openPair(t)
	ch := make(chan model.Bar)
	go func() {
		for _, b := range bars(1200, 1) {
			ch <- b
		}
		close(ch)
	}()
	n, err := w.Run(context.Background(), "TCS", 24*time.Hour, ch)
	require.NoError(t, err)
	assert.Equal(t, 1200, n)

	s, err := r.ReadSeries(context.Background(), "TCS", 24*time.Hour, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1200, s.Len())
}

func TestInstruments_Upsert(t *testing.T) {
	w, r := openPair(t)
	ctx := context.Background()
	require.NoError(t, w.UpsertInstruments(ctx, []model.Instrument{
		{Symbol: "TCS", Exchange: "NSE", Sector: "IT"},
		{Symbol: "HDFCBANK", Exchange: "NSE", Sector: "Banking", LotSize: 550},
	}))
	require.NoError(t, w.UpsertInstruments(ctx, []model.Instrument{{Symbol: "TCS", Exchange: "NSE", Sector: "Technology"}}))

	got, err := r.Instruments(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "HDFCBANK", got[0].Symbol)
	assert.Equal(t, 550.0, got[0].LotSize)
	assert.Equal(t, "Technology", got[1].Sector)
	assert.Equal(t, 1.0, got[1].LotSize)
}

func TestSaveRun_LoadRun(t *testing.T) {
	w, r := openPair(t)
	ctx := context.Background()
	rec := &model.RunRecord{
		RunID:          "run-1",
		Strategy:       "SMA_Crossover(5,20)",
		Symbol:         "INFY",
		Status:         "completed",
		InitialCapital: 100000,
		FinalEquity:    120790,
		TotalReturn:    0.2079,
		WinRate:        1,
		Trades: []model.Trade{{
			EntryTime: t0, ExitTime: t0.Add(time.Hour), Symbol: "INFY", Side: model.Long,
			EntryPrice: 101, ExitPrice: 122, Quantity: 990, PnL: 20790, ExitReason: model.ExitSignal,
		}},
		EquityCurve: []model.EquityPoint{model.NewEquityPoint(t0, 100000, 0)},
		MetricsJSON: []byte(`{"sharpe":1.5}`),
		CreatedAt:   t0,
	}
	require.NoError(t, w.SaveRun(ctx, rec))

	got, err := r.LoadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, rec.Strategy, got.Strategy)
	assert.Equal(t, rec.FinalEquity, got.FinalEquity)
	require.Len(t, got.Trades, 1)
	assert.Equal(t, model.Long, got.Trades[0].Side)
	assert.True(t, got.Trades[0].ExitTime.Equal(t0.Add(time.Hour)))
	assert.JSONEq(t, `{"sharpe":1.5}`, string(got.MetricsJSON))
	require.Len(t, got.EquityCurve, 1)
	assert.Equal(t, 100000.0, got.EquityCurve[0].TotalEquity)

	// re-saving replaces trades rather than duplicating them
	require.NoError(t, w.SaveRun(ctx, rec))
	got, err = r.LoadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, got.Trades, 1)

	runs, err := r.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].RunID)

	_, err = r.LoadRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
