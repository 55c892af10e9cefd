package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"trading-analytics/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a requested run or series has no rows.
var ErrNotFound = errors.New("sqlite: not found")

// Reader provides read-only access to bars, instruments and the journal.
type Reader struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (r *Reader) DB() *sql.DB { return r.db }

// NewReader opens a SQLite connection for reading. The schema is created
// if missing so a fresh database reads as empty rather than failing.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite-reader] opened %s", dbPath)
	return &Reader{db: db}, nil
}

// ReadSeries loads bars for symbol at interval with from <= ts < to,
// ordered by timestamp. Zero from/to are open bounds. The result is
// validated through model.NewSeries.
func (r *Reader) ReadSeries(ctx context.Context, symbol string, interval time.Duration, from, to time.Time) (*model.Series, error) {
	lo, hi := int64(0), int64(1<<62)
	if !from.IsZero() {
		lo = from.UnixMilli()
	}
	if !to.IsZero() {
		hi = to.UnixMilli()
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT ts, open, high, low, close, volume
		FROM bars
		WHERE symbol = ? AND interval_s = ? AND ts >= ? AND ts < ?
		ORDER BY ts ASC
	`, symbol, int64(interval/time.Second), lo, hi)
	if err != nil {
		return nil, fmt.Errorf("sqlite query bars: %w", err)
	}
	defer rows.Close()

	var bars []model.Bar
	for rows.Next() {
		var b model.Bar
		var tsMilli int64
		if err := rows.Scan(&tsMilli, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("sqlite scan bars: %w", err)
		}
		b.TS = time.UnixMilli(tsMilli).UTC()
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: no %s bars for %s", ErrNotFound, interval, symbol)
	}
	return model.NewSeries(symbol, interval, bars)
}

// Instruments returns all instrument reference rows ordered by symbol.
func (r *Reader) Instruments(ctx context.Context) ([]model.Instrument, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT symbol, exchange, name, sector, lot_size FROM instruments ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query instruments: %w", err)
	}
	defer rows.Close()

	var out []model.Instrument
	for rows.Next() {
		var in model.Instrument
		if err := rows.Scan(&in.Symbol, &in.Exchange, &in.Name, &in.Sector, &in.LotSize); err != nil {
			return nil, fmt.Errorf("sqlite scan instruments: %w", err)
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

// LoadRun reads a journaled run with its trades and equity curve.
func (r *Reader) LoadRun(ctx context.Context, runID string) (*model.RunRecord, error) {
	var (
		rec     model.RunRecord
		metrics string
		curve   string
		created int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT run_id, strategy, symbol, status, initial_capital, final_equity, total_return, win_rate,
		       metrics, equity_curve, created_at
		FROM backtest_runs WHERE run_id = ?
	`, runID).Scan(&rec.RunID, &rec.Strategy, &rec.Symbol, &rec.Status, &rec.InitialCapital,
		&rec.FinalEquity, &rec.TotalReturn, &rec.WinRate, &metrics, &curve, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: run %s", ErrNotFound, runID)
		}
		return nil, fmt.Errorf("sqlite read run: %w", err)
	}
	rec.MetricsJSON = []byte(metrics)
	rec.CreatedAt = time.UnixMilli(created).UTC()
	if err := json.Unmarshal([]byte(curve), &rec.EquityCurve); err != nil {
		return nil, fmt.Errorf("unmarshal equity curve: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT entry_ts, exit_ts, direction, entry_price, exit_price, quantity, pnl, commission, exit_reason
		FROM backtest_trades WHERE run_id = ? ORDER BY seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("sqlite query trades: %w", err)
	}
	defer rows.Close()

	rec.Trades = []model.Trade{}
	for rows.Next() {
		t := model.Trade{Symbol: rec.Symbol}
		var entry, exit int64
		var side string
		if err := rows.Scan(&entry, &exit, &side, &t.EntryPrice, &t.ExitPrice, &t.Quantity,
			&t.PnL, &t.Commission, &t.ExitReason); err != nil {
			return nil, fmt.Errorf("sqlite scan trades: %w", err)
		}
		t.EntryTime = time.UnixMilli(entry).UTC()
		t.ExitTime = time.UnixMilli(exit).UTC()
		t.Side = model.TradeSide(side)
		rec.Trades = append(rec.Trades, t)
	}
	return &rec, rows.Err()
}

// RunSummary is one row of the journal listing.
type RunSummary struct {
	RunID       string    `json:"run_id"`
	Strategy    string    `json:"strategy"`
	Symbol      string    `json:"symbol"`
	Status      string    `json:"status"`
	FinalEquity float64   `json:"final_equity"`
	TotalReturn float64   `json:"total_return"`
	WinRate     float64   `json:"win_rate"`
	CreatedAt   time.Time `json:"created_at"`
}

// RecentRuns returns the last N journaled runs, newest first.
func (r *Reader) RecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT run_id, strategy, symbol, status, final_equity, total_return, win_rate, created_at
		FROM backtest_runs ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var s RunSummary
		var created int64
		if err := rows.Scan(&s.RunID, &s.Strategy, &s.Symbol, &s.Status, &s.FinalEquity,
			&s.TotalReturn, &s.WinRate, &created); err != nil {
			return nil, fmt.Errorf("sqlite scan runs: %w", err)
		}
		s.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
