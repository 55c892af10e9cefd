// Package sqlite is the SQLite-backed market-data provider and backtest
// journal. Writer owns the schema and all inserts; Reader serves bar
// series, instrument reference data and journaled runs.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"trading-analytics/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

const (
	defaultBatchSize  = 500
	defaultFlushDelay = 200 * time.Millisecond
)

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath string // path to SQLite database file, e.g. "data/analytics.db"
}

// Writer is a single-connection SQLite writer with transaction batching.
type Writer struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// New creates a new SQLite Writer, initializes the database with WAL mode and schema.
func New(cfg WriterConfig) (*Writer, error) {
	db, err := sql.Open("sqlite3", dsn(cfg.DBPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Set connection pool for single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Writer{db: db}, nil
}

func dsn(path string) string {
	return path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS bars (
			symbol     TEXT    NOT NULL,
			interval_s INTEGER NOT NULL,
			ts         INTEGER NOT NULL,
			open       REAL    NOT NULL,
			high       REAL    NOT NULL,
			low        REAL    NOT NULL,
			close      REAL    NOT NULL,
			volume     REAL    NOT NULL DEFAULT 0,
			PRIMARY KEY (symbol, interval_s, ts)
		);

		CREATE TABLE IF NOT EXISTS instruments (
			symbol   TEXT PRIMARY KEY,
			exchange TEXT NOT NULL DEFAULT '',
			name     TEXT NOT NULL DEFAULT '',
			sector   TEXT NOT NULL DEFAULT '',
			lot_size REAL NOT NULL DEFAULT 1
		);

		CREATE TABLE IF NOT EXISTS backtest_runs (
			run_id          TEXT PRIMARY KEY,
			strategy        TEXT    NOT NULL,
			symbol          TEXT    NOT NULL,
			status          TEXT    NOT NULL,
			initial_capital REAL    NOT NULL,
			final_equity    REAL    NOT NULL,
			total_return    REAL    NOT NULL,
			win_rate        REAL    NOT NULL,
			metrics         TEXT    NOT NULL DEFAULT '{}',
			equity_curve    TEXT    NOT NULL DEFAULT '[]',
			created_at      INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_backtest_runs_symbol ON backtest_runs(symbol, created_at);

		CREATE TABLE IF NOT EXISTS backtest_trades (
			run_id      TEXT    NOT NULL REFERENCES backtest_runs(run_id) ON DELETE CASCADE,
			seq         INTEGER NOT NULL,
			entry_ts    INTEGER NOT NULL,
			exit_ts     INTEGER NOT NULL,
			direction   TEXT    NOT NULL,
			entry_price REAL    NOT NULL,
			exit_price  REAL    NOT NULL,
			quantity    REAL    NOT NULL,
			pnl         REAL    NOT NULL,
			commission  REAL    NOT NULL DEFAULT 0,
			exit_reason TEXT    NOT NULL,
			PRIMARY KEY (run_id, seq)
		);
	`)
	return err
}

// Run reads bars for one symbol from barCh and inserts them in batched
// transactions. Flushes every batchSize bars OR every flushDelay, whichever
// first. Blocks until ctx is cancelled or barCh is closed and returns the
// number of bars committed.
func (w *Writer) Run(ctx context.Context, symbol string, interval time.Duration, barCh <-chan model.Bar) (int, error) {
	batch := make([]model.Bar, 0, defaultBatchSize)
	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	committed := 0
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		start := time.Now()
		if err := w.insertBatch(context.WithoutCancel(ctx), symbol, interval, batch); err != nil {
			return fmt.Errorf("sqlite: insert %s: %w", symbol, err)
		}
		log.Printf("[sqlite] committed %d bars for %s in %v", len(batch), symbol, time.Since(start))
		committed += len(batch)
		batch = batch[:0]
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			if err := flush(); err != nil {
				return committed, err
			}
			return committed, ctx.Err()

		case bar, ok := <-barCh:
			if !ok {
				return committed, flush()
			}
			batch = append(batch, bar)
			if len(batch) >= defaultBatchSize {
				if err := flush(); err != nil {
					return committed, err
				}
				timer.Reset(defaultFlushDelay)
			}

		case <-timer.C:
			if err := flush(); err != nil {
				return committed, err
			}
			timer.Reset(defaultFlushDelay)
		}
	}
}

// WriteBars inserts bars for symbol, replacing rows with the same timestamp.
func (w *Writer) WriteBars(ctx context.Context, symbol string, interval time.Duration, bars []model.Bar) error {
	for start := 0; start < len(bars); start += defaultBatchSize {
		end := min(start+defaultBatchSize, len(bars))
		if err := w.insertBatch(ctx, symbol, interval, bars[start:end]); err != nil {
			return fmt.Errorf("sqlite: write bars %s: %w", symbol, err)
		}
	}
	return nil
}

// insertBatch inserts a batch of bars in a single transaction.
func (w *Writer) insertBatch(ctx context.Context, symbol string, interval time.Duration, bars []model.Bar) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO bars (symbol, interval_s, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	secs := int64(interval / time.Second)
	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, symbol, secs, b.TS.UnixMilli(), b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// LastTimestamp returns the last stored bar time for symbol at interval.
// Returns the zero time if no bars exist.
func (w *Writer) LastTimestamp(ctx context.Context, symbol string, interval time.Duration) (time.Time, error) {
	var ts sql.NullInt64
	err := w.db.QueryRowContext(ctx,
		`SELECT MAX(ts) FROM bars WHERE symbol = ? AND interval_s = ?`,
		symbol, int64(interval/time.Second),
	).Scan(&ts)
	if err != nil {
		return time.Time{}, err
	}
	if !ts.Valid {
		return time.Time{}, nil
	}
	return time.UnixMilli(ts.Int64).UTC(), nil
}

// UpsertInstruments stores instrument reference data.
func (w *Writer) UpsertInstruments(ctx context.Context, instruments []model.Instrument) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, in := range instruments {
		lot := in.LotSize
		if lot <= 0 {
			lot = 1
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO instruments (symbol, exchange, name, sector, lot_size) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(symbol) DO UPDATE SET
				exchange = excluded.exchange, name = excluded.name,
				sector = excluded.sector, lot_size = excluded.lot_size
		`, in.Symbol, in.Exchange, in.Name, in.Sector, lot); err != nil {
			return fmt.Errorf("sqlite: upsert instrument %s: %w", in.Symbol, err)
		}
	}
	return tx.Commit()
}

// SaveRun journals a backtest run and its trades in one transaction.
func (w *Writer) SaveRun(ctx context.Context, rec *model.RunRecord) error {
	curve, err := json.Marshal(rec.EquityCurve)
	if err != nil {
		return fmt.Errorf("sqlite: marshal equity curve: %w", err)
	}
	metrics := rec.MetricsJSON
	if len(metrics) == 0 {
		metrics = []byte("{}")
	}
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO backtest_runs
			(run_id, strategy, symbol, status, initial_capital, final_equity, total_return, win_rate, metrics, equity_curve, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.RunID, rec.Strategy, rec.Symbol, rec.Status, rec.InitialCapital, rec.FinalEquity,
		rec.TotalReturn, rec.WinRate, string(metrics), string(curve), created.UnixMilli()); err != nil {
		return fmt.Errorf("sqlite: insert run %s: %w", rec.RunID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM backtest_trades WHERE run_id = ?`, rec.RunID); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO backtest_trades
			(run_id, seq, entry_ts, exit_ts, direction, entry_price, exit_price, quantity, pnl, commission, exit_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, t := range rec.Trades {
		if _, err := stmt.ExecContext(ctx, rec.RunID, i, t.EntryTime.UnixMilli(), t.ExitTime.UnixMilli(),
			string(t.Side), t.EntryPrice, t.ExitPrice, t.Quantity, t.PnL, t.Commission, t.ExitReason); err != nil {
			return fmt.Errorf("sqlite: insert trade %d of %s: %w", i, rec.RunID, err)
		}
	}
	return tx.Commit()
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}
