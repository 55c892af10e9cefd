package execution

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"trading-analytics/internal/model"
)

const journalSchema = `
CREATE TABLE IF NOT EXISTS paper_fills (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	order_id    TEXT NOT NULL,
	symbol      TEXT NOT NULL,
	side        TEXT NOT NULL CHECK (side IN ('BUY', 'SELL')),
	qty         REAL NOT NULL,
	price       REAL NOT NULL,
	commission  REAL NOT NULL DEFAULT 0,
	filled_at   INTEGER NOT NULL,
	created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_paper_fills_symbol ON paper_fills(symbol);
CREATE INDEX IF NOT EXISTS idx_paper_fills_filled_at ON paper_fills(filled_at);
`

// Journal is the audit trail of paper fills. The service replays it at
// startup to rebuild the book.
type Journal struct {
	mu sync.Mutex
	db *sql.DB
}

// NewJournal opens (or creates) the fill journal at dbPath.
func NewJournal(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(journalSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: schema: %w", err)
	}
	slog.Debug("fill journal opened", slog.String("path", dbPath))
	return &Journal{db: db}, nil
}

// RecordFill appends pf. Timestamps are stored as unix nanoseconds.
func (j *Journal) RecordFill(pf PaperFill) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	f := pf.Fill
	_, err := j.db.Exec(
		`INSERT INTO paper_fills (order_id, symbol, side, qty, price, commission, filled_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		pf.OrderID, f.Symbol, string(f.Side), f.Quantity, f.Price, f.Commission, f.TS.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("journal: record %s: %w", pf.OrderID, err)
	}
	return nil
}

// FillRecord is one journaled fill as served by the API.
type FillRecord struct {
	ID         int64      `json:"id"`
	OrderID    string     `json:"order_id"`
	Symbol     string     `json:"symbol"`
	Side       model.Side `json:"side"`
	Quantity   float64    `json:"quantity"`
	Price      float64    `json:"price"`
	Commission float64    `json:"commission"`
	FilledAt   time.Time  `json:"filled_at"`
}

// Fill converts the record back into a model.Fill.
func (r FillRecord) Fill() model.Fill {
	return model.Fill{
		Symbol:     r.Symbol,
		Side:       r.Side,
		Quantity:   r.Quantity,
		Price:      r.Price,
		Commission: r.Commission,
		TS:         r.FilledAt,
	}
}

const selectFills = `SELECT id, order_id, symbol, side, qty, price, commission, filled_at FROM paper_fills`

// RecentFills returns the last limit fills, newest first.
func (j *Journal) RecentFills(limit int) ([]FillRecord, error) {
	return j.query(context.Background(), selectFills+` ORDER BY id DESC LIMIT ?`, limit)
}

// AllFills returns every fill in booking order.
func (j *Journal) AllFills(ctx context.Context) ([]FillRecord, error) {
	return j.query(ctx, selectFills+` ORDER BY id ASC`)
}

func (j *Journal) query(ctx context.Context, q string, args ...any) ([]FillRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("journal: query: %w", err)
	}
	defer rows.Close()

	var out []FillRecord
	for rows.Next() {
		var (
			r    FillRecord
			side string
			ns   int64
		)
		if err := rows.Scan(&r.ID, &r.OrderID, &r.Symbol, &side, &r.Quantity,
			&r.Price, &r.Commission, &ns); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		r.Side = model.Side(side)
		r.FilledAt = time.Unix(0, ns).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}
