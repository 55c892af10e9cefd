package model

import (
	"context"
	"time"
)

// ── Port Interfaces ──
// These decouple analytics from the concrete market-data provider,
// result stores and execution gateway.

// SeriesReader is the market-data provider port.
type SeriesReader interface {
	// ReadSeries loads bars for symbol in [from, to). Zero times are open bounds.
	ReadSeries(ctx context.Context, symbol string, interval time.Duration, from, to time.Time) (*Series, error)

	// Instruments returns reference data, used for sector mapping.
	Instruments(ctx context.Context) ([]Instrument, error)
}

// BarWriter persists bars.
type BarWriter interface {
	WriteBars(ctx context.Context, symbol string, interval time.Duration, bars []Bar) error
}

// RunRecord is the persisted summary of one backtest run.
type RunRecord struct {
	RunID          string        `json:"run_id"`
	Strategy       string        `json:"strategy"`
	Symbol         string        `json:"symbol"`
	Status         string        `json:"status"`
	InitialCapital float64       `json:"initial_capital"`
	FinalEquity    float64       `json:"final_equity"`
	TotalReturn    float64       `json:"total_return"`
	WinRate        float64       `json:"win_rate"`
	Trades         []Trade       `json:"trades"`
	EquityCurve    []EquityPoint `json:"equity_curve,omitempty"`
	MetricsJSON    []byte        `json:"-"`
	CreatedAt      time.Time     `json:"created_at"`
}

// ResultWriter journals completed runs.
type ResultWriter interface {
	SaveRun(ctx context.Context, rec *RunRecord) error
}

// ResultReader loads journaled runs by id.
type ResultReader interface {
	LoadRun(ctx context.Context, runID string) (*RunRecord, error)
}

// ResultCache holds recent run results as raw JSON keyed by run id.
type ResultCache interface {
	PutResult(ctx context.Context, runID string, data []byte) error
	GetResult(ctx context.Context, runID string) ([]byte, error)
}

// OrderGateway is the execution collaborator: it accepts validated
// orders and reports fills.
type OrderGateway interface {
	Submit(ctx context.Context, order Order) (Fill, error)
}
