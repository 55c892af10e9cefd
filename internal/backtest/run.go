// Package backtest replays a strategy over historical bars and produces
// an equity curve, a trade log and performance metrics.
//
// A Run is single-use: NewRun creates it Idle, Execute moves it through
// Running to Completed or Failed, and a second Execute returns
// ErrRunConsumed. One run is strictly sequential; RunBatch parallelizes
// across independent runs.
package backtest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"trading-analytics/internal/analytics"
	"trading-analytics/internal/logger"
	"trading-analytics/internal/markethours"
	"trading-analytics/internal/metrics"
	"trading-analytics/internal/model"
	"trading-analytics/internal/notification"
	"trading-analytics/internal/strategy"
)

// Status is the lifecycle state of a Run.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

var statusByCode = [...]Status{StatusIdle, StatusRunning, StatusCompleted, StatusFailed}

const (
	codeIdle int32 = iota
	codeRunning
	codeCompleted
	codeFailed
)

// ErrRunConsumed is returned by Execute on a run that already executed.
var ErrRunConsumed = errors.New("backtest: run already executed")

// Observer receives progress while a run executes. Calls happen on the
// run's goroutine, in bar order.
type Observer interface {
	OnEquity(runID string, p model.EquityPoint)
	OnTrade(runID string, t model.Trade)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Equity func(runID string, p model.EquityPoint)
	Trade  func(runID string, t model.Trade)
}

func (o ObserverFuncs) OnEquity(runID string, p model.EquityPoint) {
	if o.Equity != nil {
		o.Equity(runID, p)
	}
}

func (o ObserverFuncs) OnTrade(runID string, t model.Trade) {
	if o.Trade != nil {
		o.Trade(runID, t)
	}
}

// Result is the output of a completed run.
type Result struct {
	RunID          string                  `json:"run_id"`
	Strategy       string                  `json:"strategy"`
	Kind           strategy.Kind           `json:"kind"`
	Symbol         string                  `json:"symbol"`
	Status         Status                  `json:"status"`
	InitialCapital float64                 `json:"initial_capital"`
	FinalEquity    float64                 `json:"final_equity"`
	TotalReturn    float64                 `json:"total_return"`
	WinRate        float64                 `json:"win_rate"`
	Trades         []model.Trade           `json:"trades"`
	EquityCurve    []model.EquityPoint     `json:"equity_curve"`
	Signals        map[model.Direction]int `json:"signals"`
	Metrics        analytics.Metrics       `json:"metrics"`
	StartedAt      time.Time               `json:"started_at"`
	FinishedAt     time.Time               `json:"finished_at"`
}

// Record converts r into the journal row shape.
func (r *Result) Record() (*model.RunRecord, error) {
	m, err := json.Marshal(r.Metrics)
	if err != nil {
		return nil, fmt.Errorf("backtest: encode metrics: %w", err)
	}
	return &model.RunRecord{
		RunID:          r.RunID,
		Strategy:       r.Strategy,
		Symbol:         r.Symbol,
		Status:         string(r.Status),
		InitialCapital: r.InitialCapital,
		FinalEquity:    r.FinalEquity,
		TotalReturn:    r.TotalReturn,
		WinRate:        r.WinRate,
		Trades:         r.Trades,
		EquityCurve:    r.EquityCurve,
		MetricsJSON:    m,
		CreatedAt:      r.FinishedAt,
	}, nil
}

// Option configures a Run.
type Option func(*Run)

// WithRunID overrides the generated run id.
func WithRunID(id string) Option { return func(r *Run) { r.id = id } }

// WithObserver streams equity points and trades to o.
func WithObserver(o Observer) Option { return func(r *Run) { r.observer = o } }

// WithLogger sets the run logger.
func WithLogger(l *slog.Logger) Option { return func(r *Run) { r.log = l } }

// WithMetrics records run metrics.
func WithMetrics(m *metrics.Metrics) Option { return func(r *Run) { r.metrics = m } }

// WithNotifier sends drawdown alerts through n.
func WithNotifier(n notification.Notifier) Option { return func(r *Run) { r.notifier = n } }

// Run is one backtest execution.
type Run struct {
	id       string
	cfg      Config
	state    atomic.Int32
	observer Observer
	log      *slog.Logger
	metrics  *metrics.Metrics
	notifier notification.Notifier
}

// NewRun creates an Idle run for cfg.
func NewRun(cfg Config, opts ...Option) *Run {
	r := &Run{id: uuid.NewString(), cfg: cfg, log: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.With(slog.String("component", "backtest"))
	return r
}

// ID returns the run id.
func (r *Run) ID() string { return r.id }

// State is safe to call from any goroutine.
func (r *Run) State() Status { return statusByCode[r.state.Load()] }

// Execute replays series (and pair, for Pairs_Trading) through the
// configured strategy. Cancelling ctx stops the run between bars; a
// failed run returns no partial result.
func (r *Run) Execute(ctx context.Context, series, pair *model.Series) (*Result, error) {
	if !r.state.CompareAndSwap(codeIdle, codeRunning) {
		return nil, ErrRunConsumed
	}
	ctx = logger.WithRunID(ctx, r.id)
	start := time.Now()
	if r.metrics != nil {
		r.metrics.ActiveRuns.Inc()
		defer r.metrics.ActiveRuns.Dec()
	}

	res, err := r.execute(ctx, series, pair)
	status, code := StatusCompleted, codeCompleted
	if err != nil {
		status, code = StatusFailed, codeFailed
	}
	r.state.Store(code)
	if r.metrics != nil {
		r.metrics.BacktestRuns.WithLabelValues(string(status)).Inc()
		r.metrics.BacktestDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		r.log.Warn("backtest failed", append(logger.LogWithRun(ctx), slog.Any("error", err))...)
		return nil, err
	}

	res.Status = status
	res.StartedAt = start.UTC()
	res.FinishedAt = time.Now().UTC()
	if r.metrics != nil {
		r.metrics.TradesTotal.Add(float64(len(res.Trades)))
	}
	r.log.Info("backtest completed", append(logger.LogWithRun(ctx),
		slog.String("strategy", res.Strategy),
		slog.String("symbol", res.Symbol),
		slog.Int("bars", len(res.EquityCurve)),
		slog.Int("trades", len(res.Trades)),
		slog.Float64("final_equity", res.FinalEquity),
		slog.Float64("total_return", res.TotalReturn),
		slog.Duration("elapsed", time.Since(start)),
	)...)
	r.alertDrawdown(ctx, res)
	return res, nil
}

func (r *Run) execute(ctx context.Context, series, pair *model.Series) (*Result, error) {
	cfg := r.cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("backtest: config: %w", err)
	}
	if err := checkSeries(series); err != nil {
		return nil, err
	}
	if pair != nil {
		if err := checkSeries(pair); err != nil {
			return nil, err
		}
	}
	// Size check first: strategy state is allocated at the window length.
	warmup, err := strategy.Warmup(cfg.Strategy, pair)
	if err != nil {
		return nil, fmt.Errorf("backtest: %w", err)
	}
	if need := warmup + 1; series.Len() < need {
		return nil, fmt.Errorf("backtest: %s: %w", cfg.Strategy.Kind,
			&model.InsufficientDataError{Required: need, Got: series.Len()})
	}
	strat, err := strategy.FromConfig(cfg.Strategy, pair)
	if err != nil {
		return nil, fmt.Errorf("backtest: %w", err)
	}

	sim := newSimulator(r.id, series.Symbol, cfg, r.observer)
	counts := map[model.Direction]int{model.Buy: 0, model.Sell: 0, model.Hold: 0}
	last := series.Len() - 1
	for i, sig := range strategy.Signals(strat, series) {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("backtest: stopped at bar %d: %w", i, err)
		}
		bar := series.Bars[i]
		counts[sig.Direction]++
		sim.onSignal(bar, sig)
		if i == last {
			sim.closePosition(bar, model.ExitEndOfPeriod)
		}
		sim.mark(bar)
	}
	if r.metrics != nil {
		r.metrics.BarsProcessed.Add(float64(series.Len()))
	}

	ppy := cfg.PeriodsPerYear
	if ppy == 0 {
		ppy = markethours.AnnualPeriods(series.Interval)
	}
	res := &Result{
		RunID:          r.id,
		Strategy:       strat.Name(),
		Kind:           strat.Kind(),
		Symbol:         series.Symbol,
		InitialCapital: cfg.InitialCapital,
		FinalEquity:    sim.curve[len(sim.curve)-1].TotalEquity,
		Trades:         sim.trades,
		EquityCurve:    sim.curve,
		Signals:        counts,
		Metrics: analytics.Analyze(analytics.Request{
			EquityCurve:    sim.curve,
			Trades:         sim.trades,
			PeriodsPerYear: ppy,
			RiskFreeRate:   cfg.RiskFreeRate,
		}),
	}
	res.TotalReturn = res.FinalEquity/cfg.InitialCapital - 1
	if n := len(sim.trades); n > 0 {
		wins := 0
		for i := range sim.trades {
			if sim.trades[i].Win() {
				wins++
			}
		}
		res.WinRate = float64(wins) / float64(n)
	}
	return res, nil
}

// checkSeries re-validates series that may have been built without NewSeries.
func checkSeries(s *model.Series) error {
	if s == nil {
		return fmt.Errorf("backtest: %w", &model.MalformedSeriesError{Index: -1, Field: "series", Reason: "missing"})
	}
	if _, err := model.NewSeries(s.Symbol, s.Interval, s.Bars); err != nil {
		return fmt.Errorf("backtest: %w", err)
	}
	return nil
}

func (r *Run) alertDrawdown(ctx context.Context, res *Result) {
	limit := r.cfg.DrawdownAlert
	if r.notifier == nil || limit <= 0 || res.Metrics.MaxDrawdown <= limit {
		return
	}
	alert := notification.DrawdownBreached(res.RunID, res.Strategy, res.Symbol, res.Metrics.MaxDrawdown, limit)
	if err := r.notifier.Send(ctx, alert); err != nil {
		r.log.Error("drawdown alert failed", append(logger.LogWithRun(ctx), slog.Any("error", err))...)
	}
}
