package risk

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"trading-analytics/internal/metrics"
	"trading-analytics/internal/model"
	"trading-analytics/internal/notification"
	"trading-analytics/internal/portfolio"
)

// Decision is the outcome of Guard.Place.
type Decision struct {
	Assessment  model.RiskAssessment `json:"assessment"`
	Fill        *model.Fill          `json:"fill,omitempty"`
	RealizedPnL float64              `json:"realized_pnl"`
}

// Guard owns the validate → submit → book sequence for the live book.
// Orders are serialized so each is validated against the state left by
// the previous one.
type Guard struct {
	mu       sync.Mutex
	limitsMu sync.RWMutex
	limits   model.RiskLimits

	book     *portfolio.Book
	gateway  model.OrderGateway
	notifier notification.Notifier
	metrics  *metrics.Metrics
	log      *slog.Logger
}

// NewGuard wires a guard. notifier and m may be nil.
func NewGuard(book *portfolio.Book, gateway model.OrderGateway, limits model.RiskLimits,
	notifier notification.Notifier, m *metrics.Metrics, logger *slog.Logger) (*Guard, error) {
	if err := limits.Validate(); err != nil {
		return nil, fmt.Errorf("risk: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		limits:   limits,
		book:     book,
		gateway:  gateway,
		notifier: notifier,
		metrics:  m,
		log:      logger.With(slog.String("component", "risk_guard")),
	}, nil
}

// Limits returns the active limits.
func (g *Guard) Limits() model.RiskLimits {
	g.limitsMu.RLock()
	defer g.limitsMu.RUnlock()
	return g.limits
}

// SetLimits replaces the active limits after validating them.
func (g *Guard) SetLimits(l model.RiskLimits) error {
	if err := l.Validate(); err != nil {
		return fmt.Errorf("risk: %w", err)
	}
	g.limitsMu.Lock()
	g.limits = l
	g.limitsMu.Unlock()
	g.log.Info("risk limits updated",
		slog.Float64("max_position_size", l.MaxPositionSize),
		slog.Float64("max_daily_loss", l.MaxDailyLoss),
		slog.Float64("max_concentration_pct", l.MaxPortfolioConcentrationPct),
		slog.Float64("max_leverage", l.MaxLeverage),
	)
	return nil
}

// Check validates order against a snapshot of the book without trading.
func (g *Guard) Check(order model.Order) (model.RiskAssessment, error) {
	a, err := Validate(g.book.Snapshot(), order, g.Limits())
	if err != nil {
		return a, err
	}
	g.observe(a)
	return a, nil
}

// Place validates order and, when approved, submits it and books the fill.
// A rejected order returns a Decision with no fill and a nil error.
func (g *Guard) Place(ctx context.Context, order model.Order) (Decision, error) {
	g.mu.Lock()
	a, err := Validate(g.book.Snapshot(), order, g.Limits())
	if err != nil {
		g.mu.Unlock()
		return Decision{}, err
	}
	g.observe(a)
	if !a.Approved {
		g.mu.Unlock()
		g.log.Warn("order rejected",
			slog.String("symbol", order.Symbol),
			slog.String("side", string(order.Side)),
			slog.Float64("qty", order.Quantity),
			slog.Float64("risk_score", a.RiskScore),
			slog.Int("violations", len(a.Violations)),
		)
		g.notify(ctx, notification.RiskRejected(order, a))
		return Decision{Assessment: a}, nil
	}

	fill, err := g.gateway.Submit(ctx, order)
	if err != nil {
		g.mu.Unlock()
		return Decision{Assessment: a}, fmt.Errorf("risk: submit %s: %w", order.Symbol, err)
	}
	realized := g.book.Apply(fill)
	g.mu.Unlock()

	g.log.Info("order filled",
		slog.String("symbol", fill.Symbol),
		slog.String("side", string(fill.Side)),
		slog.Float64("qty", fill.Quantity),
		slog.Float64("price", fill.Price),
		slog.Float64("realized_pnl", realized),
	)
	return Decision{Assessment: a, Fill: &fill, RealizedPnL: realized}, nil
}

func (g *Guard) observe(a model.RiskAssessment) {
	if g.metrics == nil {
		return
	}
	outcome := "approved"
	if !a.Approved {
		outcome = "rejected"
	}
	g.metrics.RiskValidations.WithLabelValues(outcome).Inc()
	for _, v := range a.Violations {
		g.metrics.RiskViolations.WithLabelValues(v.Rule, string(v.Severity)).Inc()
	}
}

func (g *Guard) notify(ctx context.Context, alert notification.Alert) {
	if g.notifier == nil {
		return
	}
	if err := g.notifier.Send(ctx, alert); err != nil {
		g.log.Error("alert delivery failed", slog.String("title", alert.Title), slog.Any("error", err))
	}
}
