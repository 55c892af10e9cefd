// Package gateway exposes indicators, backtests, analytics and risk
// validation over HTTP, and streams running backtests over WebSocket.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"trading-analytics/config"
	"trading-analytics/internal/backtest"
	"trading-analytics/internal/execution"
	"trading-analytics/internal/metrics"
	"trading-analytics/internal/model"
	"trading-analytics/internal/notification"
	"trading-analytics/internal/portfolio"
	"trading-analytics/internal/risk"
	sqlitestore "trading-analytics/internal/store/sqlite"

	goredis "github.com/go-redis/redis/v8"
)

// RunJournal persists and lists completed runs; *sqlite.Store implements it.
type RunJournal interface {
	model.ResultWriter
	model.ResultReader
	RecentRuns(ctx context.Context, limit int) ([]sqlitestore.RunSummary, error)
}

// RunSubscriber attaches to the progress of a run executing elsewhere;
// *redis.Reader implements it.
type RunSubscriber interface {
	SubscribeRun(ctx context.Context, runID string) (*goredis.PubSub, error)
	EquityHistory(ctx context.Context, runID string) ([]model.EquityPoint, error)
}

// FillLister lists journaled paper fills; *execution.Journal implements it.
type FillLister interface {
	RecentFills(limit int) ([]execution.FillRecord, error)
}

// Deps wires the gateway to its collaborators. Cache, Publisher, Live,
// Fills, Metrics, Health and Notifier are optional.
type Deps struct {
	Config    *config.Config
	Series    model.SeriesReader
	Journal   RunJournal
	Cache     model.ResultCache
	Publisher backtest.Observer
	Live      RunSubscriber
	Guard     *risk.Guard
	Book      *portfolio.Book
	Fills     FillLister
	Metrics   *metrics.Metrics
	Health    *metrics.HealthStatus
	Notifier  notification.Notifier
	Logger    *slog.Logger
}

// Server is the analytics HTTP + WebSocket API.
type Server struct {
	deps       Deps
	cfg        *config.Config
	log        *slog.Logger
	totp       *TOTPGuard
	latency    *RouteLatency
	wsClients  atomic.Int64
	start      time.Time
	httpServer *http.Server
}

// NewServer validates deps and builds the server.
func NewServer(d Deps) (*Server, error) {
	if d.Config == nil {
		return nil, errors.New("gateway: config is required")
	}
	if d.Series == nil || d.Journal == nil {
		return nil, errors.New("gateway: series reader and journal are required")
	}
	if d.Guard == nil || d.Book == nil {
		return nil, errors.New("gateway: risk guard and book are required")
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	s := &Server{
		deps:    d,
		cfg:     d.Config,
		log:     d.Logger.With(slog.String("component", "gateway")),
		totp:    NewTOTPGuard(d.Config.Gateway.TOTPSecret),
		latency: NewRouteLatency(2048),
		start:   time.Now(),
	}
	s.httpServer = &http.Server{
		Addr:         d.Config.Gateway.ListenAddr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // synchronous backtests
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Handler returns the routed handler wrapped in middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/indicators", s.timed("indicators", s.handleIndicators))
	mux.HandleFunc("POST /api/backtest", s.timed("backtest", s.handleBacktest))
	mux.HandleFunc("GET /api/backtest", s.timed("backtest_list", s.handleListBacktests))
	mux.HandleFunc("GET /api/backtest/{id}", s.timed("backtest_get", s.handleGetBacktest))
	mux.HandleFunc("POST /api/analytics", s.timed("analytics", s.handleAnalytics))
	mux.HandleFunc("POST /api/risk/validate", s.timed("risk_validate", s.handleRiskValidate))
	mux.HandleFunc("GET /api/risk/limits", s.handleGetLimits)
	mux.HandleFunc("POST /api/risk/limits", s.totp.Require(s.handleSetLimits))
	mux.HandleFunc("GET /api/portfolio", s.timed("portfolio", s.handlePortfolio))
	mux.HandleFunc("GET /api/portfolio/fills", s.handleListFills)
	mux.HandleFunc("POST /api/portfolio/fills", s.totp.Require(s.handleReportFill))
	mux.HandleFunc("POST /api/orders", s.totp.Require(s.timed("orders", s.handlePlaceOrder)))
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /ws/backtest", s.handleWSBacktest)
	if s.deps.Health != nil {
		mux.Handle("GET /healthz", s.deps.Health)
	}

	var h http.Handler = mux
	h = requestLogging(s.log)(h)
	h = cors(s.cfg.Gateway.CORSOrigins)(h)
	return h
}

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("gateway listening", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("gateway: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("gateway shutting down")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) timed(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		h(w, r)
		s.latency.Record(route, time.Since(start))
	}
}
