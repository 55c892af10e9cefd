// Package metrics holds the Prometheus collectors and the /healthz state.
package metrics

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the analytics service.
type Metrics struct {
	// Backtest simulator
	BacktestRuns     *prometheus.CounterVec // labels: status
	BarsProcessed    prometheus.Counter
	BacktestDuration prometheus.Histogram
	TradesTotal      prometheus.Counter
	ActiveRuns       prometheus.Gauge

	// Indicator library
	IndicatorComputeDur prometheus.Histogram
	IndicatorsTotal     prometheus.Counter

	// Risk validator
	RiskValidations *prometheus.CounterVec // labels: outcome=approved|rejected
	RiskViolations  *prometheus.CounterVec // labels: rule, severity

	AnalyticsRequests prometheus.Counter

	// Result cache
	CacheLookups *prometheus.CounterVec // labels: result=hit|miss|error

	// Circuit breaker
	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter
	RedisBufferedWrites      prometheus.Counter

	// Streaming
	WSClients     prometheus.Gauge
	WSSendDropped prometheus.Counter
}

// NewMetrics registers all metrics with reg and returns them. A nil reg
// uses the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		BacktestRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "qa_backtest_runs_total",
			Help: "Backtest runs finished, by terminal status",
		}, []string{"status"}),
		BarsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qa_backtest_bars_processed_total",
			Help: "Bars replayed by the backtest simulator",
		}),
		BacktestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "qa_backtest_duration_seconds",
			Help:    "Wall-clock duration of a backtest run",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}),
		TradesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qa_backtest_trades_total",
			Help: "Round-trip trades closed by the simulator",
		}),
		ActiveRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "qa_backtest_active_runs",
			Help: "Backtests currently running",
		}),

		IndicatorComputeDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "qa_indicator_compute_duration_seconds",
			Help:    "Indicator batch compute latency per request",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}),
		IndicatorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qa_indicators_total",
			Help: "Total indicator series computed",
		}),

		RiskValidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "qa_risk_validations_total",
			Help: "Pre-trade risk validations, by outcome",
		}, []string{"outcome"}),
		RiskViolations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "qa_risk_violations_total",
			Help: "Risk rule violations, by rule and severity",
		}, []string{"rule", "severity"}),

		AnalyticsRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qa_analytics_requests_total",
			Help: "Portfolio analytics computations",
		}),

		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "qa_result_cache_lookups_total",
			Help: "Backtest result cache lookups, by result",
		}, []string{"result"}),

		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "qa_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qa_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
		RedisBufferedWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qa_redis_buffered_writes_total",
			Help: "Writes buffered locally during Redis circuit breaker open state",
		}),

		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "qa_ws_clients",
			Help: "Connected backtest stream clients",
		}),
		WSSendDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qa_ws_send_dropped_total",
			Help: "Stream events dropped because a client was too slow",
		}),
	}

	reg.MustRegister(
		m.BacktestRuns,
		m.BarsProcessed,
		m.BacktestDuration,
		m.TradesTotal,
		m.ActiveRuns,
		m.IndicatorComputeDur,
		m.IndicatorsTotal,
		m.RiskValidations,
		m.RiskViolations,
		m.AnalyticsRequests,
		m.CacheLookups,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
		m.RedisBufferedWrites,
		m.WSClients,
		m.WSSendDropped,
	)

	return m
}

// Server exposes /metrics for one gatherer and /healthz.
type Server struct {
	srv *http.Server
}

// NewServer creates a metrics and health server. A nil gatherer serves the
// default registry.
func NewServer(addr string, g prometheus.Gatherer, health *HealthStatus) *Server {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	mux.Handle("/healthz", health)

	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

// Start listens in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] serving /metrics and /healthz on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[metrics] listener stopped: %v", err)
		}
	}()
}

// Stop shuts the server down, waiting for in-flight scrapes.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
