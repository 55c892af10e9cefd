package gateway

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"runtime"
	"strings"
	"time"

	"trading-analytics/internal/analytics"
	"trading-analytics/internal/indicator"
	"trading-analytics/internal/markethours"
	"trading-analytics/internal/model"
	"trading-analytics/internal/risk"
)

// IndicatorsRequest asks for indicator series over one price series.
type IndicatorsRequest struct {
	Series     SeriesInput `json:"series"`
	Indicators []string    `json:"indicators"` // "SMA:20", "MACD:12:26:9", "RSI"
}

// IndicatorsResponse carries index-aligned outputs; warm-up points are null.
type IndicatorsResponse struct {
	Symbol     string            `json:"symbol"`
	Timestamps []time.Time       `json:"timestamps"`
	Values     map[string]Values `json:"values"`
	Latest     map[string]any    `json:"latest"`
	RSIZone    map[string]string `json:"rsi_zone,omitempty"`
}

func (s *Server) handleIndicators(w http.ResponseWriter, r *http.Request) {
	var req IndicatorsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, err)
		return
	}
	specs, err := indicator.ParseSpecs(strings.Join(req.Indicators, ","))
	if err != nil {
		writeErr(w, err)
		return
	}
	if len(specs) == 0 {
		writeError(w, http.StatusBadRequest, "no indicators requested")
		return
	}
	series, err := s.resolveSeries(r.Context(), &req.Series)
	if err != nil {
		writeErr(w, err)
		return
	}

	start := time.Now()
	set, err := indicator.Compute(series, specs)
	if err != nil {
		writeErr(w, err)
		return
	}
	if m := s.deps.Metrics; m != nil {
		m.IndicatorComputeDur.Observe(time.Since(start).Seconds())
		m.IndicatorsTotal.Add(float64(len(specs)))
	}

	resp := IndicatorsResponse{
		Symbol:     series.Symbol,
		Timestamps: make([]time.Time, series.Len()),
		Values:     make(map[string]Values, len(set)),
		Latest:     make(map[string]any, len(set)),
	}
	for i, b := range series.Bars {
		resp.Timestamps[i] = b.TS
	}
	for name, vals := range set {
		resp.Values[name] = Values(vals)
		var last any
		if n := len(vals); n > 0 && indicator.Defined(vals[n-1]) {
			last = vals[n-1]
		}
		resp.Latest[name] = last
		if strings.HasPrefix(name, "RSI") && len(vals) > 0 {
			if resp.RSIZone == nil {
				resp.RSIZone = make(map[string]string)
			}
			resp.RSIZone[name] = indicator.RSIZone(vals[len(vals)-1])
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// AnalyticsRequest is an analytics.Request that may target the live book.
type AnalyticsRequest struct {
	analytics.Request
	UseBook bool `json:"use_book,omitempty"`
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	var req AnalyticsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if req.UseBook {
		snap := s.deps.Book.Snapshot()
		req.Snapshot = &snap
	}
	for i, h := range req.Histories {
		if h == nil {
			writeError(w, http.StatusBadRequest, "null history")
			return
		}
		valid, err := model.NewSeries(h.Symbol, h.Interval, h.Bars)
		if err != nil {
			writeErr(w, err)
			return
		}
		req.Histories[i] = valid
	}
	if req.PeriodsPerYear == 0 {
		req.PeriodsPerYear = s.cfg.Analytics.PeriodsPerYear
	}
	if req.RiskFreeRate == 0 {
		req.RiskFreeRate = s.cfg.Analytics.RiskFreeRate
	}
	if req.Thresholds == nil {
		th := s.cfg.Analytics.Thresholds
		req.Thresholds = &th
	}
	if req.Snapshot != nil && req.Sectors == nil {
		req.Sectors = s.sectors(r.Context())
	}

	m := analytics.Analyze(req.Request)
	if s.deps.Metrics != nil {
		s.deps.Metrics.AnalyticsRequests.Inc()
	}
	writeJSON(w, http.StatusOK, m)
}

// sectors loads the sector map from instrument reference data; failures
// leave every position unclassified.
func (s *Server) sectors(ctx context.Context) map[string]string {
	instruments, err := s.deps.Series.Instruments(ctx)
	if err != nil {
		s.log.Warn("instrument lookup failed", slog.Any("error", err))
		return nil
	}
	return model.SectorMap(instruments)
}

// RiskValidateRequest validates an order against a snapshot and limits.
// Missing snapshot or limits default to the live book and active limits.
type RiskValidateRequest struct {
	Snapshot *model.PortfolioSnapshot `json:"portfolio_snapshot,omitempty"`
	Order    model.Order              `json:"proposed_order"`
	Limits   *model.RiskLimits        `json:"risk_limits,omitempty"`
}

func (s *Server) handleRiskValidate(w http.ResponseWriter, r *http.Request) {
	var req RiskValidateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, err)
		return
	}

	var (
		a   model.RiskAssessment
		err error
	)
	if req.Snapshot == nil && req.Limits == nil {
		a, err = s.deps.Guard.Check(req.Order)
	} else {
		snap := s.deps.Book.Snapshot()
		if req.Snapshot != nil {
			snap = *req.Snapshot
		}
		limits := s.deps.Guard.Limits()
		if req.Limits != nil {
			limits = *req.Limits
		}
		a, err = risk.Validate(snap, req.Order, limits)
		if err == nil {
			s.observeRisk(a)
		}
	}
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) observeRisk(a model.RiskAssessment) {
	m := s.deps.Metrics
	if m == nil {
		return
	}
	outcome := "approved"
	if !a.Approved {
		outcome = "rejected"
	}
	m.RiskValidations.WithLabelValues(outcome).Inc()
	for _, v := range a.Violations {
		m.RiskViolations.WithLabelValues(v.Rule, string(v.Severity)).Inc()
	}
}

func (s *Server) handleGetLimits(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Guard.Limits())
}

func (s *Server) handleSetLimits(w http.ResponseWriter, r *http.Request) {
	var limits model.RiskLimits
	if err := decodeJSON(w, r, &limits); err != nil {
		writeErr(w, err)
		return
	}
	if err := s.deps.Guard.SetLimits(limits); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, limits)
}

// PortfolioResponse is the live book with its exposure analysis.
type PortfolioResponse struct {
	Snapshot model.PortfolioSnapshot `json:"snapshot"`
	Summary  analytics.Summary       `json:"summary"`
	Exposure analytics.Exposure      `json:"exposure"`
	Drawdown float64                 `json:"drawdown"`
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	snap := s.deps.Book.Snapshot()
	writeJSON(w, http.StatusOK, PortfolioResponse{
		Snapshot: snap,
		Summary:  analytics.Summarize(snap),
		Exposure: analytics.AnalyzeExposure(snap, s.sectors(r.Context())),
		Drawdown: s.deps.Book.Drawdown(),
	})
}

func (s *Server) handleListFills(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100, 1000)
	if s.deps.Fills != nil {
		fills, err := s.deps.Fills.RecentFills(limit)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, fills)
		return
	}
	fills := s.deps.Book.Fills()
	if len(fills) > limit {
		fills = fills[len(fills)-limit:]
	}
	writeJSON(w, http.StatusOK, fills)
}

// handleReportFill books a fill executed outside the paper gateway.
func (s *Server) handleReportFill(w http.ResponseWriter, r *http.Request) {
	var fill model.Fill
	if err := decodeJSON(w, r, &fill); err != nil {
		writeErr(w, err)
		return
	}
	switch {
	case fill.Symbol == "":
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	case fill.Side != model.SideBuy && fill.Side != model.SideSell:
		writeError(w, http.StatusBadRequest, "side must be BUY or SELL")
		return
	case !(fill.Quantity > 0) || !(fill.Price > 0) || fill.Commission < 0 ||
		math.IsInf(fill.Quantity, 0) || math.IsInf(fill.Price, 0):
		writeError(w, http.StatusBadRequest, "quantity and price must be positive")
		return
	}
	if fill.TS.IsZero() {
		fill.TS = time.Now().UTC()
	}
	realized := s.deps.Book.Apply(fill)
	s.log.Info("fill reported",
		slog.String("symbol", fill.Symbol),
		slog.String("side", string(fill.Side)),
		slog.Float64("qty", fill.Quantity),
		slog.Float64("price", fill.Price),
	)
	writeJSON(w, http.StatusOK, map[string]any{
		"realized_pnl": realized,
		"snapshot":     s.deps.Book.Snapshot(),
	})
}

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var order model.Order
	if err := decodeJSON(w, r, &order); err != nil {
		writeErr(w, err)
		return
	}
	d, err := s.deps.Guard.Place(r.Context(), order)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// StatsResponse reports request latency and runtime figures.
type StatsResponse struct {
	Latency    map[string]LatencySummary `json:"latency"`
	WSClients  int64                     `json:"ws_clients"`
	Goroutines int                       `json:"goroutines"`
	HeapMB     float64                   `json:"heap_alloc_mb"`
	UptimeSec  int64                     `json:"uptime_sec"`
	Market     markethours.Session       `json:"market"`
	MarketNote string                    `json:"market_note"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	now := time.Now()
	session := markethours.SessionAt(now)
	writeJSON(w, http.StatusOK, StatsResponse{
		Latency:    s.latency.Summary(),
		WSClients:  s.wsClients.Load(),
		Goroutines: runtime.NumGoroutine(),
		HeapMB:     float64(ms.HeapAlloc) / (1 << 20),
		UptimeSec:  int64(now.Sub(s.start).Seconds()),
		Market:     session,
		MarketNote: session.Describe(now),
	})
}
