package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"trading-analytics/internal/backtest"
	"trading-analytics/internal/logger"
	"trading-analytics/internal/model"
	"trading-analytics/internal/strategy"
	redisstore "trading-analytics/internal/store/redis"
)

// BacktestRequest configures one run. Zero-valued overrides fall back to
// the service's [backtest] config.
type BacktestRequest struct {
	StrategyConfig strategy.Config        `json:"strategy_config"`
	Series         SeriesInput            `json:"series"`
	Pair           *SeriesInput           `json:"pair,omitempty"`
	InitialCapital float64                `json:"initial_capital,omitempty"`
	Sizing         *backtest.SizingPolicy `json:"position_sizing_policy,omitempty"`
	SlippageBps    *float64               `json:"slippage_bps,omitempty"`
	CommissionBps  *float64               `json:"commission_bps,omitempty"`
	AllowShort     *bool                  `json:"allow_short,omitempty"`
	Pyramiding     *bool                  `json:"pyramiding,omitempty"`
	LotSize        float64                `json:"lot_size,omitempty"`
}

func (req *BacktestRequest) config(base backtest.Config) backtest.Config {
	cfg := base
	if req.InitialCapital != 0 {
		cfg.InitialCapital = req.InitialCapital
	}
	if req.Sizing != nil {
		cfg.Sizing = *req.Sizing
	}
	if req.SlippageBps != nil {
		cfg.SlippageBps = *req.SlippageBps
	}
	if req.CommissionBps != nil {
		cfg.CommissionBps = *req.CommissionBps
	}
	if req.AllowShort != nil {
		cfg.AllowShort = *req.AllowShort
	}
	if req.Pyramiding != nil {
		cfg.Pyramiding = *req.Pyramiding
	}
	if req.LotSize != 0 {
		cfg.LotSize = req.LotSize
	}
	return cfg
}

func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	var req BacktestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, err)
		return
	}
	res, err := s.runBacktest(r.Context(), &req, nil)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// runBacktest resolves the inputs, executes the run and persists the
// result. extra, when set, observes the run alongside the live publisher.
func (s *Server) runBacktest(ctx context.Context, req *BacktestRequest, extra backtest.Observer, opts ...backtest.Option) (*backtest.Result, error) {
	series, err := s.resolveSeries(ctx, &req.Series)
	if err != nil {
		return nil, err
	}
	var pair *model.Series
	if req.Pair != nil {
		if pair, err = s.resolveSeries(ctx, req.Pair); err != nil {
			return nil, err
		}
	}

	if h := s.deps.Health; h != nil {
		h.RunStarted()
		defer h.RunFinished()
	}

	var observers multiObserver
	if s.deps.Publisher != nil {
		observers = append(observers, s.deps.Publisher)
	}
	if extra != nil {
		observers = append(observers, extra)
	}
	all := []backtest.Option{
		backtest.WithLogger(s.log),
		backtest.WithMetrics(s.deps.Metrics),
		backtest.WithNotifier(s.deps.Notifier),
	}
	if len(observers) > 0 {
		all = append(all, backtest.WithObserver(observers))
	}
	run := backtest.NewRun(req.config(s.cfg.BacktestConfig(req.StrategyConfig)), append(all, opts...)...)
	ctx = logger.WithRunID(ctx, run.ID())

	res, err := run.Execute(ctx, series, pair)
	if err != nil {
		return nil, err
	}
	s.persist(ctx, res)
	return res, nil
}

// persist journals and caches res. Failures are logged; the caller
// already has the result.
func (s *Server) persist(ctx context.Context, res *backtest.Result) {
	rec, err := res.Record()
	if err == nil {
		err = s.deps.Journal.SaveRun(ctx, rec)
	}
	if err != nil {
		s.log.Error("journal run failed", append(logger.LogWithRun(ctx), slog.Any("error", err))...)
	}

	if s.deps.Cache == nil {
		return
	}
	data, err := json.Marshal(res)
	if err == nil {
		err = s.deps.Cache.PutResult(ctx, res.RunID, data)
	}
	if err != nil {
		s.log.Warn("cache result failed", append(logger.LogWithRun(ctx), slog.Any("error", err))...)
	}
}

// storedRun is a journaled run with its metrics document inlined.
type storedRun struct {
	*model.RunRecord
	Metrics json.RawMessage `json:"metrics,omitempty"`
	Source  string          `json:"source"`
}

func (s *Server) handleGetBacktest(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "run id is required")
		return
	}

	if s.deps.Cache != nil {
		data, err := s.deps.Cache.GetResult(r.Context(), id)
		switch {
		case err == nil:
			s.cacheLookup("hit")
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Result-Source", "cache")
			w.WriteHeader(http.StatusOK)
			w.Write(data)
			return
		case errors.Is(err, redisstore.ErrCacheMiss):
			s.cacheLookup("miss")
		default:
			s.cacheLookup("error")
			s.log.Warn("cache lookup failed", slog.String("run_id", id), slog.Any("error", err))
		}
	}

	rec, err := s.deps.Journal.LoadRun(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	out := storedRun{RunRecord: rec, Source: "journal"}
	if len(rec.MetricsJSON) > 0 {
		out.Metrics = json.RawMessage(rec.MetricsJSON)
	}
	w.Header().Set("X-Result-Source", "journal")
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) cacheLookup(result string) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.CacheLookups.WithLabelValues(result).Inc()
	}
}

func (s *Server) handleListBacktests(w http.ResponseWriter, r *http.Request) {
	runs, err := s.deps.Journal.RecentRuns(r.Context(), queryInt(r, "limit", 20, 500))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// multiObserver fans progress out to several observers in order.
type multiObserver []backtest.Observer

func (m multiObserver) OnEquity(runID string, p model.EquityPoint) {
	for _, o := range m {
		o.OnEquity(runID, p)
	}
}

func (m multiObserver) OnTrade(runID string, t model.Trade) {
	for _, o := range m {
		o.OnTrade(runID, t)
	}
}
