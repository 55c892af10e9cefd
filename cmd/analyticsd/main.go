// cmd/analyticsd serves indicators, backtests, portfolio analytics and
// pre-trade risk checks over HTTP and WebSocket.
//
// Usage:
//
//	go run ./cmd/analyticsd --config=config/analyticsd.toml
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"trading-analytics/config"
	"trading-analytics/internal/execution"
	"trading-analytics/internal/gateway"
	"trading-analytics/internal/logger"
	"trading-analytics/internal/markethours"
	"trading-analytics/internal/metrics"
	"trading-analytics/internal/notification"
	"trading-analytics/internal/portfolio"
	"trading-analytics/internal/risk"
	redisstore "trading-analytics/internal/store/redis"
	sqlitestore "trading-analytics/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	cfgPath := flag.String("config", os.Getenv("QA_CONFIG"), "Path to a TOML or YAML config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	lg := logger.Init(cfg.App.Service, logger.ParseLevel(cfg.App.LogLevel))
	if err := run(cfg, lg); err != nil {
		lg.Error("analyticsd exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := markethours.AddHolidays(cfg.Analytics.Holidays...); err != nil {
		return fmt.Errorf("holidays: %w", err)
	}

	prom := metrics.NewMetrics(prometheus.DefaultRegisterer)
	health := metrics.NewHealthStatus(cfg.RedisEnabled())
	metricsSrv := metrics.NewServer(cfg.Gateway.MetricsAddr, prometheus.DefaultGatherer, health)
	metricsSrv.Start()

	for _, p := range []string{cfg.Storage.SQLitePath, cfg.Storage.JournalPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return fmt.Errorf("data dir: %w", err)
		}
	}
	store, err := sqlitestore.Open(cfg.Storage.SQLitePath)
	if err != nil {
		return err
	}
	defer store.Close()
	health.Set(metrics.DepSQLite, true)
	health.Watch(metrics.DepSQLite, metrics.SQLCheck(store.DB()))

	fills, err := execution.NewJournal(cfg.Storage.JournalPath)
	if err != nil {
		return err
	}
	defer fills.Close()

	notifiers := notification.Multi{notification.NewLogNotifier()}
	if cfg.Notify.WebhookURL != "" {
		notifiers = append(notifiers, notification.NewWebhookNotifier(cfg.Notify.WebhookURL, cfg.Notify.Timeout))
	}

	book := portfolio.NewBook(cfg.Risk.PaperCash)
	if err := replayFills(ctx, fills, book, cfg.Risk.DailyResetH); err != nil {
		return err
	}
	paper := execution.NewPaperGateway(execution.FillModel{
		SlippageBps:   cfg.Backtest.SlippageBps,
		CommissionBps: cfg.Backtest.CommissionBps,
	}, fills)
	guard, err := risk.NewGuard(book, paper, cfg.Risk.Limits, notifiers, prom, log)
	if err != nil {
		return err
	}
	go resetDaily(ctx, book, cfg.Risk.DailyResetH, log)

	deps := gateway.Deps{
		Config:   cfg,
		Series:   store,
		Journal:  store,
		Guard:    guard,
		Book:     book,
		Fills:    fills,
		Metrics:  prom,
		Health:   health,
		Notifier: notifiers,
		Logger:   log,
	}

	if cfg.RedisEnabled() {
		cache, closeRedis, err := openCache(ctx, cfg, prom, health, log)
		if err != nil {
			// The journal serves results without the cache.
			log.Warn("redis unavailable, continuing without cache", slog.Any("error", err))
		} else {
			defer closeRedis()
			deps.Cache = cache.BufferedCache
			deps.Publisher = cache.BufferedCache
			deps.Live = cache.reader
			health.Watch(metrics.DepRedis, metrics.RedisCheck(cache.writer.Client()))
		}
	}
	health.StartLivenessChecker(ctx, 10*time.Second)

	srv, err := gateway.NewServer(deps)
	if err != nil {
		return err
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	log.Info("analyticsd ready",
		slog.String("listen", cfg.Gateway.ListenAddr),
		slog.String("metrics", cfg.Gateway.MetricsAddr),
		slog.String("sqlite", cfg.Storage.SQLitePath),
		slog.Bool("redis", deps.Cache != nil),
		slog.Bool("totp", cfg.Gateway.TOTPSecret != ""),
	)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("gateway shutdown", slog.Any("error", err))
	}
	if err := metricsSrv.Stop(shutdownCtx); err != nil {
		log.Warn("metrics shutdown", slog.Any("error", err))
	}
	log.Info("analyticsd stopped")
	return nil
}

type redisCache struct {
	*redisstore.BufferedCache
	writer *redisstore.Writer
	reader *redisstore.Reader
}

// openCache connects the result cache behind a circuit breaker whose
// state is exported as metrics.
func openCache(ctx context.Context, cfg *config.Config, prom *metrics.Metrics, health *metrics.HealthStatus, log *slog.Logger) (*redisCache, func(), error) {
	w, err := redisstore.New(redisstore.WriterConfig{
		Addr:      cfg.Storage.RedisAddr,
		Password:  cfg.Storage.RedisPassword,
		DB:        cfg.Storage.RedisDB,
		ResultTTL: cfg.Storage.ResultTTL,
	})
	if err != nil {
		return nil, nil, err
	}
	r, err := redisstore.NewReader(redisstore.ReaderConfig{
		Addr:     cfg.Storage.RedisAddr,
		Password: cfg.Storage.RedisPassword,
		DB:       cfg.Storage.RedisDB,
	})
	if err != nil {
		w.Close()
		return nil, nil, err
	}
	health.Set(metrics.DepRedis, true)

	cb := redisstore.NewCircuitBreaker(cfg.Storage.BreakerFails, cfg.Storage.BreakerReset)
	cb.OnStateChange = func(from, to redisstore.State) {
		prom.RedisCircuitBreakerState.Set(float64(to))
		if to == redisstore.StateOpen {
			prom.RedisCircuitBreakerTrips.Inc()
		}
		health.Set(metrics.DepRedis, to != redisstore.StateOpen)
		log.Warn("redis circuit breaker", slog.String("from", from.String()), slog.String("to", to.String()))
	}
	bc := redisstore.NewBufferedCache(ctx, w, r, cb, 0)
	bc.OnBuffer = func() { prom.RedisBufferedWrites.Inc() }
	bc.OnFlush = func(n int) {
		log.Info("flushed buffered results", slog.Int("count", n))
	}

	closeAll := func() {
		if n := bc.Flush(); n > 0 {
			log.Info("flushed buffered results on shutdown", slog.Int("count", n))
		}
		r.Close()
		w.Close()
	}
	return &redisCache{BufferedCache: bc, writer: w, reader: r}, closeAll, nil
}

// replayFills rebuilds book from the journal. Fills since the most recent
// daily reset count toward today's realized P&L.
func replayFills(ctx context.Context, j *execution.Journal, book *portfolio.Book, hour int) error {
	recs, err := j.AllFills(ctx)
	if err != nil {
		return err
	}
	lastReset := prevReset(time.Now(), hour)
	reset := false
	for _, r := range recs {
		if !reset && !r.FilledAt.Before(lastReset) {
			book.ResetDaily()
			reset = true
		}
		book.Apply(r.Fill())
	}
	if !reset {
		book.ResetDaily()
	}
	slog.Info("book restored from journal", slog.Int("fills", len(recs)))
	return nil
}

// resetDaily clears the book's daily P&L at hour (IST) on trading days.
func resetDaily(ctx context.Context, book *portfolio.Book, hour int, log *slog.Logger) {
	for {
		next := nextReset(time.Now(), hour)
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			book.ResetDaily()
			log.Info("daily pnl reset", slog.Time("at", next))
		}
	}
}

func nextReset(now time.Time, hour int) time.Time {
	ist := now.In(markethours.IST)
	t := time.Date(ist.Year(), ist.Month(), ist.Day(), hour, 0, 0, 0, markethours.IST)
	if !t.After(ist) {
		t = t.AddDate(0, 0, 1)
	}
	for !markethours.IsTradingDay(t) {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

// prevReset returns the latest daily reset at or before now.
func prevReset(now time.Time, hour int) time.Time {
	ist := now.In(markethours.IST)
	t := time.Date(ist.Year(), ist.Month(), ist.Day(), hour, 0, 0, 0, markethours.IST)
	if t.After(ist) {
		t = t.AddDate(0, 0, -1)
	}
	for !markethours.IsTradingDay(t) {
		t = t.AddDate(0, 0, -1)
	}
	return t
}
