// cmd/backtest runs strategies over bars stored in SQLite and prints a
// summary per run. A --sweep runs one backtest per parameter value in
// parallel.
//
// Usage:
//
//	go run ./cmd/backtest --symbol=INFY --interval=1d --strategy=SMA_Crossover --params=fast=10,slow=30
//	go run ./cmd/backtest --symbol=INFY --interval=5m --resample=15m --sweep=slow=20:60:10 --journal
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"trading-analytics/config"
	"trading-analytics/internal/backtest"
	"trading-analytics/internal/logger"
	"trading-analytics/internal/marketdata/resample"
	"trading-analytics/internal/markethours"
	"trading-analytics/internal/model"
	"trading-analytics/internal/notification"
	"trading-analytics/internal/strategy"
	redisstore "trading-analytics/internal/store/redis"
	sqlitestore "trading-analytics/internal/store/sqlite"
)

type options struct {
	configPath string
	dbPath     string
	symbol     string
	pairSymbol string
	interval   string
	resampleTo string
	from, to   string
	strategy   string
	params     string
	capital    float64
	sweep      string
	parallel   int
	journal    bool
	cache      bool
	jsonOut    bool
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	var o options
	flag.StringVar(&o.configPath, "config", os.Getenv("QA_CONFIG"), "Path to a TOML or YAML config file")
	flag.StringVar(&o.dbPath, "db", "", "SQLite database (default: storage.sqlite_path)")
	flag.StringVar(&o.symbol, "symbol", "", "Symbol to test")
	flag.StringVar(&o.pairSymbol, "pair", "", "Second leg for Pairs_Trading")
	flag.StringVar(&o.interval, "interval", "1d", "Stored bar interval (1d, 5m, ONE_MINUTE, ...)")
	flag.StringVar(&o.resampleTo, "resample", "", "Resample to a coarser interval before testing")
	flag.StringVar(&o.from, "from", "", "Start date YYYY-MM-DD (IST, inclusive)")
	flag.StringVar(&o.to, "to", "", "End date YYYY-MM-DD (IST, exclusive)")
	flag.StringVar(&o.strategy, "strategy", string(strategy.KindSMACrossover), "Strategy: SMA_Crossover, Mean_Reversion, Momentum, Pairs_Trading")
	flag.StringVar(&o.params, "params", "", "Strategy params: name=value,...")
	flag.Float64Var(&o.capital, "capital", 0, "Initial capital (default: backtest.initial_capital)")
	flag.StringVar(&o.sweep, "sweep", "", "Parameter sweep: name=from:to:step")
	flag.IntVar(&o.parallel, "parallel", 0, "Concurrent runs in a sweep (default: backtest.parallelism)")
	flag.BoolVar(&o.journal, "journal", false, "Save results to the SQLite run journal")
	flag.BoolVar(&o.cache, "cache", false, "Publish progress and results to Redis")
	flag.BoolVar(&o.jsonOut, "json", false, "Print results as JSON instead of a summary")
	flag.Parse()

	cfg, err := config.Load(o.configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	lg := logger.InitWriter(os.Stderr, "backtest", logger.ParseLevel(cfg.App.LogLevel))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if err := run(ctx, cfg, o, lg); err != nil {
		lg.Error("backtest failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, o options, log *slog.Logger) error {
	if o.symbol == "" {
		return errors.New("--symbol is required")
	}
	if err := markethours.AddHolidays(cfg.Analytics.Holidays...); err != nil {
		return err
	}
	kind, err := strategy.ParseKind(o.strategy)
	if err != nil {
		return err
	}
	params, err := parseParams(o.params)
	if err != nil {
		return err
	}
	interval, err := markethours.ParseInterval(o.interval)
	if err != nil {
		return err
	}
	from, err := parseDate(o.from)
	if err != nil {
		return err
	}
	to, err := parseDate(o.to)
	if err != nil {
		return err
	}

	dbPath := o.dbPath
	if dbPath == "" {
		dbPath = cfg.Storage.SQLitePath
	}
	store, err := sqlitestore.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	load := func(symbol string) (*model.Series, error) {
		s, err := store.ReadSeries(ctx, symbol, interval, from, to)
		if err != nil {
			return nil, err
		}
		if o.resampleTo == "" {
			return s, nil
		}
		target, err := markethours.ParseInterval(o.resampleTo)
		if err != nil {
			return nil, err
		}
		return resample.Series(s, target)
	}
	series, err := load(o.symbol)
	if err != nil {
		return err
	}
	var pair *model.Series
	if o.pairSymbol != "" {
		if pair, err = load(o.pairSymbol); err != nil {
			return err
		}
	}

	btCfg := cfg.BacktestConfig(strategy.Config{Kind: kind, Params: params})
	if o.capital > 0 {
		btCfg.InitialCapital = o.capital
	}
	base := backtest.Job{Name: string(kind), Config: btCfg, Series: series, Pair: pair}
	jobs := []backtest.Job{base}
	if o.sweep != "" {
		name, values, err := backtest.ParseSweep(o.sweep)
		if err != nil {
			return err
		}
		jobs = backtest.SweepJobs(base, name, values)
	}

	opts := []backtest.Option{
		backtest.WithLogger(log),
		backtest.WithNotifier(notification.NewLogNotifier()),
	}
	var cache *redisstore.BufferedCache
	if o.cache {
		c, closeCache, err := openCache(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeCache()
		cache = c
		opts = append(opts, backtest.WithObserver(cache))
	}

	parallel := o.parallel
	if parallel <= 0 {
		parallel = cfg.Backtest.Parallelism
	}
	start := time.Now()
	results := backtest.RunBatch(ctx, jobs, parallel, opts...)

	failed := 0
	for _, br := range results {
		if br.Err != nil {
			failed++
			log.Error("run failed", slog.String("job", br.Job), slog.Any("error", br.Err))
			continue
		}
		if o.journal {
			if err := saveRun(ctx, store, br.Result); err != nil {
				log.Error("journal failed", slog.String("run_id", br.Result.RunID), slog.Any("error", err))
			}
		}
		if cache != nil {
			if data, err := json.Marshal(br.Result); err == nil {
				if err := cache.PutResult(ctx, br.Result.RunID, data); err != nil {
					log.Warn("cache failed", slog.String("run_id", br.Result.RunID), slog.Any("error", err))
				}
			}
		}
	}

	if o.jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return err
		}
	} else {
		for _, br := range results {
			if br.Result != nil {
				printSummary(br.Job, series, br.Result)
			}
		}
		fmt.Printf("%d run(s), %d failed, %s\n", len(results), failed, time.Since(start).Round(time.Millisecond))
	}
	if failed == len(results) {
		return fmt.Errorf("all %d run(s) failed", failed)
	}
	return nil
}

func saveRun(ctx context.Context, store *sqlitestore.Store, res *backtest.Result) error {
	rec, err := res.Record()
	if err != nil {
		return err
	}
	return store.SaveRun(ctx, rec)
}

func openCache(ctx context.Context, cfg *config.Config) (*redisstore.BufferedCache, func(), error) {
	if !cfg.RedisEnabled() {
		return nil, nil, errors.New("--cache needs storage.redis_addr")
	}
	w, err := redisstore.New(redisstore.WriterConfig{
		Addr:      cfg.Storage.RedisAddr,
		Password:  cfg.Storage.RedisPassword,
		DB:        cfg.Storage.RedisDB,
		ResultTTL: cfg.Storage.ResultTTL,
	})
	if err != nil {
		return nil, nil, err
	}
	cb := redisstore.NewCircuitBreaker(cfg.Storage.BreakerFails, cfg.Storage.BreakerReset)
	bc := redisstore.NewBufferedCache(ctx, w, nil, cb, 0)
	return bc, func() {
		bc.Flush()
		w.Close()
	}, nil
}

func printSummary(job string, s *model.Series, r *backtest.Result) {
	first, last := "-", "-"
	if n := s.Len(); n > 0 {
		first = s.Bars[0].TS.In(markethours.IST).Format("2006-01-02")
		last = s.Bars[n-1].TS.In(markethours.IST).Format("2006-01-02")
	}
	fmt.Println()
	fmt.Println("╔══════════════════════════════════════════════╗")
	fmt.Printf("║  %-44s║\n", truncate(job, 44))
	fmt.Println("╠══════════════════════════════════════════════╣")
	fmt.Printf("║  Run:           %-28s ║\n", truncate(r.RunID, 28))
	fmt.Printf("║  Symbol:        %-28s ║\n", r.Symbol)
	fmt.Printf("║  Range:         %-28s ║\n", first+" → "+last)
	fmt.Printf("║  Bars:          %-28d ║\n", len(r.EquityCurve))
	fmt.Printf("║  Trades:        %-28d ║\n", len(r.Trades))
	fmt.Printf("║  Final equity:  %-28.2f ║\n", r.FinalEquity)
	fmt.Printf("║  Total return:  %-28s ║\n", pct(r.TotalReturn))
	fmt.Printf("║  Win rate:      %-28s ║\n", pct(r.WinRate))
	fmt.Printf("║  Sharpe:        %-28.3f ║\n", r.Metrics.Sharpe)
	fmt.Printf("║  Max drawdown:  %-28s ║\n", pct(r.Metrics.MaxDrawdown))
	fmt.Println("╚══════════════════════════════════════════════╝")
}

func pct(v float64) string { return strconv.FormatFloat(v*100, 'f', 2, 64) + "%" }

func truncate(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// parseParams parses "fast=10,slow=30".
func parseParams(s string) (map[string]float64, error) {
	out := map[string]float64{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("param %q: want name=value", part)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("param %q: %w", part, err)
		}
		out[strings.TrimSpace(k)] = f
	}
	return out, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, markethours.IST)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: %w", s, err)
	}
	return t, nil
}
