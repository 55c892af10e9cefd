// cmd/importbars loads OHLCV CSV files into the SQLite bar store,
// optionally resampling them on the way in, and imports instrument
// reference data used for sector exposure.
//
// Usage:
//
//	go run ./cmd/importbars --symbol=INFY --interval=1m --resample=5m data/INFY_1m.csv
//	go run ./cmd/importbars --instruments=data/instruments.csv
package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"trading-analytics/config"
	"trading-analytics/internal/logger"
	"trading-analytics/internal/marketdata/csvbars"
	"trading-analytics/internal/marketdata/resample"
	"trading-analytics/internal/markethours"
	"trading-analytics/internal/model"
	sqlitestore "trading-analytics/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	cfgPath := flag.String("config", os.Getenv("QA_CONFIG"), "Path to a TOML or YAML config file")
	dbPath := flag.String("db", "", "SQLite database (default: storage.sqlite_path)")
	symbol := flag.String("symbol", "", "Symbol the CSV rows belong to")
	interval := flag.String("interval", "1d", "Interval of the CSV rows")
	resampleTo := flag.String("resample", "", "Store bars resampled to this coarser interval")
	sessionOnly := flag.Bool("session-only", false, "Drop intraday rows outside NSE trading hours")
	instruments := flag.String("instruments", "", "CSV of symbol,exchange,name,sector,lot_size to upsert")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	lg := logger.InitWriter(os.Stderr, "importbars", logger.ParseLevel(cfg.App.LogLevel))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *dbPath == "" {
		*dbPath = cfg.Storage.SQLitePath
	}
	w, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: *dbPath})
	if err != nil {
		lg.Error("open store", slog.Any("error", err))
		os.Exit(1)
	}
	defer w.Close()

	if *instruments != "" {
		n, err := importInstruments(ctx, w, *instruments)
		if err != nil {
			lg.Error("import instruments", slog.Any("error", err))
			os.Exit(1)
		}
		lg.Info("instruments imported", slog.Int("count", n))
	}

	if flag.NArg() == 0 {
		if *instruments == "" {
			flag.Usage()
			os.Exit(2)
		}
		return
	}
	if *symbol == "" {
		lg.Error("--symbol is required with bar files")
		os.Exit(2)
	}
	src, err := markethours.ParseInterval(*interval)
	if err != nil {
		lg.Error("bad --interval", slog.Any("error", err))
		os.Exit(2)
	}
	var dst time.Duration
	if *resampleTo != "" {
		if dst, err = markethours.ParseInterval(*resampleTo); err != nil {
			lg.Error("bad --resample", slog.Any("error", err))
			os.Exit(2)
		}
	}

	opts := csvbars.Options{SessionOnly: *sessionOnly}
	for _, path := range flag.Args() {
		start := time.Now()
		read, stored, err := importFile(ctx, w, path, *symbol, src, dst, opts, lg)
		if err != nil {
			lg.Error("import failed", slog.String("file", path), slog.Any("error", err))
			os.Exit(1)
		}
		lg.Info("file imported",
			slog.String("file", path),
			slog.String("symbol", *symbol),
			slog.Int("rows", read),
			slog.Int("bars", stored),
			slog.Duration("elapsed", time.Since(start)),
		)
	}
}

// importFile streams path through an optional resampler into the store.
// dst of zero stores bars at the source interval.
func importFile(ctx context.Context, w *sqlitestore.Writer, path, symbol string, src, dst time.Duration,
	opts csvbars.Options, log *slog.Logger) (read, stored int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	var b *resample.Builder
	if dst > 0 {
		if dst <= src {
			return 0, 0, fmt.Errorf("resample interval %v must be coarser than %v", dst, src)
		}
		if b, err = resample.New(dst); err != nil {
			return 0, 0, err
		}
		b.OnStale = func(bar model.Bar) {
			log.Warn("out-of-order bar skipped", slog.Time("ts", bar.TS))
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	parsed := make(chan model.Bar, 1024)
	g.Go(func() error {
		defer close(parsed)
		n, err := csvbars.Stream(ctx, f, opts, parsed)
		read = n
		return err
	})

	in, interval := (<-chan model.Bar)(parsed), src
	if b != nil {
		out := make(chan model.Bar, 256)
		g.Go(func() error { return b.Run(ctx, parsed, out) })
		in, interval = out, dst
	}

	g.Go(func() error {
		n, err := w.Run(ctx, symbol, interval, in)
		stored = n
		return err
	})
	err = g.Wait()
	return read, stored, err
}

// importInstruments upserts reference rows. The header must name at least
// symbol and sector; exchange, name and lot_size are optional.
func importInstruments(ctx context.Context, w *sqlitestore.Writer, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	list, err := parseInstruments(f)
	if err != nil {
		return 0, err
	}
	return len(list), w.UpsertInstruments(ctx, list)
}

func parseInstruments(r io.Reader) ([]model.Instrument, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("instruments: header: %w", err)
	}
	idx := map[string]int{}
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := idx["symbol"]; !ok {
		return nil, errors.New("instruments: missing symbol column")
	}
	get := func(rec []string, col string) string {
		if i, ok := idx[col]; ok && i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}

	var out []model.Instrument
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("instruments: line %d: %w", line, err)
		}
		in := model.Instrument{
			Symbol:   get(rec, "symbol"),
			Exchange: get(rec, "exchange"),
			Name:     get(rec, "name"),
			Sector:   get(rec, "sector"),
			LotSize:  1,
		}
		if in.Symbol == "" {
			return nil, fmt.Errorf("instruments: line %d: empty symbol", line)
		}
		if s := get(rec, "lot_size"); s != "" {
			if in.LotSize, err = strconv.ParseFloat(s, 64); err != nil {
				return nil, fmt.Errorf("instruments: line %d: lot_size: %w", line, err)
			}
		}
		out = append(out, in)
	}
}
