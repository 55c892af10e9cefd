// Package csvbars reads OHLCV bars from CSV files.
//
// The first row must be a header naming at least timestamp (or ts, date,
// datetime), open, high, low and close; volume is optional. Column order
// is free. Timestamps may be RFC 3339, "2006-01-02 15:04:05",
// "2006-01-02 15:04", "2006-01-02" or Unix seconds; zone-less values are
// read as IST.
package csvbars

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"trading-analytics/internal/markethours"
	"trading-analytics/internal/model"
)

// Options control filtering while reading.
type Options struct {
	// SessionOnly drops intraday bars outside NSE trading hours.
	SessionOnly bool
	// Sort orders rows by timestamp and drops duplicate timestamps
	// (last row wins) before validation.
	Sort bool
}

var layouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	time.DateOnly,
}

type columns struct {
	ts, open, high, low, close, volume int
}

func parseHeader(header []string) (columns, error) {
	cols := columns{-1, -1, -1, -1, -1, -1}
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "timestamp", "ts", "date", "datetime", "time":
			cols.ts = i
		case "open", "o":
			cols.open = i
		case "high", "h":
			cols.high = i
		case "low", "l":
			cols.low = i
		case "close", "c", "adj_close":
			if cols.close < 0 || strings.EqualFold(h, "close") {
				cols.close = i
			}
		case "volume", "vol", "v":
			cols.volume = i
		}
	}
	for name, idx := range map[string]int{"timestamp": cols.ts, "open": cols.open, "high": cols.high, "low": cols.low, "close": cols.close} {
		if idx < 0 {
			return cols, fmt.Errorf("csvbars: missing %s column", name)
		}
	}
	return cols, nil
}

// ParseTime parses a timestamp in any accepted format.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, markethours.IST); err == nil {
			return t, nil
		}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(n, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("csvbars: unrecognized timestamp %q", s)
}

// Stream parses rows from r and sends each bar to out in file order.
// It stops at the first malformed row. out is not closed.
func Stream(ctx context.Context, r io.Reader, opts Options, out chan<- model.Bar) (int, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return 0, fmt.Errorf("csvbars: read header: %w", err)
	}
	cols, err := parseHeader(header)
	if err != nil {
		return 0, err
	}

	sent := 0
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return sent, nil
		}
		if err != nil {
			return sent, fmt.Errorf("csvbars: line %d: %w", line, err)
		}
		bar, err := parseRow(rec, cols)
		if err != nil {
			return sent, fmt.Errorf("csvbars: line %d: %w", line, err)
		}
		if opts.SessionOnly && !inSession(bar.TS) {
			continue
		}
		select {
		case out <- bar:
			sent++
		case <-ctx.Done():
			return sent, ctx.Err()
		}
	}
}

// Read parses the whole file into a validated series.
func Read(r io.Reader, symbol string, interval time.Duration, opts Options) (*model.Series, error) {
	ch := make(chan model.Bar, 256)
	errCh := make(chan error, 1)
	go func() {
		_, err := Stream(context.Background(), r, opts, ch)
		close(ch)
		errCh <- err
	}()

	var bars []model.Bar
	for b := range ch {
		bars = append(bars, b)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	if opts.Sort {
		bars = sortDedup(bars)
	}
	return model.NewSeries(symbol, interval, bars)
}

func parseRow(rec []string, cols columns) (model.Bar, error) {
	var bar model.Bar
	ts, err := ParseTime(field(rec, cols.ts))
	if err != nil {
		return bar, err
	}
	bar.TS = ts

	for _, f := range []struct {
		name string
		idx  int
		dst  *float64
	}{
		{"open", cols.open, &bar.Open},
		{"high", cols.high, &bar.High},
		{"low", cols.low, &bar.Low},
		{"close", cols.close, &bar.Close},
		{"volume", cols.volume, &bar.Volume},
	} {
		if f.idx < 0 {
			continue
		}
		s := field(rec, f.idx)
		if s == "" && f.name == "volume" {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return bar, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = v
	}
	return bar, nil
}

func field(rec []string, idx int) string {
	if idx >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[idx])
}

// inSession keeps daily bars (midnight timestamps) and intraday bars
// inside market hours.
func inSession(t time.Time) bool {
	ist := t.In(markethours.IST)
	if ist.Hour() == 0 && ist.Minute() == 0 && ist.Second() == 0 {
		return markethours.IsTradingDay(ist)
	}
	return markethours.IsMarketOpen(ist)
}

func sortDedup(bars []model.Bar) []model.Bar {
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].TS.Before(bars[j].TS) })
	out := bars[:0]
	for _, b := range bars {
		if n := len(out); n > 0 && out[n-1].TS.Equal(b.TS) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	return out
}
