package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"trading-analytics/internal/marketdata/csvbars"
	sqlitestore "trading-analytics/internal/store/sqlite"
)

func TestImportFile_Resampled(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "INFY_1m.csv")
	var b strings.Builder
	b.WriteString("timestamp,open,high,low,close,volume\n")
	for i := 0; i < 10; i++ {
		ts := fmt.Sprintf("2026-03-03T09:%02d:00+05:30", 15+i)
		fmt.Fprintf(&b, "%s,%d,%d,%d,%d,100\n", ts, 100+i, 101+i, 99+i, 100+i)
	}
	if err := os.WriteFile(csvPath, []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}

	dbPath := filepath.Join(dir, "bars.db")
	w, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: dbPath})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	read, stored, err := importFile(context.Background(), w, csvPath, "INFY",
		time.Minute, 5*time.Minute, csvbars.Options{}, log)
	if err != nil {
		t.Fatal(err)
	}
	if read != 10 || stored != 2 {
		t.Fatalf("read=%d stored=%d, want 10 and 2", read, stored)
	}

	r, err := sqlitestore.NewReader(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	s, err := r.ReadSeries(context.Background(), "INFY", 5*time.Minute, time.Time{}, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if s.Len() != 2 {
		t.Fatalf("stored series has %d bars, want 2", s.Len())
	}
	first := s.Bars[0]
	if first.Open != 100 || first.Close != 104 || first.High != 105 || first.Low != 99 || first.Volume != 500 {
		t.Errorf("first bucket = %+v", first)
	}
}

func TestImportFile_RejectsFinerResample(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "x.csv")
	if err := os.WriteFile(csvPath, []byte("timestamp,open,high,low,close\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	w, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: filepath.Join(dir, "bars.db")})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	if _, _, err := importFile(context.Background(), w, csvPath, "X", 5*time.Minute, time.Minute, csvbars.Options{}, log); err == nil {
		t.Error("expected error for finer resample interval")
	}
}

func TestParseInstruments(t *testing.T) {
	src := "Symbol,Exchange,Name,Sector,Lot_Size\n" +
		"INFY,NSE,Infosys,IT,1\n" +
		"NIFTY,NFO,Nifty 50,,75\n"
	got, err := parseInstruments(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d instruments, want 2", len(got))
	}
	if got[0].Symbol != "INFY" || got[0].Sector != "IT" || got[0].LotSize != 1 {
		t.Errorf("row 1 = %+v", got[0])
	}
	if got[1].Sector != "" || got[1].LotSize != 75 {
		t.Errorf("row 2 = %+v", got[1])
	}
}

func TestParseInstruments_DefaultsAndErrors(t *testing.T) {
	got, err := parseInstruments(strings.NewReader("symbol,sector\nTCS,IT\n"))
	if err != nil {
		t.Fatal(err)
	}
	if got[0].LotSize != 1 {
		t.Errorf("default lot size = %v, want 1", got[0].LotSize)
	}

	for name, src := range map[string]string{
		"no symbol column": "name,sector\nInfosys,IT\n",
		"empty symbol":     "symbol,sector\n,IT\n",
		"bad lot size":     "symbol,lot_size\nINFY,abc\n",
	} {
		if _, err := parseInstruments(strings.NewReader(src)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
