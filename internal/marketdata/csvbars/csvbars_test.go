package csvbars

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"trading-analytics/internal/markethours"
	"trading-analytics/internal/model"
)

const intraday = `Date,Open,High,Low,Close,Volume
2026-01-27 09:10,99,100,98,99.5,10
2026-01-27 09:15,100,101,99,100.5,1200
2026-01-27 09:16,100.5,102,100,101.5,900
2026-01-27 15:30,101,101,100,100,50
`

func TestRead_AllRows(t *testing.T) {
	s, err := Read(strings.NewReader(intraday), "INFY", time.Minute, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if s.Len() != 4 {
		t.Fatalf("len=%d, want 4", s.Len())
	}
	b := s.Bars[1]
	want := time.Date(2026, 1, 27, 9, 15, 0, 0, markethours.IST)
	if !b.TS.Equal(want) {
		t.Errorf("ts=%v, want %v", b.TS, want)
	}
	if b.Open != 100 || b.High != 101 || b.Low != 99 || b.Close != 100.5 || b.Volume != 1200 {
		t.Errorf("bar=%+v", b)
	}
}

func TestRead_SessionOnly(t *testing.T) {
	s, err := Read(strings.NewReader(intraday), "INFY", time.Minute, Options{SessionOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	if s.Len() != 2 {
		t.Fatalf("len=%d, want 2 (pre-open and close-time rows dropped)", s.Len())
	}
}

func TestRead_DailyWithReorderedColumns(t *testing.T) {
	data := `close,volume,timestamp,open,low,high
101,5000,2026-01-23,100,99,102
102,,2026-01-24,101,100,103
103,6000,2026-01-27,102,101,104
`
	s, err := Read(strings.NewReader(data), "TCS", 24*time.Hour, Options{SessionOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	// 2026-01-24 is a Saturday.
	if s.Len() != 2 {
		t.Fatalf("len=%d, want 2", s.Len())
	}
	if s.Bars[1].High != 104 || s.Bars[1].Close != 103 {
		t.Errorf("bar=%+v", s.Bars[1])
	}
}

func TestRead_SortDedup(t *testing.T) {
	data := `ts,open,high,low,close
1769485800,1,1,1,1
1769485740,2,2,2,2
1769485800,3,3,3,3
`
	if _, err := Read(strings.NewReader(data), "X", time.Minute, Options{}); !errors.Is(err, model.ErrMalformedSeries) {
		t.Fatalf("unsorted input without Sort: err=%v", err)
	}
	s, err := Read(strings.NewReader(data), "X", time.Minute, Options{Sort: true})
	if err != nil {
		t.Fatal(err)
	}
	if s.Len() != 2 || s.Bars[0].Close != 2 || s.Bars[1].Close != 3 {
		t.Fatalf("bars=%+v", s.Bars)
	}
}

func TestRead_Errors(t *testing.T) {
	cases := map[string]string{
		"missing column": "ts,open,high,close\n2026-01-27,1,1,1\n",
		"bad number":     "ts,open,high,low,close\n2026-01-27,1,x,1,1\n",
		"bad timestamp":  "ts,open,high,low,close\nyesterday,1,1,1,1\n",
		"empty":          "",
	}
	for name, data := range cases {
		if _, err := Read(strings.NewReader(data), "X", time.Minute, Options{}); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestStream_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := make(chan model.Bar)
	n, err := Stream(ctx, strings.NewReader(intraday), Options{}, out)
	if !errors.Is(err, context.Canceled) || n != 0 {
		t.Fatalf("n=%d err=%v", n, err)
	}
}

func TestParseTime(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2026-01-27T09:15:00+05:30", time.Date(2026, 1, 27, 9, 15, 0, 0, markethours.IST)},
		{"2026-01-27 09:15:00", time.Date(2026, 1, 27, 9, 15, 0, 0, markethours.IST)},
		{"2026-01-27", time.Date(2026, 1, 27, 0, 0, 0, 0, markethours.IST)},
		{"0", time.Unix(0, 0)},
	}
	for _, tc := range cases {
		got, err := ParseTime(tc.in)
		if err != nil || !got.Equal(tc.want) {
			t.Errorf("ParseTime(%q)=%v,%v want %v", tc.in, got, err, tc.want)
		}
	}
}
