package markethours

import (
	"math"
	"testing"
	"time"
)

func TestPeriodsPerYear(t *testing.T) {
	cases := map[string]float64{
		"1d":          252,
		"ONE_DAY":     252,
		"1m":          252 * 375,
		"FIVE_MINUTE": 252 * 75,
		"5m":          252 * 75,
		"1h":          252 * 6.25,
		"1w":          52,
		"2d":          126,
	}
	for in, want := range cases {
		got, err := PeriodsPerYear(in)
		if err != nil {
			t.Errorf("%s: %v", in, err)
			continue
		}
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("PeriodsPerYear(%q)=%v, want %v", in, got, want)
		}
	}
	for _, bad := range []string{"", "bogus", "0d", "-5m"} {
		if _, err := PeriodsPerYear(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestIsMarketOpen(t *testing.T) {
	tue := time.Date(2026, 1, 27, 10, 0, 0, 0, IST)
	if !IsMarketOpen(tue) {
		t.Error("expected open on Tuesday 10:00 IST")
	}
	if IsMarketOpen(time.Date(2026, 1, 27, 15, 30, 0, 0, IST)) {
		t.Error("close is exclusive")
	}
	if IsMarketOpen(time.Date(2026, 1, 26, 10, 0, 0, 0, IST)) {
		t.Error("Republic Day is a holiday")
	}
	if IsMarketOpen(time.Date(2026, 1, 31, 10, 0, 0, 0, IST)) {
		t.Error("Saturday should be closed")
	}
}

func TestNextOpen_SkipsHolidayAndWeekend(t *testing.T) {
	// Friday 23 Jan after close → Tuesday 27 Jan (Monday 26 is a holiday)
	got := NextOpen(time.Date(2026, 1, 23, 16, 0, 0, 0, IST))
	want := time.Date(2026, 1, 27, 9, 15, 0, 0, IST)
	if !got.Equal(want) {
		t.Errorf("NextOpen=%v, want %v", got, want)
	}
}

func TestSessionAt_Describe(t *testing.T) {
	now := time.Date(2026, 1, 27, 13, 25, 0, 0, IST)
	s := SessionAt(now)
	if !s.Open || !s.Until.Equal(time.Date(2026, 1, 27, 15, 30, 0, 0, IST)) {
		t.Fatalf("open session=%+v", s)
	}
	if got := s.Describe(now); got != "open, closes in 2h5m" {
		t.Errorf("Describe=%q", got)
	}

	now = time.Date(2026, 1, 23, 16, 0, 0, 0, IST)
	s = SessionAt(now)
	if s.Open {
		t.Fatal("expected closed after Friday close")
	}
	if got := s.Describe(now); got != "closed, opens Tue 09:15 (3d17h)" {
		t.Errorf("Describe=%q", got)
	}
}

func TestBucketStart_SessionAnchored(t *testing.T) {
	ts := time.Date(2026, 1, 27, 10, 20, 30, 0, IST)
	cases := []struct {
		d    time.Duration
		want time.Time
	}{
		{time.Hour, time.Date(2026, 1, 27, 10, 15, 0, 0, IST)},
		{30 * time.Minute, time.Date(2026, 1, 27, 10, 15, 0, 0, IST)},
		{5 * time.Minute, time.Date(2026, 1, 27, 10, 20, 0, 0, IST)},
		{24 * time.Hour, time.Date(2026, 1, 27, 0, 0, 0, 0, IST)},
	}
	for _, tc := range cases {
		if got := BucketStart(ts, tc.d); !got.Equal(tc.want) {
			t.Errorf("BucketStart(%v)=%v, want %v", tc.d, got, tc.want)
		}
	}
}

func TestAddHolidays(t *testing.T) {
	d := time.Date(2026, 12, 30, 11, 0, 0, 0, IST)
	if !IsTradingDay(d) {
		t.Fatal("precondition: 30 Dec 2026 is a trading day")
	}
	if err := AddHolidays("2026-12-30"); err != nil {
		t.Fatal(err)
	}
	if IsTradingDay(d) {
		t.Error("expected added holiday to close the market")
	}
	if err := AddHolidays("30/12/2026"); err == nil {
		t.Error("expected parse error")
	}
}

func TestAnnualPeriods_ZeroInterval(t *testing.T) {
	if got := AnnualPeriods(0); got != 0 {
		t.Errorf("AnnualPeriods(0)=%v, want 0", got)
	}
	if got := AnnualPeriods(24 * time.Hour); got != 252 {
		t.Errorf("AnnualPeriods(1d)=%v, want 252", got)
	}
}
