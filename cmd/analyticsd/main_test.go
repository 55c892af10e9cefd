package main

import (
	"testing"
	"time"

	"trading-analytics/internal/markethours"
)

func TestNextReset(t *testing.T) {
	at := func(y int, m time.Month, d, h, min int) time.Time {
		return time.Date(y, m, d, h, min, 0, 0, markethours.IST)
	}
	cases := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"before reset same day", at(2026, 3, 3, 8, 30), at(2026, 3, 3, 9, 0)},
		{"after reset rolls to next day", at(2026, 3, 3, 9, 0), at(2026, 3, 4, 9, 0)},
		{"friday evening skips weekend", at(2026, 3, 6, 18, 0), at(2026, 3, 9, 9, 0)},
	}
	for _, tc := range cases {
		if got := nextReset(tc.now, 9); !got.Equal(tc.want) {
			t.Errorf("%s: nextReset(%v) = %v, want %v", tc.name, tc.now, got, tc.want)
		}
	}
}

func TestPrevReset(t *testing.T) {
	at := func(y int, m time.Month, d, h, min int) time.Time {
		return time.Date(y, m, d, h, min, 0, 0, markethours.IST)
	}
	cases := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"friday afternoon", at(2026, 2, 6, 15, 0), at(2026, 2, 6, 9, 0)},
		{"at reset", at(2026, 2, 6, 9, 0), at(2026, 2, 6, 9, 0)},
		{"monday before reset", at(2026, 2, 9, 8, 0), at(2026, 2, 6, 9, 0)},
		{"sunday", at(2026, 2, 8, 12, 0), at(2026, 2, 6, 9, 0)},
		{"after monday holiday", at(2026, 1, 27, 8, 0), at(2026, 1, 23, 9, 0)},
		{"after tuesday holiday", at(2026, 4, 1, 8, 0), at(2026, 3, 30, 9, 0)},
		{"on a holiday", at(2026, 1, 26, 15, 0), at(2026, 1, 23, 9, 0)},
	}
	for _, tc := range cases {
		got := prevReset(tc.now, 9)
		if !got.Equal(tc.want) {
			t.Errorf("%s: prevReset(%v) = %v, want %v", tc.name, tc.now, got, tc.want)
		}
		if got.After(tc.now) {
			t.Errorf("%s: prevReset(%v) = %v is in the future", tc.name, tc.now, got)
		}
	}
}
