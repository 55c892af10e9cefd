package main

import (
	"testing"
	"time"

	"trading-analytics/internal/markethours"
)

func TestParseParams(t *testing.T) {
	got, err := parseParams(" fast=10, slow=30.5 ,")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got["fast"] != 10 || got["slow"] != 30.5 {
		t.Errorf("parseParams = %v", got)
	}
	if _, err := parseParams("fast"); err == nil {
		t.Error("expected error for missing value")
	}
	if _, err := parseParams("fast=x"); err == nil {
		t.Error("expected error for non-numeric value")
	}
}

func TestParseDate(t *testing.T) {
	got, err := parseDate("2026-03-02")
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2026, 3, 2, 0, 0, 0, 0, markethours.IST)
	if !got.Equal(want) {
		t.Errorf("parseDate = %v, want %v", got, want)
	}
	if z, _ := parseDate(""); !z.IsZero() {
		t.Error("empty date should be zero")
	}
	if _, err := parseDate("02/03/2026"); err == nil {
		t.Error("expected layout error")
	}
}

func TestPct(t *testing.T) {
	if got := pct(0.1234); got != "12.34%" {
		t.Errorf("pct = %q", got)
	}
}
