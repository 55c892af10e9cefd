package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/google/uuid"
)

func TestInit(t *testing.T) {
	logger := Init("test-service", slog.LevelInfo)
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestInitWriter_EmbedsServiceAndRun(t *testing.T) {
	var buf bytes.Buffer
	log := InitWriter(&buf, "backtest", slog.LevelInfo)

	ctx := WithRunID(context.Background(), "run-42")
	log.Info("done", LogWithRun(ctx)...)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}
	if rec["service"] != "backtest" || rec["run_id"] != "run-42" {
		t.Errorf("unexpected record %v", rec)
	}
}

func TestRunID_RoundTrip(t *testing.T) {
	ctx := context.Background()

	// No run ID set
	if id := RunID(ctx); id != "" {
		t.Errorf("expected empty run id, got %q", id)
	}

	ctx = WithRunID(ctx, "test-run-123")
	if id := RunID(ctx); id != "test-run-123" {
		t.Errorf("expected 'test-run-123', got %q", id)
	}
}

func TestNewRunID_IsUUID(t *testing.T) {
	id := NewRunID()
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("run id %q is not a uuid: %v", id, err)
	}
	if NewRunID() == id {
		t.Error("expected distinct run ids")
	}
}

func TestLogWithRun(t *testing.T) {
	ctx := context.Background()

	if attrs := LogWithRun(ctx); attrs != nil {
		t.Errorf("expected nil attrs when no ids, got %v", attrs)
	}

	ctx = WithRequestID(WithRunID(ctx, "abc"), "req-1")
	if attrs := LogWithRun(ctx); len(attrs) != 2 {
		t.Fatalf("expected run and request attrs, got %v", attrs)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q)=%v, want %v", in, got, want)
		}
	}
}
