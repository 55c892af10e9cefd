package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// Dependency names reported by /healthz.
const (
	DepRedis  = "redis"
	DepSQLite = "sqlite"
)

// Check tests one dependency; nil means reachable.
type Check func(ctx context.Context) error

// RedisCheck pings a go-redis client.
func RedisCheck(rdb *goredis.Client) Check {
	return func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
}

// SQLCheck pings a database handle.
func SQLCheck(db *sql.DB) Check {
	return db.PingContext
}

type depState struct {
	required bool
	check    Check
	ok       bool
	latency  time.Duration
	lastErr  string
	checked  time.Time
}

// DepReport is the /healthz view of one dependency.
type DepReport struct {
	OK        bool    `json:"ok"`
	Required  bool    `json:"required"`
	LatencyMs float64 `json:"latency_ms"`
	Error     string  `json:"error,omitempty"`
	CheckedAt string  `json:"checked_at,omitempty"`
}

// HealthReport is the /healthz body.
type HealthReport struct {
	Status     string               `json:"status"`
	Uptime     string               `json:"uptime"`
	ActiveRuns int64                `json:"active_runs"`
	Deps       map[string]DepReport `json:"deps"`
}

// HealthStatus tracks dependency reachability and in-flight runs.
// A required dependency that is down makes the service unhealthy (503);
// an optional one only degrades it.
type HealthStatus struct {
	mu      sync.RWMutex
	deps    map[string]*depState
	started time.Time
	runs    atomic.Int64
}

// NewHealthStatus tracks SQLite as required and, when enabled, Redis as
// optional.
func NewHealthStatus(redisEnabled bool) *HealthStatus {
	h := &HealthStatus{deps: map[string]*depState{}, started: time.Now()}
	h.Track(DepSQLite, true)
	if redisEnabled {
		h.Track(DepRedis, false)
	}
	return h
}

// Track registers a dependency, initially down.
func (h *HealthStatus) Track(name string, required bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.deps[name]; !ok {
		h.deps[name] = &depState{required: required}
	}
}

// Watch attaches a check to a tracked dependency. Untracked names are
// ignored.
func (h *HealthStatus) Watch(name string, p Check) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if d, ok := h.deps[name]; ok {
		d.check = p
	}
}

// Set records a reachability change observed outside the checks, e.g. a
// circuit breaker transition.
func (h *HealthStatus) Set(name string, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if d, found := h.deps[name]; found {
		d.ok = ok
		if ok {
			d.lastErr = ""
		}
	}
}

// RunStarted and RunFinished track in-flight backtests.
func (h *HealthStatus) RunStarted()  { h.runs.Add(1) }
func (h *HealthStatus) RunFinished() { h.runs.Add(-1) }

// CheckNow runs every attached check once.
func (h *HealthStatus) CheckNow(ctx context.Context) {
	h.mu.RLock()
	checks := make(map[string]Check, len(h.deps))
	for name, d := range h.deps {
		if d.check != nil {
			checks[name] = d.check
		}
	}
	h.mu.RUnlock()

	for name, p := range checks {
		start := time.Now()
		err := p(ctx)
		took := time.Since(start)

		h.mu.Lock()
		d := h.deps[name]
		d.ok = err == nil
		d.latency = took
		d.checked = time.Now()
		d.lastErr = ""
		if err != nil {
			d.lastErr = err.Error()
		}
		h.mu.Unlock()
	}
}

// StartLivenessChecker checks immediately and then every interval until
// ctx is done.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, interval time.Duration) {
	check := func() {
		checkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		h.CheckNow(checkCtx)
	}
	check()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				check()
			}
		}
	}()
}

// Report snapshots the current state.
func (h *HealthStatus) Report() HealthReport {
	h.mu.RLock()
	defer h.mu.RUnlock()

	rep := HealthReport{
		Status:     "healthy",
		Uptime:     time.Since(h.started).Round(time.Second).String(),
		ActiveRuns: h.runs.Load(),
		Deps:       make(map[string]DepReport, len(h.deps)),
	}
	names := make([]string, 0, len(h.deps))
	for name := range h.deps {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		d := h.deps[name]
		dr := DepReport{
			OK:        d.ok,
			Required:  d.required,
			LatencyMs: float64(d.latency.Microseconds()) / 1000.0,
			Error:     d.lastErr,
		}
		if !d.checked.IsZero() {
			dr.CheckedAt = d.checked.Format(time.RFC3339)
		}
		rep.Deps[name] = dr
		switch {
		case d.ok:
		case d.required:
			rep.Status = "unhealthy"
		case rep.Status == "healthy":
			rep.Status = "degraded"
		}
	}
	return rep
}

// ServeHTTP handles /healthz.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rep := h.Report()
	w.Header().Set("Content-Type", "application/json")
	if rep.Status == "unhealthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(rep)
}
