package gateway

import (
	"math"
	"sort"
	"sync"
	"time"
)

// LatencySummary is the percentile view of one route, in milliseconds.
type LatencySummary struct {
	Count int     `json:"count"`
	P50   float64 `json:"p50_ms"`
	P95   float64 `json:"p95_ms"`
	P99   float64 `json:"p99_ms"`
	Max   float64 `json:"max_ms"`
}

// window is a circular buffer of the most recent samples for one route.
type window struct {
	samples []float64
	pos     int
	count   int
}

func (w *window) add(ms float64) {
	w.samples[w.pos] = ms
	w.pos = (w.pos + 1) % len(w.samples)
	if w.count < len(w.samples) {
		w.count++
	}
}

// sorted returns the retained samples in ascending order.
func (w *window) sorted() []float64 {
	out := make([]float64, w.count)
	if w.count == len(w.samples) {
		copy(out, w.samples[w.pos:])
		copy(out[len(w.samples)-w.pos:], w.samples[:w.pos])
	} else {
		copy(out, w.samples[:w.count])
	}
	sort.Float64s(out)
	return out
}

// RouteLatency keeps a bounded latency window per route.
type RouteLatency struct {
	mu       sync.Mutex
	capacity int
	routes   map[string]*window
}

// NewRouteLatency keeps the last capacity samples of every route.
func NewRouteLatency(capacity int) *RouteLatency {
	if capacity <= 0 {
		capacity = 1024
	}
	return &RouteLatency{capacity: capacity, routes: make(map[string]*window)}
}

// Record adds one request duration for route.
func (rl *RouteLatency) Record(route string, d time.Duration) {
	ms := float64(d) / float64(time.Millisecond)
	rl.mu.Lock()
	w, ok := rl.routes[route]
	if !ok {
		w = &window{samples: make([]float64, rl.capacity)}
		rl.routes[route] = w
	}
	w.add(ms)
	rl.mu.Unlock()
}

// Percentiles returns p50, p95 and p99 for route, or zeros when unseen.
func (rl *RouteLatency) Percentiles(route string) (p50, p95, p99 float64) {
	s := rl.summary(route)
	return s.P50, s.P95, s.P99
}

func (rl *RouteLatency) summary(route string) LatencySummary {
	rl.mu.Lock()
	w, ok := rl.routes[route]
	var sorted []float64
	if ok {
		sorted = w.sorted()
	}
	rl.mu.Unlock()
	return summarize(sorted)
}

// Summary returns every route seen so far.
func (rl *RouteLatency) Summary() map[string]LatencySummary {
	rl.mu.Lock()
	snap := make(map[string][]float64, len(rl.routes))
	for route, w := range rl.routes {
		snap[route] = w.sorted()
	}
	rl.mu.Unlock()

	out := make(map[string]LatencySummary, len(snap))
	for route, sorted := range snap {
		out[route] = summarize(sorted)
	}
	return out
}

func summarize(sorted []float64) LatencySummary {
	n := len(sorted)
	if n == 0 {
		return LatencySummary{}
	}
	return LatencySummary{
		Count: n,
		P50:   percentile(sorted, 0.50),
		P95:   percentile(sorted, 0.95),
		P99:   percentile(sorted, 0.99),
		Max:   sorted[n-1],
	}
}

// percentile interpolates the p-th percentile (0..1) of a sorted slice.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	rank := p * float64(n-1)
	lower := int(math.Floor(rank))
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}
	frac := rank - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}
