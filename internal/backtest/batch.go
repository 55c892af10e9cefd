package backtest

import (
	"context"
	"fmt"
	"maps"
	"math"
	"runtime"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"trading-analytics/internal/model"
)

// Job is one independent backtest in a batch.
type Job struct {
	Name   string
	Config Config
	Series *model.Series
	Pair   *model.Series
}

// BatchResult is the outcome of one job. Exactly one of Result and Err is set.
type BatchResult struct {
	Job    string  `json:"job"`
	Result *Result `json:"result,omitempty"`
	Err    error   `json:"-"`
}

// RunBatch executes jobs concurrently, at most parallelism at a time
// (<= 0 means GOMAXPROCS). Results come back in job order. A failing
// job is reported in its own slot and does not stop its siblings; only
// ctx cancellation stops the batch. opts apply to every run, so any
// Observer passed here must be safe for concurrent use.
func RunBatch(ctx context.Context, jobs []Job, parallelism int, opts ...Option) []BatchResult {
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}
	out := make([]BatchResult, len(jobs))

	var g errgroup.Group
	g.SetLimit(parallelism)
	for i, job := range jobs {
		g.Go(func() error {
			res, err := NewRun(job.Config, opts...).Execute(ctx, job.Series, job.Pair)
			out[i] = BatchResult{Job: job.Name, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// MaxSweep caps the number of values one sweep may expand to.
const MaxSweep = 10_000

// ParseSweep parses "name=from:to:step" into the parameter name and the
// values from..to inclusive.
func ParseSweep(s string) (string, []float64, error) {
	name, rng, ok := strings.Cut(s, "=")
	parts := strings.Split(rng, ":")
	if !ok || name == "" || len(parts) != 3 {
		return "", nil, fmt.Errorf("backtest: sweep %q: want name=from:to:step", s)
	}
	var nums [3]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return "", nil, fmt.Errorf("backtest: sweep %q: %w", s, err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return "", nil, fmt.Errorf("backtest: sweep %q: %q is not finite", s, p)
		}
		nums[i] = v
	}
	from, to, step := nums[0], nums[1], nums[2]
	if step <= 0 || to < from {
		return "", nil, fmt.Errorf("backtest: sweep %q: need step > 0 and to >= from", s)
	}
	count := math.Floor((to-from)/step+1e-9) + 1
	if count > MaxSweep {
		return "", nil, fmt.Errorf("backtest: sweep %q: %.0f values exceeds %d", s, count, MaxSweep)
	}
	n := int(count)
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = from + float64(i)*step
	}
	return strings.TrimSpace(name), vals, nil
}

// SweepJobs clones base once per value with param set to that value.
func SweepJobs(base Job, param string, values []float64) []Job {
	jobs := make([]Job, 0, len(values))
	for _, v := range values {
		j := base
		j.Config.Strategy.Params = maps.Clone(base.Config.Strategy.Params)
		if j.Config.Strategy.Params == nil {
			j.Config.Strategy.Params = map[string]float64{}
		}
		j.Config.Strategy.Params[param] = v
		j.Name = strings.TrimSpace(fmt.Sprintf("%s %s=%g", base.Name, param, v))
		jobs = append(jobs, j)
	}
	return jobs
}
