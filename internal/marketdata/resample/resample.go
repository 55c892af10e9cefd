// Package resample aggregates bars into a coarser interval. Buckets are
// anchored to the NSE session open, so 1h bars run 9:15-10:15 and so on.
// The Builder is incremental: O(1) per input bar.
package resample

import (
	"context"
	"fmt"
	"time"

	"trading-analytics/internal/markethours"
	"trading-analytics/internal/model"
)

// Builder folds bars into interval-sized buckets. Not goroutine-safe;
// run it from a single consumer.
type Builder struct {
	interval time.Duration

	bucket  time.Time
	forming model.Bar
	started bool

	// OnStale is called when a bar older than the forming bucket arrives.
	OnStale func(b model.Bar)
}

// New creates a Builder for interval.
func New(interval time.Duration) (*Builder, error) {
	if interval <= 0 {
		return nil, &model.ConfigurationError{Field: "interval", Reason: "must be positive"}
	}
	return &Builder{interval: interval}, nil
}

// Interval returns the target interval.
func (b *Builder) Interval() time.Duration { return b.interval }

// Add folds bar into the forming bucket. When bar opens a new bucket the
// previous one is returned with ok=true. Bars behind the forming bucket
// are rejected via OnStale.
func (b *Builder) Add(bar model.Bar) (closed model.Bar, ok bool) {
	bucket := markethours.BucketStart(bar.TS, b.interval)

	if b.started && bucket.Before(b.bucket) {
		if b.OnStale != nil {
			b.OnStale(bar)
		}
		return model.Bar{}, false
	}

	if b.started && bucket.After(b.bucket) {
		closed, ok = b.forming, true
		b.started = false
	}

	if !b.started {
		b.bucket = bucket
		b.forming = bar
		b.forming.TS = bucket
		b.started = true
		return closed, ok
	}

	// Same bucket: merge OHLCV.
	f := &b.forming
	if bar.High > f.High {
		f.High = bar.High
	}
	if bar.Low < f.Low {
		f.Low = bar.Low
	}
	f.Close = bar.Close
	f.Volume += bar.Volume
	return closed, ok
}

// Flush returns the forming bucket, if any, and resets the builder.
func (b *Builder) Flush() (model.Bar, bool) {
	if !b.started {
		return model.Bar{}, false
	}
	out := b.forming
	b.started = false
	return out, true
}

// Series resamples s to interval. The result keeps s.Symbol; bucket
// timestamps are bucket starts.
func Series(s *model.Series, interval time.Duration) (*model.Series, error) {
	if interval < s.Interval {
		return nil, &model.ConfigurationError{
			Field:  "interval",
			Reason: fmt.Sprintf("%s is finer than the source interval %s", interval, s.Interval),
		}
	}
	b, err := New(interval)
	if err != nil {
		return nil, err
	}
	out := make([]model.Bar, 0, len(s.Bars))
	for _, bar := range s.Bars {
		if c, ok := b.Add(bar); ok {
			out = append(out, c)
		}
	}
	if c, ok := b.Flush(); ok {
		out = append(out, c)
	}
	return model.NewSeries(s.Symbol, interval, out)
}

// Run resamples bars from in and sends closed buckets to out until in is
// closed or ctx is cancelled. The forming bucket is flushed when in closes.
// out is closed on return.
func (b *Builder) Run(ctx context.Context, in <-chan model.Bar, out chan<- model.Bar) error {
	defer close(out)
	send := func(bar model.Bar) error {
		select {
		case out <- bar:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case bar, ok := <-in:
			if !ok {
				if c, ok := b.Flush(); ok {
					return send(c)
				}
				return nil
			}
			if c, ok := b.Add(bar); ok {
				if err := send(c); err != nil {
					return err
				}
			}
		}
	}
}
