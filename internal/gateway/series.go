package gateway

import (
	"context"
	"fmt"
	"time"

	"trading-analytics/internal/markethours"
	"trading-analytics/internal/marketdata/resample"
	"trading-analytics/internal/model"
)

// SeriesInput is either inline bars or a range of the bar store.
type SeriesInput struct {
	Symbol   string      `json:"symbol"`
	Interval string      `json:"interval,omitempty"` // "1d", "5m", "ONE_MINUTE"
	Bars     []model.Bar `json:"bars,omitempty"`
	From     *time.Time  `json:"from,omitempty"`
	To       *time.Time  `json:"to,omitempty"`
	Resample string      `json:"resample,omitempty"` // coarser target interval
}

// resolveSeries validates inline bars or loads them from the store, then
// resamples when asked.
func (s *Server) resolveSeries(ctx context.Context, in *SeriesInput) (*model.Series, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: series is required", errBadRequest)
	}
	var interval time.Duration
	if in.Interval != "" {
		d, err := markethours.ParseInterval(in.Interval)
		if err != nil {
			return nil, &model.ConfigurationError{Field: "series.interval", Reason: err.Error()}
		}
		interval = d
	}

	var (
		series *model.Series
		err    error
	)
	if len(in.Bars) > 0 {
		series, err = model.NewSeries(in.Symbol, interval, in.Bars)
	} else {
		if in.Symbol == "" || interval == 0 {
			return nil, &model.ConfigurationError{Field: "series", Reason: "bars or symbol with interval required"}
		}
		var from, to time.Time
		if in.From != nil {
			from = *in.From
		}
		if in.To != nil {
			to = *in.To
		}
		series, err = s.deps.Series.ReadSeries(ctx, in.Symbol, interval, from, to)
	}
	if err != nil {
		return nil, err
	}

	if in.Resample != "" {
		target, err := markethours.ParseInterval(in.Resample)
		if err != nil {
			return nil, &model.ConfigurationError{Field: "series.resample", Reason: err.Error()}
		}
		return resample.Series(series, target)
	}
	return series, nil
}
