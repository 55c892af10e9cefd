package model

import (
	"math"
	"time"
)

// Bar is one OHLCV observation. Prices are in account currency units.
type Bar struct {
	TS     time.Time `json:"ts"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Series is a time-ordered sequence of bars for one symbol.
// Treat it as read-only once constructed; indicators, strategies and the
// simulator all share the same backing slice.
type Series struct {
	Symbol   string        `json:"symbol"`
	Interval time.Duration `json:"interval"`
	Bars     []Bar         `json:"bars"`
}

// NewSeries validates bars and wraps them in a Series.
// Timestamps must be strictly increasing; prices and volume must be
// finite and non-negative and High must not be below Low. Gaps are allowed.
func NewSeries(symbol string, interval time.Duration, bars []Bar) (*Series, error) {
	if symbol == "" {
		return nil, &MalformedSeriesError{Index: -1, Field: "symbol", Reason: "empty"}
	}
	for i, b := range bars {
		fields := [...]struct {
			name string
			v    float64
		}{{"open", b.Open}, {"high", b.High}, {"low", b.Low}, {"close", b.Close}, {"volume", b.Volume}}
		for _, f := range fields {
			if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
				return nil, &MalformedSeriesError{Index: i, Field: f.name, Reason: "not finite"}
			}
			if f.v < 0 {
				return nil, &MalformedSeriesError{Index: i, Field: f.name, Reason: "negative"}
			}
		}
		if b.High < b.Low {
			return nil, &MalformedSeriesError{Index: i, Field: "high", Reason: "below low"}
		}
		if i > 0 && !b.TS.After(bars[i-1].TS) {
			return nil, &MalformedSeriesError{Index: i, Field: "ts", Reason: "not strictly increasing"}
		}
	}
	return &Series{Symbol: symbol, Interval: interval, Bars: bars}, nil
}

// Len returns the number of bars.
func (s *Series) Len() int { return len(s.Bars) }

// Closes returns the close prices in bar order.
func (s *Series) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

func (s *Series) Highs() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.High
	}
	return out
}

func (s *Series) Lows() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Low
	}
	return out
}

// Timestamps returns bar timestamps in order.
func (s *Series) Timestamps() []time.Time {
	out := make([]time.Time, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.TS
	}
	return out
}

// Slice returns a view over bars [from, to). Bounds are clamped.
func (s *Series) Slice(from, to int) *Series {
	if from < 0 {
		from = 0
	}
	if to > len(s.Bars) {
		to = len(s.Bars)
	}
	if from > to {
		from = to
	}
	return &Series{Symbol: s.Symbol, Interval: s.Interval, Bars: s.Bars[from:to]}
}

// Last returns the final bar and false when the series is empty.
func (s *Series) Last() (Bar, bool) {
	if len(s.Bars) == 0 {
		return Bar{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

// IndexOf maps timestamps to bar indices.
func (s *Series) IndexOf() map[int64]int {
	idx := make(map[int64]int, len(s.Bars))
	for i, b := range s.Bars {
		idx[b.TS.UnixNano()] = i
	}
	return idx
}
