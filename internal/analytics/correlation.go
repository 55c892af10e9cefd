package analytics

import (
	"encoding/json"
	"math"

	"trading-analytics/internal/indicator"
	"trading-analytics/internal/model"
)

// CorrelationMatrix holds pairwise Pearson correlations of return series.
// Undefined entries are NaN and encode as JSON null.
type CorrelationMatrix struct {
	Symbols []string    `json:"symbols"`
	Values  [][]float64 `json:"values"`
}

// At returns the correlation between symbols a and b, NaN if unknown.
func (m *CorrelationMatrix) At(a, b string) float64 {
	ia, ib := -1, -1
	for i, s := range m.Symbols {
		if s == a {
			ia = i
		}
		if s == b {
			ib = i
		}
	}
	if ia < 0 || ib < 0 {
		return math.NaN()
	}
	return m.Values[ia][ib]
}

func (m CorrelationMatrix) MarshalJSON() ([]byte, error) {
	values := make([][]*float64, len(m.Values))
	for i, row := range m.Values {
		values[i] = make([]*float64, len(row))
		for j, v := range row {
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				v := v
				values[i][j] = &v
			}
		}
	}
	return json.Marshal(struct {
		Symbols []string     `json:"symbols"`
		Values  [][]*float64 `json:"values"`
	}{m.Symbols, values})
}

// Correlations builds the matrix over price series. Each pair uses only
// the timestamps both series share; returns are taken between consecutive
// shared timestamps. Fewer than two shared return periods, or zero
// variance on either side, yields NaN.
func Correlations(histories []*model.Series) CorrelationMatrix {
	n := len(histories)
	m := CorrelationMatrix{Symbols: make([]string, n), Values: make([][]float64, n)}
	for i, h := range histories {
		m.Symbols[i] = h.Symbol
		m.Values[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			var r float64
			if i == j {
				r = selfCorrelation(histories[i])
			} else {
				r = pairCorrelation(histories[i], histories[j])
			}
			m.Values[i][j] = r
			m.Values[j][i] = r
		}
	}
	return m
}

func selfCorrelation(s *model.Series) float64 {
	rs := Returns(s.Closes())
	if len(rs) < 2 || indicator.StdDev(rs) == 0 {
		return math.NaN()
	}
	return 1
}

func pairCorrelation(a, b *model.Series) float64 {
	bAt := b.IndexOf()
	var pa, pb []float64
	for _, bar := range a.Bars {
		if j, ok := bAt[bar.TS.UnixNano()]; ok {
			pa = append(pa, bar.Close)
			pb = append(pb, b.Bars[j].Close)
		}
	}
	ra, rb := pairedReturns(pa, pb)
	return Pearson(ra, rb)
}

// pairedReturns drops periods where either side starts at zero so the two
// return series stay aligned.
func pairedReturns(pa, pb []float64) ([]float64, []float64) {
	var ra, rb []float64
	for i := 1; i < len(pa); i++ {
		if pa[i-1] == 0 || pb[i-1] == 0 {
			continue
		}
		ra = append(ra, pa[i]/pa[i-1]-1)
		rb = append(rb, pb[i]/pb[i-1]-1)
	}
	return ra, rb
}

// Pearson correlation of equal-length samples; NaN when fewer than two
// observations or either variance is zero.
func Pearson(x, y []float64) float64 {
	n := len(x)
	if n < 2 || n != len(y) {
		return math.NaN()
	}
	mx, my := indicator.Mean(x), indicator.Mean(y)
	var sxy, sxx, syy float64
	for i := 0; i < n; i++ {
		dx, dy := x[i]-mx, y[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return math.NaN()
	}
	r := sxy / math.Sqrt(sxx*syy)
	return math.Max(-1, math.Min(1, r))
}
