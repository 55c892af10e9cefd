package indicator

import (
	"math"
	"strconv"
	"strings"

	"trading-analytics/internal/model"
)

// Spec specifies a single indicator to compute.
type Spec struct {
	Type   string    // "SMA", "EMA", "SMMA", "RSI", "MACD", "BB", "ATR", "STOCH"
	Params []float64 // window lengths, multipliers
}

// defaults fill missing trailing params per type.
var defaults = map[string][]float64{
	"SMA":   {20},
	"EMA":   {20},
	"SMMA":  {14},
	"RSI":   {14},
	"MACD":  {12, 26, 9},
	"BB":    {20, 2},
	"ATR":   {14},
	"STOCH": {14, 3},
}

// Name returns the output key, e.g. "SMA_20" or "MACD_12_26_9".
func (s Spec) Name() string {
	var b strings.Builder
	b.WriteString(s.Type)
	for _, p := range s.withDefaults().Params {
		b.WriteByte('_')
		b.WriteString(strconv.FormatFloat(p, 'f', -1, 64))
	}
	return b.String()
}

func (s Spec) withDefaults() Spec {
	def := defaults[s.Type]
	if len(s.Params) >= len(def) {
		return s
	}
	params := make([]float64, len(def))
	copy(params, def)
	copy(params, s.Params)
	return Spec{Type: s.Type, Params: params}
}

// window returns param i as an int.
func (s Spec) window(i int) int { return int(s.Params[i]) }

// Validate checks the type and parameters. Windows must be integers in
// [1, MaxWindow]; MACD requires fast < slow.
func (s Spec) Validate() error {
	def, ok := defaults[s.Type]
	if !ok {
		return &model.ConfigurationError{Field: "indicator", Reason: "unknown type " + strconv.Quote(s.Type)}
	}
	if len(s.Params) > len(def) {
		return &model.ConfigurationError{Field: s.Type, Reason: "too many parameters"}
	}
	full := s.withDefaults()
	for i, p := range full.Params {
		if s.Type == "BB" && i == 1 {
			if !(p >= 0) || math.IsInf(p, 1) {
				return &model.ConfigurationError{Field: "BB.k", Reason: "must be a finite non-negative number"}
			}
			continue
		}
		if p <= 0 || p > MaxWindow || p != math.Trunc(p) {
			return &model.ConfigurationError{Field: s.Type + ".window", Reason: "must be an integer in [1, " + strconv.Itoa(MaxWindow) + "]"}
		}
	}
	if s.Type == "MACD" && full.Params[0] >= full.Params[1] {
		return &model.ConfigurationError{Field: "MACD.fast", Reason: "fast must be less than slow"}
	}
	return nil
}

// Warmup is the number of leading NaN points the primary output carries.
func (s Spec) Warmup() int {
	f := s.withDefaults()
	switch f.Type {
	case "RSI":
		return f.window(0)
	case "MACD":
		return f.window(1) - 1
	}
	return f.window(0) - 1
}

// ParseSpecs parses "SMA:20,EMA:9,MACD:12:26:9" into validated specs.
// Missing parameters take the per-type defaults.
func ParseSpecs(s string) ([]Spec, error) {
	var out []Spec
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Split(part, ":")
		spec := Spec{Type: strings.ToUpper(strings.TrimSpace(fields[0]))}
		for _, f := range fields[1:] {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				return nil, &model.ConfigurationError{Field: part, Reason: "invalid parameter " + strconv.Quote(f)}
			}
			spec.Params = append(spec.Params, v)
		}
		if err := spec.Validate(); err != nil {
			return nil, err
		}
		out = append(out, spec.withDefaults())
	}
	return out, nil
}

// Set maps output names to index-aligned values.
type Set map[string][]float64

// Compute evaluates every spec against series. All specs are validated
// before any computation starts.
func Compute(series *model.Series, specs []Spec) (Set, error) {
	for _, s := range specs {
		if err := s.Validate(); err != nil {
			return nil, err
		}
	}

	closes := series.Closes()
	out := make(Set, len(specs))
	for _, raw := range specs {
		s := raw.withDefaults()
		name := s.Name()
		switch s.Type {
		case "SMA":
			out[name] = SMAOf(closes, s.window(0))
		case "EMA":
			out[name] = EMAOf(closes, s.window(0))
		case "SMMA":
			out[name] = SMMAOf(closes, s.window(0))
		case "RSI":
			out[name] = RSIOf(closes, s.window(0))
		case "MACD":
			m := MACD(closes, s.window(0), s.window(1), s.window(2))
			out[name] = m.Line
			out[name+".signal"] = m.Signal
			out[name+".hist"] = m.Histogram
		case "BB":
			b := Bollinger(closes, s.window(0), s.Params[1])
			out[name] = b.Middle
			out[name+".upper"] = b.Upper
			out[name+".lower"] = b.Lower
		case "ATR":
			out[name] = ATR(series, s.window(0))
		case "STOCH":
			st := Stochastic(series, s.window(0), s.window(1))
			out[name] = st.K
			out[name+".d"] = st.D
		}
	}
	return out, nil
}
