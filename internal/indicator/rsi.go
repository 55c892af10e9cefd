package indicator

// RSI is Wilder's Relative Strength Index: SMMA-smoothed gains over
// SMMA-smoothed losses. It needs period deltas, so the first value
// appears on update period+1.
type RSI struct {
	started bool
	prev    float64
	gains   *SMMA
	losses  *SMMA
}

// NewRSI returns an RSI over period deltas (typically 14).
func NewRSI(period int) *RSI {
	return &RSI{gains: NewSMMA(period), losses: NewSMMA(period)}
}

func (r *RSI) Name() string { return "RSI" }

func (r *RSI) Update(x float64) {
	if r.started {
		gain, loss := splitDelta(x - r.prev)
		r.gains.Update(gain)
		r.losses.Update(loss)
	}
	r.started = true
	r.prev = x
}

// Value is 0 until Ready.
func (r *RSI) Value() float64 {
	if !r.Ready() {
		return 0
	}
	return rsiFrom(r.gains.Value(), r.losses.Value())
}

func (r *RSI) Ready() bool { return r.gains.Ready() }

// Peek returns the RSI after x, or 0 if x would not complete the warm-up.
func (r *RSI) Peek(x float64) float64 {
	if !r.started {
		return 0
	}
	gain, loss := splitDelta(x - r.prev)
	if r.gains.count+1 < r.gains.period {
		return 0
	}
	return rsiFrom(r.gains.Peek(gain), r.losses.Peek(loss))
}

func (r *RSI) Reset() {
	r.started = false
	r.prev = 0
	r.gains.Reset()
	r.losses.Reset()
}

func splitDelta(delta float64) (gain, loss float64) {
	if delta > 0 {
		return delta, 0
	}
	return 0, -delta
}

// rsiFrom converts average gain/loss to RSI, clamped to [0,100].
// Zero average loss is 100 (including a flat series).
func rsiFrom(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100.0
	}
	rsi := 100.0 - (100.0 / (1.0 + avgGain/avgLoss))
	switch {
	case rsi < 0:
		return 0
	case rsi > 100:
		return 100
	}
	return rsi
}

// RSIOf returns the n-period Wilder RSI of values, first defined at index n.
func RSIOf(values []float64, n int) []float64 {
	// n deltas need n+1 values.
	if n <= 0 || unusable(n+1, len(values)) {
		return nanSlice(len(values))
	}
	return fold(values, NewRSI(n))
}

// RSI zone thresholds used for overbought/oversold annotation.
const (
	RSIOverbought = 70.0
	RSIOversold   = 30.0
)

// RSIZone classifies an RSI value.
func RSIZone(v float64) string {
	switch {
	case !Defined(v):
		return ""
	case v >= RSIOverbought:
		return "overbought"
	case v <= RSIOversold:
		return "oversold"
	}
	return "neutral"
}
