package indicator

// smoother is exponential smoothing seeded with the simple mean of the
// first period values: v = prev + alpha*(x - prev).
type smoother struct {
	period  int
	alpha   float64
	count   int
	sum     float64
	current float64
}

func newSmoother(period int, alpha func(n int) float64) smoother {
	if period < 1 {
		period = 1
	}
	return smoother{period: period, alpha: alpha(period)}
}

// step returns the value after x without storing anything. Before the
// seed completes it is the mean of the values so far.
func (m *smoother) step(x float64) float64 {
	if m.count < m.period {
		return (m.sum + x) / float64(m.count+1)
	}
	return m.current + m.alpha*(x-m.current)
}

func (m *smoother) Update(x float64) {
	m.current = m.step(x)
	if m.count < m.period {
		m.sum += x
	}
	m.count++
}

// Value is 0 until Ready.
func (m *smoother) Value() float64 {
	if !m.Ready() {
		return 0
	}
	return m.current
}

func (m *smoother) Ready() bool            { return m.count >= m.period }
func (m *smoother) Peek(x float64) float64 { return m.step(x) }

func (m *smoother) Reset() {
	m.count = 0
	m.sum = 0
	m.current = 0
}

// EMA is the exponential moving average with k = 2/(period+1).
type EMA struct{ smoother }

// NewEMA returns an EMA over period values.
func NewEMA(period int) *EMA {
	return &EMA{newSmoother(period, func(n int) float64 { return 2 / float64(n+1) })}
}

func (e *EMA) Name() string { return "EMA" }

// EMAOf returns the n-period EMA of values, first defined at index n-1.
func EMAOf(values []float64, n int) []float64 {
	if unusable(n, len(values)) {
		return nanSlice(len(values))
	}
	return fold(values, NewEMA(n))
}
