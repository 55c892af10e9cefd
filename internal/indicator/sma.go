package indicator

// SMA is the trailing mean of the last period values. It keeps a running
// sum over a Window, so each update is O(1).
type SMA struct {
	period int
	win    *Window
	sum    float64
}

// NewSMA returns an SMA over period values (minimum 1).
func NewSMA(period int) *SMA {
	if period < 1 {
		period = 1
	}
	return &SMA{period: period, win: NewWindow(period)}
}

func (s *SMA) Name() string { return "SMA" }

func (s *SMA) Update(x float64) {
	if s.win.Full() {
		s.sum -= s.win.Oldest()
	}
	s.sum += x
	s.win.Push(x)
}

// Value is the mean once Ready, else 0.
func (s *SMA) Value() float64 {
	if !s.Ready() {
		return 0
	}
	return s.sum / float64(s.period)
}

func (s *SMA) Ready() bool { return s.win.Full() }

// Peek is the mean Update(x) would produce. Before the window fills it is
// the partial mean including x.
func (s *SMA) Peek(x float64) float64 {
	if !s.win.Full() {
		return (s.sum + x) / float64(s.win.Len()+1)
	}
	return (s.sum - s.win.Oldest() + x) / float64(s.period)
}

func (s *SMA) Reset() {
	s.win.Reset()
	s.sum = 0
}

// SMAOf returns the trailing n-period mean of values. The first n-1
// outputs are NaN.
func SMAOf(values []float64, n int) []float64 {
	if unusable(n, len(values)) {
		return nanSlice(len(values))
	}
	return fold(values, NewSMA(n))
}
