package indicator

import "math"

// Mean of values; 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev is the sample standard deviation (n-1 denominator); 0 when fewer
// than two values.
func StdDev(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	m := Mean(values)
	var ss float64
	for _, v := range values {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1))
}

// RollingStdDev returns the sample stddev over each trailing window of n,
// NaN for the first n-1 points.
func RollingStdDev(values []float64, n int) []float64 {
	out := nanSlice(len(values))
	if n <= 0 {
		return out
	}
	for i := n - 1; i < len(values); i++ {
		out[i] = StdDev(values[i-n+1 : i+1])
	}
	return out
}

// NearZero reports whether sd is negligible relative to the level it
// describes. Rolling sums leave residue around 1e-13 on flat data.
func NearZero(sd, level float64) bool {
	return sd <= 1e-12*math.Max(1, math.Abs(level))
}

// Window keeps the last n values in a ring for rolling statistics.
type Window struct {
	buf   []float64
	idx   int
	count int
}

// NewWindow creates a rolling window of size n (minimum 1).
func NewWindow(n int) *Window {
	if n < 1 {
		n = 1
	}
	return &Window{buf: make([]float64, n)}
}

// Push appends x, evicting the oldest value once full.
func (w *Window) Push(x float64) {
	w.buf[w.idx] = x
	w.idx = (w.idx + 1) % len(w.buf)
	if w.count < len(w.buf) {
		w.count++
	}
}

// Full reports whether n values have been pushed.
func (w *Window) Full() bool { return w.count == len(w.buf) }

// Len is the number of values held.
func (w *Window) Len() int { return w.count }

// Values returns held values oldest first.
func (w *Window) Values() []float64 {
	out := make([]float64, 0, w.count)
	start := (w.idx - w.count + len(w.buf)) % len(w.buf)
	for i := 0; i < w.count; i++ {
		out = append(out, w.buf[(start+i)%len(w.buf)])
	}
	return out
}

// Oldest returns the earliest held value.
func (w *Window) Oldest() float64 {
	return w.buf[(w.idx-w.count+len(w.buf))%len(w.buf)]
}

// Mean of held values.
func (w *Window) Mean() float64 { return Mean(w.Values()) }

// StdDev is the sample standard deviation of held values.
func (w *Window) StdDev() float64 { return StdDev(w.Values()) }

// Reset empties the window.
func (w *Window) Reset() {
	w.idx = 0
	w.count = 0
}
