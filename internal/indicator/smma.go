package indicator

// SMMA is Wilder's smoothed moving average (alpha = 1/period), the
// smoothing behind ATR.
type SMMA struct{ smoother }

// NewSMMA returns an SMMA over period values.
func NewSMMA(period int) *SMMA {
	return &SMMA{newSmoother(period, func(n int) float64 { return 1 / float64(n) })}
}

func (s *SMMA) Name() string { return "SMMA" }

// SMMAOf returns the n-period Wilder average of values, first defined at
// index n-1.
func SMMAOf(values []float64, n int) []float64 {
	if unusable(n, len(values)) {
		return nanSlice(len(values))
	}
	return fold(values, NewSMMA(n))
}
