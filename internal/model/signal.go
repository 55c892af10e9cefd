package model

import "time"

// Direction is the action a strategy recommends for a bar.
type Direction string

const (
	Buy  Direction = "BUY"
	Sell Direction = "SELL"
	Hold Direction = "HOLD"
)

// Signal is a strategy's decision for one bar.
type Signal struct {
	TS         time.Time `json:"ts"`
	Direction  Direction `json:"direction"`
	Confidence float64   `json:"confidence"` // 0..1
	Reason     string    `json:"reason"`
}

// HoldSignal builds a HOLD with zero confidence.
func HoldSignal(ts time.Time, reason string) Signal {
	return Signal{TS: ts, Direction: Hold, Reason: reason}
}
