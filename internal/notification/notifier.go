// Package notification delivers alerts about risk rejections and
// backtest drawdowns to external channels (log, webhook).
package notification

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"trading-analytics/internal/model"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel        `json:"level"`
	Title   string            `json:"title"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier is a simple notifier that logs alerts (useful for development).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}

// Multi fans an alert out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, alert Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RiskRejected describes a rejected order.
func RiskRejected(order model.Order, a model.RiskAssessment) Alert {
	rules := make([]string, 0, len(a.Violations))
	for _, v := range a.Critical() {
		rules = append(rules, v.Rule)
	}
	return Alert{
		Level:   AlertWarning,
		Title:   "Order rejected by risk limits",
		Message: fmt.Sprintf("%s %g %s @ %.2f violated %s", order.Side, order.Quantity, order.Symbol, order.Price, strings.Join(rules, ", ")),
		Fields: map[string]string{
			"symbol":     order.Symbol,
			"risk_score": fmt.Sprintf("%.1f", a.RiskScore),
		},
	}
}

// DrawdownBreached reports a backtest whose max drawdown crossed limit.
func DrawdownBreached(runID, strategy, symbol string, drawdown, limit float64) Alert {
	return Alert{
		Level:   AlertCritical,
		Title:   "Backtest drawdown limit breached",
		Message: fmt.Sprintf("%s on %s: max drawdown %.2f%% exceeds %.2f%%", strategy, symbol, drawdown*100, limit*100),
		Fields:  map[string]string{"run_id": runID},
	}
}
