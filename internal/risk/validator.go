package risk

import (
	"fmt"
	"math"

	"trading-analytics/internal/model"
	"trading-analytics/internal/portfolio"
)

// Validate checks order against limits using snapshot as the pre-trade
// state. Rejections are reported as violations in the assessment; the
// error is non-nil only when limits themselves are invalid.
func Validate(snapshot model.PortfolioSnapshot, order model.Order, limits model.RiskLimits) (model.RiskAssessment, error) {
	if err := limits.Validate(); err != nil {
		return model.RiskAssessment{}, fmt.Errorf("risk: %w", err)
	}
	if msg := checkOrder(order); msg != "" {
		return model.RiskAssessment{
			Approved:   false,
			RiskScore:  100,
			Violations: []model.Violation{{Rule: RuleOrder, Message: msg, Severity: model.SeverityCritical}},
		}, nil
	}

	pt := project(snapshot, order)
	var (
		violations []model.Violation
		maxUtil    float64
	)
	check := func(rule string, value, limit float64, format string) {
		if limit == 0 {
			return
		}
		u := value / limit
		maxUtil = math.Max(maxUtil, u)
		switch {
		case u > 1:
			violations = append(violations, model.Violation{
				Rule: rule, Message: fmt.Sprintf(format, value, limit), Severity: model.SeverityCritical,
			})
		case u >= WarnUtilization:
			violations = append(violations, model.Violation{
				Rule: rule, Message: fmt.Sprintf(format, value, limit) + " (near limit)", Severity: model.SeverityWarning,
			})
		}
	}

	check(RulePositionSize, pt.positionValue, limits.MaxPositionSize,
		"position value %.2f vs limit %.2f")

	// Daily loss only blocks orders that add risk; reducing is always allowed.
	if pt.increasesRisk {
		if loss := -snapshot.DailyPnL(); loss > 0 {
			check(RuleDailyLoss, loss, limits.MaxDailyLoss, "daily loss %.2f vs limit %.2f")
		}
	}

	if pt.equity <= 0 {
		insolvent := func(rule string, limit float64) {
			if limit == 0 {
				return
			}
			maxUtil = math.Inf(1)
			violations = append(violations, model.Violation{
				Rule:     rule,
				Message:  fmt.Sprintf("post-trade equity %.2f is not positive", pt.equity),
				Severity: model.SeverityCritical,
			})
		}
		insolvent(RuleConcentration, limits.MaxPortfolioConcentrationPct)
		insolvent(RuleLeverage, limits.MaxLeverage)
	} else {
		check(RuleConcentration, pt.positionValue/pt.equity*100, limits.MaxPortfolioConcentrationPct,
			"concentration %.2f%% vs limit %.2f%%")
		check(RuleLeverage, pt.gross/pt.equity, limits.MaxLeverage,
			"leverage %.2fx vs limit %.2fx")
	}

	a := model.RiskAssessment{
		RiskScore:  math.Min(100, 100*maxUtil),
		Violations: violations,
	}
	a.Approved = len(a.Critical()) == 0
	return a, nil
}

func checkOrder(o model.Order) string {
	switch {
	case o.Symbol == "":
		return "order symbol is empty"
	case o.Side != model.SideBuy && o.Side != model.SideSell:
		return fmt.Sprintf("unknown order side %q", o.Side)
	case !(o.Quantity > 0) || math.IsInf(o.Quantity, 0):
		return fmt.Sprintf("order quantity %v must be positive", o.Quantity)
	case !(o.Price > 0) || math.IsInf(o.Price, 0):
		return fmt.Sprintf("order price %v must be positive", o.Price)
	}
	return ""
}

type postTrade struct {
	positionValue float64 // |qty after| × order price
	gross         float64
	equity        float64
	increasesRisk bool
}

// project applies order to snapshot as if filled at the order price with
// no costs. Other positions keep their marks.
func project(s model.PortfolioSnapshot, o model.Order) postTrade {
	before := s.Position(o.Symbol)
	after, _ := portfolio.ApplyFill(before, model.Fill{
		Symbol: o.Symbol, Side: o.Side, Quantity: o.Quantity, Price: o.Price,
	})

	cash := s.Cash - o.SignedQty()*o.Price
	var gross, value float64
	for _, p := range s.Positions {
		if p.Symbol == o.Symbol {
			continue
		}
		gross += math.Abs(p.MarketValue())
		value += p.MarketValue()
	}
	mv := after.Quantity * o.Price
	gross += math.Abs(mv)
	value += mv

	qb, qa := before.Quantity, after.Quantity
	flipped := qb != 0 && qa != 0 && (qb > 0) != (qa > 0)
	return postTrade{
		positionValue: math.Abs(mv),
		gross:         gross,
		equity:        cash + value,
		increasesRisk: math.Abs(qa) > math.Abs(qb) || flipped,
	}
}
