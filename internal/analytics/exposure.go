package analytics

import (
	"fmt"
	"math"
	"sort"

	"trading-analytics/internal/model"
)

// UnclassifiedSector collects symbols with no sector mapping.
const UnclassifiedSector = "UNCLASSIFIED"

// Risk levels by Herfindahl-Hirschman index of position weights.
const (
	RiskLevelHigh   = "High"
	RiskLevelMedium = "Medium"
	RiskLevelLow    = "Low"

	hhiHigh   = 0.25
	hhiMedium = 0.15
)

// PositionWeight is one position's share of total portfolio value.
type PositionWeight struct {
	Symbol      string  `json:"symbol"`
	MarketValue float64 `json:"market_value"`
	WeightPct   float64 `json:"weight_pct"`
}

// SectorWeight aggregates positions by sector.
type SectorWeight struct {
	Sector      string   `json:"sector"`
	MarketValue float64  `json:"market_value"`
	WeightPct   float64  `json:"weight_pct"`
	Symbols     []string `json:"symbols"`
}

// Exposure is the concentration view of a snapshot.
type Exposure struct {
	TotalValue           float64          `json:"total_value"`
	GrossExposure        float64          `json:"gross_exposure"`
	Leverage             float64          `json:"leverage"`
	Insolvent            bool             `json:"insolvent,omitempty"` // exposure with equity <= 0; leverage unbounded
	Positions            []PositionWeight `json:"positions"`
	Sectors              []SectorWeight   `json:"sectors"`
	LargestPosition      string           `json:"largest_position"`
	LargestWeightPct     float64          `json:"largest_weight_pct"`
	HHI                  float64          `json:"hhi"`
	DiversificationScore float64          `json:"diversification_score"`
	RiskLevel            string           `json:"risk_level"`
	Recommendations      []string         `json:"recommendations"`
}

// TotalValue is cash plus signed position value (portfolio equity).
func TotalValue(s model.PortfolioSnapshot) float64 { return s.Equity() }

// Concentration returns each position's |market value| as a percentage of
// total portfolio value, largest first. Weights are 0 when total value is
// not positive.
func Concentration(s model.PortfolioSnapshot) []PositionWeight {
	total := TotalValue(s)
	out := make([]PositionWeight, 0, len(s.Positions))
	for i := range s.Positions {
		p := &s.Positions[i]
		if p.Quantity == 0 {
			continue
		}
		w := PositionWeight{Symbol: p.Symbol, MarketValue: p.MarketValue()}
		if total > 0 {
			w.WeightPct = math.Abs(w.MarketValue) / total * 100
		}
		out = append(out, w)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].WeightPct != out[j].WeightPct {
			return out[i].WeightPct > out[j].WeightPct
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

// SectorExposure groups positions by sector; unmapped symbols go to
// UnclassifiedSector. Sorted by weight, largest first.
func SectorExposure(s model.PortfolioSnapshot, sectors map[string]string) []SectorWeight {
	total := TotalValue(s)
	bySector := make(map[string]*SectorWeight)
	for i := range s.Positions {
		p := &s.Positions[i]
		if p.Quantity == 0 {
			continue
		}
		name, ok := sectors[p.Symbol]
		if !ok || name == "" {
			name = UnclassifiedSector
		}
		sw, ok := bySector[name]
		if !ok {
			sw = &SectorWeight{Sector: name}
			bySector[name] = sw
		}
		sw.MarketValue += math.Abs(p.MarketValue())
		sw.Symbols = append(sw.Symbols, p.Symbol)
	}
	out := make([]SectorWeight, 0, len(bySector))
	for _, sw := range bySector {
		if total > 0 {
			sw.WeightPct = sw.MarketValue / total * 100
		}
		sort.Strings(sw.Symbols)
		out = append(out, *sw)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].WeightPct != out[j].WeightPct {
			return out[i].WeightPct > out[j].WeightPct
		}
		return out[i].Sector < out[j].Sector
	})
	return out
}

// HHI is Σw² over position weights normalized to gross exposure, in [0,1].
// An empty book has HHI 0.
func HHI(s model.PortfolioSnapshot) float64 {
	gross := s.GrossExposure()
	if gross == 0 {
		return 0
	}
	var h float64
	for i := range s.Positions {
		w := math.Abs(s.Positions[i].MarketValue()) / gross
		h += w * w
	}
	return h
}

// RiskLevelFor classifies an HHI.
func RiskLevelFor(hhi float64) string {
	switch {
	case hhi > hhiHigh:
		return RiskLevelHigh
	case hhi > hhiMedium:
		return RiskLevelMedium
	}
	return RiskLevelLow
}

// Leverage is gross exposure over equity; +Inf when equity is not positive
// and there is exposure.
func Leverage(s model.PortfolioSnapshot) float64 {
	gross := s.GrossExposure()
	eq := s.Equity()
	if gross == 0 {
		return 0
	}
	if eq <= 0 {
		return math.Inf(1)
	}
	return gross / eq
}

// AnalyzeExposure builds the full concentration view.
func AnalyzeExposure(s model.PortfolioSnapshot, sectors map[string]string) Exposure {
	e := Exposure{
		TotalValue:    TotalValue(s),
		GrossExposure: s.GrossExposure(),
		Leverage:      Leverage(s),
		Positions:     Concentration(s),
		Sectors:       SectorExposure(s, sectors),
		HHI:           HHI(s),
	}
	if math.IsInf(e.Leverage, 1) {
		e.Leverage = 0
		e.Insolvent = true
	}
	e.DiversificationScore = (1 - e.HHI) * 100
	if len(e.Positions) == 0 {
		e.DiversificationScore = 0
	}
	e.RiskLevel = RiskLevelFor(e.HHI)
	if len(e.Positions) > 0 {
		e.LargestPosition = e.Positions[0].Symbol
		e.LargestWeightPct = e.Positions[0].WeightPct
	}
	e.Recommendations = recommendations(s, e)
	return e
}

func recommendations(s model.PortfolioSnapshot, e Exposure) []string {
	var out []string
	if e.HHI > hhiHigh {
		out = append(out, fmt.Sprintf("High concentration (HHI %.2f): consider reducing %s", e.HHI, e.LargestPosition))
	}
	var winners, losers int
	for i := range s.Positions {
		switch u := s.Positions[i].UnrealizedPnL(); {
		case u > 0:
			winners++
		case u < 0:
			losers++
		}
	}
	if losers > winners {
		out = append(out, fmt.Sprintf("%d losing positions vs %d winning: review stop-loss levels", losers, winners))
	}
	if n := len(e.Positions); n > 0 && n < 5 {
		out = append(out, fmt.Sprintf("Only %d holdings: consider diversifying across more positions", n))
	}
	if len(e.Sectors) == 1 && len(e.Positions) > 1 {
		out = append(out, "All holdings are in one sector: consider sector diversification")
	}
	return out
}

// Summary mirrors the dashboard's portfolio totals.
type Summary struct {
	TotalInvestment  float64 `json:"total_investment"`
	CurrentValue     float64 `json:"current_value"`
	TotalPnL         float64 `json:"total_pnl"`
	TotalPnLPct      float64 `json:"total_pnl_pct"`
	ProfitableCount  int     `json:"profitable_count"`
	LossMakingCount  int     `json:"loss_making_count"`
	PositionCount    int     `json:"position_count"`
	Cash             float64 `json:"cash"`
	DailyRealizedPnL float64 `json:"daily_realized_pnl"`
}

// Summarize computes cost-basis totals for open positions.
func Summarize(s model.PortfolioSnapshot) Summary {
	sum := Summary{Cash: s.Cash, DailyRealizedPnL: s.DailyRealizedPnL}
	for i := range s.Positions {
		p := &s.Positions[i]
		if p.Quantity == 0 {
			continue
		}
		sum.PositionCount++
		sum.TotalInvestment += math.Abs(p.Quantity) * p.AvgEntryPrice
		sum.CurrentValue += math.Abs(p.MarketValue())
		u := p.UnrealizedPnL()
		sum.TotalPnL += u
		switch {
		case u > 0:
			sum.ProfitableCount++
		case u < 0:
			sum.LossMakingCount++
		}
	}
	if sum.TotalInvestment > 0 {
		sum.TotalPnLPct = sum.TotalPnL / sum.TotalInvestment * 100
	}
	return sum
}
