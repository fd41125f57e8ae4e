package forecast

import (
	"fmt"
	"math"
	"time"

	"github.com/andresuchdata/stockcast/internal/domain"
)

const (
	// ExpiryWarningWindow flags stock that expires soon after the run date.
	ExpiryWarningWindow = 90 * 24 * time.Hour

	baseConfidence        = 30
	confidencePerPoint    = 2.5
	maxHistoryConfidence  = 50
	moderateBonus         = 20
	moderateBandLow       = 0.8
	moderateBandHigh      = 1.3
	cyclicalMargin        = 0.25
	cyclicalShortWindow   = 4
	cyclicalMinPoints     = 8
	intervalZ             = 1.96
	noHistoryIntervalSpan = 0.5
	highUrgencyStockBand  = 3
	degradedPenalty       = 20
)

// NoSnapshotRisk marks an item the ledger sells but the stock collaborator does not
// track.
const NoSnapshotRisk = "No stock snapshot for this item"

// RecommendAction derives the stocking action from total demand D, stock S and
// threshold T.
func RecommendAction(stock, threshold, demand int) domain.Action {
	s, d := float64(stock), float64(demand)
	switch {
	case stock <= threshold:
		return domain.ActionUrgentRestock
	case d > s*1.5:
		return domain.ActionIncreaseStock
	case d < s*0.5:
		return domain.ActionReduceStock
	default:
		return domain.ActionMaintainStock
	}
}

// SuggestedOrderQty sizes the order for an action.
func SuggestedOrderQty(action domain.Action, threshold, demand int) int {
	d := float64(demand)
	switch action {
	case domain.ActionUrgentRestock:
		return int(math.Round(math.Max(d*1.5, float64(threshold)*3)))
	case domain.ActionIncreaseStock:
		return int(math.Round(d * 1.2))
	case domain.ActionReduceStock:
		return int(math.Round(d * 0.8))
	default:
		return demand
	}
}

// ReorderPoint is 30% of the horizon demand.
func ReorderPoint(demand int) int {
	return int(math.Round(float64(demand) * 0.3))
}

// SafetyStock is 20% of the horizon demand.
func SafetyStock(demand int) int {
	return int(math.Round(float64(demand) * 0.2))
}

// ClassifyUrgency is a pure function of (S, T, D). Stock within highUrgencyStockBand
// thresholds that demand outruns by 20% is high urgency.
func ClassifyUrgency(stock, threshold, demand int) domain.Urgency {
	s, t, d := float64(stock), float64(threshold), float64(demand)
	switch {
	case s <= t && d > s:
		return domain.UrgencyCritical
	case s <= t*highUrgencyStockBand && d > s*1.2:
		return domain.UrgencyHigh
	case d > s*1.5:
		return domain.UrgencyMedium
	default:
		return domain.UrgencyLow
	}
}

// RiskInput is everything the risk-factor rules look at.
type RiskInput struct {
	Stock        int
	Threshold    int
	Demand       int
	Category     string
	ExpiryDate   *time.Time
	At           time.Time
	MarketTrends MarketTrends
}

// RiskFactors lists every rule that fires; they are not exclusive.
func RiskFactors(in RiskInput) []string {
	factors := []string{}

	if float64(in.Demand) > float64(in.Stock)*2 {
		factors = append(factors, "Predicted demand exceeds double current stock")
	}
	if in.Stock <= in.Threshold {
		factors = append(factors, "Stock at or below reorder threshold")
	}
	if in.MarketTrends != nil {
		if g, ok := in.MarketTrends.Growth(in.Category); ok && g > HighGrowthCutoff {
			factors = append(factors, fmt.Sprintf("Category %s trending up %.0f%%", NormalizeCategory(in.Category), (g-1)*100))
		}
	}
	if in.ExpiryDate != nil && !in.ExpiryDate.After(in.At.Add(ExpiryWarningWindow)) {
		if in.ExpiryDate.Before(in.At) {
			factors = append(factors, "Stock already expired")
		} else {
			days := int(in.ExpiryDate.Sub(in.At).Hours() / 24)
			factors = append(factors, fmt.Sprintf("Expires within %d days", days))
		}
	}
	return factors
}

// ConfidenceScore grows with history length and rewards a moderate environmental
// multiplier. A degraded forecast, one with no usable history or no stock snapshot,
// loses degradedPenalty points. The result is within 0..100.
func ConfidenceScore(observations int, multiplier float64, degraded bool) int {
	score := float64(baseConfidence)
	score += math.Min(float64(observations)*confidencePerPoint, maxHistoryConfidence)
	if multiplier >= moderateBandLow && multiplier <= moderateBandHigh {
		score += moderateBonus
	}
	if degraded {
		score -= degradedPenalty
	}
	return int(math.Max(0, math.Min(100, math.Round(score))))
}

// ClassifyTrend reads the multiplier first, then the recent-vs-overall demand ratio.
func ClassifyTrend(multiplier float64, series []float64) domain.Trend {
	switch {
	case multiplier > moderateBandHigh:
		return domain.TrendIncreasing
	case multiplier < moderateBandLow:
		return domain.TrendDecreasing
	}

	if len(series) >= cyclicalMinPoints {
		long := mean(series)
		short := mean(series[len(series)-cyclicalShortWindow:])
		if long > 0 && math.Abs(short/long-1) > cyclicalMargin {
			return domain.TrendCyclical
		}
	}
	return domain.TrendStable
}

// ConfidenceInterval bounds the total demand using the series' spread over the
// horizon. Without history, or when the spread is not finite, the bound is ±50%.
func ConfidenceInterval(demand int, series DemandSeries, periods int) domain.Interval {
	d := float64(demand)
	margin := d * noHistoryIntervalSpan
	if series.Len() >= 2 {
		if spread := intervalZ * series.StdDev() * math.Sqrt(float64(periods)); !math.IsNaN(spread) && !math.IsInf(spread, 0) {
			margin = spread
		}
	}
	return domain.Interval{
		Lower: int(math.Max(0, math.Round(d-margin))),
		Upper: int(math.Round(d + margin)),
	}
}
