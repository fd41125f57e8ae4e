package forecast

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/andresuchdata/stockcast/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	// DefaultHighConfidenceScore is the score at which a forecast counts as trusted.
	DefaultHighConfidenceScore = 80
	topForecastCount           = 5
)

// SortResults orders results by urgency (critical first), then confidence descending.
// The sort is stable and breaks remaining ties on item id so reruns line up.
func SortResults(results []domain.ForecastResult) {
	slices.SortStableFunc(results, func(a, b domain.ForecastResult) int {
		if c := cmp.Compare(a.Urgency.Rank(), b.Urgency.Rank()); c != 0 {
			return c
		}
		if c := cmp.Compare(b.ConfidenceScore, a.ConfidenceScore); c != 0 {
			return c
		}
		return cmp.Compare(a.ItemID, b.ItemID)
	})
}

// Prioritize partitions results into the high/medium/low buckets by urgency tier.
// Input order is preserved inside each bucket.
func Prioritize(results []domain.ForecastResult) domain.PriorityBuckets {
	buckets := domain.PriorityBuckets{
		High:   []domain.ForecastResult{},
		Medium: []domain.ForecastResult{},
		Low:    []domain.ForecastResult{},
	}
	for _, r := range results {
		switch r.Urgency.Priority() {
		case domain.PriorityHigh:
			buckets.High = append(buckets.High, r)
		case domain.PriorityMedium:
			buckets.Medium = append(buckets.Medium, r)
		default:
			buckets.Low = append(buckets.Low, r)
		}
	}
	return buckets
}

// Insights derives the free-text market summary lines from aggregate counts.
func Insights(results []domain.ForecastResult, trends MarketTrends) []string {
	insights := []string{}
	if len(results) == 0 {
		return append(insights, "No stocked items to forecast")
	}

	var urgent, increasing, excess, confidenceSum int
	for _, r := range results {
		switch r.Action {
		case domain.ActionUrgentRestock:
			urgent++
		case domain.ActionReduceStock:
			excess++
		}
		if r.Trend == domain.TrendIncreasing {
			increasing++
		}
		confidenceSum += r.ConfidenceScore
	}

	if urgent > 0 {
		insights = append(insights, fmt.Sprintf("%d %s flagged for immediate restocking", urgent, plural(urgent)))
	}
	if increasing > 0 {
		insights = append(insights, fmt.Sprintf("%d %s with rising seasonal demand", increasing, plural(increasing)))
	}
	if excess > 0 {
		insights = append(insights, fmt.Sprintf("%d %s overstocked for the forecast horizon", excess, plural(excess)))
	}
	for _, t := range trendingCategories(trends) {
		insights = append(insights, fmt.Sprintf("Market demand for %s is up %.0f%%", t.Category, (t.Growth-1)*100))
	}
	insights = append(insights, fmt.Sprintf("Average forecast confidence is %d%%", confidenceSum/len(results)))
	return insights
}

func plural(n int) string {
	if n == 1 {
		return "item"
	}
	return "items"
}

// Summarize builds the quick dashboard view from a sorted result set.
func Summarize(ownerID string, horizon domain.Horizon, results []domain.ForecastResult, highConfidence int) *domain.QuickSummary {
	if highConfidence <= 0 {
		highConfidence = DefaultHighConfidenceScore
	}

	summary := &domain.QuickSummary{
		OwnerID:         ownerID,
		Horizon:         horizon.Days(),
		TotalOrderValue: decimal.Zero,
	}
	for _, r := range results {
		summary.TotalPredictedDemand += r.TotalPredictedDemand
		if r.Action == domain.ActionUrgentRestock {
			summary.UrgentRestockCount++
		}
		if r.ConfidenceScore >= highConfidence {
			summary.HighConfidenceCount++
		}
		summary.TotalOrderValue = summary.TotalOrderValue.Add(r.EstimatedOrderCost)
	}

	top := min(topForecastCount, len(results))
	summary.TopForecasts = append([]domain.ForecastResult{}, results[:top]...)
	return summary
}
