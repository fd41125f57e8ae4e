package forecast

import (
	"math"
	"testing"
	"time"

	"github.com/andresuchdata/stockcast/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestClassifyUrgency(t *testing.T) {
	tests := []struct {
		stock, threshold, demand int
		want                     domain.Urgency
	}{
		{5, 10, 20, domain.UrgencyCritical},
		{30, 10, 40, domain.UrgencyHigh},
		{100, 10, 160, domain.UrgencyMedium},
		{100, 10, 90, domain.UrgencyLow},
		{10, 10, 10, domain.UrgencyLow},  // at threshold but demand covered
		{15, 10, 19, domain.UrgencyHigh}, // within 2x threshold
		{0, 0, 0, domain.UrgencyLow},
	}
	for _, tt := range tests {
		got := ClassifyUrgency(tt.stock, tt.threshold, tt.demand)
		assert.Equal(t, tt.want, got, "S=%d T=%d D=%d", tt.stock, tt.threshold, tt.demand)
	}
}

func TestRecommendAction(t *testing.T) {
	assert.Equal(t, domain.ActionUrgentRestock, RecommendAction(10, 10, 0))
	assert.Equal(t, domain.ActionIncreaseStock, RecommendAction(100, 10, 151))
	assert.Equal(t, domain.ActionMaintainStock, RecommendAction(100, 10, 150))
	assert.Equal(t, domain.ActionMaintainStock, RecommendAction(100, 10, 50))
	assert.Equal(t, domain.ActionReduceStock, RecommendAction(100, 10, 49))
}

func TestRecommendAction_MonotoneInDemand(t *testing.T) {
	order := map[domain.Action]int{
		domain.ActionReduceStock:   0,
		domain.ActionMaintainStock: 1,
		domain.ActionIncreaseStock: 2,
	}

	prev := -1
	seen := map[domain.Action]bool{}
	for d := 0; d <= 400; d++ {
		action := RecommendAction(100, 10, d)
		rank, ok := order[action]
		if !assert.True(t, ok, "unexpected action %s at D=%d", action, d) {
			return
		}
		assert.GreaterOrEqual(t, rank, prev, "action moved backwards at D=%d", d)
		prev = rank
		seen[action] = true
	}
	assert.Len(t, seen, 3)
}

func TestSuggestedOrderQty(t *testing.T) {
	assert.Equal(t, 30, SuggestedOrderQty(domain.ActionUrgentRestock, 10, 20))
	assert.Equal(t, 60, SuggestedOrderQty(domain.ActionUrgentRestock, 10, 40))
	assert.Equal(t, 60, SuggestedOrderQty(domain.ActionUrgentRestock, 20, 0))
	assert.Equal(t, 192, SuggestedOrderQty(domain.ActionIncreaseStock, 10, 160))
	assert.Equal(t, 32, SuggestedOrderQty(domain.ActionReduceStock, 10, 40))
	assert.Equal(t, 100, SuggestedOrderQty(domain.ActionMaintainStock, 10, 100))
}

func TestReorderPointAndSafetyStock(t *testing.T) {
	assert.Equal(t, 30, ReorderPoint(100))
	assert.Equal(t, 20, SafetyStock(100))
	assert.Equal(t, 2, ReorderPoint(5))
	assert.Equal(t, 1, SafetyStock(5))
	assert.Zero(t, ReorderPoint(0))
}

func TestRiskFactors(t *testing.T) {
	at := day(2026, time.June, 1)
	expiry := day(2026, time.July, 1)

	factors := RiskFactors(RiskInput{
		Stock:        5,
		Threshold:    10,
		Demand:       20,
		Category:     "Antimalarial",
		ExpiryDate:   &expiry,
		At:           at,
		MarketTrends: DefaultMarketTrends(),
	})

	assert.Equal(t, []string{
		"Predicted demand exceeds double current stock",
		"Stock at or below reorder threshold",
		"Category antimalarial trending up 25%",
		"Expires within 30 days",
	}, factors)
}

func TestRiskFactors_NoneApply(t *testing.T) {
	expiry := day(2027, time.January, 1)
	factors := RiskFactors(RiskInput{
		Stock:        100,
		Threshold:    10,
		Demand:       90,
		Category:     "antibiotic",
		ExpiryDate:   &expiry,
		At:           day(2026, time.June, 1),
		MarketTrends: DefaultMarketTrends(),
	})

	assert.NotNil(t, factors)
	assert.Empty(t, factors)
}

func TestRiskFactors_Expired(t *testing.T) {
	expiry := day(2026, time.May, 1)
	factors := RiskFactors(RiskInput{Stock: 50, Threshold: 10, Demand: 10, ExpiryDate: &expiry, At: day(2026, time.June, 1)})

	assert.Equal(t, []string{"Stock already expired"}, factors)
}

func TestConfidenceScore(t *testing.T) {
	assert.Equal(t, 50, ConfidenceScore(0, 1.0, false))
	assert.Equal(t, 30, ConfidenceScore(0, 1.6, false))
	assert.Equal(t, 60, ConfidenceScore(4, 1.3, false))
	assert.Equal(t, 100, ConfidenceScore(20, 1.0, false))
	assert.Equal(t, 100, ConfidenceScore(200, 0.8, false))
	assert.Equal(t, 80, ConfidenceScore(26, 1.5, false))
}

func TestConfidenceScore_DegradedIsLow(t *testing.T) {
	assert.Equal(t, 30, ConfidenceScore(0, 1.0, true))
	assert.Equal(t, 10, ConfidenceScore(0, 1.6, true))
	assert.Equal(t, 80, ConfidenceScore(20, 1.0, true))
	assert.Less(t, ConfidenceScore(2, 1.0, true), ConfidenceScore(2, 1.0, false))
}

func TestClassifyTrend(t *testing.T) {
	flat := repeat(10, 8)
	shifted := []float64{10, 10, 10, 10, 20, 20, 20, 20}

	assert.Equal(t, domain.TrendIncreasing, ClassifyTrend(1.31, flat))
	assert.Equal(t, domain.TrendDecreasing, ClassifyTrend(0.79, flat))
	assert.Equal(t, domain.TrendStable, ClassifyTrend(1.0, flat))
	assert.Equal(t, domain.TrendCyclical, ClassifyTrend(1.0, shifted))
	// too short to judge the short-vs-long ratio
	assert.Equal(t, domain.TrendStable, ClassifyTrend(1.0, shifted[2:]))
}

func TestConfidenceInterval(t *testing.T) {
	assert.Equal(t, domain.Interval{Lower: 20, Upper: 60}, ConfidenceInterval(40, DemandSeries{}, 4))
	assert.Equal(t, domain.Interval{Lower: 40, Upper: 40}, ConfidenceInterval(40, DemandSeries{Values: []float64{10, 10}}, 4))

	// stddev 2 over 4 periods: 1.96 * 2 * 2 = 7.84
	wide := ConfidenceInterval(10, DemandSeries{Values: []float64{2, 4, 4, 4, 5, 5, 7, 9}}, 4)
	assert.Equal(t, domain.Interval{Lower: 2, Upper: 18}, wide)

	floor := ConfidenceInterval(3, DemandSeries{Values: []float64{0, 40}}, 12)
	assert.Zero(t, floor.Lower)
}

func TestConfidenceInterval_NonFiniteSpreadFallsBack(t *testing.T) {
	for _, v := range []float64{math.NaN(), math.Inf(1)} {
		got := ConfidenceInterval(40, DemandSeries{Values: []float64{10, v, 10}}, 4)
		assert.Equal(t, domain.Interval{Lower: 20, Upper: 60}, got, "spread from %v", v)
	}
}
