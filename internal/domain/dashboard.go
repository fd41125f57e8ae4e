package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// QuickSummary is the cheap dashboard view derived from a full result set.
type QuickSummary struct {
	OwnerID              string           `json:"owner_id"`
	Horizon              int              `json:"horizon_days"`
	TotalPredictedDemand int              `json:"total_predicted_demand"`
	UrgentRestockCount   int              `json:"urgent_restock_count"`
	HighConfidenceCount  int              `json:"high_confidence_count"`
	TotalOrderValue      decimal.Decimal  `json:"total_order_value"`
	TopForecasts         []ForecastResult `json:"top_forecasts"`
}

// PriorityBuckets partitions results strictly by urgency tier.
type PriorityBuckets struct {
	High   []ForecastResult `json:"high"`
	Medium []ForecastResult `json:"medium"`
	Low    []ForecastResult `json:"low"`
}

// ForecastReport bundles one run's sorted results with the aggregator's views.
type ForecastReport struct {
	RunID       uuid.UUID        `json:"run_id"`
	OwnerID     string           `json:"owner_id"`
	Horizon     int              `json:"horizon_days"`
	GeneratedAt time.Time        `json:"generated_at"`
	Results     []ForecastResult `json:"results"`
	Priorities  PriorityBuckets  `json:"priorities"`
	Insights    []string         `json:"insights"`
}
