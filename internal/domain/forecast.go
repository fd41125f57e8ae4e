package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Horizon is a forecast length expressed in days.
type Horizon int

const (
	Horizon30 Horizon = 30
	Horizon60 Horizon = 60
	Horizon90 Horizon = 90
)

var horizonPeriods = map[Horizon]int{
	Horizon30: 4,
	Horizon60: 8,
	Horizon90: 12,
}

// ParseHorizon validates a day count. Only 30, 60 and 90 are supported.
func ParseHorizon(days int) (Horizon, error) {
	h := Horizon(days)
	if _, ok := horizonPeriods[h]; !ok {
		return 0, fmt.Errorf("%w: %d days (expected 30, 60 or 90)", ErrInvalidHorizon, days)
	}
	return h, nil
}

// Periods returns the number of weekly periods covered by the horizon.
func (h Horizon) Periods() int {
	return horizonPeriods[h]
}

// Days returns the horizon as a plain day count.
func (h Horizon) Days() int {
	return int(h)
}

// PeriodForecast is the predicted quantity for one future weekly period.
type PeriodForecast struct {
	Period   int    `json:"period"`
	Label    string `json:"label"`
	Quantity int    `json:"quantity"`
}

// PeriodLabel names the n-th future period (1-based).
func PeriodLabel(n int) string {
	return fmt.Sprintf("week_%d", n)
}

// Interval bounds the total predicted demand.
type Interval struct {
	Lower int `json:"lower"`
	Upper int `json:"upper"`
}

// ForecastResult is the per-item output of one forecast run. It is never mutated after
// creation; the next run replaces it.
type ForecastResult struct {
	ItemID               string           `json:"item_id"`
	ItemName             string           `json:"item_name"`
	Category             string           `json:"category"`
	Periods              []PeriodForecast `json:"periods"`
	TotalPredictedDemand int              `json:"total_predicted_demand"`
	ConfidenceInterval   Interval         `json:"confidence_interval"`
	Trend                Trend            `json:"trend"`
	RiskFactors          []string         `json:"risk_factors"`
	Action               Action           `json:"recommended_action"`
	SuggestedOrderQty    int              `json:"suggested_order_qty"`
	ReorderPoint         int              `json:"reorder_point"`
	SafetyStock          int              `json:"safety_stock"`
	Urgency              Urgency          `json:"urgency"`
	ConfidenceScore      int              `json:"confidence_score"`

	CurrentStock       int             `json:"current_stock"`
	ReorderThreshold   int             `json:"reorder_threshold"`
	Season             string          `json:"season"`
	Multiplier         float64         `json:"multiplier"`
	HistoryPoints      int             `json:"history_points"`
	UsedFallback       bool            `json:"used_fallback"`
	EstimatedOrderCost decimal.Decimal `json:"estimated_order_cost"`
}
