package domain

// Action is the stocking recommendation for an item.
type Action string

const (
	ActionUrgentRestock Action = "urgent_restock"
	ActionIncreaseStock Action = "increase_stock"
	ActionReduceStock   Action = "reduce_stock"
	ActionMaintainStock Action = "maintain_stock"
)

// Urgency is how soon a stocking action is needed.
type Urgency string

const (
	UrgencyCritical Urgency = "critical"
	UrgencyHigh     Urgency = "high"
	UrgencyMedium   Urgency = "medium"
	UrgencyLow      Urgency = "low"
)

// Trend classifies the demand direction of an item.
type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendCyclical   Trend = "cyclical"
	TrendStable     Trend = "stable"
)

// Priority is the dashboard bucket an item lands in.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

var urgencyRanks = map[Urgency]int{
	UrgencyCritical: 0,
	UrgencyHigh:     1,
	UrgencyMedium:   2,
	UrgencyLow:      3,
}

// Rank orders urgency tiers, most urgent first. Unknown tiers sort last.
func (u Urgency) Rank() int {
	if rank, ok := urgencyRanks[u]; ok {
		return rank
	}
	return len(urgencyRanks)
}

// Priority maps an urgency tier onto its dashboard bucket.
func (u Urgency) Priority() Priority {
	switch u {
	case UrgencyCritical, UrgencyHigh:
		return PriorityHigh
	case UrgencyMedium:
		return PriorityMedium
	default:
		return PriorityLow
	}
}
