package forecast

import "sort"

// HighGrowthCutoff is the market growth multiplier above which a category counts as
// trending.
const HighGrowthCutoff = 1.2

// MarketTrends supplies per-category market growth multipliers.
type MarketTrends interface {
	// Growth returns the multiplier for a category; false when the category is unknown.
	Growth(category string) (float64, bool)
	// Categories lists every category the provider knows, sorted.
	Categories() []string
}

// StaticMarketTrends is a fixed category → growth table.
type StaticMarketTrends map[string]float64

func (t StaticMarketTrends) Growth(category string) (float64, bool) {
	g, ok := t[NormalizeCategory(category)]
	return g, ok
}

func (t StaticMarketTrends) Categories() []string {
	out := make([]string, 0, len(t))
	for c := range t {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// DefaultMarketTrends is the built-in growth table used when no provider is configured.
func DefaultMarketTrends() StaticMarketTrends {
	return StaticMarketTrends{
		"antimalarial": 1.25,
		"respiratory":  1.15,
		"rehydration":  1.10,
		"vitamins":     1.30,
		"analgesic":    1.05,
		"antibiotic":   0.95,
	}
}

// CategoryTrend pairs a category with its growth multiplier.
type CategoryTrend struct {
	Category string
	Growth   float64
}

// trendingCategories returns the categories above the high-growth cutoff, fastest first.
func trendingCategories(m MarketTrends) []CategoryTrend {
	if m == nil {
		return nil
	}
	var out []CategoryTrend
	for _, c := range m.Categories() {
		if g, ok := m.Growth(c); ok && g > HighGrowthCutoff {
			out = append(out, CategoryTrend{Category: c, Growth: g})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Growth > out[j].Growth })
	return out
}
