package forecast

import (
	"iter"
	"math"
	"slices"
	"sort"
	"time"

	"github.com/andresuchdata/stockcast/internal/domain"
	"github.com/rs/zerolog/log"
)

// BucketSize is the width of one demand period.
const BucketSize = 7 * 24 * time.Hour

// Window is the slice of the ledger a run looks at: [End-Days, End).
type Window struct {
	Days int
	End  time.Time
}

// Start returns the inclusive lower bound of the window.
func (w Window) Start() time.Time {
	return w.End.Add(-time.Duration(w.Days) * 24 * time.Hour)
}

// Buckets returns how many weekly buckets cover the window.
func (w Window) Buckets() int {
	if w.Days <= 0 {
		return 0
	}
	return int(math.Ceil(float64(w.Days) / 7))
}

func (w Window) contains(t time.Time) bool {
	return !t.Before(w.Start()) && t.Before(w.End)
}

// bucketOf counts whole weeks back from End, so the newest bucket is always a full
// week and any partial week is the oldest bucket.
func (w Window) bucketOf(t time.Time) int {
	idx := w.Buckets() - 1 - int((w.End.Sub(t)-1)/BucketSize)
	if idx < 0 {
		idx = 0
	}
	return idx
}

// History indexes ledger rows by item for a single window. It only reads the rows it
// was built from.
type History struct {
	window Window
	byItem map[string][]domain.SalesRecord
}

// NewHistory keeps the rows that fall inside the window, grouped by item. Rows with a
// NaN or infinite quantity are dropped.
func NewHistory(records []domain.SalesRecord, window Window) *History {
	h := &History{
		window: window,
		byItem: make(map[string][]domain.SalesRecord),
	}
	for _, rec := range records {
		if rec.ItemID == "" || !window.contains(rec.SoldAt) {
			continue
		}
		if math.IsNaN(rec.Quantity) || math.IsInf(rec.Quantity, 0) {
			log.Warn().Str("owner_id", rec.OwnerID).Str("item_id", rec.ItemID).Time("sold_at", rec.SoldAt).
				Msg("forecast: non-finite sale quantity ignored")
			continue
		}
		h.byItem[rec.ItemID] = append(h.byItem[rec.ItemID], rec)
	}
	return h
}

// Window returns the window the history was built for.
func (h *History) Window() Window {
	return h.window
}

// Items lists the item ids that have at least one sale in the window.
func (h *History) Items() []string {
	ids := make([]string, 0, len(h.byItem))
	for id := range h.byItem {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Series yields the weekly sale quantities of an item, oldest first. Buckets start at
// the first week with a sale and run to the end of the window; quiet weeks in between
// yield zero. An item without sales yields nothing. The sequence can be ranged over
// any number of times.
func (h *History) Series(itemID string) iter.Seq[float64] {
	return func(yield func(float64) bool) {
		records := h.byItem[itemID]
		if len(records) == 0 {
			return
		}

		sums := make([]float64, h.window.Buckets())
		first := len(sums)
		for _, rec := range records {
			idx := h.window.bucketOf(rec.SoldAt)
			sums[idx] += rec.Quantity
			if idx < first {
				first = idx
			}
		}

		for _, qty := range sums[first:] {
			// returns can outweigh sales in a week; demand never goes negative
			if !yield(math.Max(0, qty)) {
				return
			}
		}
	}
}

// DemandSeries is the materialised series for one item.
type DemandSeries struct {
	ItemID string
	Values []float64
}

// Collect materialises the series of an item.
func (h *History) Collect(itemID string) DemandSeries {
	return DemandSeries{
		ItemID: itemID,
		Values: slices.Collect(h.Series(itemID)),
	}
}

// Len is the number of observations.
func (s DemandSeries) Len() int {
	return len(s.Values)
}

// Mean is the average observation, zero for an empty series.
func (s DemandSeries) Mean() float64 {
	return mean(s.Values)
}

// StdDev is the population standard deviation of the series.
func (s DemandSeries) StdDev() float64 {
	if len(s.Values) == 0 {
		return 0
	}
	m := mean(s.Values)
	var sq float64
	for _, v := range s.Values {
		sq += (v - m) * (v - m)
	}
	return math.Sqrt(sq / float64(len(s.Values)))
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
