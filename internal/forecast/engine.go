package forecast

import (
	"context"
	"fmt"
	"time"

	"github.com/andresuchdata/stockcast/internal/domain"
	"github.com/andresuchdata/stockcast/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultHistoryWindowDays = 180
	DefaultFetchTimeout      = 10 * time.Second
	DefaultWorkers           = 8
)

// Engine runs the forecasting pipeline for one owner at a time. It holds no per-run
// state, so a single Engine serves concurrent runs for different owners.
type Engine struct {
	stock repository.StockRepository
	sales repository.SalesRepository

	ensemble       *Ensemble
	adjuster       *Adjuster
	market         MarketTrends
	clock          func() time.Time
	historyDays    int
	fetchTimeout   time.Duration
	workers        int
	highConfidence int
}

// Option customises an Engine.
type Option func(*Engine)

// WithProfile swaps the seasonal profile.
func WithProfile(p *Profile) Option {
	return func(e *Engine) { e.adjuster = NewAdjuster(p) }
}

// WithMarketTrends swaps the market-trend provider.
func WithMarketTrends(m MarketTrends) Option {
	return func(e *Engine) { e.market = m }
}

// WithClock fixes the calendar the engine reads.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithEnsemble swaps the estimator set.
func WithEnsemble(ens *Ensemble) Option {
	return func(e *Engine) { e.ensemble = ens }
}

// WithHistoryWindow sets how many days of ledger a run reads.
func WithHistoryWindow(days int) Option {
	return func(e *Engine) {
		if days > 0 {
			e.historyDays = days
		}
	}
}

// WithFetchTimeout bounds the collaborator reads.
func WithFetchTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.fetchTimeout = d
		}
	}
}

// WithWorkers bounds per-item parallelism.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithHighConfidenceScore sets the score counted as high confidence in summaries.
func WithHighConfidenceScore(score int) Option {
	return func(e *Engine) {
		if score > 0 {
			e.highConfidence = score
		}
	}
}

// NewEngine wires the engine to its collaborators.
func NewEngine(stock repository.StockRepository, sales repository.SalesRepository, opts ...Option) *Engine {
	e := &Engine{
		stock:          stock,
		sales:          sales,
		ensemble:       DefaultEnsemble(),
		adjuster:       NewAdjuster(nil),
		market:         DefaultMarketTrends(),
		clock:          time.Now,
		historyDays:    DefaultHistoryWindowDays,
		fetchTimeout:   DefaultFetchTimeout,
		workers:        DefaultWorkers,
		highConfidence: DefaultHighConfidenceScore,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MarketTrends returns the provider the engine reads.
func (e *Engine) MarketTrends() MarketTrends {
	return e.market
}

// RunDate pins a run to a calendar day so reruns on the same date see the same window.
func (e *Engine) RunDate() time.Time {
	return e.clock().UTC().Truncate(24 * time.Hour)
}

// GenerateForecast forecasts every stocked item of an owner and returns the results
// sorted by urgency then confidence.
func (e *Engine) GenerateForecast(ctx context.Context, ownerID string, horizon domain.Horizon) ([]domain.ForecastResult, error) {
	if horizon.Periods() == 0 {
		return nil, fmt.Errorf("%w: %d days", domain.ErrInvalidHorizon, horizon.Days())
	}

	start := time.Now()
	day := e.RunDate()

	snapshots, records, err := e.fetch(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	window := Window{Days: e.historyDays, End: day.Add(24 * time.Hour)}
	history := NewHistory(records, window)

	snapshots = dedupeSnapshots(ownerID, snapshots)
	unstocked := unstockedItems(ownerID, snapshots, history)
	results := make([]domain.ForecastResult, len(snapshots)+len(unstocked))

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i := range snapshots {
		g.Go(func() error {
			results[i] = e.ForecastItem(snapshots[i], history, horizon, day)
			return nil
		})
	}
	for i := range unstocked {
		g.Go(func() error {
			results[len(snapshots)+i] = e.forecastItem(unstocked[i], false, history, horizon, day)
			return nil
		})
	}
	_ = g.Wait()

	SortResults(results)

	log.Info().
		Str("owner_id", ownerID).
		Int("horizon_days", horizon.Days()).
		Int("items", len(results)).
		Int("unstocked_items", len(unstocked)).
		Int("sales_rows", len(records)).
		Dur("took", time.Since(start)).
		Msg("forecast: run completed")

	return results, nil
}

// fetch reads both collaborators concurrently under the fetch timeout. Either failing
// fails the run.
func (e *Engine) fetch(ctx context.Context, ownerID string) ([]domain.StockSnapshot, []domain.SalesRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
	defer cancel()

	var (
		snapshots []domain.StockSnapshot
		records   []domain.SalesRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snapshots, err = e.stock.FetchStockSnapshots(gctx, ownerID)
		if err != nil {
			return fmt.Errorf("%w: stock snapshots for owner %s: %w", domain.ErrDataFetch, ownerID, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		records, err = e.sales.FetchSalesHistory(gctx, ownerID, e.historyDays)
		if err != nil {
			return fmt.Errorf("%w: sales history for owner %s: %w", domain.ErrDataFetch, ownerID, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return snapshots, records, nil
}

func dedupeSnapshots(ownerID string, snapshots []domain.StockSnapshot) []domain.StockSnapshot {
	seen := make(map[string]struct{}, len(snapshots))
	out := make([]domain.StockSnapshot, 0, len(snapshots))
	for _, s := range snapshots {
		if s.Item.ID == "" {
			continue
		}
		if _, dup := seen[s.Item.ID]; dup {
			log.Warn().Str("owner_id", ownerID).Str("item_id", s.Item.ID).Msg("forecast: duplicate stock snapshot ignored")
			continue
		}
		seen[s.Item.ID] = struct{}{}
		out = append(out, s)
	}
	return out
}

// unstockedItems stands in an empty snapshot for every item sold in the window that
// the stock collaborator does not know: zero stock, zero threshold, no category.
func unstockedItems(ownerID string, snapshots []domain.StockSnapshot, history *History) []domain.StockSnapshot {
	stocked := make(map[string]struct{}, len(snapshots))
	for _, s := range snapshots {
		stocked[s.Item.ID] = struct{}{}
	}
	var out []domain.StockSnapshot
	for _, id := range history.Items() {
		if _, ok := stocked[id]; ok {
			continue
		}
		out = append(out, domain.StockSnapshot{OwnerID: ownerID, Item: domain.Item{ID: id, Name: id}})
	}
	return out
}

// ForecastItem runs the ensemble, environment and risk stages for a single item. It
// is pure: the same snapshot, history, horizon and day always give the same result.
func (e *Engine) ForecastItem(snap domain.StockSnapshot, history *History, horizon domain.Horizon, day time.Time) domain.ForecastResult {
	return e.forecastItem(snap, true, history, horizon, day)
}

func (e *Engine) forecastItem(snap domain.StockSnapshot, stocked bool, history *History, horizon domain.Horizon, day time.Time) domain.ForecastResult {
	periods := horizon.Periods()
	series := history.Collect(snap.Item.ID)

	ens := e.ensemble.Forecast(series.Values, periods)
	adj := e.adjuster.Resolve(snap.Item.Category, day)
	adjusted := adj.Apply(ens.Quantities)

	perPeriod := make([]domain.PeriodForecast, periods)
	var demand int
	for i, q := range adjusted {
		perPeriod[i] = domain.PeriodForecast{Period: i + 1, Label: domain.PeriodLabel(i + 1), Quantity: q}
		demand += q
	}

	stock, threshold := snap.OnHand, snap.ReorderThreshold
	action := RecommendAction(stock, threshold, demand)
	orderQty := SuggestedOrderQty(action, threshold, demand)

	if ens.AllFallback() {
		log.Debug().
			Str("item_id", snap.Item.ID).
			Int("history_points", series.Len()).
			Msg("forecast: insufficient history, using default demand")
	}

	risks := RiskFactors(RiskInput{
		Stock:        stock,
		Threshold:    threshold,
		Demand:       demand,
		Category:     snap.Item.Category,
		ExpiryDate:   snap.ExpiryDate,
		At:           day,
		MarketTrends: e.market,
	})
	if !stocked {
		risks = append(risks, NoSnapshotRisk)
	}

	return domain.ForecastResult{
		ItemID:               snap.Item.ID,
		ItemName:             snap.Item.Name,
		Category:             snap.Item.Category,
		Periods:              perPeriod,
		TotalPredictedDemand: demand,
		ConfidenceInterval:   ConfidenceInterval(demand, series, periods),
		Trend:                ClassifyTrend(adj.Multiplier, series.Values),
		RiskFactors:          risks,
		Action:               action,
		SuggestedOrderQty:    orderQty,
		ReorderPoint:         ReorderPoint(demand),
		SafetyStock:          SafetyStock(demand),
		Urgency:              ClassifyUrgency(stock, threshold, demand),
		ConfidenceScore:      ConfidenceScore(series.Len(), adj.Multiplier, ens.AllFallback() || !stocked),
		CurrentStock:         stock,
		ReorderThreshold:     threshold,
		Season:               string(adj.Season),
		Multiplier:           adj.Multiplier,
		HistoryPoints:        series.Len(),
		UsedFallback:         ens.Fallbacks() > 0,
		EstimatedOrderCost:   snap.UnitCost.Mul(decimal.NewFromInt(int64(orderQty))),
	}
}

// QuickSummary is the dashboard view over a default-horizon run.
func (e *Engine) QuickSummary(ctx context.Context, ownerID string) (*domain.QuickSummary, error) {
	results, err := e.GenerateForecast(ctx, ownerID, domain.Horizon30)
	if err != nil {
		return nil, err
	}
	return Summarize(ownerID, domain.Horizon30, results, e.highConfidence), nil
}

// Report runs a forecast and bundles it with priority buckets and insights.
func (e *Engine) Report(ctx context.Context, ownerID string, horizon domain.Horizon) (*domain.ForecastReport, error) {
	results, err := e.GenerateForecast(ctx, ownerID, horizon)
	if err != nil {
		return nil, err
	}
	return &domain.ForecastReport{
		RunID:       uuid.New(),
		OwnerID:     ownerID,
		Horizon:     horizon.Days(),
		GeneratedAt: e.clock().UTC(),
		Results:     results,
		Priorities:  Prioritize(results),
		Insights:    Insights(results, e.market),
	}, nil
}
