package service

import (
	"context"

	"github.com/andresuchdata/stockcast/internal/cache"
	"github.com/andresuchdata/stockcast/internal/domain"
	"github.com/andresuchdata/stockcast/internal/forecast"
	"github.com/rs/zerolog/log"
)

type ForecastService struct {
	engine *forecast.Engine
	cache  cache.SummaryCache
}

func NewForecastService(engine *forecast.Engine, cacheImpl cache.SummaryCache) *ForecastService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopSummaryCache()
	}
	return &ForecastService{engine: engine, cache: cacheImpl}
}

// GetReport runs a full forecast and bundles it with buckets and insights.
func (s *ForecastService) GetReport(ctx context.Context, ownerID string, horizon domain.Horizon) (*domain.ForecastReport, error) {
	return s.engine.Report(ctx, ownerID, horizon)
}

// GetSummary serves the dashboard view, from cache when today's summary is there.
func (s *ForecastService) GetSummary(ctx context.Context, ownerID string) (*domain.QuickSummary, error) {
	day := s.engine.RunDate()

	if summary, ok, err := s.cache.GetSummary(ctx, ownerID, day); err == nil && ok {
		return summary, nil
	} else if err != nil {
		log.Warn().Err(err).Str("owner_id", ownerID).Msg("forecast: cache get summary failed")
	}

	summary, err := s.engine.QuickSummary(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetSummary(ctx, ownerID, day, summary); err != nil {
		log.Warn().Err(err).Str("owner_id", ownerID).Msg("forecast: cache set summary failed")
	}

	return summary, nil
}

// GetPriorities returns only the urgency buckets of a run.
func (s *ForecastService) GetPriorities(ctx context.Context, ownerID string, horizon domain.Horizon) (domain.PriorityBuckets, error) {
	results, err := s.engine.GenerateForecast(ctx, ownerID, horizon)
	if err != nil {
		return domain.PriorityBuckets{}, err
	}
	return forecast.Prioritize(results), nil
}

// InvalidateSummary drops cached summaries after the owner's stock or ledger changed.
func (s *ForecastService) InvalidateSummary(ctx context.Context, ownerID string) error {
	return s.cache.InvalidateOwner(ctx, ownerID)
}

// InvalidateOwners drops cached summaries for every owner an import touched. Failures
// are logged; stale entries still expire with the TTL.
func (s *ForecastService) InvalidateOwners(ctx context.Context, ownerIDs []string) {
	for _, owner := range ownerIDs {
		if err := s.cache.InvalidateOwner(ctx, owner); err != nil {
			log.Warn().Err(err).Str("owner_id", owner).Msg("forecast: cache invalidate failed")
		}
	}
}
