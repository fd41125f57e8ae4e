package service

import (
	"context"
	"fmt"

	"github.com/andresuchdata/stockcast/internal/config"
	"github.com/andresuchdata/stockcast/internal/forecast"
	"github.com/andresuchdata/stockcast/internal/repository"
	"github.com/andresuchdata/stockcast/internal/storage"
	"github.com/rs/zerolog/log"
)

// LoadProfile resolves the seasonal profile: an object-storage key wins over a local
// path, and with neither the built-in profile is used. Market trends from the document
// replace the defaults only when it lists any.
func LoadProfile(ctx context.Context, cfg config.ForecastConfig, objects storage.ObjectStorage) (*forecast.Profile, forecast.MarketTrends, error) {
	var (
		profile *forecast.Profile
		trends  forecast.StaticMarketTrends
		source  string
		err     error
	)

	switch {
	case cfg.ProfileObjectKey != "" && objects != nil:
		source = cfg.ProfileObjectKey
		var data []byte
		data, err = objects.GetObject(ctx, cfg.ProfileObjectKey)
		if err != nil {
			return nil, nil, fmt.Errorf("fetch seasonal profile: %w", err)
		}
		profile, trends, err = forecast.ParseProfile(data)
	case cfg.ProfilePath != "":
		source = cfg.ProfilePath
		profile, trends, err = forecast.LoadProfileFile(cfg.ProfilePath)
	default:
		return forecast.DefaultProfile(), forecast.DefaultMarketTrends(), nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load seasonal profile %s: %w", source, err)
	}

	log.Info().Str("source", source).Int("seasons", len(profile.Seasons)).Msg("forecast: seasonal profile loaded")

	if len(trends) == 0 {
		return profile, forecast.DefaultMarketTrends(), nil
	}
	return profile, trends, nil
}

// EngineOptions maps configuration onto engine options. Zero values keep engine defaults.
func EngineOptions(cfg config.ForecastConfig) []forecast.Option {
	return []forecast.Option{
		forecast.WithHistoryWindow(cfg.HistoryWindowDays),
		forecast.WithFetchTimeout(cfg.FetchTimeout),
		forecast.WithWorkers(cfg.Workers),
		forecast.WithHighConfidenceScore(cfg.HighConfidenceScore),
	}
}

// NewEngine builds a configured engine over the given collaborators.
func NewEngine(ctx context.Context, cfg config.ForecastConfig, objects storage.ObjectStorage, stock repository.StockRepository, sales repository.SalesRepository) (*forecast.Engine, error) {
	profile, trends, err := LoadProfile(ctx, cfg, objects)
	if err != nil {
		return nil, err
	}
	opts := append(EngineOptions(cfg), forecast.WithProfile(profile), forecast.WithMarketTrends(trends))
	return forecast.NewEngine(stock, sales, opts...), nil
}
