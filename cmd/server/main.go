package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andresuchdata/stockcast/internal/api"
	"github.com/andresuchdata/stockcast/internal/cache"
	"github.com/andresuchdata/stockcast/internal/config"
	"github.com/andresuchdata/stockcast/internal/ingest"
	"github.com/andresuchdata/stockcast/internal/repository/postgres"
	"github.com/andresuchdata/stockcast/internal/service"
	"github.com/andresuchdata/stockcast/internal/storage"
	"github.com/andresuchdata/stockcast/pkg/logger"
	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	logger.Configure(cfg.Log.Level, cfg.Log.Format)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize database
	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStartup()

	if err := db.EnsureSchema(startupCtx); err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to apply schema")
	}

	var objects storage.ObjectStorage
	if cfg.Storage.Enabled {
		s3, err := storage.NewS3Client(cfg.Storage)
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to initialize object storage")
		}
		objects = s3
	}

	engine, err := service.NewEngine(startupCtx, cfg.Forecast, objects, postgres.NewStockRepository(db), postgres.NewSalesRepository(db))
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to initialize forecast engine")
	}

	summaryCache := cache.NewNoopSummaryCache()
	if cfg.Cache.Enabled {
		redisCache, err := cache.NewSummaryCache(cfg.Cache)
		if err != nil {
			logger.Log.Warn().Err(err).Msg("Summary cache unavailable, serving uncached")
		} else {
			summaryCache = redisCache
		}
	}

	forecastService := service.NewForecastService(engine, summaryCache)

	// Background work stops with the server
	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	var importer *ingest.Importer
	source, err := service.NewImportSource(startupCtx, cfg.Ingest, objects)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to initialize import source")
	}
	if source != nil {
		importer = ingest.NewImporter(source, postgres.NewIngestRepository(db), forecastService.InvalidateOwners)
		if cfg.Ingest.PollInterval > 0 {
			go ingest.NewWatcher(importer, cfg.Ingest.PollInterval).Run(bgCtx)
		}
	}

	router := api.NewRouter(&api.Services{
		ForecastService:    forecastService,
		DefaultHorizonDays: cfg.Forecast.DefaultHorizonDays,
		Importer:           importer,
	}, cfg.Server.AllowedOrigins)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")
	stopBackground()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Log.Info().Msg("Server exiting")
}
