package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/andresuchdata/stockcast/internal/cache"
	"github.com/andresuchdata/stockcast/internal/config"
	"github.com/andresuchdata/stockcast/internal/domain"
	"github.com/andresuchdata/stockcast/internal/forecast"
	"github.com/andresuchdata/stockcast/internal/ingest"
	"github.com/andresuchdata/stockcast/internal/pipeline"
	"github.com/andresuchdata/stockcast/internal/repository"
	"github.com/andresuchdata/stockcast/internal/repository/csvfile"
	"github.com/andresuchdata/stockcast/internal/repository/postgres"
	"github.com/andresuchdata/stockcast/internal/service"
	"github.com/andresuchdata/stockcast/internal/storage"
	"github.com/andresuchdata/stockcast/pkg/logger"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/urfave/cli/v2"
)

// sources bundles the collaborators a command reads from.
type sources struct {
	stock  repository.StockRepository
	sales  repository.SalesRepository
	owners repository.OwnerRepository
	db     *postgres.DB
}

func (s *sources) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func dbFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "db-url",
			Usage:   "Database connection string",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.Int64Flag{
			Name:  "max-reads",
			Usage: "Concurrent database reads",
			Value: 10,
		},
	}
}

func sourceFlags() []cli.Flag {
	return append(dbFlags(),
		&cli.StringFlag{
			Name:  "stock-csv",
			Usage: "Stock snapshot CSV, used instead of the database",
		},
		&cli.StringFlag{
			Name:  "sales-csv",
			Usage: "Sales ledger CSV, used with --stock-csv",
		},
		&cli.StringFlag{
			Name:    "profile",
			Usage:   "Seasonal profile YAML",
			EnvVars: []string{"FORECAST_PROFILE_PATH"},
		},
	)
}

func horizonFlag() *cli.IntFlag {
	return &cli.IntFlag{
		Name:  "horizon",
		Usage: "Forecast horizon in days (30, 60 or 90)",
		Value: 30,
	}
}

func ownerFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "owner",
		Usage:    "Owner (pharmacy) id",
		Required: true,
	}
}

func openDB(c *cli.Context) (*postgres.DB, error) {
	url := c.String("db-url")
	if url == "" {
		return nil, fmt.Errorf("--db-url or DATABASE_URL is required")
	}
	sqlDB, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := sqlDB.PingContext(c.Context); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return postgres.NewFromSQL(sqlDB, "pgx", c.Int64("max-reads")), nil
}

func openSources(c *cli.Context) (*sources, error) {
	if stockPath := c.String("stock-csv"); stockPath != "" {
		store, err := csvfile.Load(stockPath, c.String("sales-csv"), nil)
		if err != nil {
			return nil, err
		}
		return &sources{stock: store, sales: store, owners: store}, nil
	}

	db, err := openDB(c)
	if err != nil {
		return nil, err
	}
	stock := postgres.NewStockRepository(db)
	return &sources{stock: stock, sales: postgres.NewSalesRepository(db), owners: stock, db: db}, nil
}

// objectStorage returns nil when storage is disabled.
func objectStorage(cfg *config.Config) (storage.ObjectStorage, error) {
	if !cfg.Storage.Enabled {
		return nil, nil
	}
	s3, err := storage.NewS3Client(cfg.Storage)
	if err != nil {
		return nil, err
	}
	return s3, nil
}

func buildEngine(c *cli.Context, cfg *config.Config, src *sources) (*forecast.Engine, error) {
	forecastCfg := cfg.Forecast
	if path := c.String("profile"); path != "" {
		forecastCfg.ProfilePath = path
		forecastCfg.ProfileObjectKey = ""
	}

	objects, err := objectStorage(cfg)
	if err != nil {
		return nil, err
	}
	return service.NewEngine(c.Context, forecastCfg, objects, src.stock, src.sales)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	cfg := config.Load()
	logger.Configure(cfg.Log.Level, cfg.Log.Format)

	app := &cli.App{
		Name:  "forecast",
		Usage: "Forecast pharmacy inventory demand",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Forecast one owner and print the full report",
				Flags: append(sourceFlags(), ownerFlag(), horizonFlag()),
				Action: func(c *cli.Context) error {
					horizon, err := domain.ParseHorizon(c.Int("horizon"))
					if err != nil {
						return err
					}
					return withEngine(c, cfg, func(engine *forecast.Engine, _ *sources) error {
						report, err := engine.Report(c.Context, c.String("owner"), horizon)
						if err != nil {
							return err
						}
						return printJSON(report)
					})
				},
			},
			{
				Name:  "summary",
				Usage: "Print the 30-day quick summary for one owner",
				Flags: append(sourceFlags(), ownerFlag()),
				Action: func(c *cli.Context) error {
					return withEngine(c, cfg, func(engine *forecast.Engine, _ *sources) error {
						summary, err := engine.QuickSummary(c.Context, c.String("owner"))
						if err != nil {
							return err
						}
						return printJSON(summary)
					})
				},
			},
			{
				Name:  "batch",
				Usage: "Forecast many owners and export one CSV report each",
				Flags: append(sourceFlags(),
					horizonFlag(),
					&cli.StringSliceFlag{
						Name:  "owners",
						Usage: "Owner ids; every known owner when omitted",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Owners forecast concurrently",
						Value: pipeline.DefaultBatchConfig().WorkerCount,
					},
					&cli.StringFlag{
						Name:  "out",
						Usage: "Output directory",
						Value: cfg.Forecast.ReportDir,
					},
					&cli.StringFlag{
						Name:  "upload-prefix",
						Usage: "Object storage key prefix; reports stay local when empty",
					},
					&cli.IntFlag{
						Name:  "retries",
						Usage: "Attempts per owner when a data source read fails",
						Value: pipeline.DefaultBatchConfig().RetryAttempts,
					},
				),
				Action: runBatch(cfg),
			},
			{
				Name:   "migrate",
				Usage:  "Create the stock and sales tables",
				Flags:  dbFlags(),
				Action: migrate,
			},
			{
				Name:  "import",
				Usage: "Load stock snapshots and sales rows from CSV into the database",
				Flags: append(dbFlags(),
					&cli.StringFlag{Name: "stock-csv", Usage: "Stock snapshot CSV"},
					&cli.StringFlag{Name: "sales-csv", Usage: "Sales ledger CSV"},
				),
				Action: importCSV(cfg),
			},
			{
				Name:   "ingest",
				Usage:  "Pull new stock and sales exports from the configured Drive folder or storage prefix",
				Flags:  dbFlags(),
				Action: runIngest(cfg),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("forecast failed")
	}
}

func withEngine(c *cli.Context, cfg *config.Config, fn func(*forecast.Engine, *sources) error) error {
	src, err := openSources(c)
	if err != nil {
		return err
	}
	defer src.Close()

	engine, err := buildEngine(c, cfg, src)
	if err != nil {
		return err
	}
	return fn(engine, src)
}

func runBatch(cfg *config.Config) cli.ActionFunc {
	return func(c *cli.Context) error {
		horizon, err := domain.ParseHorizon(c.Int("horizon"))
		if err != nil {
			return err
		}

		batchCfg := pipeline.DefaultBatchConfig()
		batchCfg.Horizon = horizon
		batchCfg.WorkerCount = c.Int("workers")
		batchCfg.OutputDir = c.String("out")
		batchCfg.UploadPrefix = c.String("upload-prefix")
		batchCfg.RetryAttempts = c.Int("retries")

		return withEngine(c, cfg, func(engine *forecast.Engine, src *sources) error {
			objects, err := objectStorage(cfg)
			if err != nil {
				return err
			}
			if batchCfg.UploadPrefix != "" && objects == nil {
				logger.Log.Warn().Msg("upload prefix set but object storage is disabled, keeping reports local")
			}

			run, err := pipeline.NewOrchestrator(engine, src.owners, objects, batchCfg).Run(c.Context, c.StringSlice("owners"))
			if run != nil {
				if printErr := printJSON(run); printErr != nil {
					return printErr
				}
			}
			if err != nil {
				return err
			}
			if failed := run.Failed(); failed > 0 {
				return fmt.Errorf("%d of %d owners failed", failed, len(run.Jobs))
			}
			return nil
		})
	}
}

func migrate(c *cli.Context) error {
	db, err := openDB(c)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.EnsureSchema(c.Context); err != nil {
		return err
	}
	logger.Log.Info().Msg("schema up to date")
	return nil
}

func importCSV(cfg *config.Config) cli.ActionFunc {
	return func(c *cli.Context) error {
		if err := loadCSV(c); err != nil {
			return err
		}
		flushSummaries(c.Context, cfg)
		return nil
	}
}

func loadCSV(c *cli.Context) error {
	stockPath, salesPath := c.String("stock-csv"), c.String("sales-csv")
	if stockPath == "" && salesPath == "" {
		return fmt.Errorf("nothing to import: pass --stock-csv and/or --sales-csv")
	}

	db, err := openDB(c)
	if err != nil {
		return err
	}
	defer db.Close()

	start := time.Now()
	if stockPath != "" {
		snapshots, err := csvfile.LoadSnapshots(stockPath)
		if err != nil {
			return err
		}
		if err := postgres.NewStockRepository(db).UpsertSnapshots(c.Context, snapshots); err != nil {
			return err
		}
		logger.Log.Info().Int("rows", len(snapshots)).Str("file", stockPath).Msg("stock snapshots imported")
	}
	if salesPath != "" {
		records, err := csvfile.LoadSales(salesPath)
		if err != nil {
			return err
		}
		if err := postgres.NewSalesRepository(db).AppendSales(c.Context, records); err != nil {
			return err
		}
		logger.Log.Info().Int("rows", len(records)).Str("file", salesPath).Msg("sales rows imported")
	}
	logger.Log.Info().Dur("took", time.Since(start)).Msg("import complete")
	return nil
}

func runIngest(cfg *config.Config) cli.ActionFunc {
	return func(c *cli.Context) error {
		objects, err := objectStorage(cfg)
		if err != nil {
			return err
		}
		source, err := service.NewImportSource(c.Context, cfg.Ingest, objects)
		if err != nil {
			return err
		}
		if source == nil {
			return fmt.Errorf("no import source: set GOOGLE_DRIVE_CREDENTIALS_JSON or INGEST_STORAGE_PREFIX with storage enabled")
		}

		db, err := openDB(c)
		if err != nil {
			return err
		}
		defer db.Close()

		result, err := ingest.NewImporter(source, postgres.NewIngestRepository(db), nil).Sync(c.Context)
		if result != nil && len(result.Imported) > 0 {
			flushSummaries(c.Context, cfg)
		}
		if err != nil {
			return err
		}
		if err := printJSON(result); err != nil {
			return err
		}
		if len(result.Failed) > 0 {
			return fmt.Errorf("%d files failed to import", len(result.Failed))
		}
		return nil
	}
}

// flushSummaries drops every cached dashboard summary after a bulk load.
func flushSummaries(ctx context.Context, cfg *config.Config) {
	if !cfg.Cache.Enabled {
		return
	}
	summaries, err := cache.NewSummaryCache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("summary cache unavailable, cached summaries expire with their TTL")
		return
	}
	if err := summaries.InvalidateAll(ctx); err != nil {
		logger.Log.Warn().Err(err).Msg("failed to flush cached summaries")
		return
	}
	logger.Log.Info().Msg("cached summaries flushed")
}
