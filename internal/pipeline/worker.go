package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/andresuchdata/stockcast/internal/domain"
	"github.com/rs/zerolog/log"
)

// Worker forecasts and exports one owner at a time.
type Worker struct {
	forecaster Forecaster
	writer     *ReportWriter
	config     BatchConfig
}

// NewWorker creates a new batch worker
func NewWorker(forecaster Forecaster, writer *ReportWriter, config BatchConfig) *Worker {
	return &Worker{forecaster: forecaster, writer: writer, config: config}
}

// Process runs the owner's forecast, retrying collaborator failures, and writes the
// report. The job records the outcome either way.
func (w *Worker) Process(ctx context.Context, runID string, job *OwnerJob) error {
	job.Status = StatusProcessing

	report, err := w.forecastWithRetry(ctx, job)
	if err != nil {
		return w.markJobFailed(job, err)
	}

	localPath, key, err := w.writer.WriteReport(ctx, runID, report)
	if err != nil {
		return w.markJobFailed(job, err)
	}

	job.Status = StatusCompleted
	job.Items = len(report.Results)
	job.UrgentItems = len(report.Priorities.High)
	job.ReportPath = localPath
	job.ObjectKey = key
	return nil
}

func (w *Worker) forecastWithRetry(ctx context.Context, job *OwnerJob) (*domain.ForecastReport, error) {
	attempts := max(w.config.RetryAttempts, 1)

	var lastErr error
	for job.Attempts < attempts {
		job.Attempts++
		report, err := w.forecaster.Report(ctx, job.OwnerID, w.config.Horizon)
		if err == nil {
			return report, nil
		}
		lastErr = err

		// only collaborator reads are worth another attempt
		if !errors.Is(err, domain.ErrDataFetch) || job.Attempts >= attempts {
			break
		}
		log.Warn().Err(err).
			Str("owner_id", job.OwnerID).
			Int("attempt", job.Attempts).
			Int("max_attempts", attempts).
			Msg("batch: forecast failed, retrying")

		if err := sleepCtx(ctx, w.config.RetryBackoff); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func (w *Worker) markJobFailed(job *OwnerJob, err error) error {
	job.Status = StatusFailed
	job.ErrorMessage = err.Error()
	log.Error().Err(err).Str("owner_id", job.OwnerID).Int("attempts", job.Attempts).Msg("batch: owner failed")
	return fmt.Errorf("owner %s: %w", job.OwnerID, err)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
