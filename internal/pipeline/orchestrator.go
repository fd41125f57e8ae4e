package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/andresuchdata/stockcast/internal/repository"
	"github.com/andresuchdata/stockcast/internal/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Orchestrator fans a batch of owners out over a worker pool. Owners are independent:
// one failing never stops the others.
type Orchestrator struct {
	owners repository.OwnerRepository
	writer *ReportWriter
	worker *Worker
	cfg    BatchConfig
	clock  func() time.Time
}

// NewOrchestrator creates a new Orchestrator. objects may be nil to keep exports local.
func NewOrchestrator(forecaster Forecaster, owners repository.OwnerRepository, objects storage.ObjectStorage, cfg BatchConfig) *Orchestrator {
	writer := NewReportWriter(cfg.OutputDir, cfg.UploadPrefix, objects)
	return &Orchestrator{
		owners: owners,
		writer: writer,
		worker: NewWorker(forecaster, writer, cfg),
		cfg:    cfg,
		clock:  time.Now,
	}
}

// Run forecasts the given owners, or every owner the repository knows when none are
// given. The returned error covers setup and cancellation only; per-owner failures are
// recorded on the run.
func (o *Orchestrator) Run(ctx context.Context, ownerIDs []string) (*BatchRun, error) {
	if len(ownerIDs) == 0 {
		if o.owners == nil {
			return nil, fmt.Errorf("no owners given and no owner repository configured")
		}
		listed, err := o.owners.ListOwners(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list owners: %w", err)
		}
		ownerIDs = listed
	}

	run := &BatchRun{
		ID:        uuid.New(),
		Horizon:   o.cfg.Horizon.Days(),
		Status:    StatusProcessing,
		StartedAt: o.clock().UTC(),
		Jobs:      newJobs(ownerIDs),
	}

	log.Info().Str("run_id", run.ID.String()).Int("owners", len(run.Jobs)).Int("horizon_days", run.Horizon).Msg("batch: run started")

	if err := o.processParallel(ctx, run); err != nil {
		o.finish(ctx, run, StatusFailed)
		return run, err
	}

	status := StatusCompleted
	if run.Failed() > 0 {
		status = StatusFailed
	}
	o.finish(ctx, run, status)

	log.Info().
		Str("run_id", run.ID.String()).
		Int("succeeded", run.Succeeded()).
		Int("failed", run.Failed()).
		Dur("took", run.CompletedAt.Sub(run.StartedAt)).
		Msg("batch: run completed")

	return run, nil
}

// newJobs dedupes and sorts owner ids so runs are reproducible.
func newJobs(ownerIDs []string) []*OwnerJob {
	seen := make(map[string]struct{}, len(ownerIDs))
	ids := make([]string, 0, len(ownerIDs))
	for _, id := range ownerIDs {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	jobs := make([]*OwnerJob, len(ids))
	for i, id := range ids {
		jobs[i] = &OwnerJob{OwnerID: id, Status: StatusPending}
	}
	return jobs
}

// processParallel drains the jobs through a fixed pool of workers.
func (o *Orchestrator) processParallel(ctx context.Context, run *BatchRun) error {
	workerCount := o.cfg.WorkerCount
	if workerCount < 1 {
		workerCount = 1
	}

	runID := run.ID.String()
	jobChan := make(chan *OwnerJob)
	var wg sync.WaitGroup

	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobChan {
				// failures are recorded on the job
				_ = o.worker.Process(ctx, runID, job)
			}
		}()
	}

	var err error
enqueue:
	for _, job := range run.Jobs {
		if err = ctx.Err(); err != nil {
			break
		}
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break enqueue
		case jobChan <- job:
		}
	}
	close(jobChan)
	wg.Wait()

	return err
}

func (o *Orchestrator) finish(ctx context.Context, run *BatchRun, status RunStatus) {
	now := o.clock().UTC()
	run.CompletedAt = &now
	run.Status = status

	if _, err := o.writer.WriteManifest(ctx, run); err != nil {
		log.Warn().Err(err).Str("run_id", run.ID.String()).Msg("batch: failed to write manifest")
	}
}
