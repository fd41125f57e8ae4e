package pipeline

import (
	"context"
	"time"

	"github.com/andresuchdata/stockcast/internal/domain"
	"github.com/google/uuid"
)

// Forecaster produces one owner's report. *forecast.Engine satisfies it.
type Forecaster interface {
	Report(ctx context.Context, ownerID string, horizon domain.Horizon) (*domain.ForecastReport, error)
}

// BatchConfig holds configuration for a batch forecasting run
type BatchConfig struct {
	Horizon       domain.Horizon
	WorkerCount   int           // Owners forecast concurrently
	OutputDir     string        // Per-run CSV exports land under OutputDir/<run id>
	UploadPrefix  string        // Object key prefix; empty keeps exports local
	RetryAttempts int           // Attempts per owner when a collaborator read fails
	RetryBackoff  time.Duration // Pause between attempts
}

// DefaultBatchConfig returns sensible defaults
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		Horizon:       domain.Horizon30,
		WorkerCount:   4,
		OutputDir:     "data/reports",
		RetryAttempts: 3,
		RetryBackoff:  2 * time.Second,
	}
}

// RunStatus represents the current state of a batch run or of one owner's job
type RunStatus string

const (
	StatusPending    RunStatus = "pending"
	StatusProcessing RunStatus = "processing"
	StatusCompleted  RunStatus = "completed"
	StatusFailed     RunStatus = "failed"
)

// OwnerJob tracks the forecast of a single owner within a batch
type OwnerJob struct {
	OwnerID      string    `json:"owner_id"`
	Status       RunStatus `json:"status"`
	Attempts     int       `json:"attempts"`
	Items        int       `json:"items"`
	UrgentItems  int       `json:"urgent_items"`
	ReportPath   string    `json:"report_path,omitempty"`
	ObjectKey    string    `json:"object_key,omitempty"`
	ErrorMessage string    `json:"error,omitempty"`
}

// BatchRun tracks a single execution over many owners
type BatchRun struct {
	ID          uuid.UUID   `json:"run_id"`
	Horizon     int         `json:"horizon_days"`
	Status      RunStatus   `json:"status"`
	StartedAt   time.Time   `json:"started_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	Jobs        []*OwnerJob `json:"jobs"`
}

// Succeeded counts owners whose report was written.
func (r *BatchRun) Succeeded() int {
	return r.count(StatusCompleted)
}

// Failed counts owners that could not be forecast.
func (r *BatchRun) Failed() int {
	return r.count(StatusFailed)
}

func (r *BatchRun) count(status RunStatus) int {
	n := 0
	for _, job := range r.Jobs {
		if job.Status == status {
			n++
		}
	}
	return n
}
