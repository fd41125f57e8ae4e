package pipeline

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/andresuchdata/stockcast/internal/domain"
	"github.com/andresuchdata/stockcast/internal/forecast"
	"github.com/andresuchdata/stockcast/internal/repository/memory"
	"github.com/andresuchdata/stockcast/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, time.April, 10, 8, 0, 0, 0, time.UTC)

func newStore() *memory.Store {
	store := memory.NewStore(func() time.Time { return now })
	store.AddSnapshots(
		domain.StockSnapshot{OwnerID: "pharm-2", Item: domain.Item{ID: "ors", Category: "rehydration"}, OnHand: 4, ReorderThreshold: 10, UnitCost: decimal.RequireFromString("0.75")},
		domain.StockSnapshot{OwnerID: "pharm-1", Item: domain.Item{ID: "para", Category: "analgesic"}, OnHand: 200, ReorderThreshold: 10},
		domain.StockSnapshot{OwnerID: "pharm-1", Item: domain.Item{ID: "amox", Category: "antibiotic"}, OnHand: 2, ReorderThreshold: 10},
	)
	return store
}

func testConfig(t *testing.T) BatchConfig {
	cfg := DefaultBatchConfig()
	cfg.OutputDir = t.TempDir()
	cfg.WorkerCount = 2
	cfg.RetryBackoff = 0
	return cfg
}

type uploadRecorder struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (u *uploadRecorder) ListObjects(context.Context, string) ([]storage.ObjectInfo, error) {
	return nil, nil
}

func (u *uploadRecorder) GetObject(context.Context, string) ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}

func (u *uploadRecorder) UploadObject(_ context.Context, key string, data []byte, _ string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.objects == nil {
		u.objects = make(map[string][]byte)
	}
	u.objects[key] = data
	return nil
}

// scriptedForecaster returns queued errors per owner before delegating.
type scriptedForecaster struct {
	mu     sync.Mutex
	next   Forecaster
	errors map[string][]error
	calls  map[string]int
}

func (s *scriptedForecaster) Report(ctx context.Context, ownerID string, horizon domain.Horizon) (*domain.ForecastReport, error) {
	s.mu.Lock()
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	s.calls[ownerID]++
	queue := s.errors[ownerID]
	var err error
	if len(queue) > 0 {
		err, s.errors[ownerID] = queue[0], queue[1:]
	}
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return s.next.Report(ctx, ownerID, horizon)
}

func newEngine(store *memory.Store) *forecast.Engine {
	return forecast.NewEngine(store, store, forecast.WithClock(func() time.Time { return now }))
}

func TestOrchestrator_RunAllOwners(t *testing.T) {
	store := newStore()
	cfg := testConfig(t)
	uploads := &uploadRecorder{}
	cfg.UploadPrefix = "/reports/"

	run, err := NewOrchestrator(newEngine(store), store, uploads, cfg).Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, run.Status)
	assert.Equal(t, 2, run.Succeeded())
	assert.Zero(t, run.Failed())
	require.NotNil(t, run.CompletedAt)
	require.Len(t, run.Jobs, 2)
	assert.Equal(t, "pharm-1", run.Jobs[0].OwnerID)

	job := run.Jobs[0]
	assert.Equal(t, 2, job.Items)
	assert.Equal(t, 1, job.UrgentItems)
	assert.Equal(t, 1, job.Attempts)
	assert.Equal(t, filepath.Join(cfg.OutputDir, run.ID.String(), "pharm-1.csv"), job.ReportPath)
	assert.Equal(t, "reports/"+run.ID.String()+"/pharm-1.csv", job.ObjectKey)

	file, err := os.Open(job.ReportPath)
	require.NoError(t, err)
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, reportHeader, rows[0])
	assert.Equal(t, "amox", rows[1][0])
	assert.Equal(t, "critical", rows[1][3])
	assert.Equal(t, "urgent_restock", rows[1][4])

	manifestPath := filepath.Join(cfg.OutputDir, run.ID.String(), "manifest.json")
	data, err := os.ReadFile(manifestPath)
	require.NoError(t, err)
	var manifest BatchRun
	require.NoError(t, json.Unmarshal(data, &manifest))
	assert.Equal(t, run.ID, manifest.ID)
	assert.Equal(t, StatusCompleted, manifest.Status)

	assert.Len(t, uploads.objects, 3)
	assert.Contains(t, uploads.objects, "reports/"+run.ID.String()+"/manifest.json")
}

func TestOrchestrator_RetriesCollaboratorFailures(t *testing.T) {
	store := newStore()
	f := &scriptedForecaster{
		next: newEngine(store),
		errors: map[string][]error{
			"pharm-1": {fmt.Errorf("%w: ledger timeout", domain.ErrDataFetch)},
		},
	}

	run, err := NewOrchestrator(f, store, nil, testConfig(t)).Run(context.Background(), []string{"pharm-1"})
	require.NoError(t, err)

	require.Len(t, run.Jobs, 1)
	assert.Equal(t, StatusCompleted, run.Jobs[0].Status)
	assert.Equal(t, 2, run.Jobs[0].Attempts)
	assert.Empty(t, run.Jobs[0].ObjectKey)
}

func TestOrchestrator_FailedOwnerDoesNotStopOthers(t *testing.T) {
	store := newStore()
	f := &scriptedForecaster{
		next: newEngine(store),
		errors: map[string][]error{
			"pharm-2": {
				fmt.Errorf("%w: down", domain.ErrDataFetch),
				fmt.Errorf("%w: down", domain.ErrDataFetch),
				fmt.Errorf("%w: down", domain.ErrDataFetch),
			},
			"pharm-3": {fmt.Errorf("%w: 45 days", domain.ErrInvalidHorizon)},
		},
	}

	run, err := NewOrchestrator(f, store, nil, testConfig(t)).Run(context.Background(), []string{"pharm-3", "pharm-2", "pharm-1", "pharm-1"})
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, run.Status)
	assert.Equal(t, 1, run.Succeeded())
	assert.Equal(t, 2, run.Failed())

	byOwner := map[string]*OwnerJob{}
	for _, job := range run.Jobs {
		byOwner[job.OwnerID] = job
	}
	assert.Equal(t, 3, byOwner["pharm-2"].Attempts)
	assert.Contains(t, byOwner["pharm-2"].ErrorMessage, "down")
	assert.Equal(t, 1, byOwner["pharm-3"].Attempts, "non-fetch errors are not retried")
	assert.Equal(t, StatusCompleted, byOwner["pharm-1"].Status)
	assert.Equal(t, 1, f.calls["pharm-1"], "duplicate owner ids run once")
}

func TestOrchestrator_CancelledContext(t *testing.T) {
	store := newStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := NewOrchestrator(newEngine(store), store, nil, testConfig(t)).Run(ctx, []string{"pharm-1", "pharm-2"})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, run)
	assert.Equal(t, StatusFailed, run.Status)
}

func TestOrchestrator_NoOwnerSource(t *testing.T) {
	_, err := NewOrchestrator(newEngine(newStore()), nil, nil, testConfig(t)).Run(context.Background(), nil)
	assert.Error(t, err)
}

func TestOwnerFileName(t *testing.T) {
	assert.Equal(t, "pharm-1", ownerFileName("pharm-1"))
	assert.Equal(t, "acme_lagos_01", ownerFileName("acme/lagos 01"))
	assert.Equal(t, "_", ownerFileName(".."))
	assert.Equal(t, "_", ownerFileName("  "))
}
