package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/andresuchdata/stockcast/internal/domain"
	"github.com/andresuchdata/stockcast/internal/repository"
)

// Store keeps stock snapshots and sales rows in memory, keyed by owner.
type Store struct {
	mu        sync.RWMutex
	snapshots map[string][]domain.StockSnapshot
	sales     map[string][]domain.SalesRecord
	imports   map[string]domain.ImportedFile
	clock     func() time.Time
}

// NewStore creates an empty store. The clock decides which sales fall inside a
// requested window; nil means time.Now.
func NewStore(clock func() time.Time) *Store {
	if clock == nil {
		clock = time.Now
	}
	return &Store{
		snapshots: make(map[string][]domain.StockSnapshot),
		sales:     make(map[string][]domain.SalesRecord),
		imports:   make(map[string]domain.ImportedFile),
		clock:     clock,
	}
}

// Verify interface compliance
var (
	_ repository.StockRepository  = (*Store)(nil)
	_ repository.SalesRepository  = (*Store)(nil)
	_ repository.OwnerRepository  = (*Store)(nil)
	_ repository.IngestRepository = (*Store)(nil)
)

// AddSnapshots stores snapshots under their OwnerID.
func (s *Store) AddSnapshots(snapshots ...domain.StockSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, snap := range snapshots {
		s.snapshots[snap.OwnerID] = append(s.snapshots[snap.OwnerID], snap)
	}
}

// AddSales appends ledger rows under their OwnerID.
func (s *Store) AddSales(records ...domain.SalesRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		s.sales[rec.OwnerID] = append(s.sales[rec.OwnerID], rec)
	}
}

func (s *Store) FetchStockSnapshots(ctx context.Context, ownerID string) ([]domain.StockSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.StockSnapshot(nil), s.snapshots[ownerID]...), nil
}

func (s *Store) FetchSalesHistory(ctx context.Context, ownerID string, windowDays int) ([]domain.SalesRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	since := s.clock().AddDate(0, 0, -windowDays-1)

	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.SalesRecord
	for _, rec := range s.sales[ownerID] {
		if rec.SoldAt.Before(since) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Store) ListOwners(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	owners := make([]string, 0, len(s.snapshots))
	for id := range s.snapshots {
		owners = append(owners, id)
	}
	sort.Strings(owners)
	return owners, nil
}

// UpsertSnapshots replaces the stored snapshot of each (owner, item) or adds it.
func (s *Store) UpsertSnapshots(snapshots ...domain.StockSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertLocked(snapshots)
}

func (s *Store) upsertLocked(snapshots []domain.StockSnapshot) {
	for _, snap := range snapshots {
		current := s.snapshots[snap.OwnerID]
		replaced := false
		for i := range current {
			if current[i].Item.ID == snap.Item.ID {
				current[i] = snap
				replaced = true
				break
			}
		}
		if !replaced {
			current = append(current, snap)
		}
		s.snapshots[snap.OwnerID] = current
	}
}

func importKey(source, fileID string) string {
	return source + "\x00" + fileID
}

func (s *Store) LastImport(ctx context.Context, source, fileID string) (*domain.ImportedFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	file, ok := s.imports[importKey(source, fileID)]
	if !ok {
		return nil, nil
	}
	return &file, nil
}

func (s *Store) ImportSnapshots(ctx context.Context, file domain.ImportedFile, snapshots []domain.StockSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertLocked(snapshots)
	s.imports[importKey(file.Source, file.FileID)] = file
	return nil
}

func (s *Store) ImportSales(ctx context.Context, file domain.ImportedFile, records []domain.SalesRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		s.sales[rec.OwnerID] = append(s.sales[rec.OwnerID], rec)
	}
	s.imports[importKey(file.Source, file.FileID)] = file
	return nil
}
