package repository

import (
	"context"

	"github.com/andresuchdata/stockcast/internal/domain"
)

// StockRepository exposes the current on-hand state of an owner's items. Implementations
// must tolerate concurrent reads.
type StockRepository interface {
	FetchStockSnapshots(ctx context.Context, ownerID string) ([]domain.StockSnapshot, error)
}

// SalesRepository exposes the append-only sales ledger. Rows are returned raw; callers
// bucket and aggregate them.
type SalesRepository interface {
	FetchSalesHistory(ctx context.Context, ownerID string, windowDays int) ([]domain.SalesRecord, error)
}

// OwnerRepository lists the owning entities known to a backend, for batch runs.
type OwnerRepository interface {
	ListOwners(ctx context.Context) ([]string, error)
}

// IngestRepository loads inbound exports and remembers which files it has seen. Rows
// and the file record are written atomically.
type IngestRepository interface {
	LastImport(ctx context.Context, source, fileID string) (*domain.ImportedFile, error)
	ImportSnapshots(ctx context.Context, file domain.ImportedFile, snapshots []domain.StockSnapshot) error
	ImportSales(ctx context.Context, file domain.ImportedFile, records []domain.SalesRecord) error
}
