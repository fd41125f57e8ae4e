package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/andresuchdata/stockcast/internal/domain"
	"github.com/andresuchdata/stockcast/internal/repository"
	"github.com/jmoiron/sqlx"
)

type salesRepository struct {
	db    *DB
	clock func() time.Time
}

func NewSalesRepository(db *DB) *salesRepository {
	return &salesRepository{db: db, clock: time.Now}
}

var _ repository.SalesRepository = (*salesRepository)(nil)

// FetchSalesHistory returns the owner's ledger rows from the last windowDays (plus one
// day of slack so a run pinned to the start of today still sees a full window).
func (r *salesRepository) FetchSalesHistory(ctx context.Context, ownerID string, windowDays int) ([]domain.SalesRecord, error) {
	since := r.clock().UTC().AddDate(0, 0, -windowDays-1)

	query := `
		SELECT owner_id, item_id, quantity, sold_at
		FROM sales_transactions
		WHERE owner_id = $1 AND sold_at >= $2
		ORDER BY sold_at
	`

	var records []domain.SalesRecord
	err := r.db.withReadSlot(ctx, func() error {
		return sqlx.SelectContext(ctx, r.db, &records, query, ownerID, since)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get sales history: %w", err)
	}
	return records, nil
}

// AppendSales inserts ledger rows. The ledger is append-only; rows are never updated.
func (r *salesRepository) AppendSales(ctx context.Context, records []domain.SalesRecord) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		return appendSalesTx(ctx, tx, records)
	})
}

func appendSalesTx(ctx context.Context, tx *sqlx.Tx, records []domain.SalesRecord) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sales_transactions (owner_id, item_id, quantity, sold_at)
		VALUES ($1, $2, $3, $4)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, rec.OwnerID, rec.ItemID, rec.Quantity, rec.SoldAt); err != nil {
			return fmt.Errorf("failed to insert sale for %s: %w", rec.ItemID, err)
		}
	}
	return nil
}
