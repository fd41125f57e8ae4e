package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/andresuchdata/stockcast/internal/domain"
	"github.com/andresuchdata/stockcast/internal/repository"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

//go:embed schema.sql
var schemaSQL string

// EnsureSchema creates the stock and ledger tables when they are missing.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

type stockRow struct {
	OwnerID          string          `db:"owner_id"`
	ItemID           string          `db:"item_id"`
	ItemName         string          `db:"item_name"`
	Category         string          `db:"category"`
	OnHand           int             `db:"on_hand"`
	ReorderThreshold int             `db:"reorder_threshold"`
	ExpiryDate       *time.Time      `db:"expiry_date"`
	UnitCost         decimal.Decimal `db:"unit_cost"`
}

func (r stockRow) toDomain() domain.StockSnapshot {
	return domain.StockSnapshot{
		OwnerID:          r.OwnerID,
		Item:             domain.Item{ID: r.ItemID, Name: r.ItemName, Category: r.Category},
		OnHand:           r.OnHand,
		ReorderThreshold: r.ReorderThreshold,
		ExpiryDate:       r.ExpiryDate,
		UnitCost:         r.UnitCost,
	}
}

type stockRepository struct {
	db *DB
}

func NewStockRepository(db *DB) *stockRepository {
	return &stockRepository{db: db}
}

var (
	_ repository.StockRepository = (*stockRepository)(nil)
	_ repository.OwnerRepository = (*stockRepository)(nil)
)

func (r *stockRepository) FetchStockSnapshots(ctx context.Context, ownerID string) ([]domain.StockSnapshot, error) {
	query := `
		SELECT
			owner_id,
			item_id,
			item_name,
			category,
			on_hand,
			reorder_threshold,
			expiry_date,
			unit_cost
		FROM stock_items
		WHERE owner_id = $1
		ORDER BY item_id
	`

	var rows []stockRow
	err := r.db.withReadSlot(ctx, func() error {
		return sqlx.SelectContext(ctx, r.db, &rows, query, ownerID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get stock snapshots: %w", err)
	}

	snapshots := make([]domain.StockSnapshot, 0, len(rows))
	for _, row := range rows {
		snapshots = append(snapshots, row.toDomain())
	}
	return snapshots, nil
}

func (r *stockRepository) ListOwners(ctx context.Context) ([]string, error) {
	query := `SELECT DISTINCT owner_id FROM stock_items ORDER BY owner_id`

	var owners []string
	err := r.db.withReadSlot(ctx, func() error {
		return sqlx.SelectContext(ctx, r.db, &owners, query)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list owners: %w", err)
	}
	return owners, nil
}

// UpsertSnapshots loads stock rows, replacing the current state of each (owner, item).
func (r *stockRepository) UpsertSnapshots(ctx context.Context, snapshots []domain.StockSnapshot) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		return upsertSnapshotsTx(ctx, tx, snapshots)
	})
}

func upsertSnapshotsTx(ctx context.Context, tx *sqlx.Tx, snapshots []domain.StockSnapshot) error {
	query := `
		INSERT INTO stock_items (
			owner_id, item_id, item_name, category, on_hand,
			reorder_threshold, expiry_date, unit_cost, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (owner_id, item_id)
		DO UPDATE SET
			item_name = EXCLUDED.item_name,
			category = EXCLUDED.category,
			on_hand = EXCLUDED.on_hand,
			reorder_threshold = EXCLUDED.reorder_threshold,
			expiry_date = EXCLUDED.expiry_date,
			unit_cost = EXCLUDED.unit_cost,
			updated_at = NOW()
	`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, s := range snapshots {
		_, err := stmt.ExecContext(ctx,
			s.OwnerID,
			s.Item.ID,
			s.Item.Name,
			s.Item.Category,
			s.OnHand,
			s.ReorderThreshold,
			s.ExpiryDate,
			s.UnitCost,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert stock item %s: %w", s.Item.ID, err)
		}
	}
	return nil
}
