package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/andresuchdata/stockcast/internal/domain"
	"github.com/andresuchdata/stockcast/internal/repository"
	"github.com/jmoiron/sqlx"
)

type ingestRepository struct {
	db *DB
}

func NewIngestRepository(db *DB) *ingestRepository {
	return &ingestRepository{db: db}
}

var _ repository.IngestRepository = (*ingestRepository)(nil)

// LastImport returns nil when the file has never been loaded.
func (r *ingestRepository) LastImport(ctx context.Context, source, fileID string) (*domain.ImportedFile, error) {
	query := `
		SELECT source, file_id, file_name, kind, modified_at, row_count, imported_at
		FROM ingested_files
		WHERE source = $1 AND file_id = $2
	`

	var file domain.ImportedFile
	err := r.db.withReadSlot(ctx, func() error {
		return sqlx.GetContext(ctx, r.db, &file, query, source, fileID)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get import record for %s: %w", fileID, err)
	}
	return &file, nil
}

func (r *ingestRepository) ImportSnapshots(ctx context.Context, file domain.ImportedFile, snapshots []domain.StockSnapshot) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := upsertSnapshotsTx(ctx, tx, snapshots); err != nil {
			return err
		}
		return recordImportTx(ctx, tx, file)
	})
}

func (r *ingestRepository) ImportSales(ctx context.Context, file domain.ImportedFile, records []domain.SalesRecord) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := appendSalesTx(ctx, tx, records); err != nil {
			return err
		}
		return recordImportTx(ctx, tx, file)
	})
}

func recordImportTx(ctx context.Context, tx *sqlx.Tx, file domain.ImportedFile) error {
	query := `
		INSERT INTO ingested_files (source, file_id, file_name, kind, modified_at, row_count, imported_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (source, file_id)
		DO UPDATE SET
			file_name = EXCLUDED.file_name,
			kind = EXCLUDED.kind,
			modified_at = EXCLUDED.modified_at,
			row_count = EXCLUDED.row_count,
			imported_at = NOW()
	`
	_, err := tx.ExecContext(ctx, query, file.Source, file.FileID, file.FileName, file.Kind, file.ModifiedAt, file.Rows)
	if err != nil {
		return fmt.Errorf("failed to record import of %s: %w", file.FileName, err)
	}
	return nil
}
