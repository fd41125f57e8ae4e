package service

import (
	"context"

	"github.com/andresuchdata/stockcast/internal/config"
	"github.com/andresuchdata/stockcast/internal/ingest"
	"github.com/andresuchdata/stockcast/internal/storage"
)

// NewImportSource picks the export source: a Drive folder when credentials are set,
// otherwise a prefix in object storage. It returns nil when neither is configured.
func NewImportSource(ctx context.Context, cfg config.IngestConfig, objects storage.ObjectStorage) (ingest.Source, error) {
	switch {
	case cfg.DriveCredentialsJSON != "":
		src, err := ingest.NewDriveSource(ctx, cfg.DriveCredentialsJSON, cfg.DriveFolder)
		if err != nil {
			return nil, err
		}
		return src, nil
	case cfg.StoragePrefix != "" && objects != nil:
		return ingest.NewObjectSource(objects, cfg.StoragePrefix), nil
	}
	return nil, nil
}
