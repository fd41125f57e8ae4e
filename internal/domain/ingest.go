package domain

import "time"

// ImportKind says which collaborator an inbound export feeds.
type ImportKind string

const (
	ImportStock ImportKind = "stock"
	ImportSales ImportKind = "sales"
)

// ImportedFile records one export that was loaded, so it is not loaded twice.
type ImportedFile struct {
	Source     string     `json:"source" db:"source"`
	FileID     string     `json:"file_id" db:"file_id"`
	FileName   string     `json:"file_name" db:"file_name"`
	Kind       ImportKind `json:"kind" db:"kind"`
	ModifiedAt time.Time  `json:"modified_at" db:"modified_at"`
	Rows       int        `json:"rows" db:"row_count"`
	ImportedAt time.Time  `json:"imported_at" db:"imported_at"`
}
