// Package ingest pulls stock and sales exports from a shared folder into the database.
package ingest

import (
	"context"
	"io"
	"path"
	"strings"
	"time"

	"github.com/andresuchdata/stockcast/internal/domain"
)

// Format is the encoding of an inbound export.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// File describes one export visible in a source.
type File struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Format       Format    `json:"format"`
	ModifiedTime time.Time `json:"modified_time"`
	Size         int64     `json:"size,omitempty"`
}

// Source lists and opens exports. Implementations skip files they cannot decode.
type Source interface {
	Name() string
	ListFiles(ctx context.Context) ([]File, error)
	Open(ctx context.Context, file File) (io.ReadCloser, error)
}

// formatFor maps a file name onto a supported format.
func formatFor(name string) (Format, bool) {
	switch strings.ToLower(path.Ext(name)) {
	case ".csv":
		return FormatCSV, true
	case ".xlsx":
		return FormatXLSX, true
	}
	return "", false
}

// KindOf classifies an export by its file name: names starting with "stock" feed the
// stock table and names starting with "sales" feed the ledger.
func KindOf(name string) (domain.ImportKind, bool) {
	base := strings.ToLower(path.Base(name))
	switch {
	case strings.HasPrefix(base, "stock"):
		return domain.ImportStock, true
	case strings.HasPrefix(base, "sales"):
		return domain.ImportSales, true
	}
	return "", false
}
