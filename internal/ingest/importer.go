package ingest

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/andresuchdata/stockcast/internal/domain"
	"github.com/andresuchdata/stockcast/internal/repository"
	"github.com/andresuchdata/stockcast/internal/repository/csvfile"
	"github.com/rs/zerolog/log"
)

// FileResult is the outcome for one export in a sync.
type FileResult struct {
	File   File              `json:"file"`
	Kind   domain.ImportKind `json:"kind"`
	Rows   int               `json:"rows"`
	Owners []string          `json:"owners,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// SyncResult summarises one pass over a source.
type SyncResult struct {
	Source   string       `json:"source"`
	Imported []FileResult `json:"imported"`
	Failed   []FileResult `json:"failed"`
	Skipped  int          `json:"skipped"`
}

// ImportHook runs after a sync loaded rows for the given owners.
type ImportHook func(ctx context.Context, ownerIDs []string)

// Importer loads new exports from a source. Stock exports are re-imported whenever the
// file changes since upserts are idempotent; sales exports are loaded once per file.
type Importer struct {
	source Source
	repo   repository.IngestRepository
	hook   ImportHook
	clock  func() time.Time

	// serialises syncs so a manual trigger never races the watcher
	mu sync.Mutex
}

func NewImporter(source Source, repo repository.IngestRepository, hook ImportHook) *Importer {
	return &Importer{source: source, repo: repo, hook: hook, clock: time.Now}
}

// Source exposes the underlying source for listing.
func (im *Importer) Source() Source {
	return im.source
}

// Sync imports every new or changed export. A failing file is reported and skipped;
// only a listing failure aborts the pass.
func (im *Importer) Sync(ctx context.Context) (*SyncResult, error) {
	im.mu.Lock()
	defer im.mu.Unlock()

	files, err := im.source.ListFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list %s exports: %w", im.source.Name(), err)
	}
	// stock before sales, oldest first within each kind
	sort.SliceStable(files, func(i, j int) bool {
		ki, _ := KindOf(files[i].Name)
		kj, _ := KindOf(files[j].Name)
		if ki != kj {
			return ki == domain.ImportStock
		}
		if !files[i].ModifiedTime.Equal(files[j].ModifiedTime) {
			return files[i].ModifiedTime.Before(files[j].ModifiedTime)
		}
		return files[i].Name < files[j].Name
	})

	result := &SyncResult{Source: im.source.Name(), Imported: []FileResult{}, Failed: []FileResult{}}
	touched := make(map[string]struct{})

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		kind, ok := KindOf(file.Name)
		if !ok {
			result.Skipped++
			continue
		}

		due, err := im.due(ctx, file, kind)
		if err != nil {
			result.Failed = append(result.Failed, FileResult{File: file, Kind: kind, Error: err.Error()})
			continue
		}
		if !due {
			result.Skipped++
			continue
		}

		fr := im.importFile(ctx, file, kind)
		if fr.Error != "" {
			log.Warn().Str("source", result.Source).Str("file", file.Name).Str("error", fr.Error).Msg("ingest: file failed")
			result.Failed = append(result.Failed, fr)
			continue
		}
		log.Info().Str("source", result.Source).Str("file", file.Name).Str("kind", string(kind)).Int("rows", fr.Rows).Msg("ingest: file imported")
		result.Imported = append(result.Imported, fr)
		for _, owner := range fr.Owners {
			touched[owner] = struct{}{}
		}
	}

	if len(touched) > 0 && im.hook != nil {
		owners := make([]string, 0, len(touched))
		for owner := range touched {
			owners = append(owners, owner)
		}
		sort.Strings(owners)
		im.hook(ctx, owners)
	}
	return result, nil
}

func (im *Importer) due(ctx context.Context, file File, kind domain.ImportKind) (bool, error) {
	last, err := im.repo.LastImport(ctx, im.source.Name(), file.ID)
	if err != nil {
		return false, err
	}
	if last == nil {
		return true, nil
	}
	if kind == domain.ImportSales {
		return false, nil
	}
	return file.ModifiedTime.After(last.ModifiedAt), nil
}

func (im *Importer) importFile(ctx context.Context, file File, kind domain.ImportKind) FileResult {
	fr := FileResult{File: file, Kind: kind}

	body, err := im.source.Open(ctx, file)
	if err != nil {
		fr.Error = err.Error()
		return fr
	}
	defer body.Close()

	var r io.Reader = body
	if file.Format == FormatXLSX {
		if r, err = xlsxToCSV(body); err != nil {
			fr.Error = err.Error()
			return fr
		}
	}

	record := domain.ImportedFile{
		Source:     im.source.Name(),
		FileID:     file.ID,
		FileName:   file.Name,
		Kind:       kind,
		ModifiedAt: file.ModifiedTime,
		ImportedAt: im.clock().UTC(),
	}

	switch kind {
	case domain.ImportStock:
		snapshots, err := csvfile.ReadSnapshots(r)
		if err == nil {
			record.Rows = len(snapshots)
			err = im.repo.ImportSnapshots(ctx, record, snapshots)
		}
		if err != nil {
			fr.Error = err.Error()
			return fr
		}
		fr.Rows = len(snapshots)
		fr.Owners = ownersOf(snapshots, func(s domain.StockSnapshot) string { return s.OwnerID })
	case domain.ImportSales:
		records, err := csvfile.ReadSales(r)
		if err == nil {
			record.Rows = len(records)
			err = im.repo.ImportSales(ctx, record, records)
		}
		if err != nil {
			fr.Error = err.Error()
			return fr
		}
		fr.Rows = len(records)
		fr.Owners = ownersOf(records, func(s domain.SalesRecord) string { return s.OwnerID })
	}
	return fr
}

func ownersOf[T any](rows []T, owner func(T) string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, row := range rows {
		id := owner(row)
		if _, dup := seen[id]; dup || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
