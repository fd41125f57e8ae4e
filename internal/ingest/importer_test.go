package ingest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/andresuchdata/stockcast/internal/domain"
	"github.com/andresuchdata/stockcast/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var jan14 = time.Date(2026, time.January, 14, 18, 0, 0, 0, time.UTC)

const (
	stockExport = "owner_id,item_id,item_name,category,on_hand,reorder_threshold\n" +
		"pharm-1,amox,Amoxicillin,antibiotic,5,10\n" +
		"pharm-2,ors,ORS,rehydration,40,20\n"
	salesExport = "owner_id,item_id,quantity,sold_at\n" +
		"pharm-1,amox,3,2026-01-14T09:30:00Z\n"
)

type memSource struct {
	mu    sync.Mutex
	files []File
	data  map[string][]byte
}

func (s *memSource) put(file File, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		s.data = make(map[string][]byte)
	}
	for i, f := range s.files {
		if f.ID == file.ID {
			s.files[i] = file
			s.data[file.ID] = data
			return
		}
	}
	s.files = append(s.files, file)
	s.data[file.ID] = data
}

func (s *memSource) Name() string { return "mem" }

func (s *memSource) ListFiles(context.Context) ([]File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]File(nil), s.files...), nil
}

func (s *memSource) Open(_ context.Context, file File) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.data[file.ID]
	if !ok {
		return nil, errors.New("gone")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type memIngestRepo struct {
	mu        sync.Mutex
	files     map[string]domain.ImportedFile
	snapshots []domain.StockSnapshot
	sales     []domain.SalesRecord
}

func newMemIngestRepo() *memIngestRepo {
	return &memIngestRepo{files: make(map[string]domain.ImportedFile)}
}

func (r *memIngestRepo) LastImport(_ context.Context, source, fileID string) (*domain.ImportedFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[source+"/"+fileID]
	if !ok {
		return nil, nil
	}
	return &f, nil
}

func (r *memIngestRepo) ImportSnapshots(_ context.Context, file domain.ImportedFile, snapshots []domain.StockSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, snapshots...)
	r.files[file.Source+"/"+file.FileID] = file
	return nil
}

func (r *memIngestRepo) ImportSales(_ context.Context, file domain.ImportedFile, records []domain.SalesRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sales = append(r.sales, records...)
	r.files[file.Source+"/"+file.FileID] = file
	return nil
}

func (r *memIngestRepo) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snapshots), len(r.sales)
}

func TestKindOf(t *testing.T) {
	kind, ok := KindOf("Stock_2026-01-14.xlsx")
	require.True(t, ok)
	assert.Equal(t, domain.ImportStock, kind)

	kind, ok = KindOf("exports/sales-jan.csv")
	require.True(t, ok)
	assert.Equal(t, domain.ImportSales, kind)

	_, ok = KindOf("suppliers.csv")
	assert.False(t, ok)
}

func TestImporter_Sync(t *testing.T) {
	src := &memSource{}
	src.put(File{ID: "s1", Name: "sales_jan.csv", Format: FormatCSV, ModifiedTime: jan14}, []byte(salesExport))
	src.put(File{ID: "k1", Name: "stock.csv", Format: FormatCSV, ModifiedTime: jan14.Add(time.Hour)}, []byte(stockExport))
	src.put(File{ID: "x1", Name: "notes.csv", Format: FormatCSV, ModifiedTime: jan14}, []byte("a,b\n"))

	repo := newMemIngestRepo()
	var hooked [][]string
	im := NewImporter(src, repo, func(_ context.Context, owners []string) { hooked = append(hooked, owners) })

	result, err := im.Sync(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Imported, 2)
	assert.Equal(t, "stock.csv", result.Imported[0].File.Name, "stock loads before sales")
	assert.Equal(t, 2, result.Imported[0].Rows)
	assert.Equal(t, []string{"pharm-1", "pharm-2"}, result.Imported[0].Owners)
	assert.Equal(t, 1, result.Skipped)
	assert.Empty(t, result.Failed)
	assert.Equal(t, [][]string{{"pharm-1", "pharm-2"}}, hooked)

	stock, sales := repo.counts()
	assert.Equal(t, 2, stock)
	assert.Equal(t, 1, sales)
	assert.Equal(t, 2, repo.files["mem/k1"].Rows)

	t.Run("second pass skips everything", func(t *testing.T) {
		again, err := im.Sync(context.Background())
		require.NoError(t, err)
		assert.Empty(t, again.Imported)
		assert.Equal(t, 3, again.Skipped)
		assert.Len(t, hooked, 1)
	})

	t.Run("changed stock is re-imported, changed sales is not", func(t *testing.T) {
		src.put(File{ID: "k1", Name: "stock.csv", Format: FormatCSV, ModifiedTime: jan14.Add(2 * time.Hour)}, []byte(stockExport))
		src.put(File{ID: "s1", Name: "sales_jan.csv", Format: FormatCSV, ModifiedTime: jan14.Add(2 * time.Hour)}, []byte(salesExport))

		again, err := im.Sync(context.Background())
		require.NoError(t, err)
		require.Len(t, again.Imported, 1)
		assert.Equal(t, "k1", again.Imported[0].File.ID)

		stock, sales := repo.counts()
		assert.Equal(t, 4, stock)
		assert.Equal(t, 1, sales)
	})
}

func TestImporter_BadFileDoesNotStopOthers(t *testing.T) {
	src := &memSource{}
	src.put(File{ID: "bad", Name: "stock_broken.csv", Format: FormatCSV, ModifiedTime: jan14}, []byte("owner_id,item_id\npharm-1,amox\n"))
	src.put(File{ID: "good", Name: "sales.csv", Format: FormatCSV, ModifiedTime: jan14}, []byte(salesExport))

	repo := newMemIngestRepo()
	result, err := NewImporter(src, repo, nil).Sync(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Failed, 1)
	assert.Equal(t, "bad", result.Failed[0].File.ID)
	assert.Contains(t, result.Failed[0].Error, "on_hand")
	require.Len(t, result.Imported, 1)

	_, failedBefore := repo.files["mem/bad"]
	assert.False(t, failedBefore, "failed files are retried on the next pass")
}

func TestImporter_XLSX(t *testing.T) {
	book := excelize.NewFile()
	for i, row := range [][]any{
		{"owner_id", "item_id", "category", "on_hand", "reorder_threshold", "unit_cost"},
		{"pharm-3", "coartem", "antimalarial", 3, 10, "4.25"},
	} {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, book.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := book.WriteToBuffer()
	require.NoError(t, err)

	src := &memSource{}
	src.put(File{ID: "wb", Name: "stock.xlsx", Format: FormatXLSX, ModifiedTime: jan14}, buf.Bytes())

	repo := newMemIngestRepo()
	result, err := NewImporter(src, repo, nil).Sync(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Imported, 1, "failed: %+v", result.Failed)

	require.Len(t, repo.snapshots, 1)
	snap := repo.snapshots[0]
	assert.Equal(t, "pharm-3", snap.OwnerID)
	assert.Equal(t, "coartem", snap.Item.ID)
	assert.Equal(t, 3, snap.OnHand)
	assert.Equal(t, "4.25", snap.UnitCost.StringFixed(2))
}

func TestImporter_NonFiniteSalesFailTheFile(t *testing.T) {
	book := excelize.NewFile()
	for i, row := range [][]any{
		{"owner_id", "item_id", "quantity", "sold_at"},
		{"pharm-3", "coartem", 4, "2026-01-13"},
		{"pharm-3", "coartem", "NaN", "2026-01-14"},
	} {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, book.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := book.WriteToBuffer()
	require.NoError(t, err)

	src := &memSource{}
	src.put(File{ID: "wb", Name: "sales.xlsx", Format: FormatXLSX, ModifiedTime: jan14}, buf.Bytes())
	src.put(File{ID: "inf", Name: "sales_inf.csv", Format: FormatCSV, ModifiedTime: jan14},
		[]byte("owner_id,item_id,quantity,sold_at\npharm-1,amox,Inf,2026-01-14\n"))

	repo := newMemIngestRepo()
	result, err := NewImporter(src, repo, nil).Sync(context.Background())
	require.NoError(t, err)

	assert.Empty(t, result.Imported)
	require.Len(t, result.Failed, 2)
	for _, f := range result.Failed {
		assert.Contains(t, f.Error, "not a finite number")
	}
	assert.Empty(t, repo.sales, "a rejected file imports no rows")
}

type listedObjects struct {
	objects map[string][]byte
	infos   []storage.ObjectInfo
}

func (l listedObjects) ListObjects(_ context.Context, prefix string) ([]storage.ObjectInfo, error) {
	return l.infos, nil
}

func (l listedObjects) GetObject(_ context.Context, key string) ([]byte, error) {
	data, ok := l.objects[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return data, nil
}

func (l listedObjects) UploadObject(context.Context, string, []byte, string) error { return nil }

func TestObjectSource(t *testing.T) {
	objects := listedObjects{
		objects: map[string][]byte{"inbox/stock.csv": []byte(stockExport)},
		infos: []storage.ObjectInfo{
			{Key: "inbox/stock.csv", Size: int64(len(stockExport)), LastModified: jan14},
			{Key: "inbox/readme.txt", Size: 3, LastModified: jan14},
		},
	}
	src := NewObjectSource(objects, "/inbox/")

	files, err := src.ListFiles(context.Background())
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, File{ID: "inbox/stock.csv", Name: "stock.csv", Format: FormatCSV, ModifiedTime: jan14, Size: int64(len(stockExport))}, files[0])

	body, err := src.Open(context.Background(), files[0])
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, stockExport, string(data))
}

func TestWatcher_RunsUntilCancelled(t *testing.T) {
	src := &memSource{}
	src.put(File{ID: "k1", Name: "stock.csv", Format: FormatCSV, ModifiedTime: jan14}, []byte(stockExport))
	repo := newMemIngestRepo()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewWatcher(NewImporter(src, repo, nil), 5*time.Millisecond).Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		stock, _ := repo.counts()
		return stock == 2
	}, time.Second, 5*time.Millisecond)

	src.put(File{ID: "s1", Name: "sales.csv", Format: FormatCSV, ModifiedTime: jan14}, []byte(salesExport))
	require.Eventually(t, func() bool {
		_, sales := repo.counts()
		return sales == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}
