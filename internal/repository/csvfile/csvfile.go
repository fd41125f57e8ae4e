// Package csvfile reads stock and ledger exports so forecasts can run without a database.
package csvfile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/andresuchdata/stockcast/internal/domain"
	"github.com/andresuchdata/stockcast/internal/repository/memory"
	"github.com/shopspring/decimal"
)

var (
	stockColumns = []string{"owner_id", "item_id", "on_hand", "reorder_threshold"}
	salesColumns = []string{"owner_id", "item_id", "quantity", "sold_at"}
)

// Load reads a stock export and a sales export into an in-memory store. An empty
// salesPath leaves the ledger empty.
func Load(stockPath, salesPath string, clock func() time.Time) (*memory.Store, error) {
	snapshots, err := LoadSnapshots(stockPath)
	if err != nil {
		return nil, err
	}
	var records []domain.SalesRecord
	if salesPath != "" {
		if records, err = LoadSales(salesPath); err != nil {
			return nil, err
		}
	}

	store := memory.NewStore(clock)
	store.AddSnapshots(snapshots...)
	store.AddSales(records...)
	return store, nil
}

// LoadSnapshots reads a stock export from disk.
func LoadSnapshots(path string) ([]domain.StockSnapshot, error) {
	return readFile(path, ReadSnapshots)
}

// LoadSales reads a sales export from disk.
func LoadSales(path string) ([]domain.SalesRecord, error) {
	return readFile(path, ReadSales)
}

func readFile[T any](path string, read func(io.Reader) ([]T, error)) ([]T, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer file.Close()

	rows, err := read(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}

// ReadSnapshots parses a stock export. item_name, category, expiry_date and unit_cost
// are optional columns.
func ReadSnapshots(r io.Reader) ([]domain.StockSnapshot, error) {
	var out []domain.StockSnapshot
	err := readRows(r, stockColumns, func(row row) error {
		onHand, err := row.integer("on_hand")
		if err != nil {
			return err
		}
		threshold, err := row.integer("reorder_threshold")
		if err != nil {
			return err
		}
		expiry, err := row.optionalTime("expiry_date")
		if err != nil {
			return err
		}
		unitCost := decimal.Zero
		if v := row.get("unit_cost"); v != "" {
			if unitCost, err = decimal.NewFromString(v); err != nil {
				return fmt.Errorf("unit_cost %q: %w", v, err)
			}
		}

		out = append(out, domain.StockSnapshot{
			OwnerID: row.get("owner_id"),
			Item: domain.Item{
				ID:       row.get("item_id"),
				Name:     row.get("item_name"),
				Category: row.get("category"),
			},
			OnHand:           onHand,
			ReorderThreshold: threshold,
			ExpiryDate:       expiry,
			UnitCost:         unitCost,
		})
		return nil
	})
	return out, err
}

// ReadSales parses a ledger export.
func ReadSales(r io.Reader) ([]domain.SalesRecord, error) {
	var out []domain.SalesRecord
	err := readRows(r, salesColumns, func(row row) error {
		qty, err := parseQuantity(row.get("quantity"))
		if err != nil {
			return err
		}
		soldAt, err := parseTime(row.get("sold_at"))
		if err != nil {
			return err
		}
		out = append(out, domain.SalesRecord{
			OwnerID:  row.get("owner_id"),
			ItemID:   row.get("item_id"),
			Quantity: qty,
			SoldAt:   soldAt,
		})
		return nil
	})
	return out, err
}

type row struct {
	index  map[string]int
	record []string
}

func (r row) get(column string) string {
	idx, ok := r.index[column]
	if !ok || idx >= len(r.record) {
		return ""
	}
	return strings.TrimSpace(r.record[idx])
}

func (r row) integer(column string) (int, error) {
	v := r.get(column)
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s %q: %w", column, v, err)
	}
	return n, nil
}

func (r row) optionalTime(column string) (*time.Time, error) {
	v := r.get(column)
	if v == "" {
		return nil, nil
	}
	t, err := parseTime(v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// parseQuantity accepts finite, non-negative amounts only. ParseFloat alone would let
// "NaN" and "Inf" into the ledger.
func parseQuantity(v string) (float64, error) {
	qty, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("quantity %q: %w", v, err)
	}
	if math.IsNaN(qty) || math.IsInf(qty, 0) {
		return 0, fmt.Errorf("quantity %q: not a finite number", v)
	}
	if qty < 0 {
		return 0, fmt.Errorf("quantity %q: must not be negative", v)
	}
	return qty, nil
}

func parseTime(v string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", time.DateOnly} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", v)
}

func readRows(r io.Reader, required []string, fn func(row) error) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read CSV header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, col := range required {
		if _, ok := index[col]; !ok {
			return fmt.Errorf("missing column %q", col)
		}
	}

	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		line++
		if err != nil {
			return fmt.Errorf("failed to read CSV record: %w", err)
		}
		if err := fn(row{index: index, record: record}); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
}
