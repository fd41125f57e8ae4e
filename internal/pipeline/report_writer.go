package pipeline

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/andresuchdata/stockcast/internal/domain"
	"github.com/andresuchdata/stockcast/internal/storage"
	"github.com/rs/zerolog/log"
)

var reportHeader = []string{
	"item_id", "item_name", "category", "urgency", "recommended_action",
	"total_predicted_demand", "interval_lower", "interval_upper",
	"suggested_order_qty", "reorder_point", "safety_stock", "confidence_score",
	"trend", "season", "multiplier", "current_stock", "reorder_threshold",
	"estimated_order_cost", "risk_factors",
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ownerFileName keeps owner ids usable as file names and object keys.
func ownerFileName(ownerID string) string {
	name := unsafeFileChars.ReplaceAllString(strings.TrimSpace(ownerID), "_")
	if name == "" || name == "." || name == ".." {
		name = "_"
	}
	return name
}

// ReportWriter exports reports as CSV under the run directory and optionally mirrors
// them to object storage.
type ReportWriter struct {
	dir     string
	prefix  string
	objects storage.ObjectStorage
}

// NewReportWriter writes into dir; uploads happen only when objects is non-nil and
// prefix is set.
func NewReportWriter(dir, prefix string, objects storage.ObjectStorage) *ReportWriter {
	return &ReportWriter{dir: dir, prefix: strings.Trim(prefix, "/"), objects: objects}
}

func (w *ReportWriter) uploads() bool {
	return w.objects != nil && w.prefix != ""
}

// objectKey joins the prefix, run id and file name with forward slashes.
func (w *ReportWriter) objectKey(runID, name string) string {
	return path.Join(w.prefix, runID, name)
}

// WriteReport exports one owner's report and returns the local path and object key.
func (w *ReportWriter) WriteReport(ctx context.Context, runID string, report *domain.ForecastReport) (string, string, error) {
	data, err := encodeReport(report)
	if err != nil {
		return "", "", fmt.Errorf("encode report for %s: %w", report.OwnerID, err)
	}

	name := ownerFileName(report.OwnerID) + ".csv"
	localPath, err := w.writeFile(runID, name, data)
	if err != nil {
		return "", "", err
	}

	var key string
	if w.uploads() {
		key = w.objectKey(runID, name)
		if err := w.objects.UploadObject(ctx, key, data, "text/csv"); err != nil {
			return localPath, "", fmt.Errorf("upload report for %s: %w", report.OwnerID, err)
		}
	}

	log.Debug().Str("owner_id", report.OwnerID).Str("path", localPath).Str("object_key", key).Msg("batch: report written")
	return localPath, key, nil
}

// WriteManifest stores the run bookkeeping next to the reports.
func (w *ReportWriter) WriteManifest(ctx context.Context, run *BatchRun) (string, error) {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode manifest: %w", err)
	}

	runID := run.ID.String()
	localPath, err := w.writeFile(runID, "manifest.json", data)
	if err != nil {
		return "", err
	}
	if w.uploads() {
		if err := w.objects.UploadObject(ctx, w.objectKey(runID, "manifest.json"), data, "application/json"); err != nil {
			return localPath, fmt.Errorf("upload manifest: %w", err)
		}
	}
	return localPath, nil
}

func (w *ReportWriter) writeFile(runID, name string, data []byte) (string, error) {
	dir := filepath.Join(w.dir, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	target := filepath.Join(dir, name)
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", target, err)
	}
	return target, nil
}

func encodeReport(report *domain.ForecastReport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(reportHeader); err != nil {
		return nil, err
	}
	for _, r := range report.Results {
		record := []string{
			r.ItemID,
			r.ItemName,
			r.Category,
			string(r.Urgency),
			string(r.Action),
			strconv.Itoa(r.TotalPredictedDemand),
			strconv.Itoa(r.ConfidenceInterval.Lower),
			strconv.Itoa(r.ConfidenceInterval.Upper),
			strconv.Itoa(r.SuggestedOrderQty),
			strconv.Itoa(r.ReorderPoint),
			strconv.Itoa(r.SafetyStock),
			strconv.Itoa(r.ConfidenceScore),
			string(r.Trend),
			r.Season,
			strconv.FormatFloat(r.Multiplier, 'f', 3, 64),
			strconv.Itoa(r.CurrentStock),
			strconv.Itoa(r.ReorderThreshold),
			r.EstimatedOrderCost.StringFixed(2),
			strings.Join(r.RiskFactors, "; "),
		}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
