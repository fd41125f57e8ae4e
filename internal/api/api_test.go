package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/andresuchdata/stockcast/internal/domain"
	"github.com/andresuchdata/stockcast/internal/forecast"
	"github.com/andresuchdata/stockcast/internal/ingest"
	"github.com/andresuchdata/stockcast/internal/repository/memory"
	"github.com/andresuchdata/stockcast/internal/service"
	"github.com/andresuchdata/stockcast/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, time.July, 1, 9, 0, 0, 0, time.UTC)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	clock := func() time.Time { return now }
	store := memory.NewStore(clock)
	store.AddSnapshots(
		domain.StockSnapshot{OwnerID: "pharm-1", Item: domain.Item{ID: "coartem", Category: "antimalarial"}, OnHand: 3, ReorderThreshold: 10},
		domain.StockSnapshot{OwnerID: "pharm-1", Item: domain.Item{ID: "vitc", Category: "vitamins"}, OnHand: 400, ReorderThreshold: 10},
	)
	engine := forecast.NewEngine(store, store, forecast.WithClock(clock))
	svc := service.NewForecastService(engine, nil)
	return NewRouter(&Services{ForecastService: svc, DefaultHorizonDays: 60}, []string{"*"})
}

type brokenSales struct{}

func (brokenSales) FetchSalesHistory(context.Context, string, int) ([]domain.SalesRecord, error) {
	return nil, errors.New("ledger unavailable")
}

func get(t *testing.T, router http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := get(t, newRouter(t), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRequestIDIsEchoed(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "trace-42")
	rec := httptest.NewRecorder()
	newRouter(t).ServeHTTP(rec, req)

	assert.Equal(t, "trace-42", rec.Header().Get("X-Request-ID"))
}

func TestGetForecast(t *testing.T) {
	rec := get(t, newRouter(t), "/api/v1/owners/pharm-1/forecast?horizon=90")
	require.Equal(t, http.StatusOK, rec.Code)

	var report domain.ForecastReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "pharm-1", report.OwnerID)
	assert.Equal(t, 90, report.Horizon)
	require.Len(t, report.Results, 2)
	assert.Equal(t, "coartem", report.Results[0].ItemID)
	assert.Len(t, report.Results[0].Periods, 12)
	assert.Equal(t, domain.ActionUrgentRestock, report.Results[0].Action)
	assert.Contains(t, report.Insights, "Market demand for vitamins is up 30%")
}

func TestGetForecast_DefaultHorizon(t *testing.T) {
	rec := get(t, newRouter(t), "/api/v1/owners/pharm-1/forecast")
	require.Equal(t, http.StatusOK, rec.Code)

	var report domain.ForecastReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 60, report.Horizon)
}

func TestGetForecast_InvalidHorizon(t *testing.T) {
	router := newRouter(t)
	for _, h := range []string{"45", "abc", "-30"} {
		rec := get(t, router, "/api/v1/owners/pharm-1/forecast?horizon="+h)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "horizon=%s", h)
	}
}

func TestGetForecast_DataFetchFailure(t *testing.T) {
	store := memory.NewStore(nil)
	engine := forecast.NewEngine(store, brokenSales{})
	router := NewRouter(&Services{ForecastService: service.NewForecastService(engine, nil)}, nil)

	rec := get(t, router, "/api/v1/owners/pharm-1/forecast")
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "failed to generate forecast", body["error"])
	assert.Contains(t, body["details"], "ledger unavailable")
}

func TestGetSummary(t *testing.T) {
	rec := get(t, newRouter(t), "/api/v1/owners/pharm-1/forecast/summary")
	require.Equal(t, http.StatusOK, rec.Code)

	var summary domain.QuickSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 30, summary.Horizon)
	assert.Equal(t, 1, summary.UrgentRestockCount)
}

func TestInvalidateSummary(t *testing.T) {
	router := newRouter(t)
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/owners/pharm-1/forecast/summary", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestGetPriorities(t *testing.T) {
	rec := get(t, newRouter(t), "/api/v1/owners/pharm-1/forecast/priorities?horizon=30")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Horizon    int                    `json:"horizon_days"`
		Priorities domain.PriorityBuckets `json:"priorities"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 30, body.Horizon)
	require.Len(t, body.Priorities.High, 1)
	assert.Equal(t, "coartem", body.Priorities.High[0].ItemID)
	assert.Len(t, body.Priorities.Low, 1)
}

func TestNormalizeAllowedOrigins(t *testing.T) {
	origins, all := normalizeAllowedOrigins([]string{"https://a.example, https://b.example", " "})
	assert.False(t, all)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, origins)

	_, all = normalizeAllowedOrigins([]string{"*"})
	assert.True(t, all)
}

type inboxObjects struct {
	data map[string][]byte
}

func (o inboxObjects) ListObjects(context.Context, string) ([]storage.ObjectInfo, error) {
	var out []storage.ObjectInfo
	for key, data := range o.data {
		out = append(out, storage.ObjectInfo{Key: key, Size: int64(len(data)), LastModified: now.Add(-time.Hour)})
	}
	return out, nil
}

func (o inboxObjects) GetObject(_ context.Context, key string) ([]byte, error) {
	data, ok := o.data[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return data, nil
}

func (o inboxObjects) UploadObject(context.Context, string, []byte, string) error { return nil }

func TestImportRoutes(t *testing.T) {
	clock := func() time.Time { return now }
	store := memory.NewStore(clock)
	engine := forecast.NewEngine(store, store, forecast.WithClock(clock))
	svc := service.NewForecastService(engine, nil)

	objects := inboxObjects{data: map[string][]byte{
		"inbox/stock_pharm-7.csv": []byte("owner_id,item_id,category,on_hand,reorder_threshold\npharm-7,coartem,antimalarial,2,10\n"),
	}}
	importer := ingest.NewImporter(ingest.NewObjectSource(objects, "inbox"), store, svc.InvalidateOwners)
	router := NewRouter(&Services{ForecastService: svc, Importer: importer}, nil)

	rec := get(t, router, "/api/v1/imports/files")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"source":"storage"`)
	assert.Contains(t, rec.Body.String(), "stock_pharm-7.csv")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/imports/sync", nil)
	sync := httptest.NewRecorder()
	router.ServeHTTP(sync, req)
	require.Equal(t, http.StatusOK, sync.Code)

	var result ingest.SyncResult
	require.NoError(t, json.Unmarshal(sync.Body.Bytes(), &result))
	require.Len(t, result.Imported, 1)
	assert.Equal(t, []string{"pharm-7"}, result.Imported[0].Owners)

	rec = get(t, router, "/api/v1/owners/pharm-7/forecast")
	require.Equal(t, http.StatusOK, rec.Code)
	var report domain.ForecastReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Len(t, report.Results, 1)
	assert.Equal(t, domain.ActionUrgentRestock, report.Results[0].Action)
}

func TestImportRoutes_NotRegisteredWithoutImporter(t *testing.T) {
	rec := get(t, newRouter(t), "/api/v1/imports/files")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
