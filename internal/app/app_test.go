package app

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyellow/college-predictor-go/internal/catalog"
	"github.com/garyellow/college-predictor-go/internal/config"
	"github.com/garyellow/college-predictor-go/internal/logger"
	"github.com/garyellow/college-predictor-go/internal/matching"
	"github.com/garyellow/college-predictor-go/internal/metrics"
	"github.com/garyellow/college-predictor-go/internal/ratelimit"
	"github.com/garyellow/college-predictor-go/internal/shortlist"
	"github.com/garyellow/college-predictor-go/internal/storage"
)

const testOrigin = "https://predictor.example"

const catalogDump = `[
  {"code": "ENG01", "name": "Pune Institute", "location": {"city": "Pune", "district": "Pune", "state": "Maharashtra"},
   "type": "Government", "autonomyStatus": "Autonomous",
   "branches": [{"branchName": "Computer Engineering", "cutoffs": {"OPEN": {"$numberDouble": "90.5"}}}]},
  {"code": "ENG02", "name": "Mumbai College", "location": {"city": "Mumbai", "district": "Mumbai", "state": "Maharashtra"},
   "type": "Private", "autonomyStatus": "Non-Autonomous",
   "branches": [{"branchName": "Mechanical Engineering", "cutoffs": {"OPEN": 70}}]}
]`

type fakeDownloader struct {
	objects map[string]string
}

func (f fakeDownloader) Download(_ context.Context, key string) (io.ReadCloser, string, error) {
	body, ok := f.objects[key]
	if !ok {
		return nil, "", os.ErrNotExist
	}
	return io.NopCloser(strings.NewReader(body)), "etag", nil
}

func testConfig() *config.Config {
	return &config.Config{
		Port:                "10000",
		ShutdownTimeout:     time.Second,
		ServiceName:         "college-predictor-test",
		UserIDHeader:        "X-User-Id",
		CORSAllowedOrigin:   testOrigin,
		PredictDefaultLimit: 15,
		PredictMaxLimit:     100,
		RateLimitRequests:   100,
		RateLimitWindow:     15 * time.Minute,
		MetricsUsername:     "prometheus",
	}
}

// setupTestApp assembles an Application around a private in-memory database.
func setupTestApp(t *testing.T, cfg *config.Config, downloader catalog.Downloader) *Application {
	t.Helper()

	db, err := storage.New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	importer, err := catalog.NewImporter(db, downloader, m)
	require.NoError(t, err)

	limiter := ratelimit.NewKeyedLimiter(ratelimit.KeyedConfig{
		Name:        "api",
		WindowLimit: cfg.RateLimitRequests,
		Window:      cfg.RateLimitWindow,
		Metrics:     m,
	})
	t.Cleanup(limiter.Stop)

	return &Application{
		cfg:       cfg,
		logger:    logger.NewWithWriter("error", io.Discard),
		db:        db,
		metrics:   m,
		registry:  registry,
		engine:    matching.NewEngine(db, matching.NewNormalizer(matching.DefaultMappings()), m),
		shortlist: shortlist.NewService(db, db, m),
		importer:  importer,
		limiter:   limiter,
	}
}

func seedCatalog(t *testing.T, a *Application) {
	t.Helper()
	var colleges []storage.College
	require.NoError(t, json.Unmarshal([]byte(catalogDump), &colleges))
	require.NoError(t, a.db.UpsertColleges(context.Background(), colleges))
}

func serve(router http.Handler, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func TestLivenessCheck(t *testing.T) {
	t.Parallel()
	app := setupTestApp(t, testConfig(), nil)
	router := app.routes()

	w := serve(router, http.MethodGet, "/livez", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alive", decode(t, w)["status"])

	// Liveness ignores the database.
	require.NoError(t, app.db.Close())
	w = serve(router, http.MethodGet, "/livez", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReadinessCheck(t *testing.T) {
	t.Parallel()
	app := setupTestApp(t, testConfig(), nil)
	seedCatalog(t, app)

	w := serve(app.routes(), http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "ready", body["status"])
	assert.Equal(t, "connected", body["database"])
	assert.Equal(t, map[string]any{"colleges": float64(2)}, body["catalog"])
	assert.Equal(t, false, body["features"].(map[string]any)["catalog_storage"])
}

func TestReadinessCheckDatabaseFailure(t *testing.T) {
	t.Parallel()
	app := setupTestApp(t, testConfig(), nil)
	require.NoError(t, app.db.Close())

	w := serve(app.routes(), http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	body := decode(t, w)
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "database unavailable", body["reason"])
}

func TestReadinessCheck_CatalogLoading(t *testing.T) {
	t.Parallel()
	app := setupTestApp(t, testConfig(), nil)
	app.readiness = newReadinessState(time.Hour)
	router := app.routes()

	w := serve(router, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "catalog loading", decode(t, w)["reason"])

	// Bootstrap opens the gate even when there is nothing to import.
	app.bootstrapCatalog(context.Background())
	w = serve(router, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRoutes_PredictAndCatalog(t *testing.T) {
	t.Parallel()
	app := setupTestApp(t, testConfig(), nil)
	seedCatalog(t, app)
	router := app.routes()

	w := serve(router, http.MethodPost, "/api/colleges/predict",
		`{"percentile": 95, "branch": "Any", "category": "open"}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, float64(2), body["totalColleges"])
	colleges := body["colleges"].([]any)
	require.Len(t, colleges, 2)
	assert.Equal(t, "ENG01", colleges[0].(map[string]any)["code"])
	assert.Equal(t, 90.5, colleges[0].(map[string]any)["representativeCutoff"])

	w = serve(router, http.MethodGet, "/api/colleges/ENG02", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Mumbai College", decode(t, w)["name"])

	w = serve(router, http.MethodGet, "/api/colleges?page=1&limit=1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["hasNextPage"])

	assert.Equal(t, float64(1), testutil.ToFloat64(
		app.metrics.HTTPRequestsTotal.WithLabelValues("/api/colleges/predict", http.MethodPost, "2xx")))
	assert.Equal(t, float64(1), testutil.ToFloat64(
		app.metrics.HTTPRequestsTotal.WithLabelValues("/api/colleges/:code", http.MethodGet, "2xx")))
}

func TestRoutes_ShortlistRequiresIdentity(t *testing.T) {
	t.Parallel()
	app := setupTestApp(t, testConfig(), nil)
	seedCatalog(t, app)
	router := app.routes()

	w := serve(router, http.MethodGet, "/api/college-list", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Authentication required", decode(t, w)["message"])
	assert.Equal(t, float64(1), testutil.ToFloat64(
		app.metrics.HTTPErrorsTotal.WithLabelValues("unauthenticated", "identity")))

	user := map[string]string{"X-User-Id": "user-1"}
	w = serve(router, http.MethodPost, "/api/college-list/add",
		`{"collegeId": "ENG01", "branch": "Computer Engineering", "category": "OPEN"}`, user)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = serve(router, http.MethodGet, "/api/college-list", "", user)
	require.Equal(t, http.StatusOK, w.Code)
	var items []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, float64(1), items[0]["rank"])

	// Another user sees an empty list.
	w = serve(router, http.MethodGet, "/api/college-list", "", map[string]string{"X-User-Id": "user-2"})
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestRoutes_RequestID(t *testing.T) {
	t.Parallel()
	app := setupTestApp(t, testConfig(), nil)
	router := app.routes()

	w := serve(router, http.MethodGet, "/livez", "", map[string]string{"X-Request-Id": "req-42"})
	assert.Equal(t, "req-42", w.Header().Get("X-Request-Id"))

	w = serve(router, http.MethodGet, "/livez", "", nil)
	assert.Len(t, w.Header().Get("X-Request-Id"), 36)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestRoutes_RateLimit(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.RateLimitRequests = 3
	cfg.RateLimitWindow = time.Minute
	app := setupTestApp(t, cfg, nil)
	router := app.routes()

	for i := range 3 {
		w := serve(router, http.MethodGet, "/api/colleges", "", nil)
		require.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
		assert.Equal(t, "3", w.Header().Get("RateLimit-Limit"))
	}

	w := serve(router, http.MethodGet, "/api/colleges", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, rateLimitMessage, decode(t, w)["message"])
	assert.Equal(t, "0", w.Header().Get("RateLimit-Remaining"))
	assert.Equal(t, float64(1), testutil.ToFloat64(app.metrics.RateLimiterDropped.WithLabelValues("api")))

	// Health endpoints sit outside the API limiter.
	w = serve(router, http.MethodGet, "/livez", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRoutes_CORS(t *testing.T) {
	t.Parallel()
	app := setupTestApp(t, testConfig(), nil)
	router := app.routes()

	w := serve(router, http.MethodOptions, "/api/college-list/add", "", map[string]string{
		"Origin":                        testOrigin,
		"Access-Control-Request-Method": http.MethodPost,
	})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, testOrigin, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-User-Id")

	w = serve(router, http.MethodGet, "/api/colleges", "", map[string]string{"Origin": testOrigin})
	assert.Equal(t, testOrigin, w.Header().Get("Access-Control-Allow-Origin"))

	w = serve(router, http.MethodGet, "/api/colleges", "", map[string]string{"Origin": "https://evil.example"})
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRoutes_MetricsAuth(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.MetricsPassword = "secret123"
	app := setupTestApp(t, cfg, nil)
	router := app.routes()

	w := serve(router, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	auth := "Basic " + base64.StdEncoding.EncodeToString([]byte("prometheus:secret123"))
	w = serve(router, http.MethodGet, "/metrics", "", map[string]string{"Authorization": auth})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "college_predictor_http_requests_total")
}

func TestBootstrapCatalog(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Catalog = config.CatalogStorageConfig{
		Endpoint:    "https://storage.example",
		AccessKeyID: "key",
		SecretKey:   "secret",
		Bucket:      "catalog",
		ObjectKey:   "dumps/colleges.json",
	}
	app := setupTestApp(t, cfg, fakeDownloader{objects: map[string]string{"dumps/colleges.json": catalogDump}})
	ctx := context.Background()

	app.bootstrapCatalog(ctx)

	count, err := app.db.CountColleges(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, float64(2), testutil.ToFloat64(app.metrics.CatalogColleges))
	assert.Equal(t, float64(1), testutil.ToFloat64(app.metrics.CatalogImportsTotal.WithLabelValues("success")))

	// A populated catalog is left alone.
	app.bootstrapCatalog(ctx)
	assert.Equal(t, float64(1), testutil.ToFloat64(app.metrics.CatalogImportsTotal.WithLabelValues("success")))
}

func TestBootstrapCatalog_Disabled(t *testing.T) {
	t.Parallel()
	app := setupTestApp(t, testConfig(), nil)
	ctx := context.Background()

	app.bootstrapCatalog(ctx)

	count, err := app.db.CountColleges(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRecordGaugeMetrics(t *testing.T) {
	t.Parallel()
	app := setupTestApp(t, testConfig(), nil)
	seedCatalog(t, app)
	ctx := context.Background()

	_, err := app.shortlist.Add(ctx, "user-1", shortlist.AddRequest{CollegeCode: "ENG01", Branch: "Computer Engineering"})
	require.NoError(t, err)
	require.True(t, app.limiter.Allow("192.0.2.1"))

	app.recordGaugeMetrics(ctx)

	assert.Equal(t, float64(2), testutil.ToFloat64(app.metrics.CatalogColleges))
	assert.Equal(t, float64(1), testutil.ToFloat64(app.metrics.ShortlistEntriesSize))
	assert.Equal(t, float64(1), testutil.ToFloat64(app.metrics.RateLimiterClients))
}

func init() {
	gin.SetMode(gin.TestMode)
}
