package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyellow/college-predictor-go/internal/matching"
	"github.com/garyellow/college-predictor-go/internal/metrics"
	"github.com/garyellow/college-predictor-go/internal/storage"
)

type staticCatalog struct {
	colleges []storage.College
	err      error
}

func (s staticCatalog) ListColleges(context.Context, storage.CollegeFilter) ([]storage.College, error) {
	return s.colleges, s.err
}

func college(code string, cutoff string) storage.College {
	return storage.College{
		Code:     code,
		Name:     "College " + code,
		Location: storage.Location{City: "Pune", District: "Pune", State: "Maharashtra"},
		Type:     "Government",
		Branches: []storage.Branch{{
			BranchName: "Computer Engineering",
			Cutoffs:    map[string]json.RawMessage{"OPEN": json.RawMessage(cutoff)},
		}},
	}
}

func setupRouter(t *testing.T, catalog staticCatalog) (*gin.Engine, *metrics.Metrics) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	m := metrics.New(prometheus.NewRegistry())
	engine := matching.NewEngine(catalog, matching.NewNormalizer(matching.DefaultMappings()), m)
	h := NewHandler(engine, m, 15, 100)

	router := gin.New()
	h.Register(router.Group("/api/colleges"))
	return router, m
}

func post(t *testing.T, router *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/colleges/predict", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestPredict_PercentileMode(t *testing.T) {
	t.Parallel()
	router, m := setupRouter(t, staticCatalog{colleges: []storage.College{college("ENG01", `92.0`)}})

	w := post(t, router, `{"percentile": 95, "branch": "Computer Engineering", "category": "OPEN"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode(t, w)
	require.Len(t, resp.Colleges, 1)
	assert.Equal(t, "ENG01", resp.Colleges[0].Code)
	assert.InDelta(t, 92.0, resp.Colleges[0].RepresentativeCutoff, 1e-9)
	assert.Equal(t, 1, resp.CurrentPage)
	assert.Equal(t, 1, resp.TotalPages)
	assert.Equal(t, 1, resp.TotalColleges)
	assert.False(t, resp.HasNextPage)
	assert.False(t, resp.HasPrevPage)

	w = post(t, router, `{"percentile": 90, "branch": "Computer Engineering", "category": "OPEN"}`)
	require.Equal(t, http.StatusOK, w.Code)
	resp = decode(t, w)
	assert.Empty(t, resp.Colleges)
	assert.NotNil(t, resp.Colleges)
	assert.Zero(t, resp.TotalColleges)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PredictionsTotal.WithLabelValues("percentile", "success")))
}

func TestPredict_RangeModeAcceptsNumericStrings(t *testing.T) {
	t.Parallel()
	router, _ := setupRouter(t, staticCatalog{colleges: []storage.College{
		college("A", `{"$numberDouble":"85.5"}`),
		college("B", `{"$numberInt":"70"}`),
		college("C", `null`),
	}})

	w := post(t, router, `{"cutoffRangeMin": "80", "cutoffRangeMax": 90, "branch": "Any", "category": "open", "percentile": ""}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode(t, w)
	require.Len(t, resp.Colleges, 1)
	assert.Equal(t, "A", resp.Colleges[0].Code)
}

func TestPredict_Pagination(t *testing.T) {
	t.Parallel()
	colleges := make([]storage.College, 0, 20)
	for i := range 20 {
		colleges = append(colleges, college(string(rune('A'+i)), `50`))
	}
	router, _ := setupRouter(t, staticCatalog{colleges: colleges})

	w := post(t, router, `{"percentile": 99, "branch": "Any", "category": "OPEN", "page": 2}`)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Len(t, resp.Colleges, 5)
	assert.Equal(t, 2, resp.TotalPages)
	assert.Equal(t, 20, resp.TotalColleges)
	assert.False(t, resp.HasNextPage)
	assert.True(t, resp.HasPrevPage)

	w = post(t, router, `{"percentile": 99, "branch": "Any", "category": "OPEN", "limit": 8}`)
	resp = decode(t, w)
	assert.Len(t, resp.Colleges, 8)
	assert.Equal(t, 3, resp.TotalPages)
	assert.True(t, resp.HasNextPage)
}

func TestPredict_HugePageIsEmpty(t *testing.T) {
	t.Parallel()
	router, _ := setupRouter(t, staticCatalog{colleges: []storage.College{college("A", `50`), college("B", `60`)}})

	w := post(t, router, `{"percentile": 99, "branch": "Any", "category": "OPEN", "page": 922337203685477580}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	resp := decode(t, w)
	if resp.Colleges == nil || len(resp.Colleges) != 0 {
		t.Errorf("colleges = %v, want empty", resp.Colleges)
	}
	if resp.CurrentPage != 922337203685477580 {
		t.Errorf("currentPage = %d, want 922337203685477580", resp.CurrentPage)
	}
	if resp.TotalColleges != 2 || resp.TotalPages != 1 {
		t.Errorf("totals = %d/%d, want 2/1", resp.TotalColleges, resp.TotalPages)
	}
	if resp.HasNextPage || !resp.HasPrevPage {
		t.Errorf("hasNext/hasPrev = %v/%v, want false/true", resp.HasNextPage, resp.HasPrevPage)
	}
}

func TestPredict_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		body  string
		field string
		mode  string
	}{
		{"empty body", ``, "body", "unknown"},
		{"malformed json", `{"percentile":`, "body", "unknown"},
		{"non numeric percentile", `{"percentile": "high", "branch": "Any"}`, "body", "unknown"},
		{"missing branch", `{"percentile": 90}`, "branch", "percentile"},
		{"no mode", `{"branch": "Any"}`, "percentile", "unknown"},
		{"both modes", `{"percentile": 90, "cutoffRangeMin": 1, "cutoffRangeMax": 2, "branch": "Any"}`, "percentile", "percentile"},
		{"half range", `{"cutoffRangeMin": 80, "branch": "Any"}`, "cutoffRange", "range"},
		{"min above max", `{"cutoffRangeMin": 90, "cutoffRangeMax": 80, "branch": "Any"}`, "cutoffRange", "range"},
		{"percentile out of range", `{"percentile": 101, "branch": "Any"}`, "percentile", "percentile"},
		{"unknown category", `{"percentile": 90, "branch": "Any", "category": "XYZ"}`, "category", "percentile"},
		{"page zero", `{"percentile": 90, "branch": "Any", "page": 0}`, "page", "percentile"},
		{"limit too large", `{"percentile": 90, "branch": "Any", "limit": 1000}`, "limit", "percentile"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			router, m := setupRouter(t, staticCatalog{colleges: []storage.College{college("A", `50`)}})

			w := post(t, router, tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

			var body struct {
				Message string `json:"message"`
				Field   string `json:"field"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.field, body.Field)
			assert.NotEmpty(t, body.Message)
			assert.Equal(t, 1.0, testutil.ToFloat64(m.PredictionsTotal.WithLabelValues(tt.mode, "invalid")))
		})
	}
}

func TestPredict_CatalogFailureIsNotEmptyResult(t *testing.T) {
	t.Parallel()
	router, m := setupRouter(t, staticCatalog{err: errors.New("database is locked")})

	w := post(t, router, `{"percentile": 95, "branch": "Any", "category": "OPEN"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "database is locked")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PredictionsTotal.WithLabelValues("percentile", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPErrorsTotal.WithLabelValues("internal", ModuleName)))
}
