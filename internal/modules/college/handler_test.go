package college

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyellow/college-predictor-go/internal/storage"
)

func setupRouter(t *testing.T, n int) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := storage.New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	colleges := make([]storage.College, 0, n)
	for i := range n {
		colleges = append(colleges, storage.College{
			Code:     fmt.Sprintf("C%03d", i),
			Name:     fmt.Sprintf("College %d", i),
			Location: storage.Location{City: "Mumbai", District: "Mumbai", State: "Maharashtra"},
			Type:     "Private",
			Branches: []storage.Branch{{
				BranchName: "Civil Engineering",
				Cutoffs:    map[string]json.RawMessage{"OPEN": json.RawMessage(`{"$numberDouble":"77.5"}`)},
			}},
		})
	}
	if n > 0 {
		require.NoError(t, db.UpsertColleges(context.Background(), colleges))
	}

	router := gin.New()
	NewHandler(db, nil, 15, 100).Register(router.Group("/api/colleges"))
	return router
}

func get(router *gin.Engine, url string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, url, nil))
	return w
}

func TestList_DefaultPage(t *testing.T) {
	t.Parallel()
	router := setupRouter(t, 20)

	w := get(router, "/api/colleges")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp ListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Colleges, 15)
	assert.Equal(t, "C000", resp.Colleges[0].Code)
	assert.Equal(t, 20, resp.TotalColleges)
	assert.Equal(t, 2, resp.TotalPages)
	assert.True(t, resp.HasNextPage)
	assert.False(t, resp.HasPrevPage)
}

func TestList_SecondPage(t *testing.T) {
	t.Parallel()
	router := setupRouter(t, 20)

	var resp ListResponse
	w := get(router, "/api/colleges?page=2&limit=15")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Colleges, 5)
	assert.Equal(t, "C015", resp.Colleges[0].Code)
	assert.False(t, resp.HasNextPage)
	assert.True(t, resp.HasPrevPage)
}

func TestList_EmptyCatalog(t *testing.T) {
	t.Parallel()
	router := setupRouter(t, 0)

	w := get(router, "/api/colleges")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"colleges":[],"currentPage":1,"totalPages":0,"totalColleges":0,"hasNextPage":false,"hasPrevPage":false}`, w.Body.String())
}

func TestList_PastTheEnd(t *testing.T) {
	t.Parallel()
	router := setupRouter(t, 20)

	for _, page := range []string{"3", "922337203685477580", "9223372036854775807"} {
		w := get(router, "/api/colleges?page="+page)
		if w.Code != http.StatusOK {
			t.Fatalf("page=%s: status = %d, want 200: %s", page, w.Code, w.Body.String())
		}

		var resp ListResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("page=%s: decode: %v", page, err)
		}
		if resp.Colleges == nil || len(resp.Colleges) != 0 {
			t.Errorf("page=%s: colleges = %v, want empty", page, resp.Colleges)
		}
		if resp.TotalColleges != 20 || resp.TotalPages != 2 {
			t.Errorf("page=%s: totals = %d/%d, want 20/2", page, resp.TotalColleges, resp.TotalPages)
		}
		if resp.HasNextPage || !resp.HasPrevPage {
			t.Errorf("page=%s: hasNext/hasPrev = %v/%v, want false/true", page, resp.HasNextPage, resp.HasPrevPage)
		}
	}
}

func TestList_InvalidQuery(t *testing.T) {
	t.Parallel()
	router := setupRouter(t, 1)

	for _, url := range []string{
		"/api/colleges?page=abc",
		"/api/colleges?page=0",
		"/api/colleges?limit=-1",
		"/api/colleges?limit=101",
	} {
		w := get(router, url)
		assert.Equal(t, http.StatusBadRequest, w.Code, url)
	}
}

func TestGet(t *testing.T) {
	t.Parallel()
	router := setupRouter(t, 2)

	w := get(router, "/api/colleges/C001")
	require.Equal(t, http.StatusOK, w.Code)
	var c storage.College
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &c))
	assert.Equal(t, "College 1", c.Name)
	require.Len(t, c.Branches, 1)
	assert.JSONEq(t, `{"$numberDouble":"77.5"}`, string(c.Branches[0].Cutoffs["OPEN"]))

	w = get(router, "/api/colleges/NOPE")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"message":"College NOPE not found"}`, w.Body.String())
}
