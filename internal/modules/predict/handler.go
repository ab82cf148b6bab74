// Package predict serves college predictions over HTTP.
package predict

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyellow/college-predictor-go/internal/matching"
	"github.com/garyellow/college-predictor-go/internal/metrics"
	"github.com/garyellow/college-predictor-go/internal/modules/respond"
)

// ModuleName labels this module in logs and metrics.
const ModuleName = "predict"

// Predictor evaluates a validated profile against the catalog.
type Predictor interface {
	Predict(ctx context.Context, profile matching.Profile, req matching.PageRequest) (matching.Page[matching.Match], error)
}

// Request is the prediction request body.
type Request struct {
	Percentile     optionalNumber `json:"percentile"`
	CutoffRangeMin optionalNumber `json:"cutoffRangeMin"`
	CutoffRangeMax optionalNumber `json:"cutoffRangeMax"`
	Branch         string         `json:"branch"`
	Category       string         `json:"category"`
	City           string         `json:"city"`
	CollegeType    string         `json:"collegeType"`
	Page           *int           `json:"page"`
	Limit          *int           `json:"limit"`
}

// Response is one page of ranked colleges.
type Response struct {
	Colleges      []matching.Match `json:"colleges"`
	CurrentPage   int              `json:"currentPage"`
	TotalPages    int              `json:"totalPages"`
	TotalColleges int              `json:"totalColleges"`
	HasNextPage   bool             `json:"hasNextPage"`
	HasPrevPage   bool             `json:"hasPrevPage"`
}

// NewResponse shapes an engine page for the API.
func NewResponse(page matching.Page[matching.Match]) Response {
	return Response{
		Colleges:      page.Items,
		CurrentPage:   page.CurrentPage,
		TotalPages:    page.TotalPages,
		TotalColleges: page.Total,
		HasNextPage:   page.HasNext,
		HasPrevPage:   page.HasPrev,
	}
}

// Handler serves POST /predict.
type Handler struct {
	engine       Predictor
	metrics      *metrics.Metrics
	defaultLimit int
	maxLimit     int
}

// NewHandler creates a Handler. Requests without a limit get defaultLimit;
// limits above maxLimit are rejected.
func NewHandler(engine Predictor, m *metrics.Metrics, defaultLimit, maxLimit int) *Handler {
	return &Handler{
		engine:       engine,
		metrics:      m,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}
}

// Register mounts the module's routes on rg.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/predict", h.Predict)
}

// Predict validates the request, runs the engine and writes one page of results.
func (h *Handler) Predict(c *gin.Context) {
	start := time.Now()

	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		h.reject(start, "unknown")
		respond.BadRequest(c, ModuleName, h.metrics, "body", err)
		return
	}

	profile, pageReq, err := h.parse(req)
	if err != nil {
		h.reject(start, req.modeName())
		respond.Error(c, ModuleName, h.metrics, err)
		return
	}

	page, err := h.engine.Predict(c.Request.Context(), profile, pageReq)
	if err != nil {
		respond.Error(c, ModuleName, h.metrics, err)
		return
	}

	c.JSON(http.StatusOK, NewResponse(page))
}

func (h *Handler) parse(req Request) (matching.Profile, matching.PageRequest, error) {
	profile, err := matching.Query{
		Percentile:     req.Percentile.Ptr(),
		CutoffRangeMin: req.CutoffRangeMin.Ptr(),
		CutoffRangeMax: req.CutoffRangeMax.Ptr(),
		Branch:         req.Branch,
		Category:       req.Category,
		City:           req.City,
		CollegeType:    req.CollegeType,
	}.Profile()
	if err != nil {
		return matching.Profile{}, matching.PageRequest{}, err
	}

	page, limit := 1, h.defaultLimit
	if req.Page != nil {
		page = *req.Page
	}
	if req.Limit != nil {
		limit = *req.Limit
	}
	pageReq, err := matching.NewPageRequest(page, limit, h.maxLimit)
	if err != nil {
		return matching.Profile{}, matching.PageRequest{}, err
	}
	return profile, pageReq, nil
}

// reject counts a request refused before reaching the engine.
func (h *Handler) reject(start time.Time, mode string) {
	if h.metrics == nil {
		return
	}
	h.metrics.RecordPrediction(mode, "invalid", time.Since(start).Seconds(), 0)
}

func (r Request) modeName() string {
	switch {
	case r.Percentile.Ptr() != nil:
		return matching.Percentile{}.Name()
	case r.CutoffRangeMin.Ptr() != nil || r.CutoffRangeMax.Ptr() != nil:
		return matching.Range{}.Name()
	default:
		return "unknown"
	}
}
