// Package college serves read-only catalog endpoints.
package college

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	domerrors "github.com/garyellow/college-predictor-go/internal/errors"
	"github.com/garyellow/college-predictor-go/internal/matching"
	"github.com/garyellow/college-predictor-go/internal/metrics"
	"github.com/garyellow/college-predictor-go/internal/modules/respond"
	"github.com/garyellow/college-predictor-go/internal/storage"
)

// ModuleName labels this module in logs and metrics.
const ModuleName = "college"

// Catalog is the read side of the college catalog used by this module.
type Catalog interface {
	ListCollegesPage(ctx context.Context, offset, limit int) ([]storage.College, error)
	CountColleges(ctx context.Context) (int, error)
	GetCollegeByCode(ctx context.Context, code string) (*storage.College, error)
}

// ListResponse is one page of the catalog ordered by code.
type ListResponse struct {
	Colleges      []storage.College `json:"colleges"`
	CurrentPage   int               `json:"currentPage"`
	TotalPages    int               `json:"totalPages"`
	TotalColleges int               `json:"totalColleges"`
	HasNextPage   bool              `json:"hasNextPage"`
	HasPrevPage   bool              `json:"hasPrevPage"`
}

// Handler serves GET / and GET /:code.
type Handler struct {
	catalog      Catalog
	metrics      *metrics.Metrics
	defaultLimit int
	maxLimit     int
}

// NewHandler creates a Handler.
func NewHandler(catalog Catalog, m *metrics.Metrics, defaultLimit, maxLimit int) *Handler {
	return &Handler{
		catalog:      catalog,
		metrics:      m,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}
}

// Register mounts the module's routes on rg.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/:code", h.Get)
}

// List returns a page of colleges.
func (h *Handler) List(c *gin.Context) {
	page, err := queryInt(c, "page", 1)
	if err != nil {
		respond.Error(c, ModuleName, h.metrics, err)
		return
	}
	limit, err := queryInt(c, "limit", h.defaultLimit)
	if err != nil {
		respond.Error(c, ModuleName, h.metrics, err)
		return
	}
	req, err := matching.NewPageRequest(page, limit, h.maxLimit)
	if err != nil {
		respond.Error(c, ModuleName, h.metrics, err)
		return
	}

	ctx := c.Request.Context()
	total, err := h.catalog.CountColleges(ctx)
	if err != nil {
		respond.Error(c, ModuleName, h.metrics, err)
		return
	}
	var colleges []storage.College
	if req.Offset() < total {
		colleges, err = h.catalog.ListCollegesPage(ctx, req.Offset(), req.Limit)
		if err != nil {
			respond.Error(c, ModuleName, h.metrics, err)
			return
		}
	}

	p := matching.PageFromSlice(colleges, total, req)
	c.JSON(http.StatusOK, ListResponse{
		Colleges:      p.Items,
		CurrentPage:   p.CurrentPage,
		TotalPages:    p.TotalPages,
		TotalColleges: p.Total,
		HasNextPage:   p.HasNext,
		HasPrevPage:   p.HasPrev,
	})
}

// Get returns one college by code.
func (h *Handler) Get(c *gin.Context) {
	code := strings.TrimSpace(c.Param("code"))
	college, err := h.catalog.GetCollegeByCode(c.Request.Context(), code)
	if err != nil {
		respond.Error(c, ModuleName, h.metrics, err)
		return
	}
	if college == nil {
		respond.Error(c, ModuleName, h.metrics,
			domerrors.NewWrapper(ModuleName, "get").Wrapf(domerrors.ErrNotFound, "College %s not found", code))
		return
	}
	c.JSON(http.StatusOK, college)
}

func queryInt(c *gin.Context, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domerrors.NewValidationError(name, "must be an integer")
	}
	return v, nil
}
