// Package collegelist serves a user's ranked shortlist of college choices.
//
// Every route requires the user identity placed in the request context by
// the identity middleware.
package collegelist

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyellow/college-predictor-go/internal/ctxutil"
	domerrors "github.com/garyellow/college-predictor-go/internal/errors"
	"github.com/garyellow/college-predictor-go/internal/metrics"
	"github.com/garyellow/college-predictor-go/internal/modules/respond"
	"github.com/garyellow/college-predictor-go/internal/shortlist"
)

// ModuleName labels this module in logs and metrics.
const ModuleName = "collegelist"

// ClearedMessage confirms a cleared shortlist.
const ClearedMessage = "College list cleared successfully"

// Service is the shortlist behavior this module exposes.
type Service interface {
	Get(ctx context.Context, userID string) ([]shortlist.Item, error)
	Add(ctx context.Context, userID string, req shortlist.AddRequest) ([]shortlist.Item, error)
	Remove(ctx context.Context, userID, collegeCode, branch string) ([]shortlist.Item, error)
	Reorder(ctx context.Context, userID, collegeCode, branch string, newRank int) ([]shortlist.Item, error)
	Clear(ctx context.Context, userID string) error
}

// AddRequest is the body of POST /add.
type AddRequest struct {
	CollegeID        string   `json:"collegeId"`
	Branch           string   `json:"branch"`
	CutoffPercentile *float64 `json:"cutoffPercentile"`
	Category         *string  `json:"category"`
}

// EntryRequest identifies one shortlisted pair.
type EntryRequest struct {
	CollegeID string `json:"collegeId"`
	Branch    string `json:"branch"`
}

// RankRequest is the body of PUT /rank.
type RankRequest struct {
	CollegeID string `json:"collegeId"`
	Branch    string `json:"branch"`
	NewRank   *int   `json:"newRank"`
}

// Handler serves the shortlist routes.
type Handler struct {
	svc     Service
	metrics *metrics.Metrics
}

// NewHandler creates a Handler.
func NewHandler(svc Service, m *metrics.Metrics) *Handler {
	return &Handler{svc: svc, metrics: m}
}

// Register mounts the module's routes on rg.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("", h.Get)
	rg.POST("/add", h.Add)
	rg.DELETE("/remove", h.Remove)
	rg.DELETE("/remove/:collegeId/:branch", h.Remove)
	rg.PUT("/rank", h.Rank)
	rg.DELETE("/clear", h.Clear)
}

// Get returns the ordered shortlist, creating an empty one on first access.
func (h *Handler) Get(c *gin.Context) {
	userID, ok := h.user(c)
	if !ok {
		return
	}
	items, err := h.svc.Get(c.Request.Context(), userID)
	h.write(c, "get", items, err)
}

// Add appends a college and branch to the end of the shortlist.
func (h *Handler) Add(c *gin.Context) {
	userID, ok := h.user(c)
	if !ok {
		return
	}
	var req AddRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, ModuleName, h.metrics, "body", err)
		return
	}

	items, err := h.svc.Add(c.Request.Context(), userID, shortlist.AddRequest{
		CollegeCode:      req.CollegeID,
		Branch:           req.Branch,
		CutoffPercentile: req.CutoffPercentile,
		Category:         req.Category,
	})
	h.write(c, "add", items, err)
}

// Remove deletes a pair named either by path parameters or by the JSON body.
func (h *Handler) Remove(c *gin.Context) {
	userID, ok := h.user(c)
	if !ok {
		return
	}

	req := EntryRequest{CollegeID: c.Param("collegeId"), Branch: c.Param("branch")}
	if req.CollegeID == "" && req.Branch == "" {
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.BadRequest(c, ModuleName, h.metrics, "body", err)
			return
		}
	}
	if err := req.validate(); err != nil {
		respond.Error(c, ModuleName, h.metrics, err)
		return
	}

	items, err := h.svc.Remove(c.Request.Context(), userID, req.CollegeID, req.Branch)
	h.write(c, "remove", items, err)
}

// Rank moves a pair to a new rank, clamped into the list's bounds.
func (h *Handler) Rank(c *gin.Context) {
	userID, ok := h.user(c)
	if !ok {
		return
	}
	var req RankRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, ModuleName, h.metrics, "body", err)
		return
	}
	entry := EntryRequest{CollegeID: req.CollegeID, Branch: req.Branch}
	if err := entry.validate(); err != nil {
		respond.Error(c, ModuleName, h.metrics, err)
		return
	}
	if req.NewRank == nil {
		respond.Error(c, ModuleName, h.metrics, domerrors.NewValidationError("newRank", "newRank is required"))
		return
	}

	items, err := h.svc.Reorder(c.Request.Context(), userID, req.CollegeID, req.Branch, *req.NewRank)
	h.write(c, "reorder", items, err)
}

// Clear removes every entry.
func (h *Handler) Clear(c *gin.Context) {
	userID, ok := h.user(c)
	if !ok {
		return
	}
	if err := h.svc.Clear(c.Request.Context(), userID); err != nil {
		h.fail(c, "clear", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": ClearedMessage})
}

func (h *Handler) user(c *gin.Context) (string, bool) {
	userID := ctxutil.GetUserID(c.Request.Context())
	if userID == "" {
		respond.Error(c, ModuleName, h.metrics,
			domerrors.NewWrapper(ModuleName, "auth").Wrap(domerrors.ErrUnauthenticated, "No user identity provided"))
		return "", false
	}
	return userID, true
}

func (h *Handler) write(c *gin.Context, op string, items []shortlist.Item, err error) {
	if err != nil {
		h.fail(c, op, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// fail attaches the client-facing message for shortlist errors.
func (h *Handler) fail(c *gin.Context, op string, err error) {
	w := domerrors.NewWrapper(ModuleName, op)
	switch {
	case errors.Is(err, shortlist.ErrDuplicateEntry):
		err = w.Wrap(err, "College with this branch is already in your list")
	case errors.Is(err, shortlist.ErrCollegeNotFound):
		err = w.Wrap(err, "College not found")
	case errors.Is(err, shortlist.ErrEntryNotFound):
		err = w.Wrap(err, "College not found in your list")
	}
	respond.Error(c, ModuleName, h.metrics, err)
}

func (r EntryRequest) validate() error {
	if r.CollegeID == "" {
		return domerrors.NewValidationError("collegeId", "collegeId is required")
	}
	if r.Branch == "" {
		return domerrors.NewValidationError("branch", "branch is required")
	}
	return nil
}
