package matching

import (
	"math"

	domerrors "github.com/garyellow/college-predictor-go/internal/errors"
)

// PageRequest is a validated 1-based page selection.
type PageRequest struct {
	Page  int
	Limit int
}

// NewPageRequest validates page and limit against maxLimit.
func NewPageRequest(page, limit, maxLimit int) (PageRequest, error) {
	if page < 1 {
		return PageRequest{}, domerrors.NewValidationError("page", "must be at least 1")
	}
	if limit < 1 || (maxLimit > 0 && limit > maxLimit) {
		return PageRequest{}, domerrors.NewValidationError("limit", "out of range")
	}
	return PageRequest{Page: page, Limit: limit}, nil
}

// Offset is the index of the first item on the page. It saturates at
// math.MaxInt instead of overflowing for very large pages.
func (r PageRequest) Offset() int {
	if r.Limit > 0 && r.Page-1 > math.MaxInt/r.Limit {
		return math.MaxInt
	}
	return (r.Page - 1) * r.Limit
}

// Page is one slice of an ordered result set.
type Page[T any] struct {
	Items       []T
	CurrentPage int
	TotalPages  int
	Total       int
	HasNext     bool
	HasPrev     bool
}

// Paginate slices items for req. A page past the end is empty, never an error.
// Concatenating pages 1..TotalPages reproduces items exactly.
func Paginate[T any](items []T, req PageRequest) Page[T] {
	return pageOf(items, len(items), req, true)
}

// PageFromSlice wraps an already-sliced page of a result set holding total items.
func PageFromSlice[T any](pageItems []T, total int, req PageRequest) Page[T] {
	return pageOf(pageItems, total, req, false)
}

func pageOf[T any](items []T, total int, req PageRequest, slice bool) Page[T] {
	totalPages := 0
	if req.Limit > 0 {
		totalPages = (total + req.Limit - 1) / req.Limit
	}

	pageItems := items
	if slice {
		start := min(req.Offset(), total)
		end := start + min(req.Limit, total-start)
		pageItems = items[start:end]
	}
	if pageItems == nil {
		pageItems = []T{}
	}

	return Page[T]{
		Items:       pageItems,
		CurrentPage: req.Page,
		TotalPages:  totalPages,
		Total:       total,
		HasNext:     req.Page < totalPages,
		HasPrev:     req.Page > 1,
	}
}
