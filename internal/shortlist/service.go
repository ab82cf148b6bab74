// Package shortlist maintains each user's ranked list of (college, branch) choices.
//
// Ranks are contiguous from 1. Mutations run under a per-user lock and are
// persisted atomically, so concurrent requests from one user never leave gaps
// or duplicate ranks; different users never contend.
package shortlist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	domerrors "github.com/garyellow/college-predictor-go/internal/errors"
	"github.com/garyellow/college-predictor-go/internal/matching"
	"github.com/garyellow/college-predictor-go/internal/metrics"
	"github.com/garyellow/college-predictor-go/internal/sliceutil"
	"github.com/garyellow/college-predictor-go/internal/storage"
)

// Store persists shortlists.
type Store interface {
	EnsureShortlist(ctx context.Context, userID string) error
	ListShortlistEntries(ctx context.Context, userID string) ([]storage.ShortlistEntry, error)
	AppendShortlistEntry(ctx context.Context, userID string, entry storage.ShortlistEntry) error
	ReplaceShortlistEntries(ctx context.Context, userID string, entries []storage.ShortlistEntry) error
	ClearShortlist(ctx context.Context, userID string) error
}

// Catalog resolves college codes.
type Catalog interface {
	GetCollegeByCode(ctx context.Context, code string) (*storage.College, error)
	GetCollegeSummaries(ctx context.Context, codes []string) (map[string]storage.CollegeSummary, error)
}

// Item is a shortlist entry with its college resolved for display.
// A college missing from the catalog is shown by code only.
type Item struct {
	College          storage.CollegeSummary `json:"college"`
	Branch           string                 `json:"branch"`
	Rank             int                    `json:"rank"`
	CutoffPercentile *float64               `json:"cutoffPercentile"`
	Category         *string                `json:"category"`
	AddedAt          time.Time              `json:"addedAt"`
}

// AddRequest describes a new shortlist entry.
type AddRequest struct {
	CollegeCode      string
	Branch           string
	CutoffPercentile *float64
	Category         *string
}

// Service implements shortlist operations.
type Service struct {
	store   Store
	catalog Catalog
	locks   *userLocks
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewService creates a Service. m may be nil.
func NewService(store Store, catalog Catalog, m *metrics.Metrics) *Service {
	return &Service{
		store:   store,
		catalog: catalog,
		locks:   newUserLocks(),
		metrics: m,
		now:     time.Now,
	}
}

// Get returns the user's shortlist, creating an empty one on first access.
// Reads take no lock: each mutation commits in one transaction.
func (s *Service) Get(ctx context.Context, userID string) ([]Item, error) {
	start := time.Now()
	if err := s.store.EnsureShortlist(ctx, userID); err != nil {
		s.record("get", start, err)
		return nil, err
	}
	items, err := s.view(ctx, userID)
	s.record("get", start, err)
	return items, err
}

// Add appends a (college, branch) pair at the end of the user's shortlist.
// It fails with ErrDuplicateEntry if the pair is present and ErrCollegeNotFound
// if the code is unknown to the catalog.
func (s *Service) Add(ctx context.Context, userID string, req AddRequest) ([]Item, error) {
	start := time.Now()
	items, err := s.add(ctx, userID, req)
	s.record("add", start, err)
	return items, err
}

func (s *Service) add(ctx context.Context, userID string, req AddRequest) ([]Item, error) {
	entry, err := req.entry(s.now())
	if err != nil {
		return nil, err
	}

	unlock, err := s.lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	next, err := current.Append(entry)
	if err != nil {
		return nil, err
	}

	college, err := s.catalog.GetCollegeByCode(ctx, entry.CollegeCode)
	if err != nil {
		return nil, fmt.Errorf("resolve college: %w", err)
	}
	if college == nil {
		return nil, ErrCollegeNotFound
	}

	added := next[len(next)-1]
	if err := s.store.AppendShortlistEntry(ctx, userID, added); err != nil {
		if errors.Is(err, domerrors.ErrConflict) {
			return nil, ErrDuplicateEntry
		}
		return nil, err
	}

	slog.InfoContext(ctx, "shortlist entry added",
		"college_code", added.CollegeCode,
		"branch", added.Branch,
		"rank", added.Rank)
	return s.view(ctx, userID)
}

// Remove deletes the pair and closes the gap in the ranking. The college code
// is trimmed the same way Add trims it.
func (s *Service) Remove(ctx context.Context, userID, collegeCode, branch string) ([]Item, error) {
	start := time.Now()
	collegeCode = strings.TrimSpace(collegeCode)
	items, err := s.mutate(ctx, userID, func(current List) (List, bool, error) {
		next, err := current.Remove(collegeCode, branch)
		return next, err == nil, err
	})
	s.record("remove", start, err)
	return items, err
}

// Reorder moves the pair to newRank, clamped into [1, N]. Moving an entry to
// its current rank changes nothing.
func (s *Service) Reorder(ctx context.Context, userID, collegeCode, branch string, newRank int) ([]Item, error) {
	start := time.Now()
	collegeCode = strings.TrimSpace(collegeCode)
	items, err := s.mutate(ctx, userID, func(current List) (List, bool, error) {
		return current.Move(collegeCode, branch, newRank)
	})
	s.record("reorder", start, err)
	return items, err
}

// Clear removes every entry. Clearing an empty or absent shortlist succeeds.
func (s *Service) Clear(ctx context.Context, userID string) error {
	start := time.Now()
	err := s.clear(ctx, userID)
	s.record("clear", start, err)
	return err
}

func (s *Service) clear(ctx context.Context, userID string) error {
	unlock, err := s.lock(ctx, userID)
	if err != nil {
		return err
	}
	defer unlock()
	return s.store.ClearShortlist(ctx, userID)
}

// mutate runs a read-modify-write of the whole list under the user's lock.
func (s *Service) mutate(ctx context.Context, userID string, fn func(List) (List, bool, error)) ([]Item, error) {
	unlock, err := s.lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	next, changed, err := fn(current)
	if err != nil {
		return nil, err
	}
	if changed {
		if err := s.store.ReplaceShortlistEntries(ctx, userID, next); err != nil {
			return nil, err
		}
	}
	return s.view(ctx, userID)
}

func (s *Service) lock(ctx context.Context, userID string) (func(), error) {
	start := time.Now()
	unlock, err := s.locks.acquire(ctx, userID)
	if s.metrics != nil {
		s.metrics.RecordShortlistLockWait(time.Since(start).Seconds())
	}
	if err != nil {
		return nil, fmt.Errorf("acquire shortlist lock: %w", err)
	}
	return unlock, nil
}

func (s *Service) load(ctx context.Context, userID string) (List, error) {
	entries, err := s.store.ListShortlistEntries(ctx, userID)
	if err != nil {
		return nil, err
	}
	return List(entries), nil
}

// view loads the list and resolves college summaries.
func (s *Service) view(ctx context.Context, userID string) ([]Item, error) {
	entries, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	codes := sliceutil.DistinctKeys(entries, func(e storage.ShortlistEntry) string { return e.CollegeCode })
	summaries, err := s.catalog.GetCollegeSummaries(ctx, codes)
	if err != nil {
		return nil, fmt.Errorf("resolve colleges: %w", err)
	}

	items := make([]Item, 0, len(entries))
	for _, e := range entries {
		summary, ok := summaries[e.CollegeCode]
		if !ok {
			summary = storage.CollegeSummary{Code: e.CollegeCode}
		}
		items = append(items, Item{
			College:          summary,
			Branch:           e.Branch,
			Rank:             e.Rank,
			CutoffPercentile: e.CutoffPercentile,
			Category:         e.Category,
			AddedAt:          e.AddedAt,
		})
	}
	return items, nil
}

func (s *Service) record(operation string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordShortlistOp(operation, outcome(err), time.Since(start).Seconds())
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrDuplicateEntry):
		return "duplicate"
	case domerrors.IsNotFound(err):
		return "not_found"
	case domerrors.IsInvalidInput(err):
		return "invalid"
	default:
		return "error"
	}
}

// entry validates r into an unranked entry.
func (r AddRequest) entry(now time.Time) (storage.ShortlistEntry, error) {
	code := strings.TrimSpace(r.CollegeCode)
	if code == "" {
		return storage.ShortlistEntry{}, domerrors.NewValidationError("collegeId", "college is required")
	}
	if strings.TrimSpace(r.Branch) == "" {
		return storage.ShortlistEntry{}, domerrors.NewValidationError("branch", "branch is required")
	}

	e := storage.ShortlistEntry{
		CollegeCode: code,
		Branch:      r.Branch,
		AddedAt:     now.UTC(),
	}

	if r.CutoffPercentile != nil {
		v := *r.CutoffPercentile
		if math.IsNaN(v) || v < 0 || v > 100 {
			return storage.ShortlistEntry{}, domerrors.NewValidationError("cutoffPercentile", "must be between 0 and 100")
		}
		e.CutoffPercentile = &v
	}
	if r.Category != nil && strings.TrimSpace(*r.Category) != "" {
		c, err := matching.ParseCategory(*r.Category)
		if err != nil {
			return storage.ShortlistEntry{}, err
		}
		category := string(c)
		e.Category = &category
	}
	return e, nil
}
