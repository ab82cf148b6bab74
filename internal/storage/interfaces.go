package storage

import (
	"context"
)

// CollegeRepository is the read side of the college catalog.
type CollegeRepository interface {
	// ListColleges returns colleges matching filter, ordered by code.
	ListColleges(ctx context.Context, filter CollegeFilter) ([]College, error)

	// ListCollegesPage returns limit colleges starting at offset, ordered by code.
	ListCollegesPage(ctx context.Context, offset, limit int) ([]College, error)

	// GetCollegeByCode returns nil, nil when the code is unknown.
	GetCollegeByCode(ctx context.Context, code string) (*College, error)

	// GetCollegeSummaries omits unknown codes from the result.
	GetCollegeSummaries(ctx context.Context, codes []string) (map[string]CollegeSummary, error)

	CountColleges(ctx context.Context) (int, error)
}

// CatalogWriter loads colleges into the catalog. Only the importer writes.
type CatalogWriter interface {
	UpsertColleges(ctx context.Context, colleges []College) error
}

// ShortlistRepository persists per-user ranked shortlists.
// Callers serialize mutations per user; each method is individually atomic.
type ShortlistRepository interface {
	EnsureShortlist(ctx context.Context, userID string) error
	ListShortlistEntries(ctx context.Context, userID string) ([]ShortlistEntry, error)
	AppendShortlistEntry(ctx context.Context, userID string, entry ShortlistEntry) error
	ReplaceShortlistEntries(ctx context.Context, userID string, entries []ShortlistEntry) error
	ClearShortlist(ctx context.Context, userID string) error
	CountShortlistEntries(ctx context.Context) (int, error)
}

// HealthRepository defines the interface for health check operations.
type HealthRepository interface {
	// Ping verifies database connection is alive.
	Ping(ctx context.Context) error

	// Ready checks if database is ready to serve queries.
	// Performs more thorough checks than Ping.
	Ready(ctx context.Context) error
}

// Ensure DB implements all repository interfaces at compile time.
var (
	_ CollegeRepository   = (*DB)(nil)
	_ CatalogWriter       = (*DB)(nil)
	_ ShortlistRepository = (*DB)(nil)
	_ HealthRepository    = (*DB)(nil)
)
