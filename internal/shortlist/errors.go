package shortlist

import (
	"fmt"

	domerrors "github.com/garyellow/college-predictor-go/internal/errors"
)

// Shortlist errors. Each wraps a generic sentinel so the API layer can map it with errors.Is.
var (
	// ErrDuplicateEntry means the (college, branch) pair is already shortlisted.
	ErrDuplicateEntry = fmt.Errorf("college and branch already in shortlist: %w", domerrors.ErrConflict)

	// ErrCollegeNotFound means the college code does not resolve in the catalog.
	ErrCollegeNotFound = fmt.Errorf("college not found: %w", domerrors.ErrNotFound)

	// ErrEntryNotFound means the (college, branch) pair is not in the shortlist.
	ErrEntryNotFound = fmt.Errorf("shortlist entry not found: %w", domerrors.ErrNotFound)
)
