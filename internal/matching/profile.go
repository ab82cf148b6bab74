package matching

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	domerrors "github.com/garyellow/college-predictor-go/internal/errors"
)

// AnyBranch is the branch preference that disables branch filtering.
const AnyBranch = "Any"

// AllTypes is the college type preference that disables type filtering.
const AllTypes = "All Types"

// Category is a reservation code under which cutoffs are published.
type Category string

// Published categories.
const (
	CategoryOpen Category = "OPEN"
	CategorySC   Category = "SC"
	CategoryST   Category = "ST"
	CategoryVJ   Category = "VJ"
	CategoryNT1  Category = "NT1"
	CategoryNT2  Category = "NT2"
	CategoryNT3  Category = "NT3"
	CategoryOBC  Category = "OBC"
	CategoryEWS  Category = "EWS"
	CategoryTFWS Category = "TFWS"
)

// Categories lists every valid category code.
var Categories = []Category{
	CategoryOpen, CategorySC, CategoryST, CategoryVJ, CategoryNT1,
	CategoryNT2, CategoryNT3, CategoryOBC, CategoryEWS, CategoryTFWS,
}

// ParseCategory upper-cases s and checks it against Categories.
// An empty s yields the empty Category, meaning "no category filter".
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	c := Category(cases.Upper(language.Und).String(s))
	for _, known := range Categories {
		if c == known {
			return c, nil
		}
	}
	return "", domerrors.NewValidationError("category", fmt.Sprintf("unknown category %q", s))
}

// Mode selects how a branch's cutoff qualifies. It is either Percentile or Range.
type Mode interface {
	// Name is the mode's label in logs and metrics.
	Name() string
	isMode()
}

// Percentile qualifies branches whose cutoff does not exceed the student's percentile.
type Percentile struct {
	Value float64
}

// Range qualifies colleges whose representative cutoff lies in [Min, Max].
type Range struct {
	Min float64
	Max float64
}

func (Percentile) Name() string { return "percentile" }
func (Range) Name() string      { return "range" }

func (Percentile) isMode() {}
func (Range) isMode()      {}

// Profile is a validated prediction request.
type Profile struct {
	Mode        Mode
	Branch      string   // AnyBranch or a branch name
	Category    Category // empty: no category filter
	City        string   // case-insensitive substring, empty: any
	CollegeType string   // exact, empty: any
}

// AnyBranch reports whether the profile disables branch filtering.
func (p Profile) AnyBranch() bool {
	return strings.EqualFold(strings.TrimSpace(p.Branch), AnyBranch)
}

// Query is an unvalidated prediction request as received from a caller.
// Exactly one of Percentile or the CutoffRange pair must be set.
type Query struct {
	Percentile     *float64
	CutoffRangeMin *float64
	CutoffRangeMax *float64
	Branch         string
	Category       string
	City           string
	CollegeType    string
}

// Profile validates q. Errors wrap ErrInvalidInput and are detected before any catalog access.
func (q Query) Profile() (Profile, error) {
	p := Profile{
		Branch: strings.TrimSpace(q.Branch),
		City:   strings.TrimSpace(q.City),
	}

	if p.Branch == "" {
		return Profile{}, domerrors.NewValidationError("branch", "branch is required; use \"Any\" for no preference")
	}

	category, err := ParseCategory(q.Category)
	if err != nil {
		return Profile{}, err
	}
	p.Category = category

	if t := strings.TrimSpace(q.CollegeType); t != "" && !strings.EqualFold(t, AllTypes) {
		p.CollegeType = t
	}

	hasRange := q.CutoffRangeMin != nil || q.CutoffRangeMax != nil
	switch {
	case q.Percentile != nil && hasRange:
		return Profile{}, domerrors.NewValidationError("percentile", "provide either a percentile or a cutoff range, not both")

	case q.Percentile != nil:
		if err := checkPercent("percentile", *q.Percentile); err != nil {
			return Profile{}, err
		}
		p.Mode = Percentile{Value: *q.Percentile}

	case hasRange:
		if q.CutoffRangeMin == nil || q.CutoffRangeMax == nil {
			return Profile{}, domerrors.NewValidationError("cutoffRange", "both cutoffRangeMin and cutoffRangeMax are required")
		}
		if err := checkPercent("cutoffRangeMin", *q.CutoffRangeMin); err != nil {
			return Profile{}, err
		}
		if err := checkPercent("cutoffRangeMax", *q.CutoffRangeMax); err != nil {
			return Profile{}, err
		}
		if *q.CutoffRangeMin > *q.CutoffRangeMax {
			return Profile{}, domerrors.NewValidationError("cutoffRange", "cutoffRangeMin must not exceed cutoffRangeMax")
		}
		p.Mode = Range{Min: *q.CutoffRangeMin, Max: *q.CutoffRangeMax}

	default:
		return Profile{}, domerrors.NewValidationError("percentile", "a percentile or a cutoff range is required")
	}

	return p, nil
}

func checkPercent(field string, v float64) error {
	if math.IsNaN(v) || v < 0 || v > 100 {
		return domerrors.NewValidationError(field, "must be between 0 and 100")
	}
	return nil
}
