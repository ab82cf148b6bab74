// Package matching predicts eligible colleges for a student profile.
//
// The Engine loads a catalog snapshot, normalizes branch names, resolves
// cutoffs, qualifies branches under the request's Mode, ranks colleges by
// representative cutoff and paginates the result.
package matching

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/text/cases"

	"github.com/garyellow/college-predictor-go/internal/ctxutil"
	"github.com/garyellow/college-predictor-go/internal/metrics"
	"github.com/garyellow/college-predictor-go/internal/storage"
)

// CatalogReader is the bulk read the engine needs from the college catalog.
type CatalogReader interface {
	ListColleges(ctx context.Context, filter storage.CollegeFilter) ([]storage.College, error)
}

// Match is a qualifying college with the data used to rank it.
type Match struct {
	storage.College
	RepresentativeCutoff float64  `json:"representativeCutoff"`
	MatchedBranches      []string `json:"matchedBranches"`
}

// Engine evaluates predictions. It holds no per-request state and is safe for concurrent use.
type Engine struct {
	catalog    CatalogReader
	normalizer *Normalizer
	metrics    *metrics.Metrics
	loads      singleflight.Group
}

// NewEngine creates an Engine. m may be nil.
func NewEngine(catalog CatalogReader, normalizer *Normalizer, m *metrics.Metrics) *Engine {
	return &Engine{
		catalog:    catalog,
		normalizer: normalizer,
		metrics:    m,
	}
}

// Predict loads the catalog, matches profile against it and returns the requested page.
// Catalog failures are returned as errors, never as an empty page.
func (e *Engine) Predict(ctx context.Context, profile Profile, req PageRequest) (Page[Match], error) {
	start := time.Now()
	mode := profile.Mode.Name()

	colleges, err := e.loadCatalog(ctx, storage.CollegeFilter{City: profile.City, Type: profile.CollegeType})
	if err != nil {
		e.record(mode, "error", start, 0)
		return Page[Match]{}, fmt.Errorf("load catalog: %w", err)
	}

	matches := e.Match(colleges, profile)
	e.record(mode, "success", start, len(matches))

	slog.DebugContext(ctx, "prediction evaluated",
		"mode", mode,
		"branch", profile.Branch,
		"category", string(profile.Category),
		"catalog_size", len(colleges),
		"matches", len(matches),
		"duration_ms", time.Since(start).Milliseconds())

	return Paginate(matches, req), nil
}

// loadCatalog collapses concurrent reads with the same filter into one query.
// The shared read runs detached from any single caller's cancellation.
func (e *Engine) loadCatalog(ctx context.Context, filter storage.CollegeFilter) ([]storage.College, error) {
	key := cases.Fold().String(filter.City) + "\x00" + filter.Type
	loadCtx := ctxutil.PreserveTracing(ctx)

	ch := e.loads.DoChan(key, func() (any, error) {
		return e.catalog.ListColleges(loadCtx, filter)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared && e.metrics != nil {
			e.metrics.RecordSingleflightDedup("catalog_load")
		}
		colleges, _ := res.Val.([]storage.College)
		return colleges, nil
	}
}

// Match qualifies and ranks colleges against profile. It does not modify colleges.
//
// Colleges failing the city or type filter are dropped even if the catalog read
// already applied them. Under a specific branch preference only branches whose
// normalized name equals the normalized preference are candidates, and a
// college without candidates is dropped. The result is ordered by
// representative cutoff, highest first; ties keep catalog order.
func (e *Engine) Match(colleges []storage.College, profile Profile) []Match {
	fold := cases.Fold()
	city := fold.String(strings.TrimSpace(profile.City))

	wantBranch := ""
	if !profile.AnyBranch() {
		wantBranch = e.normalizer.Normalize(profile.Branch)
	}

	matches := make([]Match, 0)
	for i := range colleges {
		c := &colleges[i]

		if city != "" && !strings.Contains(fold.String(c.Location.City), city) {
			continue
		}
		if profile.CollegeType != "" && c.Type != profile.CollegeType {
			continue
		}

		candidates := c.Branches
		if wantBranch != "" {
			candidates = e.branchesNamed(c.Branches, wantBranch)
		}
		if len(candidates) == 0 {
			continue
		}

		if m, ok := qualify(c, candidates, profile); ok {
			matches = append(matches, m)
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].RepresentativeCutoff > matches[j].RepresentativeCutoff
	})
	return matches
}

func (e *Engine) branchesNamed(branches []storage.Branch, canonical string) []storage.Branch {
	var out []storage.Branch
	for _, b := range branches {
		if e.normalizer.Normalize(b.BranchName) == canonical {
			out = append(out, b)
		}
	}
	return out
}

// qualify applies the mode's qualification rule to the candidate branches
// and computes the representative cutoff as the maximum qualifying cutoff.
func qualify(c *storage.College, candidates []storage.Branch, p Profile) (Match, bool) {
	m := Match{College: *c}

	switch mode := p.Mode.(type) {
	case Percentile:
		// A missing category or cutoff assumes the student qualifies, ranked as 0.
		for _, b := range candidates {
			cutoff := 0.0
			if p.Category != "" {
				if v, ok := cutoffFor(b, p.Category); ok {
					if mode.Value < v {
						continue
					}
					cutoff = v
				}
			}
			m.RepresentativeCutoff = max(m.RepresentativeCutoff, cutoff)
			m.MatchedBranches = append(m.MatchedBranches, b.BranchName)
		}
		return m, len(m.MatchedBranches) > 0

	case Range:
		// Only present cutoffs are collected; absence never qualifies.
		if p.Category == "" {
			return Match{}, false
		}
		found := false
		for _, b := range candidates {
			v, ok := cutoffFor(b, p.Category)
			if !ok {
				continue
			}
			if !found || v > m.RepresentativeCutoff {
				m.RepresentativeCutoff = v
			}
			found = true
			m.MatchedBranches = append(m.MatchedBranches, b.BranchName)
		}
		if !found || m.RepresentativeCutoff < mode.Min || m.RepresentativeCutoff > mode.Max {
			return Match{}, false
		}
		return m, true

	default:
		return Match{}, false
	}
}

// cutoffFor resolves the branch's cutoff for category, matching the stored key case-insensitively.
func cutoffFor(b storage.Branch, category Category) (float64, bool) {
	if raw, ok := b.Cutoffs[string(category)]; ok {
		return ResolveCutoff(raw)
	}
	for key, raw := range b.Cutoffs {
		if strings.EqualFold(key, string(category)) {
			return ResolveCutoff(raw)
		}
	}
	return 0, false
}

func (e *Engine) record(mode, status string, start time.Time, matches int) {
	if e.metrics == nil {
		return
	}
	e.metrics.RecordPrediction(mode, status, time.Since(start).Seconds(), matches)
}
