package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/garyellow/college-predictor-go/internal/config"
)

const collegeColumns = `c.code, c.name, c.city, c.district, c.state, c.type, c.autonomy_status, b.branch_name, b.cutoffs`

// ListColleges returns every college matching filter with its branches, ordered by code.
// City matches as a case-insensitive substring, Type exactly.
func (db *DB) ListColleges(ctx context.Context, filter CollegeFilter) ([]College, error) {
	var (
		conds []string
		args  []any
	)
	if city := strings.TrimSpace(filter.City); city != "" {
		conds = append(conds, `c.city LIKE ? ESCAPE '\'`)
		args = append(args, "%"+sanitizeSearchTerm(city)+"%")
	}
	if filter.Type != "" {
		conds = append(conds, `c.type = ?`)
		args = append(args, filter.Type)
	}

	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}

	start := time.Now()
	colleges, err := db.queryColleges(ctx, where, args...)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list colleges",
			"city", filter.City,
			"type", filter.Type,
			"error", err)
		return nil, fmt.Errorf("list colleges: %w", err)
	}
	warnIfSlow(ctx, "ListColleges", start, config.SlowQueryThreshold, "count", len(colleges))

	return colleges, nil
}

// ListCollegesPage returns one page of the catalog ordered by code.
func (db *DB) ListCollegesPage(ctx context.Context, offset, limit int) ([]College, error) {
	where := `WHERE c.code IN (SELECT code FROM colleges ORDER BY code LIMIT ? OFFSET ?)`

	colleges, err := db.queryColleges(ctx, where, limit, offset)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list colleges page",
			"offset", offset,
			"limit", limit,
			"error", err)
		return nil, fmt.Errorf("list colleges page: %w", err)
	}
	return colleges, nil
}

// GetCollegeByCode retrieves a college with its branches.
// Returns nil, nil when no college has that code.
func (db *DB) GetCollegeByCode(ctx context.Context, code string) (*College, error) {
	colleges, err := db.queryColleges(ctx, `WHERE c.code = ?`, code)
	if err != nil {
		slog.ErrorContext(ctx, "failed to query college",
			"college_code", code,
			"error", err)
		return nil, fmt.Errorf("query college: %w", err)
	}
	if len(colleges) == 0 {
		return nil, nil
	}
	return &colleges[0], nil
}

// GetCollegeSummaries resolves codes to summaries without loading branches.
// Unknown codes are absent from the result.
func (db *DB) GetCollegeSummaries(ctx context.Context, codes []string) (map[string]CollegeSummary, error) {
	result := make(map[string]CollegeSummary, len(codes))
	if len(codes) == 0 {
		return result, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(codes)), ",")
	args := make([]any, len(codes))
	for i, code := range codes {
		args[i] = code
	}

	query := `SELECT code, name, city, district, state, type FROM colleges WHERE code IN (` + placeholders + `)`
	rows, err := db.reader.QueryContext(ctx, query, args...)
	if err != nil {
		slog.ErrorContext(ctx, "failed to query college summaries",
			"count", len(codes),
			"error", err)
		return nil, fmt.Errorf("query college summaries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var s CollegeSummary
		if err := rows.Scan(&s.Code, &s.Name, &s.Location.City, &s.Location.District, &s.Location.State, &s.Type); err != nil {
			return nil, fmt.Errorf("scan college summary: %w", err)
		}
		result[s.Code] = s
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate college summaries: %w", err)
	}
	return result, nil
}

// CountColleges returns the number of colleges in the catalog.
func (db *DB) CountColleges(ctx context.Context) (int, error) {
	var count int
	if err := db.reader.QueryRowContext(ctx, `SELECT COUNT(*) FROM colleges`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count colleges: %w", err)
	}
	return count, nil
}

// UpsertColleges inserts or replaces colleges and their branch lists in a single transaction.
// A college's branches are replaced wholesale.
func (db *DB) UpsertColleges(ctx context.Context, colleges []College) error {
	if len(colleges) == 0 {
		return nil
	}

	start := time.Now()
	updatedAt := start.Unix()

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		upsert, err := tx.PrepareContext(ctx, `
			INSERT INTO colleges (code, name, city, district, state, type, autonomy_status, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(code) DO UPDATE SET
				name = excluded.name,
				city = excluded.city,
				district = excluded.district,
				state = excluded.state,
				type = excluded.type,
				autonomy_status = excluded.autonomy_status,
				updated_at = excluded.updated_at
		`)
		if err != nil {
			return fmt.Errorf("prepare college upsert: %w", err)
		}
		defer func() { _ = upsert.Close() }()

		insertBranch, err := tx.PrepareContext(ctx, `
			INSERT INTO college_branches (college_code, position, branch_name, cutoffs)
			VALUES (?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("prepare branch insert: %w", err)
		}
		defer func() { _ = insertBranch.Close() }()

		for _, c := range colleges {
			if _, err := upsert.ExecContext(ctx,
				c.Code, c.Name, c.Location.City, c.Location.District, c.Location.State,
				c.Type, c.AutonomyStatus, updatedAt,
			); err != nil {
				slog.ErrorContext(ctx, "failed to save college in batch",
					"college_code", c.Code,
					"error", err)
				return fmt.Errorf("save college %s: %w", c.Code, err)
			}

			if _, err := tx.ExecContext(ctx, `DELETE FROM college_branches WHERE college_code = ?`, c.Code); err != nil {
				return fmt.Errorf("clear branches of %s: %w", c.Code, err)
			}

			for i, b := range c.Branches {
				cutoffs, err := encodeCutoffs(b.Cutoffs)
				if err != nil {
					return fmt.Errorf("encode cutoffs of %s/%s: %w", c.Code, b.BranchName, err)
				}
				if _, err := insertBranch.ExecContext(ctx, c.Code, i, b.BranchName, cutoffs); err != nil {
					return fmt.Errorf("save branch %s/%s: %w", c.Code, b.BranchName, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	duration := time.Since(start)
	slog.DebugContext(ctx, "batch operation completed",
		"operation", "UpsertColleges",
		"count", len(colleges),
		"duration_ms", duration.Milliseconds())
	warnIfSlow(ctx, "UpsertColleges", start, config.SlowBatchThreshold, "count", len(colleges))

	return nil
}

// queryColleges runs the college/branch join with the given WHERE clause and
// folds the rows into colleges, preserving code and branch position order.
func (db *DB) queryColleges(ctx context.Context, where string, args ...any) ([]College, error) {
	query := `SELECT ` + collegeColumns + `
		FROM colleges c
		LEFT JOIN college_branches b ON b.college_code = c.code
		` + where + `
		ORDER BY c.code, b.position`

	rows, err := db.reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	colleges := make([]College, 0)
	for rows.Next() {
		var (
			c          College
			branchName sql.NullString
			cutoffs    sql.NullString
		)
		if err := rows.Scan(
			&c.Code, &c.Name,
			&c.Location.City, &c.Location.District, &c.Location.State,
			&c.Type, &c.AutonomyStatus,
			&branchName, &cutoffs,
		); err != nil {
			return nil, fmt.Errorf("scan college: %w", err)
		}

		if n := len(colleges); n == 0 || colleges[n-1].Code != c.Code {
			c.Branches = []Branch{}
			colleges = append(colleges, c)
		}
		if !branchName.Valid {
			continue
		}

		last := &colleges[len(colleges)-1]
		last.Branches = append(last.Branches, Branch{
			BranchName: branchName.String,
			Cutoffs:    decodeCutoffs(ctx, last.Code, cutoffs.String),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate colleges: %w", err)
	}
	return colleges, nil
}

func encodeCutoffs(cutoffs map[string]json.RawMessage) (string, error) {
	if len(cutoffs) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(cutoffs)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// decodeCutoffs tolerates corrupt rows: a branch with unreadable cutoffs has none.
func decodeCutoffs(ctx context.Context, code, raw string) map[string]json.RawMessage {
	cutoffs := make(map[string]json.RawMessage)
	if raw == "" {
		return cutoffs
	}
	if err := json.Unmarshal([]byte(raw), &cutoffs); err != nil {
		slog.WarnContext(ctx, "discarding malformed cutoffs",
			"college_code", code,
			"error", err)
		return make(map[string]json.RawMessage)
	}
	return cutoffs
}
