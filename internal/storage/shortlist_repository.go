package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/garyellow/college-predictor-go/internal/config"
	domerrors "github.com/garyellow/college-predictor-go/internal/errors"
)

// EnsureShortlist creates the user's (empty) shortlist record if it does not exist yet.
func (db *DB) EnsureShortlist(ctx context.Context, userID string) error {
	now := time.Now().UnixMilli()
	if _, err := db.writer.ExecContext(ctx,
		`INSERT OR IGNORE INTO shortlists (user_id, created_at, updated_at) VALUES (?, ?, ?)`,
		userID, now, now,
	); err != nil {
		slog.ErrorContext(ctx, "failed to create shortlist",
			"error", err)
		return fmt.Errorf("create shortlist: %w", err)
	}
	return nil
}

// ListShortlistEntries returns the user's entries ordered by rank.
func (db *DB) ListShortlistEntries(ctx context.Context, userID string) ([]ShortlistEntry, error) {
	query := `
		SELECT college_code, branch, rank, cutoff_percentile, category, added_at
		FROM shortlist_entries
		WHERE user_id = ?
		ORDER BY rank
	`

	start := time.Now()
	rows, err := db.reader.QueryContext(ctx, query, userID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to query shortlist",
			"error", err)
		return nil, fmt.Errorf("query shortlist: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := make([]ShortlistEntry, 0)
	for rows.Next() {
		var (
			e        ShortlistEntry
			cutoff   sql.NullFloat64
			category sql.NullString
			addedAt  int64
		)
		if err := rows.Scan(&e.CollegeCode, &e.Branch, &e.Rank, &cutoff, &category, &addedAt); err != nil {
			return nil, fmt.Errorf("scan shortlist entry: %w", err)
		}
		if cutoff.Valid {
			e.CutoffPercentile = &cutoff.Float64
		}
		if category.Valid {
			e.Category = &category.String
		}
		e.AddedAt = time.UnixMilli(addedAt).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shortlist: %w", err)
	}

	warnIfSlow(ctx, "ListShortlistEntries", start, config.SlowQueryThreshold, "count", len(entries))
	return entries, nil
}

// AppendShortlistEntry inserts one entry, creating the shortlist record if needed.
// A duplicate (college, branch) pair or rank yields an error wrapping ErrConflict.
func (db *DB) AppendShortlistEntry(ctx context.Context, userID string, entry ShortlistEntry) error {
	start := time.Now()
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if err := touchShortlist(ctx, tx, userID); err != nil {
			return err
		}
		if err := insertEntry(ctx, tx, userID, entry); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("insert shortlist entry: %w", domerrors.ErrConflict)
			}
			slog.ErrorContext(ctx, "failed to insert shortlist entry",
				"college_code", entry.CollegeCode,
				"error", err)
			return fmt.Errorf("insert shortlist entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	warnIfSlow(ctx, "AppendShortlistEntry", start, config.SlowQueryThreshold)
	return nil
}

// ReplaceShortlistEntries atomically swaps the user's entries for entries.
// Either every row is rewritten or none is.
func (db *DB) ReplaceShortlistEntries(ctx context.Context, userID string, entries []ShortlistEntry) error {
	start := time.Now()
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if err := touchShortlist(ctx, tx, userID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM shortlist_entries WHERE user_id = ?`, userID); err != nil {
			return fmt.Errorf("delete shortlist entries: %w", err)
		}
		for _, e := range entries {
			if err := insertEntry(ctx, tx, userID, e); err != nil {
				slog.ErrorContext(ctx, "failed to rewrite shortlist entry",
					"college_code", e.CollegeCode,
					"rank", e.Rank,
					"error", err)
				return fmt.Errorf("rewrite shortlist entry: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	warnIfSlow(ctx, "ReplaceShortlistEntries", start, config.SlowBatchThreshold, "count", len(entries))
	return nil
}

// ClearShortlist deletes all of the user's entries. The shortlist record itself is kept.
func (db *DB) ClearShortlist(ctx context.Context, userID string) error {
	return db.ReplaceShortlistEntries(ctx, userID, nil)
}

// CountShortlistEntries returns the number of entries across all users.
func (db *DB) CountShortlistEntries(ctx context.Context) (int, error) {
	var count int
	if err := db.reader.QueryRowContext(ctx, `SELECT COUNT(*) FROM shortlist_entries`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count shortlist entries: %w", err)
	}
	return count, nil
}

func touchShortlist(ctx context.Context, tx *sql.Tx, userID string) error {
	now := time.Now().UnixMilli()
	_, err := tx.ExecContext(ctx, `
		INSERT INTO shortlists (user_id, created_at, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET updated_at = excluded.updated_at
	`, userID, now, now)
	if err != nil {
		return fmt.Errorf("touch shortlist: %w", err)
	}
	return nil
}

func insertEntry(ctx context.Context, tx *sql.Tx, userID string, e ShortlistEntry) error {
	addedAt := e.AddedAt
	if addedAt.IsZero() {
		addedAt = time.Now()
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO shortlist_entries (user_id, college_code, branch, rank, cutoff_percentile, category, added_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, userID, e.CollegeCode, e.Branch, e.Rank, nullFloat(e.CutoffPercentile), nullString(e.Category), addedAt.UnixMilli())
	return err
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}
