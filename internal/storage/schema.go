package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// InitSchema creates all necessary tables and indexes.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if err := createCollegesTables(ctx, db); err != nil {
		return err
	}
	return createShortlistTables(ctx, db)
}

func createCollegesTables(ctx context.Context, db *sql.DB) error {
	// cutoffs holds the category -> value object verbatim (numbers, numeric strings
	// or {"$numberDouble": ...} wrappers); values are resolved at read time.
	query := `
	CREATE TABLE IF NOT EXISTS colleges (
		code TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		city TEXT NOT NULL DEFAULT '',
		district TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL DEFAULT '',
		autonomy_status TEXT NOT NULL DEFAULT '',
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_colleges_type ON colleges(type);

	CREATE TABLE IF NOT EXISTS college_branches (
		college_code TEXT NOT NULL REFERENCES colleges(code) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		branch_name TEXT NOT NULL,
		cutoffs TEXT NOT NULL DEFAULT '{}',
		PRIMARY KEY (college_code, position)
	);
	`

	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create colleges tables: %w", err)
	}
	return nil
}

func createShortlistTables(ctx context.Context, db *sql.DB) error {
	// college_code is a weak reference: colleges may be re-imported or dropped
	// without touching shortlists, so there is no foreign key to colleges.
	query := `
	CREATE TABLE IF NOT EXISTS shortlists (
		user_id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS shortlist_entries (
		user_id TEXT NOT NULL REFERENCES shortlists(user_id) ON DELETE CASCADE,
		college_code TEXT NOT NULL,
		branch TEXT NOT NULL,
		rank INTEGER NOT NULL CHECK (rank >= 1),
		cutoff_percentile REAL,
		category TEXT,
		added_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, college_code, branch),
		UNIQUE (user_id, rank)
	);
	`

	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create shortlist tables: %w", err)
	}
	return nil
}
