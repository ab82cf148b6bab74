package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &DB{reader: conn, writer: conn, path: "mock"}, mock
}

// Storage failures must surface as errors, never as empty results.
func TestListColleges_PropagatesQueryError(t *testing.T) {
	t.Parallel()
	db, mock := newMockDB(t)
	boom := errors.New("disk I/O error")

	mock.ExpectQuery("SELECT .* FROM colleges c").WillReturnError(boom)

	colleges, err := db.ListColleges(context.Background(), CollegeFilter{City: "Pune"})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, colleges)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCollegeByCode_PropagatesScanError(t *testing.T) {
	t.Parallel()
	db, mock := newMockDB(t)

	rows := sqlmock.NewRows([]string{"code", "name", "city", "district", "state", "type", "autonomy_status", "branch_name", "cutoffs"}).
		AddRow("ENG01", "Eng", "Pune", "Pune", "MH", "Government", "Autonomous", "Civil Engineering", "{}").
		RowError(0, errors.New("row corrupted"))
	mock.ExpectQuery("SELECT .* FROM colleges c").WithArgs("ENG01").WillReturnRows(rows)

	got, err := db.GetCollegeByCode(context.Background(), "ENG01")
	require.Error(t, err)
	assert.Nil(t, got)
}

func TestReplaceShortlistEntries_RollsBackOnInsertError(t *testing.T) {
	t.Parallel()
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO shortlists").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM shortlist_entries").WithArgs("user-1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO shortlist_entries").WillReturnError(errors.New("database is locked"))
	mock.ExpectRollback()

	err := db.ReplaceShortlistEntries(context.Background(), "user-1", []ShortlistEntry{
		{CollegeCode: "A", Branch: "Civil Engineering", Rank: 1},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountShortlistEntries_PropagatesError(t *testing.T) {
	t.Parallel()
	db, mock := newMockDB(t)

	mock.ExpectQuery("SELECT COUNT").WillReturnError(errors.New("no such table"))

	_, err := db.CountShortlistEntries(context.Background())
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
