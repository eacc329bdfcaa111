package repositories_test

import (
	"io"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/myrjola/flowcast/internal/sqlite"
	"github.com/myrjola/flowcast/internal/testhelpers"
	"github.com/stretchr/testify/require"
)

// newTestDatabase creates a new in-memory database for testing purposes.
func newTestDatabase(t *testing.T) *sqlite.Database {
	t.Helper()
	database, err := sqlite.NewDatabase(t.Context(), ":memory:", testhelpers.NewLogger(io.Discard))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return database
}

// newMockDatabase routes both connections to one sqlmock so that failure paths can be exercised.
func newMockDatabase(t *testing.T) (*sqlite.Database, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	conn := sqlx.NewDb(db, "sqlite3")
	return &sqlite.Database{ReadWrite: conn, ReadOnly: conn}, mock
}
