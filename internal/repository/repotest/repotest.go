// Package repotest provides throwaway credential stores for tests.
package repotest

import (
	"context"
	"database/sql"
	"testing"

	"github.com/docassist/docassist-go/internal/repository"
	"github.com/google/uuid"
)

// NewSQLiteDB opens a migrated, private in-memory SQLite database that is
// closed when the test ends.
func NewSQLiteDB(tb testing.TB) *sql.DB {
	tb.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_pragma=foreign_keys(1)"
	db, err := repository.NewDB(repository.DialectSQLite, dsn)
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	tb.Cleanup(func() { _ = db.Close() })

	if err := repository.Migrate(context.Background(), db, repository.DialectSQLite); err != nil {
		tb.Fatalf("migrate sqlite: %v", err)
	}
	return db
}

// NewUserRepository returns a UserRepository backed by NewSQLiteDB.
func NewUserRepository(tb testing.TB) *repository.UserRepository {
	tb.Helper()
	return repository.NewUserRepository(NewSQLiteDB(tb))
}
