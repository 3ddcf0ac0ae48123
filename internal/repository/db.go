package repository

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// Dialect selects the SQL flavour of a UserRepository.
type Dialect string

const (
	DialectMySQL  Dialect = "mysql"
	DialectSQLite Dialect = "sqlite"
)

//go:embed migrations
var migrations embed.FS

// NewDB opens a connection pool for the given dialect and DSN.
func NewDB(dialect Dialect, dsn string) (*sql.DB, error) {
	switch dialect {
	case DialectMySQL, DialectSQLite:
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}

	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, err
	}

	if dialect == DialectSQLite {
		// One writer at a time; also keeps in-memory databases on one connection.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}

	return db, nil
}

// Migrate applies the embedded schema migrations for the dialect.
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect) error {
	var gooseDialect goose.Dialect
	switch dialect {
	case DialectMySQL:
		gooseDialect = goose.DialectMySQL
	case DialectSQLite:
		gooseDialect = goose.DialectSQLite3
	default:
		return fmt.Errorf("unsupported dialect %q", dialect)
	}

	fsys, err := fs.Sub(migrations, "migrations/"+string(dialect))
	if err != nil {
		return err
	}

	provider, err := goose.NewProvider(gooseDialect, db, fsys)
	if err != nil {
		return fmt.Errorf("create migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	for _, r := range results {
		slog.Info("migration applied", "version", r.Source.Version, "duration", r.Duration)
	}

	return nil
}
