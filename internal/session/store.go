package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// TokenKey is the key under which the bearer token is persisted.
const TokenKey = "authToken"

// SQLiteStore persists the session token in a local SQLite key/value table.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if needed) the key/value database at dsn.
func OpenSQLiteStore(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS kv (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create session table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load returns the raw persisted token, or "" when none is stored.
func (s *SQLiteStore) Load(ctx context.Context) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, TokenKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get %s: %w", TokenKey, err)
	}
	return value, nil
}

// Save stores token as plain text, replacing any previous value.
func (s *SQLiteStore) Save(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, TokenKey, token)
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", TokenKey, err)
	}
	return nil
}

// Clear removes the stored token. Clearing an empty store is not an error.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, TokenKey)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", TokenKey, err)
	}
	return nil
}

// decodeStoredToken unwraps tokens that older clients stored JSON-encoded
// (`"eyJ..."`). Anything else is returned unchanged.
func decodeStoredToken(raw string) string {
	var s string
	if err := json.Unmarshal([]byte(raw), &s); err == nil {
		return s
	}
	return raw
}
