package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/docassist/docassist-go/internal/model"
	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already exists")
)

// mysqlErrDuplicateEntry is ER_DUP_ENTRY.
const mysqlErrDuplicateEntry = 1062

const userColumns = `id, name, email, password_hash, phone, bio, created_at, updated_at`

// UserRepository handles user persistence on MySQL or SQLite.
type UserRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewUserRepository creates a new UserRepository. Queries only use syntax
// shared by MySQL and SQLite.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db, now: time.Now}
}

func (r *UserRepository) timestamp() time.Time {
	return r.now().UTC().Truncate(time.Microsecond)
}

// Create inserts a new user and sets the generated ID and timestamps on it.
// The unique index on email makes concurrent registrations of the same
// address fail with ErrDuplicateEmail.
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	query := `INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	id := uuid.NewString()
	now := r.timestamp()

	_, err := r.db.ExecContext(ctx, query,
		id, user.Name, user.Email, user.PasswordHash,
		nullString(user.Phone), nullString(user.Bio), now, now,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("insert user: %w", err)
	}

	user.ID = id
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

// GetByEmail retrieves a user by exact email match. History is not loaded.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

// GetByID retrieves a user and its history by ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	return getUserWithHistory(ctx, r.db, id)
}

// EmailTakenByOther reports whether a user other than userID holds email.
func (r *UserRepository) EmailTakenByOther(ctx context.Context, email, userID string) (bool, error) {
	query := `SELECT COUNT(*) FROM users WHERE email = ? AND id <> ?`

	var n int
	if err := r.db.QueryRowContext(ctx, query, email, userID).Scan(&n); err != nil {
		return false, fmt.Errorf("count users by email: %w", err)
	}
	return n > 0, nil
}

// UpdateProfile applies the non-empty fields of upd and returns the updated user.
func (r *UserRepository) UpdateProfile(ctx context.Context, id string, upd model.ProfileUpdate) (*model.User, error) {
	sets := []string{"updated_at = ?"}
	args := []any{r.timestamp()}
	for _, f := range []struct {
		column string
		value  string
	}{
		{"name", upd.Name},
		{"email", upd.Email},
		{"phone", upd.Phone},
		{"bio", upd.Bio},
	} {
		if f.value != "" {
			sets = append(sets, f.column+" = ?")
			args = append(args, f.value)
		}
	}
	args = append(args, id)

	query := `UPDATE users SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`

	var user *model.User
	err := withTx(ctx, r.db, func(tx DBTX) error {
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			if isDuplicateEntryError(err) {
				return ErrDuplicateEmail
			}
			return fmt.Errorf("update user: %w", err)
		}

		var err error
		user, err = getUserWithHistory(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

// UpdatePassword replaces the stored password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	query := `UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, passwordHash, r.timestamp(), id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrUserNotFound
	}

	return nil
}

// AppendHistory adds an entry to the end of the user's history.
func (r *UserRepository) AppendHistory(ctx context.Context, id string, entry model.HistoryEntry) error {
	return withTx(ctx, r.db, func(tx DBTX) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, id).Scan(&exists)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrUserNotFound
			}
			return fmt.Errorf("lookup user: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO user_history (user_id, filename, created_at) VALUES (?, ?, ?)`,
			id, entry.Filename, entry.CreatedAt.UTC().Truncate(time.Microsecond),
		)
		if err != nil {
			return fmt.Errorf("insert history: %w", err)
		}
		return nil
	})
}

func getUserWithHistory(ctx context.Context, q DBTX, id string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`

	user, err := scanUser(q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx,
		`SELECT filename, created_at FROM user_history WHERE user_id = ? ORDER BY id ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	user.History = []model.HistoryEntry{}
	for rows.Next() {
		var h model.HistoryEntry
		if err := rows.Scan(&h.Filename, &h.CreatedAt); err != nil {
			return nil, err
		}
		user.History = append(user.History, h)
	}

	return user, rows.Err()
}

func scanUser(row *sql.Row) (*model.User, error) {
	var (
		user       model.User
		phone, bio sql.NullString
	)
	err := row.Scan(
		&user.ID, &user.Name, &user.Email, &user.PasswordHash,
		&phone, &bio, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	user.Phone = phone.String
	user.Bio = bio.String
	return &user, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// isDuplicateEntryError checks for a unique-index violation on either backend.
func isDuplicateEntryError(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlErrDuplicateEntry
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			(code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(liteErr.Error(), "UNIQUE"))
	}

	return false
}
