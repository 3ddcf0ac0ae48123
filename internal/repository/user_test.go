package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/docassist/docassist-go/internal/model"
	"github.com/go-sql-driver/mysql"
)

func newRepoWithMock(t *testing.T) (*UserRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewUserRepository(db), mock
}

func TestSentinelErrors(t *testing.T) {
	if ErrUserNotFound.Error() != "user not found" {
		t.Fatalf("unexpected error message: %s", ErrUserNotFound.Error())
	}
	if ErrDuplicateEmail.Error() != "email already exists" {
		t.Fatalf("unexpected error message: %s", ErrDuplicateEmail.Error())
	}
}

func TestIsDuplicateEntryError(t *testing.T) {
	if isDuplicateEntryError(nil) {
		t.Fatal("nil error should not be a duplicate entry error")
	}
	if isDuplicateEntryError(ErrUserNotFound) {
		t.Fatal("ErrUserNotFound should not be a duplicate entry error")
	}
	if !isDuplicateEntryError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'a@b.com' for key 'uq_users_email'"}) {
		t.Fatal("MySQL error 1062 should be a duplicate entry error")
	}
	if isDuplicateEntryError(&mysql.MySQLError{Number: 1452, Message: "Cannot add or update a child row"}) {
		t.Fatal("MySQL error 1452 should not be a duplicate entry error")
	}
}

func TestCreate_MySQLDuplicate(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+users\s*\(id,\s*name,\s*email,`).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	err := repo.Create(context.Background(), &model.User{Name: "A", Email: "a@b.com", PasswordHash: "h"})
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`INSERT INTO users`).WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), &model.User{Name: "A", Email: "a@b.com", PasswordHash: "h"})
	if err == nil || !regexp.MustCompile(`insert user: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestGetByEmail_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)^SELECT\s+id,.*FROM\s+users\s+WHERE\s+email\s*=\s*\?$`).
		WithArgs("missing@b.com").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByEmail(context.Background(), "missing@b.com")
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestGetByEmail_NullableColumns(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "name", "email", "password_hash", "phone", "bio", "created_at", "updated_at"}).
		AddRow("u-1", "A", "a@b.com", "hash", nil, nil, now, now)
	mock.ExpectQuery(`FROM users WHERE email = \?`).WithArgs("a@b.com").WillReturnRows(rows)

	user, err := repo.GetByEmail(context.Background(), "a@b.com")
	if err != nil {
		t.Fatalf("GetByEmail error: %v", err)
	}
	if user.ID != "u-1" || user.Phone != "" || user.Bio != "" {
		t.Fatalf("unexpected user: %+v", user)
	}
}

func TestUpdateProfile_MySQLDuplicateRollsBack(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`(?s)^UPDATE\s+users\s+SET\s+updated_at\s*=\s*\?,\s*email\s*=\s*\?\s+WHERE\s+id\s*=\s*\?$`).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	mock.ExpectRollback()

	_, err := repo.UpdateProfile(context.Background(), "u-1", model.ProfileUpdate{Email: "taken@b.com"})
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdatePassword_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`UPDATE users SET password_hash = \?`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdatePassword(context.Background(), "missing", "hash")
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestAppendHistory_UnknownUser(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT 1 FROM users WHERE id = \?`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := repo.AppendHistory(context.Background(), "missing", model.HistoryEntry{Filename: "a.txt", CreatedAt: time.Now()})
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
