package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/docassist/docassist-go/internal/crypto"
	"github.com/docassist/docassist-go/internal/model"
	"github.com/docassist/docassist-go/internal/repository"
)

// Validation errors.
var (
	ErrMissingFields      = errors.New("Please provide all required fields")
	ErrInvalidEmail       = errors.New("Please provide a valid email address")
	ErrMissingCredentials = errors.New("Please provide both email and password")
	ErrMissingPasswords   = errors.New("Please provide both current and new password")
	ErrFilenameRequired   = errors.New("Filename is required")
	ErrPasswordTooLong    = errors.New("Password must be at most 72 bytes")
)

// Conflict errors.
var (
	ErrEmailExists = errors.New("User with this email already exists")
	ErrEmailInUse  = errors.New("Email already in use")
)

// Credential errors. Unknown email and wrong password share one message.
var (
	ErrInvalidCredentials = errors.New("Invalid credentials")
	ErrIncorrectPassword  = errors.New("Current password is incorrect")
)

var ErrUserNotFound = errors.New("User not found")

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// UserStore is the credential store used by AuthService.
type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
	EmailTakenByOther(ctx context.Context, email, userID string) (bool, error)
	UpdateProfile(ctx context.Context, id string, upd model.ProfileUpdate) (*model.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	AppendHistory(ctx context.Context, id string, entry model.HistoryEntry) error
}

// TokenIssuer issues bearer tokens for authenticated users.
type TokenIssuer interface {
	Issue(id model.Identity) (string, error)
}

// AuthService handles authentication and profile business logic.
type AuthService struct {
	store  UserStore
	tokens TokenIssuer
	now    func() time.Time
}

// NewAuthService creates a new AuthService.
func NewAuthService(store UserStore, tokens TokenIssuer) *AuthService {
	return &AuthService{
		store:  store,
		tokens: tokens,
		now:    time.Now,
	}
}

// Register creates a new user account and returns an auth token.
func (s *AuthService) Register(ctx context.Context, req model.SignupRequest) (model.AuthResponse, error) {
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return model.AuthResponse{}, ErrMissingFields
	}
	if !emailPattern.MatchString(req.Email) {
		return model.AuthResponse{}, ErrInvalidEmail
	}

	// The unique index is the real guarantee; this only avoids hashing for
	// an address that is already taken.
	if _, err := s.store.GetByEmail(ctx, req.Email); err == nil {
		return model.AuthResponse{}, ErrEmailExists
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return model.AuthResponse{}, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return model.AuthResponse{}, err
	}

	user := &model.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
	}
	if err := s.store.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return model.AuthResponse{}, ErrEmailExists
		}
		return model.AuthResponse{}, fmt.Errorf("create user: %w", err)
	}

	token, err := s.issue(user)
	if err != nil {
		return model.AuthResponse{}, err
	}

	return model.AuthResponse{
		Success: true,
		Message: "Registration successful",
		Token:   token,
		User:    user.ToPublic(),
	}, nil
}

// Login authenticates a user and returns an auth token.
func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (model.AuthResponse, error) {
	if req.Email == "" || req.Password == "" {
		return model.AuthResponse{}, ErrMissingCredentials
	}

	user, err := s.store.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return model.AuthResponse{}, ErrInvalidCredentials
		}
		return model.AuthResponse{}, fmt.Errorf("lookup email: %w", err)
	}

	if !crypto.VerifyPassword(req.Password, user.PasswordHash) {
		return model.AuthResponse{}, ErrInvalidCredentials
	}

	token, err := s.issue(user)
	if err != nil {
		return model.AuthResponse{}, err
	}

	return model.AuthResponse{
		Success: true,
		Token:   token,
		User:    user.ToPublic(),
	}, nil
}

// GetCurrentUser returns the caller's profile without the password hash.
func (s *AuthService) GetCurrentUser(ctx context.Context, id model.Identity) (model.Profile, error) {
	user, err := s.lookup(ctx, id)
	if err != nil {
		return model.Profile{}, err
	}
	return user.ToProfile(), nil
}

// UpdateProfile applies the supplied non-empty fields to the caller's profile.
func (s *AuthService) UpdateProfile(ctx context.Context, id model.Identity, upd model.ProfileUpdate) (model.Profile, error) {
	if upd.Email != "" {
		taken, err := s.store.EmailTakenByOther(ctx, upd.Email, id.UserID)
		if err != nil {
			return model.Profile{}, fmt.Errorf("check email: %w", err)
		}
		if taken {
			return model.Profile{}, ErrEmailInUse
		}
	}

	user, err := s.store.UpdateProfile(ctx, id.UserID, upd)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrUserNotFound):
			return model.Profile{}, ErrUserNotFound
		case errors.Is(err, repository.ErrDuplicateEmail):
			return model.Profile{}, ErrEmailInUse
		}
		return model.Profile{}, fmt.Errorf("update profile: %w", err)
	}

	return user.ToProfile(), nil
}

// ChangePassword replaces the caller's password after verifying the current one.
// No new token is issued.
func (s *AuthService) ChangePassword(ctx context.Context, id model.Identity, req model.ChangePasswordRequest) error {
	if req.CurrentPassword == "" || req.NewPassword == "" {
		return ErrMissingPasswords
	}

	user, err := s.lookup(ctx, id)
	if err != nil {
		return err
	}

	if !crypto.VerifyPassword(req.CurrentPassword, user.PasswordHash) {
		return ErrIncorrectPassword
	}

	hash, err := hashPassword(req.NewPassword)
	if err != nil {
		return err
	}

	if err := s.store.UpdatePassword(ctx, user.ID, hash); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// SaveHistory appends a processed filename to the caller's history.
func (s *AuthService) SaveHistory(ctx context.Context, id model.Identity, req model.SaveHistoryRequest) error {
	if req.Filename == "" {
		return ErrFilenameRequired
	}

	entry := model.HistoryEntry{Filename: req.Filename, CreatedAt: s.now()}
	if err := s.store.AppendHistory(ctx, id.UserID, entry); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func (s *AuthService) lookup(ctx context.Context, id model.Identity) (*model.User, error) {
	user, err := s.store.GetByID(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}

func (s *AuthService) issue(user *model.User) (string, error) {
	token, err := s.tokens.Issue(model.Identity{UserID: user.ID, Email: user.Email})
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}

func hashPassword(password string) (string, error) {
	hash, err := crypto.HashPassword(password)
	if err != nil {
		if errors.Is(err, crypto.ErrPasswordTooLong) {
			return "", ErrPasswordTooLong
		}
		return "", err
	}
	return hash, nil
}
