// Package session keeps the client-side view of who is logged in. The
// persisted token is the source of truth; the cached profile follows it.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/docassist/docassist-go/internal/model"
)

// ErrAuthenticationFailed is returned when a login response carries no token.
var ErrAuthenticationFailed = errors.New("Authentication failed: No token in response")

// API is the remote auth service as seen by the session.
type API interface {
	Signup(ctx context.Context, req model.SignupRequest) error
	Login(ctx context.Context, email, password string) (model.AuthResponse, error)
	Profile(ctx context.Context) (model.Profile, error)
	UpdateProfile(ctx context.Context, upd model.ProfileUpdate) (model.Profile, error)
	ChangePassword(ctx context.Context, current, next string) error
	SaveHistory(ctx context.Context, filename string) error
}

// TokenStore persists the bearer token between runs.
type TokenStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// TokenSource returns a function that reads the token from store on every
// call, unwrapping legacy encodings. It is meant for apiclient.WithTokenSource.
func TokenSource(store TokenStore) func(ctx context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		raw, err := store.Load(ctx)
		if err != nil {
			return "", err
		}
		return decodeStoredToken(raw), nil
	}
}

// RestoreResult reports how Restore ended.
type RestoreResult int

const (
	RestoreNoSession RestoreResult = iota
	RestoreAuthenticated
	RestoreFallbackLoggedOut
)

func (r RestoreResult) String() string {
	switch r {
	case RestoreNoSession:
		return "no_session"
	case RestoreAuthenticated:
		return "authenticated"
	case RestoreFallbackLoggedOut:
		return "fallback_logged_out"
	default:
		return fmt.Sprintf("RestoreResult(%d)", int(r))
	}
}

// State is a snapshot of the session.
type State struct {
	Token   string
	User    *model.Profile
	Loading bool
	Err     string
}

// Session is safe for concurrent use.
type Session struct {
	api    API
	store  TokenStore
	logger *slog.Logger

	mu    sync.Mutex
	state State
}

// Option customises a Session.
type Option func(*Session)

// WithLogger sets the logger used for failures that are not surfaced.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// New returns a session that is loading until Restore completes.
func New(api API, store TokenStore, opts ...Option) *Session {
	s := &Session{
		api:    api,
		store:  store,
		logger: slog.Default(),
		state:  State{Loading: true},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns a copy of the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	if st.User != nil {
		u := *st.User
		st.User = &u
	}
	return st
}

// IsAuthenticated reports whether a token is held.
func (s *Session) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Token != ""
}

// Restore loads a persisted token and fetches the matching profile. Failures
// leave the session logged out and are only logged.
func (s *Session) Restore(ctx context.Context) RestoreResult {
	defer s.setLoading(false)

	raw, err := s.store.Load(ctx)
	if err != nil {
		s.logger.Warn("failed to load session token", "error", err)
		s.reset()
		return RestoreFallbackLoggedOut
	}
	token := decodeStoredToken(raw)
	if token == "" {
		return RestoreNoSession
	}

	s.mu.Lock()
	s.state.Token = token
	s.mu.Unlock()

	profile, err := s.api.Profile(ctx)
	if err != nil {
		s.logger.Warn("failed to load user", "error", err)
		s.reset()
		return RestoreFallbackLoggedOut
	}

	s.mu.Lock()
	s.state.User = &profile
	s.mu.Unlock()
	return RestoreAuthenticated
}

// Login authenticates, persists the token and caches the user.
func (s *Session) Login(ctx context.Context, email, password string) error {
	s.begin()
	defer s.setLoading(false)

	resp, err := s.api.Login(ctx, email, password)
	if err != nil {
		return s.fail(err, "Login failed")
	}
	if resp.Token == "" {
		return s.fail(ErrAuthenticationFailed, "Login failed")
	}
	if err := s.store.Save(ctx, resp.Token); err != nil {
		return s.fail(fmt.Errorf("Failed to store authentication token: %w", err), "Login failed")
	}

	user := model.Profile{ID: resp.User.ID, Name: resp.User.Name, Email: resp.User.Email}
	s.mu.Lock()
	s.state.Token = resp.Token
	s.state.User = &user
	s.mu.Unlock()
	return nil
}

// Logout forgets the session. A failure to clear storage is logged only.
func (s *Session) Logout(ctx context.Context) {
	if err := s.store.Clear(ctx); err != nil {
		s.logger.Error("logout error", "error", err)
	}
	s.reset()
}

// UpdateUserProfile pushes upd and replaces the cached user with the result.
func (s *Session) UpdateUserProfile(ctx context.Context, upd model.ProfileUpdate) error {
	s.begin()
	defer s.setLoading(false)

	profile, err := s.api.UpdateProfile(ctx, upd)
	if err != nil {
		return s.fail(err, "Failed to update profile")
	}

	s.mu.Lock()
	s.state.User = &profile
	s.mu.Unlock()
	return nil
}

// Signup registers an account without logging in.
func (s *Session) Signup(ctx context.Context, req model.SignupRequest) error {
	s.begin()
	defer s.setLoading(false)

	if err := s.api.Signup(ctx, req); err != nil {
		return s.fail(err, "Signup failed")
	}
	return nil
}

// ChangePassword changes the password of the logged-in user.
func (s *Session) ChangePassword(ctx context.Context, current, next string) error {
	s.begin()
	defer s.setLoading(false)

	if err := s.api.ChangePassword(ctx, current, next); err != nil {
		return s.fail(err, "Failed to change password")
	}
	return nil
}

// SaveHistory records a processed file for the logged-in user.
func (s *Session) SaveHistory(ctx context.Context, filename string) error {
	if err := s.api.SaveHistory(ctx, filename); err != nil {
		return s.fail(err, "Failed to save history")
	}
	return nil
}

func (s *Session) begin() {
	s.mu.Lock()
	s.state.Loading = true
	s.state.Err = ""
	s.mu.Unlock()
}

func (s *Session) setLoading(v bool) {
	s.mu.Lock()
	s.state.Loading = v
	s.mu.Unlock()
}

func (s *Session) reset() {
	s.mu.Lock()
	s.state.Token = ""
	s.state.User = nil
	s.mu.Unlock()
}

// fail records err's message (or fallback when empty) and returns err.
func (s *Session) fail(err error, fallback string) error {
	msg := err.Error()
	if msg == "" {
		msg = fallback
	}
	s.mu.Lock()
	s.state.Err = msg
	s.mu.Unlock()
	return err
}
