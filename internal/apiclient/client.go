package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/docassist/docassist-go/internal/model"
)

// DefaultBaseURL is where the auth routes live on a local server.
const DefaultBaseURL = "http://localhost:8080/api/auth"

// ErrNotAuthenticated is returned by authenticated calls when no token is stored.
var ErrNotAuthenticated = errors.New("Not authenticated")

// TokenSource returns the current bearer token, or "" when there is none.
type TokenSource func(ctx context.Context) (string, error)

// Client provides typed access to the auth API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      TokenSource
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithTokenSource sets where authenticated calls read their token from.
// It is consulted on every call.
func WithTokenSource(src TokenSource) Option {
	return func(c *Client) {
		if src != nil {
			c.token = src
		}
	}
}

// New constructs a Client pointing at the provided API base URL.
func New(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = DefaultBaseURL
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	cli := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		token:      func(context.Context) (string, error) { return "", nil },
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// APIError represents an error response from the API.
type APIError struct {
	Status  int
	Message string
}

func (e APIError) Error() string {
	return e.Message
}

// Signup registers an account. It does not log in.
func (c *Client) Signup(ctx context.Context, req model.SignupRequest) error {
	return c.do(ctx, http.MethodPost, "/signup", req, "", nil)
}

// Login exchanges credentials for a token and the public user.
func (c *Client) Login(ctx context.Context, email, password string) (model.AuthResponse, error) {
	var resp model.AuthResponse
	err := c.do(ctx, http.MethodPost, "/login", model.LoginRequest{Email: email, Password: password}, "", &resp)
	return resp, err
}

// Profile fetches the caller's profile.
func (c *Client) Profile(ctx context.Context) (model.Profile, error) {
	token, err := c.currentToken(ctx)
	if err != nil {
		return model.Profile{}, err
	}
	var resp model.ProfileResponse
	if err := c.do(ctx, http.MethodGet, "/profile", nil, token, &resp); err != nil {
		return model.Profile{}, err
	}
	return resp.User, nil
}

// UpdateProfile applies upd and returns the updated profile.
func (c *Client) UpdateProfile(ctx context.Context, upd model.ProfileUpdate) (model.Profile, error) {
	token, err := c.currentToken(ctx)
	if err != nil {
		return model.Profile{}, err
	}
	var resp model.ProfileResponse
	if err := c.do(ctx, http.MethodPut, "/profile", upd, token, &resp); err != nil {
		return model.Profile{}, err
	}
	return resp.User, nil
}

// ChangePassword replaces the caller's password.
func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	token, err := c.currentToken(ctx)
	if err != nil {
		return err
	}
	req := model.ChangePasswordRequest{CurrentPassword: current, NewPassword: next}
	return c.do(ctx, http.MethodPut, "/change-password", req, token, nil)
}

// SaveHistory records a processed file for the caller.
func (c *Client) SaveHistory(ctx context.Context, filename string) error {
	token, err := c.currentToken(ctx)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, "/save-history", model.SaveHistoryRequest{Filename: filename}, token, nil)
}

func (c *Client) currentToken(ctx context.Context) (string, error) {
	token, err := c.token(ctx)
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	if strings.TrimSpace(token) == "" {
		return "", ErrNotAuthenticated
	}
	return token, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, token string, v any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	endpoint := c.baseURL + path
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(token) != "" {
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return APIError{Status: resp.StatusCode, Message: extractError(resp.Body)}
	}

	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// extractError reads the message field of an error body, falling back to a
// generic message.
func extractError(body io.Reader) string {
	const fallback = "API request failed"
	var payload struct {
		Message string `json:"message"`
	}
	data, err := io.ReadAll(io.LimitReader(body, 1<<20))
	if err != nil || len(data) == 0 {
		return fallback
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return fallback
	}
	if msg := strings.TrimSpace(payload.Message); msg != "" {
		return msg
	}
	return fallback
}
