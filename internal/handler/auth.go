package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/docassist/docassist-go/internal/metrics"
	"github.com/docassist/docassist-go/internal/middleware"
	"github.com/docassist/docassist-go/internal/model"
	"github.com/docassist/docassist-go/internal/service"
)

// AuthService is the business logic behind the auth routes.
type AuthService interface {
	Register(ctx context.Context, req model.SignupRequest) (model.AuthResponse, error)
	Login(ctx context.Context, req model.LoginRequest) (model.AuthResponse, error)
	GetCurrentUser(ctx context.Context, id model.Identity) (model.Profile, error)
	UpdateProfile(ctx context.Context, id model.Identity, upd model.ProfileUpdate) (model.Profile, error)
	ChangePassword(ctx context.Context, id model.Identity, req model.ChangePasswordRequest) error
	SaveHistory(ctx context.Context, id model.Identity, req model.SaveHistoryRequest) error
}

// AuthHandler handles HTTP requests for authentication and profiles.
type AuthHandler struct {
	service AuthService
	metrics *metrics.Metrics
}

// NewAuthHandler creates a new AuthHandler. m may be nil.
func NewAuthHandler(svc AuthService, m *metrics.Metrics) *AuthHandler {
	return &AuthHandler{service: svc, metrics: m}
}

// Routes mounts the auth endpoints; profile and history routes sit behind gate.
func (h *AuthHandler) Routes(gate func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/signup", h.HandleSignup)
	r.Post("/login", h.HandleLogin)

	r.Group(func(r chi.Router) {
		r.Use(gate)
		r.Get("/profile", h.HandleGetProfile)
		r.Put("/profile", h.HandleUpdateProfile)
		r.Put("/change-password", h.HandleChangePassword)
		r.Post("/save-history", h.HandleSaveHistory)
	})
	return r
}

// HandleSignup handles POST /api/auth/signup requests.
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req model.SignupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	resp, err := h.service.Register(r.Context(), req)
	if err != nil {
		h.fail(w, r, "signup", err, "Server error during registration")
		return
	}

	h.metrics.AuthEvent("signup", "ok")
	writeJSON(w, http.StatusCreated, resp)
}

// HandleLogin handles POST /api/auth/login requests.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	resp, err := h.service.Login(r.Context(), req)
	if err != nil {
		h.fail(w, r, "login", err, "Server error during login")
		return
	}

	h.metrics.AuthEvent("login", "ok")
	writeJSON(w, http.StatusOK, resp)
}

// HandleGetProfile handles GET /api/auth/profile requests.
func (h *AuthHandler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse("Not authenticated"))
		return
	}

	profile, err := h.service.GetCurrentUser(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get_profile", err, "Server error retrieving user data")
		return
	}

	writeJSON(w, http.StatusOK, model.ProfileResponse{Success: true, User: profile})
}

// HandleUpdateProfile handles PUT /api/auth/profile requests.
func (h *AuthHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse("Not authenticated"))
		return
	}

	var upd model.ProfileUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		writeDecodeError(w, err)
		return
	}

	profile, err := h.service.UpdateProfile(r.Context(), id, upd)
	if err != nil {
		h.fail(w, r, "update_profile", err, "Server error updating profile")
		return
	}

	h.metrics.AuthEvent("update_profile", "ok")
	writeJSON(w, http.StatusOK, model.ProfileResponse{
		Success: true,
		Message: "Profile updated successfully",
		User:    profile,
	})
}

// HandleChangePassword handles PUT /api/auth/change-password requests.
func (h *AuthHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse("Not authenticated"))
		return
	}

	var req model.ChangePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	if err := h.service.ChangePassword(r.Context(), id, req); err != nil {
		h.fail(w, r, "change_password", err, "Server error changing password")
		return
	}

	h.metrics.AuthEvent("change_password", "ok")
	writeJSON(w, http.StatusOK, model.MessageResponse{Success: true, Message: "Password changed successfully"})
}

// HandleSaveHistory handles POST /api/auth/save-history requests.
func (h *AuthHandler) HandleSaveHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse("Not authenticated"))
		return
	}

	var req model.SaveHistoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	if err := h.service.SaveHistory(r.Context(), id, req); err != nil {
		h.fail(w, r, "save_history", err, "Server error saving history")
		return
	}

	h.metrics.AuthEvent("save_history", "ok")
	writeJSON(w, http.StatusOK, model.MessageResponse{Success: true, Message: "History saved successfully"})
}

// fail maps a service error to a response. Unknown errors are logged and
// answered with internalMsg.
func (h *AuthHandler) fail(w http.ResponseWriter, r *http.Request, op string, err error, internalMsg string) {
	status, outcome := classify(err)
	h.metrics.AuthEvent(op, outcome)

	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "auth operation failed", "op", op, "error", err)
		writeJSON(w, status, errorResponse(internalMsg))
		return
	}
	writeJSON(w, status, errorResponse(err.Error()))
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrMissingFields),
		errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrMissingCredentials),
		errors.Is(err, service.ErrMissingPasswords),
		errors.Is(err, service.ErrFilenameRequired),
		errors.Is(err, service.ErrPasswordTooLong):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, service.ErrEmailExists), errors.Is(err, service.ErrEmailInUse):
		return http.StatusBadRequest, "conflict"
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrIncorrectPassword):
		return http.StatusBadRequest, "invalid_credentials"
	case errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound, "not_found"
	default:
		return http.StatusInternalServerError, "error"
	}
}
