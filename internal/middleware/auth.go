package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/docassist/docassist-go/internal/crypto"
	"github.com/docassist/docassist-go/internal/metrics"
	"github.com/docassist/docassist-go/internal/model"
)

type contextKey string

const identityKey contextKey = "identity"

// Gate rejection messages.
const (
	msgNoToken      = "No token, authorization denied"
	msgInvalidToken = "Invalid token"
)

// TokenVerifier validates a bearer token and returns its claims.
type TokenVerifier interface {
	Verify(token string) (*crypto.Claims, error)
}

// Authenticate returns middleware that requires a valid token in the
// Authorization header ("Bearer <token>").
func Authenticate(verifier TokenVerifier, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r.Header.Get("Authorization"))
			if token == "" {
				m.TokenRejected("missing")
				writeJSONError(w, http.StatusUnauthorized, msgNoToken)
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				reason := "invalid"
				if errors.Is(err, crypto.ErrExpiredToken) {
					reason = "expired"
				}
				m.TokenRejected(reason)
				slog.DebugContext(r.Context(), "token rejected", "reason", reason, "error", err)
				writeJSONError(w, http.StatusUnauthorized, msgInvalidToken)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), claims.Identity())))
		})
	}
}

// bearerToken returns the second space-separated part of the header, or "".
func bearerToken(header string) string {
	parts := strings.Split(header, " ")
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

// IdentityFromContext extracts the authenticated caller from the request context.
func IdentityFromContext(ctx context.Context) (model.Identity, bool) {
	id, ok := ctx.Value(identityKey).(model.Identity)
	return id, ok
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id model.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(model.MessageResponse{Success: false, Message: msg})
}
