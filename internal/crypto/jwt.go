package crypto

import (
	"errors"
	"time"

	"github.com/docassist/docassist-go/internal/model"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// TokenTTL is the lifetime of an issued token. There is no refresh.
	TokenTTL = 24 * time.Hour

	tokenIssuer   = "docassist"
	tokenAudience = "docassist-api"
)

var (
	ErrMissingSecret = errors.New("token signing secret is empty")
	ErrInvalidToken  = errors.New("invalid token")
	ErrExpiredToken  = errors.New("token has expired")
)

// Claims represents the JWT claims carried by a DocAssist bearer token.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"id"`
	Email  string `json:"email"`
}

// Identity returns the identity encoded in the claims.
func (c *Claims) Identity() model.Identity {
	return model.Identity{UserID: c.UserID, Email: c.Email}
}

// TokenIssuer signs and verifies HS256 bearer tokens with a single secret.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates a TokenIssuer. An empty secret is rejected so that a
// misconfigured process fails at startup instead of on the first request.
func NewTokenIssuer(secret string) (*TokenIssuer, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	return &TokenIssuer{
		secret: []byte(secret),
		ttl:    TokenTTL,
		now:    time.Now,
	}, nil
}

// Issue creates a signed token for the given identity.
func (i *TokenIssuer) Issue(id model.Identity) (string, error) {
	now := i.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{tokenAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		UserID: id.UserID,
		Email:  id.Email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Verify parses and validates a token string, returning its claims.
// Expired tokens yield ErrExpiredToken, every other failure ErrInvalidToken.
func (i *TokenIssuer) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
