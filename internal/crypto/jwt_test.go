package crypto

import (
	"testing"
	"time"

	"github.com/docassist/docassist-go/internal/model"
	"github.com/golang-jwt/jwt/v5"
)

func newTestIssuer(t *testing.T, secret string) *TokenIssuer {
	t.Helper()
	issuer, err := NewTokenIssuer(secret)
	if err != nil {
		t.Fatalf("NewTokenIssuer() unexpected error: %v", err)
	}
	return issuer
}

func TestNewTokenIssuerEmptySecret(t *testing.T) {
	_, err := NewTokenIssuer("")
	if err != ErrMissingSecret {
		t.Errorf("NewTokenIssuer() error = %v, want ErrMissingSecret", err)
	}
}

func TestIssueToken(t *testing.T) {
	issuer := newTestIssuer(t, "test-secret")

	token, err := issuer.Issue(model.Identity{UserID: "u-1", Email: "a@b.com"})
	if err != nil {
		t.Fatalf("Issue() unexpected error: %v", err)
	}
	if token == "" {
		t.Fatal("Issue() returned empty string")
	}
}

func TestVerifyRoundTrip(t *testing.T) {
	issuer := newTestIssuer(t, "test-secret")

	identities := []model.Identity{
		{UserID: "8b0f6f0e-4f5e-4c43-9d7e-0b7d0c7e1a11", Email: "a@b.com"},
		{UserID: "65f1c2a9e4b0a1b2c3d4e5f6", Email: "Ünïcode@exämple.org"},
		{UserID: "x", Email: ""},
	}

	for _, id := range identities {
		token, err := issuer.Issue(id)
		if err != nil {
			t.Fatalf("Issue() unexpected error: %v", err)
		}

		claims, err := issuer.Verify(token)
		if err != nil {
			t.Fatalf("Verify() unexpected error: %v", err)
		}
		if got := claims.Identity(); got != id {
			t.Errorf("Verify() identity = %+v, want %+v", got, id)
		}
	}
}

func TestVerifyExpiryIsOneDay(t *testing.T) {
	issuer := newTestIssuer(t, "test-secret")

	token, err := issuer.Issue(model.Identity{UserID: "u-1", Email: "a@b.com"})
	if err != nil {
		t.Fatalf("Issue() unexpected error: %v", err)
	}

	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify() unexpected error: %v", err)
	}
	lifetime := claims.ExpiresAt.Sub(claims.IssuedAt.Time)
	if lifetime != 24*time.Hour {
		t.Errorf("token lifetime = %v, want 24h", lifetime)
	}
}

func TestVerifyInvalid(t *testing.T) {
	issuer := newTestIssuer(t, "test-secret")

	for _, token := range []string{"", "not-a-valid-token", "a.b.c"} {
		if _, err := issuer.Verify(token); err != ErrInvalidToken {
			t.Errorf("Verify(%q) error = %v, want ErrInvalidToken", token, err)
		}
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	token, err := newTestIssuer(t, "correct-secret").Issue(model.Identity{UserID: "u-1"})
	if err != nil {
		t.Fatalf("Issue() unexpected error: %v", err)
	}

	_, err = newTestIssuer(t, "wrong-secret").Verify(token)
	if err != ErrInvalidToken {
		t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyExpired(t *testing.T) {
	issuer := newTestIssuer(t, "test-secret")
	issuer.now = func() time.Time { return time.Now().Add(-25 * time.Hour) }

	token, err := issuer.Issue(model.Identity{UserID: "u-1"})
	if err != nil {
		t.Fatalf("Issue() unexpected error: %v", err)
	}

	issuer.now = time.Now
	_, err = issuer.Verify(token)
	if err != ErrExpiredToken {
		t.Errorf("Verify() error = %v, want ErrExpiredToken", err)
	}
}

func TestVerifyRejectsOtherAlgorithms(t *testing.T) {
	secret := "test-secret"
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{tokenAudience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		UserID: "u-1",
	}

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("SignedString() unexpected error: %v", err)
	}
	if _, err := newTestIssuer(t, secret).Verify(hs512); err != ErrInvalidToken {
		t.Errorf("Verify() HS512 error = %v, want ErrInvalidToken", err)
	}

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("SignedString() unexpected error: %v", err)
	}
	if _, err := newTestIssuer(t, secret).Verify(none); err != ErrInvalidToken {
		t.Errorf("Verify() none error = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyWrongAudience(t *testing.T) {
	secret := "test-secret"

	// Signed with the right key but meant for another service.
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{"wrong-audience"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		UserID: "u-1",
	}
	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("SignedString() unexpected error: %v", err)
	}

	if _, err := newTestIssuer(t, secret).Verify(tokenString); err != ErrInvalidToken {
		t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyMissingUserID(t *testing.T) {
	issuer := newTestIssuer(t, "test-secret")

	token, err := issuer.Issue(model.Identity{Email: "a@b.com"})
	if err != nil {
		t.Fatalf("Issue() unexpected error: %v", err)
	}
	if _, err := issuer.Verify(token); err != ErrInvalidToken {
		t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
	}
}
