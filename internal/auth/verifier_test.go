package auth

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

const testSecret = "test-secret"

func devToken(t *testing.T, sub, name, role string, exp time.Time) string {
	t.Helper()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Name: name,
		Role: role,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}
	return signed
}

func TestValidateDevToken(t *testing.T) {
	v := NewVerifier("", testSecret, zerolog.Nop())

	token := devToken(t, "u1", "Alice", "host", time.Now().Add(time.Hour))
	claims, err := v.Validate(token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.UserID() != "u1" || claims.Name != "Alice" || claims.Role != "host" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestValidateStripsBearerPrefix(t *testing.T) {
	v := NewVerifier("", testSecret, zerolog.Nop())

	token := devToken(t, "u1", "Alice", "", time.Now().Add(time.Hour))
	if _, err := v.Validate("Bearer " + token); err != nil {
		t.Fatal(err)
	}
}

func TestValidateExpiredToken(t *testing.T) {
	v := NewVerifier("", testSecret, zerolog.Nop())

	token := devToken(t, "u1", "Alice", "", time.Now().Add(-time.Hour))
	if _, err := v.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidateWrongSecret(t *testing.T) {
	v := NewVerifier("", "other-secret", zerolog.Nop())

	token := devToken(t, "u1", "Alice", "", time.Now().Add(time.Hour))
	if _, err := v.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidateEmptyToken(t *testing.T) {
	v := NewVerifier("", testSecret, zerolog.Nop())

	if _, err := v.Validate(""); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
}

func TestValidateMissingSubject(t *testing.T) {
	v := NewVerifier("", testSecret, zerolog.Nop())

	token := devToken(t, "", "Alice", "", time.Now().Add(time.Hour))
	if _, err := v.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws?token=query-token", nil)
	if got := TokenFromRequest(r); got != "query-token" {
		t.Fatalf("got %q", got)
	}

	r = httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Authorization", "Bearer header-token")
	if got := TokenFromRequest(r); got != "header-token" {
		t.Fatalf("got %q", got)
	}

	r = httptest.NewRequest("GET", "/ws", nil)
	if got := TokenFromRequest(r); got != "" {
		t.Fatalf("got %q", got)
	}
}
