package apitoken

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

func newValidator() *Validator {
	return &Validator{APIKey: "static-key", JWTSecret: []byte("jwt-secret")}
}

func mint(t *testing.T, secret []byte, claims jwtv5.MapClaims) string {
	t.Helper()
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	signed, err := tk.SignedString(secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func TestAuthorize_NoCredentials(t *testing.T) {
	t.Parallel()
	v := newValidator()
	r := httptest.NewRequest("POST", "/verified", nil)

	if err := v.Authorize(r, ScopeMembersWrite); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("expected ErrNoCredentials, got %v", err)
	}
}

func TestAuthorize_StaticKey(t *testing.T) {
	t.Parallel()
	v := newValidator()

	r := httptest.NewRequest("POST", "/verified", nil)
	r.Header.Set("X-API-Key", "static-key")
	if err := v.Authorize(r, ScopeMembersWrite); err != nil {
		t.Fatalf("X-API-Key: %v", err)
	}

	r = httptest.NewRequest("POST", "/verified", nil)
	r.Header.Set("Authorization", "Bearer static-key")
	if err := v.Authorize(r, ScopeMembersWrite); err != nil {
		t.Fatalf("Bearer: %v", err)
	}

	r = httptest.NewRequest("POST", "/verified", nil)
	r.Header.Set("X-API-Key", "wrong")
	if err := v.Authorize(r, ScopeMembersWrite); !errors.Is(err, ErrInvalid) {
		t.Fatalf("wrong key: expected ErrInvalid, got %v", err)
	}
}

func TestAuthorize_JWT(t *testing.T) {
	t.Parallel()
	v := newValidator()
	exp := time.Now().Add(time.Hour).Unix()

	r := httptest.NewRequest("POST", "/verified", nil)
	r.Header.Set("Authorization", "Bearer "+mint(t, v.JWTSecret, jwtv5.MapClaims{
		"scope": "profile:read " + ScopeMembersWrite,
		"exp":   exp,
	}))
	if err := v.Authorize(r, ScopeMembersWrite); err != nil {
		t.Fatalf("valid jwt: %v", err)
	}

	r = httptest.NewRequest("POST", "/verified", nil)
	r.Header.Set("Authorization", "Bearer "+mint(t, v.JWTSecret, jwtv5.MapClaims{
		"scope": "profile:read",
		"exp":   exp,
	}))
	if err := v.Authorize(r, ScopeMembersWrite); !errors.Is(err, ErrScope) {
		t.Fatalf("missing scope: expected ErrScope, got %v", err)
	}

	r = httptest.NewRequest("POST", "/verified", nil)
	r.Header.Set("Authorization", "Bearer "+mint(t, []byte("other-secret"), jwtv5.MapClaims{
		"scope": ScopeMembersWrite,
		"exp":   exp,
	}))
	if err := v.Authorize(r, ScopeMembersWrite); !errors.Is(err, ErrInvalid) {
		t.Fatalf("bad signature: expected ErrInvalid, got %v", err)
	}

	r = httptest.NewRequest("POST", "/verified", nil)
	r.Header.Set("Authorization", "Bearer "+mint(t, v.JWTSecret, jwtv5.MapClaims{
		"scope": ScopeMembersWrite,
		"exp":   time.Now().Add(-time.Hour).Unix(),
	}))
	if err := v.Authorize(r, ScopeMembersWrite); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expired: expected ErrInvalid, got %v", err)
	}
}

func TestAuthorize_JWTDisabledWithoutSecret(t *testing.T) {
	t.Parallel()
	v := &Validator{APIKey: "static-key"}
	r := httptest.NewRequest("POST", "/verified", nil)
	r.Header.Set("Authorization", "Bearer "+mint(t, []byte("anything"), jwtv5.MapClaims{
		"scope": ScopeMembersWrite,
	}))
	if err := v.Authorize(r, ScopeMembersWrite); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}
