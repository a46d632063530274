package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signHS256(t *testing.T, secret []byte, claims jwt.RegisteredClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func TestBearerSubject(t *testing.T) {
	secret := []byte("test-secret")
	fn := BearerSubject(secret)
	future := jwt.NewNumericDate(time.Now().Add(time.Hour))
	past := jwt.NewNumericDate(time.Now().Add(-time.Hour))

	cases := []struct {
		name   string
		header string
		wantID string
		wantOK bool
	}{
		{name: "valid", header: "Bearer " + signHS256(t, secret, jwt.RegisteredClaims{Subject: "u-1", ExpiresAt: future}), wantID: "u-1", wantOK: true},
		{name: "missing header", header: ""},
		{name: "not bearer", header: "Basic abc"},
		{name: "wrong secret", header: "Bearer " + signHS256(t, []byte("other"), jwt.RegisteredClaims{Subject: "u-1", ExpiresAt: future})},
		{name: "expired", header: "Bearer " + signHS256(t, secret, jwt.RegisteredClaims{Subject: "u-1", ExpiresAt: past})},
		{name: "no exp", header: "Bearer " + signHS256(t, secret, jwt.RegisteredClaims{Subject: "u-1"})},
		{name: "no subject", header: "Bearer " + signHS256(t, secret, jwt.RegisteredClaims{ExpiresAt: future})},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "http://example/", nil)
			if tc.header != "" {
				r.Header.Set("Authorization", tc.header)
			}
			id, ok := fn(r)
			if ok != tc.wantOK || id != tc.wantID {
				t.Fatalf("expected (%q, %v), got (%q, %v)", tc.wantID, tc.wantOK, id, ok)
			}
		})
	}
}

func TestBearerSubject_EmptySecretDisabled(t *testing.T) {
	fn := BearerSubject(nil)
	r := httptest.NewRequest(http.MethodPost, "http://example/", nil)
	r.Header.Set("Authorization", "Bearer whatever")
	if _, ok := fn(r); ok {
		t.Fatalf("expected no identity with empty secret")
	}
}
