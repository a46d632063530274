package ratelimit

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// BearerSubject é um IdentityFunc que lê o "sub" de um JWT HS256 no header
// Authorization. Token ausente, inválido ou expirado não é erro aqui: o
// chamador apenas cai na identidade por IP.
func BearerSubject(secret []byte) IdentityFunc {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	keyFn := func(*jwt.Token) (any, error) { return secret, nil }

	return func(r *http.Request) (string, bool) {
		if len(secret) == 0 {
			return "", false
		}
		raw, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			return "", false
		}

		claims := &jwt.RegisteredClaims{}
		if _, err := parser.ParseWithClaims(raw, claims, keyFn); err != nil {
			return "", false
		}
		if claims.Subject == "" {
			return "", false
		}
		return claims.Subject, true
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}
	return token, true
}
