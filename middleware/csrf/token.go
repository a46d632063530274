package csrf

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
)

// TokenBytes é a entropia de cada token antes do encoding.
const TokenBytes = 32

// GenerateToken devolve 32 bytes de crypto/rand em base64url sem padding.
func GenerateToken() (string, error) {
	b := make([]byte, TokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// tokensEqual compara em tempo constante. Os dois lados passam por SHA-256
// antes do subtle.ConstantTimeCompare, então tamanhos diferentes não mudam o
// tempo da comparação nem revelam em qual byte os valores divergem.
func tokensEqual(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	ha := sha256.Sum256([]byte(a))
	hb := sha256.Sum256([]byte(b))
	return subtle.ConstantTimeCompare(ha[:], hb[:]) == 1
}
