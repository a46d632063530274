package domain

import "errors"

var (
	// ErrRateLimitExceeded indica que a chave esgotou a cota da janela atual.
	// O chamador pode tentar de novo depois de Decision.RetryAfter.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrInvalidConfig é fatal na construção (janela/teto não positivos, etc).
	ErrInvalidConfig = errors.New("invalid rate limit configuration")
)
