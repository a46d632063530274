// utilitário pequeno para os headers de rate limit.

package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"admission-guard/middleware/ratelimit/domain"
)

func formatInt(v int) string { return strconv.Itoa(v) }

// retryAfterSeconds arredonda para cima: nunca manda o cliente voltar cedo demais.
func retryAfterSeconds(d time.Duration) int {
	if d <= 0 {
		return 1
	}
	return int(math.Ceil(d.Seconds()))
}

// SetHeaders escreve X-RateLimit-Limit, X-RateLimit-Remaining e
// X-RateLimit-Reset (ISO-8601, UTC).
func SetHeaders(h http.Header, dec domain.Decision) {
	h.Set("X-RateLimit-Limit", formatInt(dec.Limit))
	h.Set("X-RateLimit-Remaining", formatInt(dec.Remaining))
	if !dec.ResetAt.IsZero() {
		h.Set("X-RateLimit-Reset", dec.ResetAt.UTC().Format(time.RFC3339))
	}
}
