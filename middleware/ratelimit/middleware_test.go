package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"admission-guard/middleware/ratelimit/application"
	"admission-guard/middleware/ratelimit/domain"
	"admission-guard/middleware/ratelimit/infra"
)

func newStore(t *testing.T, window time.Duration, max int, opts ...infra.WindowOption) *infra.WindowStore {
	t.Helper()
	s, err := infra.NewWindowStore(window, max, 10, opts...)
	if err != nil {
		t.Fatalf("NewWindowStore: %v", err)
	}
	return s
}

func serve(h http.Handler, ip string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, "http://example/api/auth/login", nil)
	r.Header.Set("X-Forwarded-For", ip)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestMiddleware_AllowsThenRejectsSameKey(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := newStore(t, 15*time.Minute, 1, infra.WithClock(func() time.Time { return now }))
	stats := infra.NewMemoryStatsStore()

	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok")
	})

	mw, err := Middleware(Options{
		Limiter:             store,
		Category:            domain.CategoryLogin,
		Stats:               stats,
		AddRateLimitHeaders: true,
	})
	if err != nil {
		t.Fatalf("Middleware: %v", err)
	}
	h := mw(next)

	w1 := serve(h, "10.0.0.1")
	if w1.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w1.Code)
	}
	if got := w1.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Fatalf("expected X-RateLimit-Remaining=0, got %q", got)
	}

	w2 := serve(h, "10.0.0.1")
	if w2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w2.Code)
	}
	if got := w2.Header().Get("Retry-After"); got != "900" {
		t.Fatalf("expected Retry-After=900, got %q", got)
	}
	if got := w2.Header().Get("X-RateLimit-Limit"); got != "1" {
		t.Fatalf("expected X-RateLimit-Limit=1, got %q", got)
	}
	if got := w2.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Fatalf("expected X-RateLimit-Remaining=0, got %q", got)
	}
	if got := w2.Header().Get("X-RateLimit-Reset"); got != "2026-01-01T00:15:00Z" {
		t.Fatalf("expected ISO-8601 reset, got %q", got)
	}

	var body map[string]string
	if err := json.Unmarshal(w2.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected json body: %v", err)
	}
	if body["error"] == "" {
		t.Fatalf("expected error message in body")
	}

	if calls != 1 {
		t.Fatalf("expected next handler to be called once, got %d", calls)
	}
	total := stats.Total()
	if total.Allowed != 1 || total.RateLimited != 1 {
		t.Fatalf("unexpected stats %+v", total)
	}
}

func TestMiddleware_NoHeadersOnAllowedByDefault(t *testing.T) {
	mw, err := Middleware(Options{Limiter: newStore(t, time.Minute, 5)})
	if err != nil {
		t.Fatalf("Middleware: %v", err)
	}
	w := serve(mw(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})), "10.0.0.1")
	if got := w.Header().Get("X-RateLimit-Limit"); got != "" {
		t.Fatalf("expected no rate limit headers, got %q", got)
	}
}

func TestMiddleware_DifferentKeysHaveOwnQuota(t *testing.T) {
	mw, err := Middleware(Options{Limiter: newStore(t, time.Minute, 1)})
	if err != nil {
		t.Fatalf("Middleware: %v", err)
	}
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	if w := serve(h, "10.0.0.1"); w.Code != http.StatusOK {
		t.Fatalf("expected 200 for first key, got %d", w.Code)
	}
	if w := serve(h, "10.0.0.2"); w.Code != http.StatusOK {
		t.Fatalf("expected 200 for second key, got %d", w.Code)
	}
}

func TestMiddleware_RequiresLimiter(t *testing.T) {
	if _, err := Middleware(Options{}); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

type failingStats struct{ calls int }

func (f *failingStats) Record(_ context.Context, _ domain.StatsEvent) error {
	f.calls++
	return errors.New("redis down")
}

func TestMiddleware_StatsErrorsAreBestEffort(t *testing.T) {
	stats := &failingStats{}
	mw, err := Middleware(Options{Limiter: newStore(t, time.Minute, 5), Stats: stats})
	if err != nil {
		t.Fatalf("Middleware: %v", err)
	}
	w := serve(mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })), "10.0.0.1")
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected request to proceed, got %d", w.Code)
	}
	if stats.calls != 1 {
		t.Fatalf("expected one Record call, got %d", stats.calls)
	}
}

func TestRetryAfterSecondsRoundsUp(t *testing.T) {
	cases := map[time.Duration]int{
		0:                       1,
		1500 * time.Millisecond: 2,
		900 * time.Second:       900,
		time.Millisecond:        1,
	}
	for d, want := range cases {
		if got := retryAfterSeconds(d); got != want {
			t.Fatalf("retryAfterSeconds(%s): expected %d, got %d", d, want, got)
		}
	}
}

func TestNewService_WiresUnknownQuota(t *testing.T) {
	svc, err := NewService([]application.Policy{
		{Category: domain.CategoryLogin, Window: time.Minute, MaxRequests: 1, UnknownMax: 2},
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	lim, err := svc.Limiter(domain.CategoryLogin)
	if err != nil {
		t.Fatalf("Limiter: %v", err)
	}
	for i := 0; i < 2; i++ {
		if dec := lim.Check(domain.UnknownKey); !dec.Allowed {
			t.Fatalf("expected unknown request %d allowed, got %+v", i+1, dec)
		}
	}
	if dec := lim.Check(domain.UnknownKey); dec.Allowed {
		t.Fatalf("expected third unknown request denied")
	}
}
