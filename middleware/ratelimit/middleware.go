package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"admission-guard/internal/respond"
	"admission-guard/middleware/ratelimit/domain"

	"golang.org/x/time/rate"
)

const rateLimitedMessage = "Too many requests"

// RequestIDHeader correlaciona logs de negação com o upstream.
const RequestIDHeader = "X-Request-Id"

// statsTimeout limita quanto um Record best-effort pode segurar a request.
const statsTimeout = 200 * time.Millisecond

type Options struct {
	Limiter  domain.Limiter
	Category domain.Category
	Stats    domain.StatsStore
	KeyFn    KeyFunc
	// AddRateLimitHeaders também escreve X-RateLimit-* nas respostas permitidas.
	// Negações sempre levam os headers.
	AddRateLimitHeaders bool
	Logger              *slog.Logger
}

// Gate é a etapa de rate limit de um endpoint: resolve a chave, consulta o
// limiter da categoria e traduz a negação para 429.
type Gate struct {
	opts Options
	// limita o volume de logs de negação sob ataque
	logEvery *rate.Sometimes
}

func NewGate(opts Options) (*Gate, error) {
	if opts.Limiter == nil {
		return nil, fmt.Errorf("%w: nil limiter for category %q", domain.ErrInvalidConfig, opts.Category)
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(KeyOptions{})
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Gate{
		opts:     opts,
		logEvery: &rate.Sometimes{First: 10, Interval: 10 * time.Second},
	}, nil
}

func (g *Gate) Category() domain.Category { return g.opts.Category }

// Admit decide a request. Quando nega, já escreveu a resposta 429 e o
// chamador não deve tocar mais em w.
func (g *Gate) Admit(w http.ResponseWriter, r *http.Request) (domain.Decision, bool) {
	key := g.opts.KeyFn(r)
	dec := g.opts.Limiter.Check(key)

	outcome := domain.OutcomeAllowed
	if !dec.Allowed {
		outcome = domain.OutcomeRateLimited
	}
	Record(r.Context(), g.opts.Stats, g.opts.Logger, domain.StatsEvent{
		Key:      key,
		Category: g.opts.Category,
		Outcome:  outcome,
		Method:   r.Method,
		Path:     r.URL.Path,
		At:       time.Now(),
	})

	if dec.Allowed {
		if g.opts.AddRateLimitHeaders {
			SetHeaders(w.Header(), dec)
		}
		return dec, true
	}

	g.logEvery.Do(func() {
		g.opts.Logger.LogAttrs(r.Context(), slog.LevelWarn, "request rate limited",
			slog.String("category", string(g.opts.Category)),
			slog.String("key", string(key)),
			slog.Duration("retry_after", dec.RetryAfter),
			slog.String("request_id", r.Header.Get(RequestIDHeader)),
			slog.Any("error", domain.ErrRateLimitExceeded),
		)
	})
	WriteRateLimited(w, dec)
	return dec, false
}

// WriteRateLimited escreve a negação 429 com Retry-After (segundos) e X-RateLimit-*.
func WriteRateLimited(w http.ResponseWriter, dec domain.Decision) {
	w.Header().Set("Retry-After", formatInt(retryAfterSeconds(dec.RetryAfter)))
	SetHeaders(w.Header(), dec)
	respond.Error(w, http.StatusTooManyRequests, rateLimitedMessage)
}

// Record grava o evento como best-effort: erro vira log, nunca derruba a request.
func Record(ctx context.Context, stats domain.StatsStore, logger *slog.Logger, ev domain.StatsEvent) {
	if stats == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statsTimeout)
	defer cancel()
	if err := stats.Record(ctx, ev); err != nil && logger != nil {
		logger.Debug("stats record failed", "error", err, "outcome", string(ev.Outcome))
	}
}

// Middleware aplica só o rate limit (sem CSRF) a todas as requests.
func Middleware(opts Options) (func(next http.Handler) http.Handler, error) {
	gate, err := NewGate(opts)
	if err != nil {
		return nil, err
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := gate.Admit(w, r); !ok {
				return
			}
			next.ServeHTTP(w, r)
		})
	}, nil
}
