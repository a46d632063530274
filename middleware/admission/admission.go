package admission

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"admission-guard/middleware/csrf"
	"admission-guard/middleware/ratelimit"
	"admission-guard/middleware/ratelimit/application"
	"admission-guard/middleware/ratelimit/domain"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

type Options struct {
	CSRF     *csrf.Guard
	Limiters *application.Service
	KeyFn    ratelimit.KeyFunc
	Stats    domain.StatsStore
	// AddRateLimitHeaders também expõe X-RateLimit-* em respostas permitidas.
	AddRateLimitHeaders bool
	Logger              *slog.Logger
	// OnOutcome é chamado uma vez por request com o estado terminal.
	OnOutcome func(r *http.Request, outcome domain.Outcome)
}

// Admission guarda as dependências compartilhadas; Middleware cria um
// wrapper por categoria de endpoint.
type Admission struct {
	opts     Options
	logEvery *rate.Sometimes
}

func New(opts Options) (*Admission, error) {
	if opts.CSRF == nil {
		return nil, errors.New("admission: csrf guard is required")
	}
	if opts.Limiters == nil {
		return nil, errors.New("admission: limiters are required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Admission{
		opts:     opts,
		logEvery: &rate.Sometimes{First: 10, Interval: 10 * time.Second},
	}, nil
}

// Middleware devolve o wrapper para a categoria. Categoria não registrada é
// erro de configuração e aparece aqui, na subida, nunca por request.
func (a *Admission) Middleware(cat domain.Category) (func(next http.Handler) http.Handler, error) {
	lim, err := a.opts.Limiters.Limiter(cat)
	if err != nil {
		return nil, err
	}
	gate, err := ratelimit.NewGate(ratelimit.Options{
		Limiter:             lim,
		Category:            cat,
		Stats:               a.opts.Stats,
		KeyFn:               a.opts.KeyFn,
		AddRateLimitHeaders: a.opts.AddRateLimitHeaders,
		Logger:              a.opts.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("admission: %s gate: %w", cat, err)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			a.serve(gate, next, w, r)
		})
	}, nil
}

// MustMiddleware é Middleware para a montagem de rotas na subida do processo.
func (a *Admission) MustMiddleware(cat domain.Category) func(next http.Handler) http.Handler {
	mw, err := a.Middleware(cat)
	if err != nil {
		panic(err)
	}
	return mw
}

func (a *Admission) serve(gate *ratelimit.Gate, next http.Handler, w http.ResponseWriter, r *http.Request) {
	requestID := ensureRequestID(r)
	w.Header().Set(ratelimit.RequestIDHeader, requestID)

	// CSRFCheck: Validate já devolve true para métodos seguros.
	if !a.opts.CSRF.Validate(r) {
		a.logEvery.Do(func() {
			a.opts.Logger.Warn("request rejected by csrf check",
				"category", string(gate.Category()),
				"method", r.Method,
				"path", r.URL.Path,
				"request_id", requestID,
				"error", csrf.ErrInvalidToken,
			)
		})
		ratelimit.Record(r.Context(), a.opts.Stats, a.opts.Logger, domain.StatsEvent{
			Category: gate.Category(),
			Outcome:  domain.OutcomeCSRFRejected,
			Method:   r.Method,
			Path:     r.URL.Path,
			At:       time.Now(),
		})
		csrf.Reject(w)
		a.notify(r, domain.OutcomeCSRFRejected)
		return
	}

	// RateCheck
	if _, ok := gate.Admit(w, r); !ok {
		a.notify(r, domain.OutcomeRateLimited)
		return
	}

	// Forward
	next.ServeHTTP(w, r)
	a.notify(r, domain.OutcomeAllowed)
}

func (a *Admission) notify(r *http.Request, o domain.Outcome) {
	if a.opts.OnOutcome != nil {
		a.opts.OnOutcome(r, o)
	}
}

// ensureRequestID reaproveita o X-Request-Id do cliente/proxy ou gera um.
// O header fica na request para o handler protegido (e o upstream) verem.
func ensureRequestID(r *http.Request) string {
	if id := r.Header.Get(ratelimit.RequestIDHeader); id != "" && len(id) <= 128 {
		return id
	}
	id := uuid.NewString()
	r.Header.Set(ratelimit.RequestIDHeader, id)
	return id
}
