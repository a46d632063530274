package csrf

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"admission-guard/internal/respond"
)

const (
	DefaultCookieName = "csrf-token"
	DefaultHeaderName = "x-csrf-token"
	DefaultMaxAge     = 24 * time.Hour

	invalidTokenMessage = "Invalid CSRF token"
)

// ErrInvalidToken cobre header ausente, cookie ausente/expirado e divergência,
// sem distinguir a causa.
var ErrInvalidToken = errors.New("invalid csrf token")

type Options struct {
	// Production liga o atributo Secure do cookie.
	Production bool
	CookieName string
	HeaderName string
	CookiePath string
	MaxAge     time.Duration
	// SameSite padrão: http.SameSiteStrictMode.
	SameSite http.SameSite
	Logger   *slog.Logger
}

type Guard struct {
	opts Options
}

func New(opts Options) (*Guard, error) {
	if opts.CookieName == "" {
		opts.CookieName = DefaultCookieName
	}
	if opts.HeaderName == "" {
		opts.HeaderName = DefaultHeaderName
	}
	if opts.CookiePath == "" {
		opts.CookiePath = "/"
	}
	if opts.MaxAge == 0 {
		opts.MaxAge = DefaultMaxAge
	}
	if opts.MaxAge < time.Second {
		return nil, fmt.Errorf("csrf: max age must be >= 1s, got %s", opts.MaxAge)
	}
	if opts.SameSite == 0 {
		opts.SameSite = http.SameSiteStrictMode
	}
	if opts.SameSite == http.SameSiteNoneMode && !opts.Production {
		return nil, errors.New("csrf: SameSite=None requires production (Secure) cookies")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Guard{opts: opts}, nil
}

func (g *Guard) HeaderName() string { return g.opts.HeaderName }
func (g *Guard) CookieName() string { return g.opts.CookieName }

// Attach gera um token novo e o coloca no cookie e no header da resposta.
// Precisa ser chamado antes de w.WriteHeader.
func (g *Guard) Attach(w http.ResponseWriter) (string, error) {
	token, err := GenerateToken()
	if err != nil {
		return "", fmt.Errorf("csrf: generate token: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     g.opts.CookieName,
		Value:    token,
		Path:     g.opts.CookiePath,
		MaxAge:   int(g.opts.MaxAge / time.Second),
		HttpOnly: true,
		Secure:   g.opts.Production,
		SameSite: g.opts.SameSite,
	})
	w.Header().Set(g.opts.HeaderName, token)
	return token, nil
}

// Validate devolve true para métodos seguros. Nos demais exige header e cookie
// presentes, não vazios e iguais.
func (g *Guard) Validate(r *http.Request) bool {
	if IsSafeMethod(r.Method) {
		return true
	}

	header := r.Header.Get(g.opts.HeaderName)
	cookie, err := r.Cookie(g.opts.CookieName)
	if err != nil {
		return false
	}
	return tokensEqual(header, cookie.Value)
}

// Protect só chama next quando Validate passa; caso contrário responde 403.
func (g *Guard) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.Validate(r) {
			g.opts.Logger.Debug("csrf validation failed", "method", r.Method, "path", r.URL.Path, "error", ErrInvalidToken)
			Reject(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Reject escreve a negação padrão: 403 {"error":"Invalid CSRF token"}.
func Reject(w http.ResponseWriter) {
	respond.Error(w, http.StatusForbidden, invalidTokenMessage)
}

type issueBody struct {
	CSRFToken string `json:"csrfToken"`
}

// IssueHandler é o endpoint explícito de refresh: emite um token novo e
// também o devolve no corpo para clientes que não leem headers.
func (g *Guard) IssueHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			respond.Error(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
			return
		}
		token, err := g.Attach(w)
		if err != nil {
			g.opts.Logger.Error("csrf token issue failed", "error", err)
			respond.Error(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
			return
		}
		respond.JSON(w, http.StatusOK, issueBody{CSRFToken: token})
	})
}

// IsSafeMethod segue a RFC 9110: métodos seguros não mudam estado.
func IsSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}
