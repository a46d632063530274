package main

import (
	"net/http"
	"path"
	"strings"

	"admission-guard/middleware/admission"
	"admission-guard/middleware/ratelimit/domain"
)

// authRoutes liga cada endpoint sensível do upstream à sua categoria.
// As chaves estão na forma normalizada de routeKey.
var authRoutes = map[string]domain.Category{
	"/api/auth/login":          domain.CategoryLogin,
	"/api/auth/signup":         domain.CategorySignup,
	"/api/auth/password-reset": domain.CategoryPasswordReset,
}

// routeKey normaliza o path antes de escolher a categoria: o upstream pode
// tratar "/API/auth/login/" ou "/api//auth/./login" como o login, então o
// guard precisa reconhecer as mesmas variações.
func routeKey(p string) string {
	if p == "" {
		return "/"
	}
	return strings.ToLower(path.Clean("/" + p))
}

// newHandler monta o roteamento do gateway. Requests cujo path normalizado é
// uma rota de auth passam pelo admission da categoria antes do proxy; o resto
// vai direto para o upstream.
func newHandler(adm *admission.Admission, issue, upstream http.Handler) http.Handler {
	guarded := make(map[domain.Category]http.Handler, len(authRoutes))
	for _, cat := range authRoutes {
		if _, ok := guarded[cat]; !ok {
			guarded[cat] = adm.MustMiddleware(cat)(upstream)
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/api/csrf", issue)
	mux.Handle("/", upstream)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cat, ok := authRoutes[routeKey(r.URL.Path)]; ok {
			guarded[cat].ServeHTTP(w, r)
			return
		}
		mux.ServeHTTP(w, r)
	})
}
