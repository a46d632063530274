// upstream-demo é um backend de mentira para validar o gateway na mão:
// responde os endpoints de auth e loga o X-Request-Id que o guard propagou.
package main

import (
	"errors"
	"net/http"
	"os"

	"admission-guard/internal/logging"
	"admission-guard/internal/respond"
	"admission-guard/middleware/ratelimit"
)

func main() {
	logger := logging.New("upstream-demo", os.Getenv("LOG_LEVEL"))

	addr := ":8081"
	if v := os.Getenv("UPSTREAM_LISTEN_ADDR"); v != "" {
		addr = v
	}

	mux := http.NewServeMux()
	for _, path := range []string{"/api/auth/login", "/api/auth/signup", "/api/auth/password-reset"} {
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			logger.Info("upstream hit",
				"method", r.Method,
				"path", r.URL.Path,
				"request_id", r.Header.Get(ratelimit.RequestIDHeader),
			)
			respond.JSON(w, http.StatusOK, map[string]string{"path": r.URL.Path})
		})
	}

	logger.Info("upstream demo listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
