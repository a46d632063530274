package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"admission-guard/internal/config"
	"admission-guard/internal/guard"
	"admission-guard/internal/logging"
	"admission-guard/internal/respond"
	"admission-guard/middleware/ratelimit/domain"
)

func main() {
	// Exemplo: o guard montado direto no seu webserver (sem proxy)
	cfg, err := config.Load(".env")
	if err != nil {
		logging.New("example-server", "info").Error("config error", "error", err)
		os.Exit(1)
	}
	logger := logging.New("example-server", cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g, err := guard.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("admission guard setup failed", "error", err)
		os.Exit(1)
	}
	defer func() { _ = g.Close() }()

	ok := func(msg string) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			respond.JSON(w, http.StatusOK, map[string]string{"message": msg})
		})
	}

	mux := http.NewServeMux()
	// início de sessão: a página de login já entrega o cookie CSRF
	mux.HandleFunc("GET /login", func(w http.ResponseWriter, r *http.Request) {
		token, err := g.CSRF.Attach(w)
		if err != nil {
			logger.Error("csrf token generation failed", "error", err)
			respond.Error(w, http.StatusInternalServerError, "internal error")
			return
		}
		respond.JSON(w, http.StatusOK, map[string]string{"csrfToken": token})
	})
	mux.Handle("/api/csrf", g.CSRF.IssueHandler())
	mux.Handle("POST /api/auth/login", g.Admission.MustMiddleware(domain.CategoryLogin)(ok("logged in")))
	mux.Handle("POST /api/auth/signup", g.Admission.MustMiddleware(domain.CategorySignup)(ok("account created")))
	mux.Handle("POST /api/auth/password-reset", g.Admission.MustMiddleware(domain.CategoryPasswordReset)(ok("reset email sent")))
	mux.HandleFunc("GET /debug/admission", func(w http.ResponseWriter, r *http.Request) {
		snap, err := g.Snapshot(r.Context())
		if err != nil {
			logger.Warn("admission snapshot failed", "error", err)
			respond.Error(w, http.StatusServiceUnavailable, "stats unavailable")
			return
		}
		respond.JSON(w, http.StatusOK, snap)
	})

	addr := cfg.ListenAddr

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("example server listening", "addr", addr, "production", cfg.Production)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
