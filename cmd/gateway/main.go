package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"admission-guard/internal/config"
	"admission-guard/internal/guard"
	"admission-guard/internal/logging"
	"admission-guard/internal/respond"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		logging.New("gateway", "info").Error("config error", "error", err)
		os.Exit(1)
	}
	logger := logging.New("gateway", cfg.LogLevel)

	if cfg.UpstreamURL == "" {
		logger.Error("UPSTREAM_URL is required")
		os.Exit(1)
	}
	target, err := url.Parse(cfg.UpstreamURL)
	if err != nil {
		logger.Error("invalid UPSTREAM_URL", "error", err)
		os.Exit(1)
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Error("proxy error", "error", err, "path", r.URL.Path)
		respond.Error(w, http.StatusBadGateway, "bad gateway")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g, err := guard.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("admission guard setup failed", "error", err)
		os.Exit(1)
	}
	defer func() { _ = g.Close() }()

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           newHandler(g.Admission, g.CSRF.IssueHandler(), proxy),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("gateway listening",
		"addr", cfg.ListenAddr,
		"upstream", target.String(),
		"production", cfg.Production,
		"stats_redis", cfg.Stats.Enabled,
		"jwt_identity", cfg.JWTSecret != "",
	)
	for _, p := range cfg.Rate.Policies {
		logger.Info("rate policy",
			"category", string(p.Category),
			"window", p.Window,
			"max", p.MaxRequests,
			"capacity", p.Capacity,
			"unknown_max", p.UnknownMax,
		)
	}

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
