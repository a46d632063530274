// Package guard monta o admission guard a partir da configuração: limiters por
// categoria, guard CSRF, identidade por JWT e estatísticas (memória ou Redis).
package guard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"admission-guard/internal/config"
	"admission-guard/middleware/admission"
	"admission-guard/middleware/csrf"
	"admission-guard/middleware/ratelimit"
	"admission-guard/middleware/ratelimit/application"
	"admission-guard/middleware/ratelimit/domain"
	"admission-guard/middleware/ratelimit/infra"

	"github.com/redis/go-redis/v9"
)

const closeTimeout = 5 * time.Second

type Guard struct {
	Admission *admission.Admission
	CSRF      *csrf.Guard
	Limiters  *application.Service
	Stores    map[domain.Category]*infra.WindowStore
	// MemoryStats só é preenchido quando o Redis não está habilitado.
	MemoryStats *infra.MemoryStatsStore
	RedisStats  *infra.RedisStatsStore

	async   *infra.AsyncStatsStore
	closers []func() error
}

// Build constrói tudo e inicia os janitors, que param quando ctx for cancelado.
// Chame Close na saída para liberar a conexão do Redis.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Guard, error) {
	g := &Guard{Stores: make(map[domain.Category]*infra.WindowStore)}

	factory := ratelimit.WindowStoreFactory(infra.WithJanitorEvery(cfg.Rate.JanitorEvery))
	limiters, err := application.NewService(cfg.Rate.Policies, func(p application.Policy) (domain.Limiter, error) {
		lim, err := factory(p)
		if err != nil {
			return nil, err
		}
		if s, ok := lim.(*infra.WindowStore); ok {
			g.Stores[p.Category] = s
		}
		return lim, nil
	})
	if err != nil {
		return nil, err
	}
	g.Limiters = limiters

	g.CSRF, err = csrf.New(csrf.Options{Production: cfg.Production, Logger: logger})
	if err != nil {
		return nil, err
	}

	var stats domain.StatsStore
	if cfg.Stats.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Stats.RedisAddr,
			Password: cfg.Stats.RedisPassword,
			DB:       cfg.Stats.RedisDB,
		})
		g.closers = append(g.closers, rdb.Close)

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			_ = g.Close()
			return nil, fmt.Errorf("redis stats ping: %w", err)
		}

		g.RedisStats = infra.NewRedisStatsStore(rdb,
			infra.WithStatsPrefix(cfg.Stats.Prefix),
			infra.WithStatsTTL(cfg.Stats.TTL),
			infra.WithStatsBucket(cfg.Stats.Bucket),
			infra.WithStatsTrackKeys(cfg.Stats.TrackKeys),
		)
		// a escrita no Redis sai do caminho da request
		g.async = infra.NewAsyncStatsStore(g.RedisStats, cfg.Stats.Buffer, infra.WithAsyncLogger(logger))
		g.closers = append(g.closers, func() error {
			ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
			defer cancel()
			return g.async.Close(ctx)
		})
		stats = g.async
	} else {
		g.MemoryStats = infra.NewMemoryStatsStore(infra.WithTrackKeys(cfg.Stats.TrackKeys))
		stats = g.MemoryStats
	}

	keyOpts := ratelimit.KeyOptions{RemoteAddrFallback: cfg.RemoteAddrFallback}
	if cfg.JWTSecret != "" {
		keyOpts.Identity = ratelimit.BearerSubject([]byte(cfg.JWTSecret))
	}

	g.Admission, err = admission.New(admission.Options{
		CSRF:                g.CSRF,
		Limiters:            limiters,
		KeyFn:               ratelimit.DefaultKeyFunc(keyOpts),
		Stats:               stats,
		AddRateLimitHeaders: cfg.AddRateLimitHeaders,
		Logger:              logger,
	})
	if err != nil {
		_ = g.Close()
		return nil, err
	}

	for _, s := range g.Stores {
		s.StartJanitor(ctx)
	}
	return g, nil
}

// Close drena o buffer de estatísticas e fecha o Redis, na ordem inversa da
// abertura.
func (g *Guard) Close() error {
	var first error
	for i := len(g.closers) - 1; i >= 0; i-- {
		if err := g.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	g.closers = nil
	return first
}

type StoreSnapshot struct {
	Window      string `json:"window"`
	MaxRequests int    `json:"maxRequests"`
	Capacity    int    `json:"capacity"`
	Tracked     int    `json:"tracked"`
	Evictions   uint64 `json:"evictions"`
}

type Snapshot struct {
	Stores  map[domain.Category]StoreSnapshot `json:"stores"`
	Totals  *infra.Counters                   `json:"totals,omitempty"`
	Dropped uint64                            `json:"statsDropped"`
}

// Snapshot junta o estado dos limiters com os contadores de decisão. Com
// Redis, os totais somam todas as instâncias.
func (g *Guard) Snapshot(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{Stores: make(map[domain.Category]StoreSnapshot, len(g.Stores))}
	for cat, s := range g.Stores {
		snap.Stores[cat] = StoreSnapshot{
			Window:      s.Window().String(),
			MaxRequests: s.MaxRequests(),
			Capacity:    s.Capacity(),
			Tracked:     s.Len(),
			Evictions:   s.Evictions(),
		}
	}

	switch {
	case g.MemoryStats != nil:
		t := g.MemoryStats.Total()
		snap.Totals = &t
	case g.RedisStats != nil:
		t, err := g.RedisStats.Totals(ctx)
		if err != nil {
			return snap, fmt.Errorf("redis totals: %w", err)
		}
		snap.Totals = &t
	}
	if g.async != nil {
		snap.Dropped = g.async.Dropped()
	}
	return snap, nil
}
