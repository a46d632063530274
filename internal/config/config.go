// Package config carrega a configuração dos binários a partir de um .env
// opcional e das variáveis de ambiente (que têm precedência).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"admission-guard/middleware/ratelimit/application"
	"admission-guard/middleware/ratelimit/domain"
	"admission-guard/middleware/ratelimit/infra"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	ListenAddr  string
	UpstreamURL string
	// Production liga cookies Secure. Vem de APP_ENV=production.
	Production bool
	LogLevel   string

	// RemoteAddrFallback usa r.RemoteAddr quando não há headers de proxy,
	// em vez do bucket compartilhado "unknown".
	RemoteAddrFallback  bool
	AddRateLimitHeaders bool
	// JWTSecret habilita identidade por "sub" de JWT HS256 no rate limit.
	JWTSecret string

	Rate  RateConfig
	Stats StatsConfig
}

type RateConfig struct {
	Capacity     int
	JanitorEvery time.Duration
	Policies     []application.Policy
}

type StatsConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Prefix        string
	TTL           time.Duration
	Bucket        string
	TrackKeys     bool
	// Buffer é o tamanho da fila de escrita assíncrona no Redis.
	Buffer int
}

// Load lê envFile (se existir) e depois o ambiente do processo.
func Load(envFile string) (Config, error) {
	k := koanf.New(".")

	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := k.Load(file.Provider(envFile), dotenv.Parser()); err != nil {
				return Config{}, fmt.Errorf("load %s: %w", envFile, err)
			}
		}
	}
	if err := k.Load(env.Provider("", ".", nil), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	return fromKoanf(k)
}

func fromKoanf(k *koanf.Koanf) (Config, error) {
	r := reader{k: k}

	cfg := Config{
		ListenAddr:          r.str("LISTEN_ADDR", ":8080"),
		UpstreamURL:         r.str("UPSTREAM_URL", ""),
		Production:          strings.EqualFold(r.str("APP_ENV", "development"), "production"),
		LogLevel:            r.str("LOG_LEVEL", "info"),
		RemoteAddrFallback:  r.boolean("RATE_REMOTE_ADDR_FALLBACK", false),
		AddRateLimitHeaders: r.boolean("ADD_RATELIMIT_HEADERS", true),
		JWTSecret:           r.str("JWT_SECRET", ""),
	}

	cfg.Rate.Capacity = r.integer("RATE_CAPACITY", infra.DefaultCapacity)
	cfg.Rate.JanitorEvery = r.duration("RATE_JANITOR_EVERY", time.Minute)
	for _, p := range application.DefaultPolicies() {
		prefix := "RATE_" + envName(p.Category) + "_"
		p.Window = r.duration(prefix+"WINDOW", p.Window)
		p.MaxRequests = r.integer(prefix+"MAX", p.MaxRequests)
		p.UnknownMax = r.integer(prefix+"UNKNOWN_MAX", 0)
		p.Capacity = cfg.Rate.Capacity
		cfg.Rate.Policies = append(cfg.Rate.Policies, p)
	}

	cfg.Stats = StatsConfig{
		Enabled:       r.boolean("STATS_ENABLED", false),
		RedisAddr:     r.str("STATS_REDIS_ADDR", ""),
		RedisPassword: r.str("STATS_REDIS_PASSWORD", ""),
		RedisDB:       r.integer("STATS_REDIS_DB", 0),
		Prefix:        r.str("STATS_PREFIX", "admission:stats"),
		TTL:           r.duration("STATS_TTL", 24*time.Hour),
		Bucket:        r.str("STATS_BUCKET", "minute"),
		TrackKeys:     r.boolean("STATS_TRACK_KEYS", false),
		Buffer:        r.integer("STATS_BUFFER", infra.DefaultStatsBuffer),
	}

	if err := errors.Join(r.errs...); err != nil {
		return Config{}, fmt.Errorf("%w: %w", domain.ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate falha na subida; nada aqui é checado por request.
func (c Config) Validate() error {
	var errs []error
	if c.Rate.Capacity <= 0 {
		errs = append(errs, errors.New("RATE_CAPACITY must be > 0"))
	}
	if c.Rate.JanitorEvery < 0 {
		errs = append(errs, errors.New("RATE_JANITOR_EVERY must be >= 0"))
	}
	for _, p := range c.Rate.Policies {
		if err := p.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Stats.Enabled && strings.TrimSpace(c.Stats.RedisAddr) == "" {
		errs = append(errs, errors.New("STATS_REDIS_ADDR is required when STATS_ENABLED=true"))
	}
	if c.Stats.Buffer < 0 {
		errs = append(errs, errors.New("STATS_BUFFER must be >= 0"))
	}
	if b := strings.ToLower(c.Stats.Bucket); b != "minute" && b != "none" {
		errs = append(errs, fmt.Errorf("STATS_BUCKET must be minute or none, got %q", c.Stats.Bucket))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", domain.ErrInvalidConfig, errors.Join(errs...))
}

func envName(c domain.Category) string {
	return strings.ToUpper(strings.ReplaceAll(string(c), "-", "_"))
}

// reader converte valores do koanf acumulando erros de parse em vez de cair
// silenciosamente no padrão.
type reader struct {
	k    *koanf.Koanf
	errs []error
}

func (r *reader) raw(key string) (string, bool) {
	if !r.k.Exists(key) {
		return "", false
	}
	v := strings.TrimSpace(r.k.String(key))
	return v, v != ""
}

func (r *reader) str(key, def string) string {
	if v, ok := r.raw(key); ok {
		return v
	}
	return def
}

func (r *reader) integer(key string, def int) int {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return def
	}
	return i
}

func (r *reader) boolean(key string, def bool) bool {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid bool %q", key, v))
		return def
	}
	return b
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return def
	}
	return d
}
