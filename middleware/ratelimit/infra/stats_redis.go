package infra

import (
	"context"
	"strconv"
	"strings"
	"time"

	"admission-guard/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

// Layout dos hashes (campo = outcome, exceto em :category):
//
//	<prefix>:total                  cumulativo, sem expiração
//	<prefix>:minute:<yyyymmddhhmm>  série por minuto, expira com ttl
//	<prefix>:category               "<categoria>:<outcome>"
//	<prefix>:key:<key>              só com trackKeys, expira com ttl
const (
	BucketMinute = "minute"
	BucketNone   = "none"

	minuteLayout = "200601021504"
)

// RedisStatsStore agrega as decisões do guard no Redis para consulta entre
// instâncias. O estado das janelas continua em memória em cada processo.
type RedisStatsStore struct {
	rdb       redis.UniversalClient
	prefix    string
	ttl       time.Duration
	perMinute bool
	trackKeys bool
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.prefix = strings.Trim(prefix, ":") }
}

// WithStatsTTL vale para a série por minuto e para os hashes por key.
func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

// WithStatsBucket aceita BucketMinute ou BucketNone.
func WithStatsBucket(bucket string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		s.perMinute = strings.EqualFold(strings.TrimSpace(bucket), BucketMinute)
	}
}

func WithStatsTrackKeys(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackKeys = track }
}

func NewRedisStatsStore(rdb redis.UniversalClient, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{rdb: rdb, prefix: "admission:stats", ttl: 24 * time.Hour, perMinute: true}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// increment é um HINCRBY planejado; expires marca hashes com ttl.
type increment struct {
	hash    string
	field   string
	expires bool
}

func (s *RedisStatsStore) plan(ev domain.StatsEvent) []increment {
	outcome := string(ev.Outcome)
	incs := []increment{{hash: s.hash("total"), field: outcome}}

	if s.perMinute {
		at := ev.At
		if at.IsZero() {
			at = time.Now()
		}
		incs = append(incs, increment{hash: s.hash("minute", at.UTC().Format(minuteLayout)), field: outcome, expires: true})
	}
	if cat := strings.TrimSpace(string(ev.Category)); cat != "" {
		incs = append(incs, increment{hash: s.hash("category"), field: cat + ":" + outcome})
	}
	if key := strings.TrimSpace(string(ev.Key)); s.trackKeys && key != "" {
		incs = append(incs, increment{hash: s.hash("key", key), field: outcome, expires: true})
	}
	return incs
}

func (s *RedisStatsStore) hash(parts ...string) string {
	return s.prefix + ":" + strings.Join(parts, ":")
}

func (s *RedisStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	if s == nil || s.rdb == nil || ev.Outcome == "" {
		return nil
	}
	incs := s.plan(ev)

	_, err := s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for _, inc := range incs {
			p.HIncrBy(ctx, inc.hash, inc.field, 1)
			if inc.expires && s.ttl > 0 {
				p.Expire(ctx, inc.hash, s.ttl)
			}
		}
		return nil
	})
	return err
}

// Totals lê os contadores cumulativos, somando todas as instâncias.
func (s *RedisStatsStore) Totals(ctx context.Context) (Counters, error) {
	fields, err := s.rdb.HGetAll(ctx, s.hash("total")).Result()
	if err != nil {
		return Counters{}, err
	}
	var c Counters
	for outcome, raw := range fields {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		c.addN(domain.Outcome(outcome), n)
	}
	return c, nil
}
