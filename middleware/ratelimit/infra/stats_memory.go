package infra

import (
	"context"
	"sync"

	"admission-guard/middleware/ratelimit/domain"
)

type Counters struct {
	Allowed      int64
	RateLimited  int64
	CSRFRejected int64
}

func (c *Counters) add(o domain.Outcome) { c.addN(o, 1) }

func (c *Counters) addN(o domain.Outcome, n int64) {
	switch o {
	case domain.OutcomeAllowed:
		c.Allowed += n
	case domain.OutcomeRateLimited:
		c.RateLimited += n
	case domain.OutcomeCSRFRejected:
		c.CSRFRejected += n
	}
}

// MemoryStatsStore é uma implementação simples em memória.
// Útil para testes e desenvolvimento.
//
// Não faz expiração e não é indicada para produção.
type MemoryStatsStore struct {
	mu         sync.Mutex
	total      Counters
	byCategory map[domain.Category]Counters
	byKey      map[domain.Key]Counters

	trackKeys bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackKeys(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackKeys = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byCategory: make(map[domain.Category]Counters),
		byKey:      make(map[domain.Key]Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.add(ev.Outcome)

	c := s.byCategory[ev.Category]
	c.add(ev.Outcome)
	s.byCategory[ev.Category] = c

	if s.trackKeys && ev.Key != "" {
		k := s.byKey[ev.Key]
		k.add(ev.Outcome)
		s.byKey[ev.Key] = k
	}
	return nil
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *MemoryStatsStore) ByCategory() map[domain.Category]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.Category]Counters, len(s.byCategory))
	for k, v := range s.byCategory {
		out[k] = v
	}
	return out
}

func (s *MemoryStatsStore) ByKey() map[domain.Key]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.Key]Counters, len(s.byKey))
	for k, v := range s.byKey {
		out[k] = v
	}
	return out
}
