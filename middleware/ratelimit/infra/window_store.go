package infra

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"admission-guard/middleware/ratelimit/domain"
)

// DefaultCapacity é o número padrão de identidades rastreadas por store.
const DefaultCapacity = 500

// WindowStore é um rate limiter de janela fixa por chave, com mapa limitado
// por capacidade e despejo LRU.
//
// Todo Check roda inteiro sob um único mutex: duas requisições concorrentes da
// mesma chave nunca observam o mesmo contador, então não há ultrapassagem do teto.
type WindowStore struct {
	mu      sync.Mutex
	entries map[domain.Key]*list.Element
	lru     *list.List // frente = mais recente

	window      time.Duration
	maxRequests int
	capacity    int

	sharedKey domain.Key
	sharedMax int

	now          func() time.Time
	janitorEvery time.Duration
	evictions    uint64
}

type windowEntry struct {
	key         domain.Key
	count       int
	windowStart time.Time
}

type WindowOption func(*WindowStore)

// WithClock troca a fonte de tempo (usado em testes).
func WithClock(now func() time.Time) WindowOption {
	return func(s *WindowStore) { s.now = now }
}

// WithJanitorEvery define o intervalo da varredura periódica. 0 desliga.
func WithJanitorEvery(d time.Duration) WindowOption {
	return func(s *WindowStore) { s.janitorEvery = d }
}

// WithSharedKeyQuota dá uma cota própria para uma chave específica,
// tipicamente domain.UnknownKey, que agrupa todos os chamadores sem identidade.
func WithSharedKeyQuota(key domain.Key, max int) WindowOption {
	return func(s *WindowStore) {
		s.sharedKey = key
		s.sharedMax = max
	}
}

// NewWindowStore cria um limiter com `maxRequests` por `window` e no máximo
// `capacity` chaves rastreadas (0 usa DefaultCapacity).
func NewWindowStore(window time.Duration, maxRequests, capacity int, opts ...WindowOption) (*WindowStore, error) {
	if window <= 0 {
		return nil, fmt.Errorf("%w: window must be > 0, got %s", domain.ErrInvalidConfig, window)
	}
	if maxRequests <= 0 {
		return nil, fmt.Errorf("%w: max requests must be > 0, got %d", domain.ErrInvalidConfig, maxRequests)
	}
	if capacity < 0 {
		return nil, fmt.Errorf("%w: capacity must be >= 0, got %d", domain.ErrInvalidConfig, capacity)
	}
	if capacity == 0 {
		capacity = DefaultCapacity
	}

	s := &WindowStore{
		entries:      make(map[domain.Key]*list.Element),
		lru:          list.New(),
		window:       window,
		maxRequests:  maxRequests,
		capacity:     capacity,
		now:          time.Now,
		janitorEvery: window,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sharedKey != "" && s.sharedMax <= 0 {
		return nil, fmt.Errorf("%w: quota for %q must be > 0, got %d", domain.ErrInvalidConfig, s.sharedKey, s.sharedMax)
	}
	return s, nil
}

func (s *WindowStore) Window() time.Duration { return s.window }
func (s *WindowStore) MaxRequests() int      { return s.maxRequests }
func (s *WindowStore) Capacity() int         { return s.capacity }

// Check implementa domain.Limiter.
func (s *WindowStore) Check(key domain.Key) domain.Decision {
	now := s.now()
	limit := s.limitFor(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.entries[key]
	if !ok {
		ent := &windowEntry{key: key, count: 1, windowStart: now}
		s.insert(ent)
		return s.allowed(ent, limit)
	}

	s.lru.MoveToFront(el)
	ent := el.Value.(*windowEntry)

	elapsed := now.Sub(ent.windowStart)
	if elapsed >= s.window || elapsed < 0 {
		ent.count = 1
		ent.windowStart = now
		return s.allowed(ent, limit)
	}

	if ent.count < limit {
		ent.count++
		return s.allowed(ent, limit)
	}

	return domain.Decision{
		Allowed:    false,
		Limit:      limit,
		Remaining:  0,
		ResetAt:    ent.windowStart.Add(s.window),
		RetryAfter: s.window - elapsed,
	}
}

func (s *WindowStore) allowed(ent *windowEntry, limit int) domain.Decision {
	return domain.Decision{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - ent.count,
		ResetAt:   ent.windowStart.Add(s.window),
	}
}

func (s *WindowStore) limitFor(key domain.Key) int {
	if s.sharedKey != "" && key == s.sharedKey {
		return s.sharedMax
	}
	return s.maxRequests
}

// insert assume s.mu travado.
func (s *WindowStore) insert(ent *windowEntry) {
	for s.lru.Len() >= s.capacity {
		oldest := s.lru.Back()
		if oldest == nil {
			break
		}
		s.remove(oldest)
		s.evictions++
	}
	s.entries[ent.key] = s.lru.PushFront(ent)
}

func (s *WindowStore) remove(el *list.Element) {
	s.lru.Remove(el)
	delete(s.entries, el.Value.(*windowEntry).key)
}

// Sweep remove todas as chaves cuja janela já expirou.
// Não muda o comportamento observável de Check, só libera memória antes.
func (s *WindowStore) Sweep() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for el := s.lru.Back(); el != nil; {
		prev := el.Prev()
		if now.Sub(el.Value.(*windowEntry).windowStart) >= s.window {
			s.remove(el)
			removed++
		}
		el = prev
	}
	return removed
}

// Len retorna quantas chaves estão rastreadas.
func (s *WindowStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Len()
}

// Evictions retorna quantas chaves foram despejadas por capacidade.
func (s *WindowStore) Evictions() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evictions
}

// StartJanitor inicia uma goroutine que chama Sweep periodicamente.
// Pare cancelando o contexto.
func (s *WindowStore) StartJanitor(ctx context.Context) {
	if s.janitorEvery <= 0 {
		return
	}

	t := time.NewTicker(s.janitorEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Sweep()
			}
		}
	}()
}
