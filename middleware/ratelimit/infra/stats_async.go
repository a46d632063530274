package infra

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"admission-guard/middleware/ratelimit/domain"
)

var (
	// ErrStatsDropped indica buffer cheio: o evento foi descartado.
	ErrStatsDropped = errors.New("stats buffer full, event dropped")
	// ErrStatsClosed indica Record depois de Close.
	ErrStatsClosed = errors.New("stats store closed")
)

const (
	DefaultStatsBuffer  = 1024
	defaultStatsTimeout = time.Second
)

// AsyncStatsStore tira a escrita de estatísticas do caminho da request: Record
// só enfileira num canal com buffer e uma goroutine repassa para o store de
// destino. Com o buffer cheio o evento é descartado, nunca espera.
type AsyncStatsStore struct {
	next    domain.StatsStore
	events  chan domain.StatsEvent
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}

	dropped atomic.Uint64
	failed  atomic.Uint64
}

type AsyncStatsOption func(*AsyncStatsStore)

// WithAsyncTimeout limita cada escrita no store de destino.
func WithAsyncTimeout(d time.Duration) AsyncStatsOption {
	return func(s *AsyncStatsStore) { s.timeout = d }
}

func WithAsyncLogger(l *slog.Logger) AsyncStatsOption {
	return func(s *AsyncStatsStore) { s.logger = l }
}

// NewAsyncStatsStore inicia a goroutine de escrita. buffer <= 0 usa
// DefaultStatsBuffer. Chame Close para drenar e parar.
func NewAsyncStatsStore(next domain.StatsStore, buffer int, opts ...AsyncStatsOption) *AsyncStatsStore {
	if buffer <= 0 {
		buffer = DefaultStatsBuffer
	}
	s := &AsyncStatsStore{
		next:    next,
		events:  make(chan domain.StatsEvent, buffer),
		timeout: defaultStatsTimeout,
		logger:  slog.Default(),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.run()
	return s
}

func (s *AsyncStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStatsClosed
	}
	select {
	case s.events <- ev:
		return nil
	default:
		s.dropped.Add(1)
		return ErrStatsDropped
	}
}

func (s *AsyncStatsStore) run() {
	defer close(s.done)
	for ev := range s.events {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		err := s.next.Record(ctx, ev)
		cancel()
		if err != nil {
			s.failed.Add(1)
			s.logger.Debug("async stats record failed", "error", err, "outcome", string(ev.Outcome))
		}
	}
}

// Close para de aceitar eventos e espera o que já está no buffer ser escrito,
// até ctx expirar.
func (s *AsyncStatsStore) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dropped conta eventos descartados por buffer cheio.
func (s *AsyncStatsStore) Dropped() uint64 { return s.dropped.Load() }

// Failed conta escritas que falharam no store de destino.
func (s *AsyncStatsStore) Failed() uint64 { return s.failed.Load() }
