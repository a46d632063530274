package application

import (
	"fmt"

	"admission-guard/middleware/ratelimit/domain"
)

// Service concentra a regra de aplicação do rate limit: uma instância de
// limiter por categoria, construída uma vez na subida do processo.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
type Service struct {
	limiters map[domain.Category]domain.Limiter
}

// NewService valida as políticas e constrói um limiter por categoria.
// Categorias duplicadas são erro de configuração.
func NewService(policies []Policy, factory LimiterFactory) (*Service, error) {
	if factory == nil {
		return nil, fmt.Errorf("%w: nil limiter factory", domain.ErrInvalidConfig)
	}
	s := &Service{limiters: make(map[domain.Category]domain.Limiter, len(policies))}
	for _, p := range policies {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := s.limiters[p.Category]; dup {
			return nil, fmt.Errorf("%w: duplicate category %q", domain.ErrInvalidConfig, p.Category)
		}
		lim, err := factory(p)
		if err != nil {
			return nil, fmt.Errorf("build %s limiter: %w", p.Category, err)
		}
		s.limiters[p.Category] = lim
	}
	return s, nil
}

// Limiter devolve o handle da categoria para ser injetado num middleware.
func (s *Service) Limiter(cat domain.Category) (domain.Limiter, error) {
	lim, ok := s.limiters[cat]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, cat)
	}
	return lim, nil
}

// Categories lista as categorias registradas (ordem não definida).
func (s *Service) Categories() []domain.Category {
	out := make([]domain.Category, 0, len(s.limiters))
	for c := range s.limiters {
		out = append(out, c)
	}
	return out
}
