package application

import (
	"errors"
	"fmt"
	"time"

	"admission-guard/middleware/ratelimit/domain"
)

var ErrUnknownCategory = errors.New("unknown rate limit category")

// Policy descreve a cota de uma categoria de endpoint.
type Policy struct {
	Category    domain.Category
	Window      time.Duration
	MaxRequests int
	// Capacity limita quantas identidades são rastreadas (0 = padrão da infra).
	Capacity int
	// UnknownMax é a cota do bucket compartilhado domain.UnknownKey.
	// 0 mantém MaxRequests.
	UnknownMax int
}

func (p Policy) Validate() error {
	if p.Category == "" {
		return fmt.Errorf("%w: empty category", domain.ErrInvalidConfig)
	}
	if p.Window <= 0 {
		return fmt.Errorf("%w: %s window must be > 0", domain.ErrInvalidConfig, p.Category)
	}
	if p.MaxRequests <= 0 {
		return fmt.Errorf("%w: %s max requests must be > 0", domain.ErrInvalidConfig, p.Category)
	}
	if p.Capacity < 0 || p.UnknownMax < 0 {
		return fmt.Errorf("%w: %s capacity and unknown max must be >= 0", domain.ErrInvalidConfig, p.Category)
	}
	return nil
}

// DefaultPolicies são as cotas usadas quando nada é configurado.
func DefaultPolicies() []Policy {
	return []Policy{
		{Category: domain.CategoryLogin, Window: 15 * time.Minute, MaxRequests: 5},
		{Category: domain.CategorySignup, Window: time.Hour, MaxRequests: 3},
		{Category: domain.CategoryPasswordReset, Window: time.Hour, MaxRequests: 3},
	}
}

// LimiterFactory constrói o limiter concreto de uma política.
// Mantém este pacote sem depender da infra.
type LimiterFactory func(Policy) (domain.Limiter, error)
