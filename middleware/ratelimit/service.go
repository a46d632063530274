package ratelimit

import (
	"admission-guard/middleware/ratelimit/application"
	"admission-guard/middleware/ratelimit/domain"
	"admission-guard/middleware/ratelimit/infra"
)

// NewService liga as políticas à infra em memória: um infra.WindowStore por
// categoria. opts valem para todos os stores (ex: infra.WithClock).
func NewService(policies []application.Policy, opts ...infra.WindowOption) (*application.Service, error) {
	return application.NewService(policies, WindowStoreFactory(opts...))
}

func WindowStoreFactory(opts ...infra.WindowOption) application.LimiterFactory {
	return func(p application.Policy) (domain.Limiter, error) {
		storeOpts := append([]infra.WindowOption(nil), opts...)
		if p.UnknownMax > 0 {
			storeOpts = append(storeOpts, infra.WithSharedKeyQuota(domain.UnknownKey, p.UnknownMax))
		}
		return infra.NewWindowStore(p.Window, p.MaxRequests, p.Capacity, storeOpts...)
	}
}
