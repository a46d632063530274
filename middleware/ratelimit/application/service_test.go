package application

import (
	"errors"
	"testing"
	"time"

	"admission-guard/middleware/ratelimit/domain"
)

type fakeLimiter struct {
	policy Policy
	calls  int
}

func (f *fakeLimiter) Check(domain.Key) domain.Decision {
	f.calls++
	return domain.Decision{
		Allowed:   f.calls <= f.policy.MaxRequests,
		Limit:     f.policy.MaxRequests,
		Remaining: max(f.policy.MaxRequests-f.calls, 0),
	}
}

func fakeFactory(built map[domain.Category]*fakeLimiter) LimiterFactory {
	return func(p Policy) (domain.Limiter, error) {
		l := &fakeLimiter{policy: p}
		if built != nil {
			built[p.Category] = l
		}
		return l, nil
	}
}

func TestService_BuildsOneLimiterPerCategory(t *testing.T) {
	built := map[domain.Category]*fakeLimiter{}
	svc, err := NewService(DefaultPolicies(), fakeFactory(built))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if len(built) != 3 {
		t.Fatalf("expected 3 limiters, got %d", len(built))
	}
	if len(svc.Categories()) != 3 {
		t.Fatalf("expected 3 categories, got %d", len(svc.Categories()))
	}

	login, err := svc.Limiter(domain.CategoryLogin)
	if err != nil {
		t.Fatalf("Limiter: %v", err)
	}
	if login != built[domain.CategoryLogin] {
		t.Fatalf("expected handle to be the built login limiter")
	}
}

func mustLimiter(t *testing.T, svc *Service, cat domain.Category) domain.Limiter {
	t.Helper()
	lim, err := svc.Limiter(cat)
	if err != nil {
		t.Fatalf("Limiter(%s): %v", cat, err)
	}
	return lim
}

func TestService_LimitersDoNotShareStateAcrossCategories(t *testing.T) {
	svc, err := NewService(DefaultPolicies(), fakeFactory(nil))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	signup := mustLimiter(t, svc, domain.CategorySignup)
	login := mustLimiter(t, svc, domain.CategoryLogin)

	for i := 0; i < 3; i++ {
		if dec := signup.Check("k"); !dec.Allowed {
			t.Fatalf("expected signup request %d allowed", i+1)
		}
	}
	if dec := signup.Check("k"); dec.Allowed {
		t.Fatalf("expected 4th signup denied")
	}
	if dec := login.Check("k"); !dec.Allowed {
		t.Fatalf("expected login unaffected by signup usage")
	}
}

func TestService_UnknownCategory(t *testing.T) {
	svc, err := NewService(nil, fakeFactory(nil))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if _, err := svc.Limiter("nope"); !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory, got %v", err)
	}
}

func TestService_RejectsInvalidPolicies(t *testing.T) {
	cases := map[string][]Policy{
		"empty category": {{Window: time.Minute, MaxRequests: 1}},
		"zero window":    {{Category: "a", MaxRequests: 1}},
		"zero max":       {{Category: "a", Window: time.Minute}},
		"negative cap":   {{Category: "a", Window: time.Minute, MaxRequests: 1, Capacity: -1}},
		"duplicate": {
			{Category: "a", Window: time.Minute, MaxRequests: 1},
			{Category: "a", Window: time.Hour, MaxRequests: 2},
		},
	}
	for name, policies := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewService(policies, fakeFactory(nil))
			if !errors.Is(err, domain.ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestService_PropagatesFactoryError(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewService(DefaultPolicies(), func(Policy) (domain.Limiter, error) { return nil, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected factory error, got %v", err)
	}
}
