package domain

import (
	"context"
	"time"
)

// Outcome é o estado terminal de uma requisição que passou pelo guard.
type Outcome string

const (
	OutcomeAllowed      Outcome = "allowed"
	OutcomeRateLimited  Outcome = "rate_limited"
	OutcomeCSRFRejected Outcome = "csrf_rejected"
)

// StatsEvent representa um evento de decisão do guard.
//
// Ele é propositalmente "agnóstico de HTTP": Method/Path são strings genéricas.
//
// Observação: cuidado com cardinalidade (ex.: salvar Key/Path sem controle pode
// explodir o número de chaves em uma base como Redis).
type StatsEvent struct {
	Key      Key
	Category Category
	Outcome  Outcome

	Method string
	Path   string

	At time.Time
}

// StatsStore é a estratégia de persistência para estatísticas do guard.
//
// O middleware trata erro como best-effort (não derruba a request).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
