package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import "time"

// Key identifica o "dono" de uma cota (IP resolvido, usuário autenticado, etc).
type Key string

// UnknownKey é o bucket compartilhado por todos os chamadores sem identidade.
//
// Atenção: um único cliente sem headers de proxy consegue esgotar a cota de
// todos os outros clientes sem headers. Veja WithSharedKeyQuota no pacote infra.
const UnknownKey Key = "unknown"

// Category nomeia uma classe de endpoint com política própria (login, signup...).
// Categorias nunca compartilham estado entre si.
type Category string

const (
	CategoryLogin         Category = "login"
	CategorySignup        Category = "signup"
	CategoryPasswordReset Category = "password-reset"
)

// Limiter decide, de forma atômica, se mais uma requisição da chave cabe na janela.
//
// Check sempre conta a tentativa quando ela é permitida; tentativas negadas não
// incrementam o contador.
type Limiter interface {
	Check(Key) Decision
}

// Decision é o resultado de um Check.
type Decision struct {
	Allowed bool
	// Limit é o teto configurado para a chave (maxRequests).
	Limit int
	// Remaining é quantas requisições ainda cabem na janela atual.
	Remaining int
	// ResetAt é quando a janela atual da chave termina.
	ResetAt time.Time
	// RetryAfter só é preenchido quando Allowed=false.
	RetryAfter time.Duration
}
