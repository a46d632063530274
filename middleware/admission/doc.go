// Package admission compõe CSRF e rate limit na frente dos endpoints sensíveis
// (login, signup, reset de senha).
//
// Máquina de estados por request:
//
//		Start -> (método inseguro) CSRFCheck -> RateCheck -> Forward
//
//	  - CSRFCheck falhou: 403, estado terminal domain.OutcomeCSRFRejected
//	  - RateCheck negou:  429 + Retry-After/X-RateLimit-*, domain.OutcomeRateLimited
//	  - Forward:          handler protegido roda, domain.OutcomeAllowed
//
// Nenhum estado sobrevive entre requests além do que o limiter e o guard CSRF
// mantêm. Uma negação sempre acontece antes do handler protegido rodar.
package admission
