// Package csrf implementa o double-submit de token CSRF em net/http.
//
// O servidor emite um token aleatório em dois lugares: o cookie HttpOnly
// "csrf-token" e o header de resposta "x-csrf-token". O cliente lê o header e
// o devolve em "x-csrf-token" na próxima request que muda estado. A validação
// é puramente estrutural: header e cookie precisam existir e ser iguais
// (comparação em tempo constante). Não há store de tokens no servidor.
//
// Métodos seguros (GET, HEAD, OPTIONS, TRACE) não são validados.
package csrf
