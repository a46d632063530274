// Package ratelimit fornece o adapter HTTP (net/http) do rate limit por identidade.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: uma instância de limiter por categoria (login, signup...), sem net/http
//   - infra: janela fixa com mapa LRU limitado, estatísticas em memória/Redis
//   - ratelimit (este pacote): Gate/Middleware + resolução de chave + tradução para status/headers
//
// Fluxo:
//
//  1. Resolve a chave do cliente (identidade autenticada, XFF, X-Real-IP, CF-Connecting-IP ou "unknown")
//  2. Consulta o limiter da categoria
//  3. Se negado, responde 429 com Retry-After e X-RateLimit-*
//  4. Se permitido, chama o próximo handler
//
// Para compor com CSRF veja o pacote admission.
package ratelimit
