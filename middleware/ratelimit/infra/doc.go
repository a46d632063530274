// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - WindowStore: janela fixa por chave, mapa limitado com despejo LRU
//   - MemoryStatsStore / RedisStatsStore: contadores de decisões do guard
package infra
