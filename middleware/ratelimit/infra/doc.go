// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - FileLimiter: janela deslizante persistida em um arquivo por chave (afero + locks)
//   - FlockLocker / MemLocker: lock exclusivo por chave (gofrs/flock ou mutex em memória)
//   - ChanPool: semáforo simples para limitar arquivos abertos ao mesmo tempo
//   - MemoryStatsStore / RedisStatsStore: estatísticas das decisões
package infra
