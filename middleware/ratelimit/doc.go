// Package ratelimit fornece o adapter HTTP (net/http) para o rate limit por janela deslizante.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (registrar hit, decidir allow/deny) sem net/http
//   - infra: implementações concretas (arquivo por chave, locks, stats), detalhes de infraestrutura
//   - ratelimit (este pacote): middleware HTTP + extração de chave + tradução para status/headers
//
// Fluxo no gateway:
//
//   1) Extrai a chave do cliente (header/XFF/IP)
//   2) Chama a camada application para registrar o hit e obter a decisão
//   3) Se bloqueado, responde 429 com Retry-After
//   4) Se permitido, chama o próximo handler (ex: reverse proxy)
//
// Variáveis de ambiente dos binários (cmd/gateway, cmd/example-server) controlam o
// comportamento, como RATE_DIR, RATE_MAX_REQUESTS, RATE_PERIOD e RATE_STRICT
// (ver internal/config).
package ratelimit
