package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import (
	"context"
	"time"
)

type Key string

// WindowLimiter conta eventos por chave dentro de uma janela deslizante.
//
// A implementação de referência (infra.FileLimiter) persiste um arquivo por chave,
// mas o contrato não assume nada sobre o armazenamento.
type WindowLimiter interface {
	// Record registra um evento "agora" para a chave.
	Record(ctx context.Context, key string) error
	// Query retorna quantos eventos da chave ainda estão dentro da janela.
	// Se a contagem não puder ser determinada, retorna um erro que satisfaz
	// errors.Is(err, ErrUnknownCount); nunca converte silenciosamente para 0.
	Query(ctx context.Context, key string) (int, error)
	// IsAllowed decide se a chave ainda está dentro do limite.
	// Com strict=true uma contagem desconhecida nega (fail-closed), senão permite.
	// Nesse caso o bool é a decisão e o erro (ErrUnknownCount) é só informativo.
	IsAllowed(ctx context.Context, key string, strict bool) (bool, error)
	// Evaluate é IsAllowed devolvendo também a contagem lida nesta chamada.
	// count só é válido quando err é nil.
	Evaluate(ctx context.Context, key string, strict bool) (allowed bool, count int, err error)
	// LastCount é a contagem da última Query de qualquer chave (apenas observabilidade).
	// Não use para montar a resposta de uma requisição: outra chave pode tê-la sobrescrito.
	LastCount() int
	Limit() int
	Period() time.Duration
}

type Decision struct {
	Allowed bool
	// Unknown indica que a contagem não pôde ser lida (anomalia de storage).
	// Nesse caso Allowed reflete a política strict/fail-open.
	Unknown bool
	Count   int
	Limit   int
	// RetryAfter é o valor a ser retornado em Retry-After quando bloquear.
	// Se 0, não há recomendação.
	RetryAfter time.Duration
}
