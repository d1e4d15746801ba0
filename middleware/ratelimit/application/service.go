package application

import (
	"context"
	"errors"
	"time"

	"filelimit-gateway/middleware/ratelimit/domain"
)

// Service concentra a regra de aplicação do rate limit.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
type Service struct {
	Limiter domain.WindowLimiter
	// RetryAfter recomendado ao negar. Se 0, usa o período do limiter.
	RetryAfter time.Duration
	// Strict nega quando a contagem não pode ser lida (fail-closed).
	Strict bool
}

// Decide registra um hit para a chave e decide se ela ainda cabe no limite.
//
// Uma falha ao registrar é devolvida como erro, mas a decisão ainda é tomada:
// o chamador decide se loga ou aborta.
func (s Service) Decide(ctx context.Context, key domain.Key) (domain.Decision, error) {
	if s.Limiter == nil {
		return domain.Decision{Allowed: true}, nil
	}

	recErr := s.Limiter.Record(ctx, string(key))
	if errors.Is(recErr, domain.ErrMissingKey) {
		return domain.Decision{Unknown: true, Limit: s.Limiter.Limit()}, recErr
	}

	dec, err := s.Check(ctx, key)
	return dec, errors.Join(recErr, err)
}

// Check decide sem registrar nada (ex: antes de validar a senha).
func (s Service) Check(ctx context.Context, key domain.Key) (domain.Decision, error) {
	if s.Limiter == nil {
		return domain.Decision{Allowed: true}, nil
	}

	dec := domain.Decision{Limit: s.Limiter.Limit()}

	allowed, count, err := s.Limiter.Evaluate(ctx, string(key), s.Strict)
	switch {
	case errors.Is(err, domain.ErrMissingKey):
		dec.Unknown = true
		return dec, err
	case domain.IsUnknownCount(err):
		dec.Unknown = true
	default:
		dec.Count = count
	}
	dec.Allowed = allowed

	if !allowed {
		dec.RetryAfter = s.RetryAfter
		if dec.RetryAfter <= 0 {
			dec.RetryAfter = s.Limiter.Period()
		}
	}
	return dec, err
}

// Fail registra uma tentativa falha (ex: senha errada) para a chave.
func (s Service) Fail(ctx context.Context, key domain.Key) error {
	if s.Limiter == nil {
		return nil
	}
	return s.Limiter.Record(ctx, string(key))
}
