package domain

import (
	"context"
	"time"
)

type Outcome string

const (
	OutcomeAllowed Outcome = "allowed"
	OutcomeDenied  Outcome = "denied"
	// OutcomeUnknown: a contagem não pôde ser lida; o request seguiu a política strict.
	OutcomeUnknown Outcome = "unknown"
)

// OutcomeOf traduz uma Decision para o Outcome registrado nas estatísticas.
func OutcomeOf(d Decision) Outcome {
	switch {
	case d.Unknown:
		return OutcomeUnknown
	case d.Allowed:
		return OutcomeAllowed
	default:
		return OutcomeDenied
	}
}

// StatsEvent representa um evento de decisão do rate limit.
//
// Ele é propositalmente "agnóstico de HTTP": Method/Path são strings genéricas.
//
// Observação: cuidado com cardinalidade (ex.: salvar Key/Path sem controle pode
// explodir o número de chaves em uma base como Redis).
type StatsEvent struct {
	Key     Key
	Outcome Outcome
	// Count é a contagem na janela observada no momento da decisão.
	Count int

	Method string
	Path   string

	At time.Time
}

// StatsStore é a estratégia de persistência para estatísticas do rate limit.
//
// O middleware trata erro como best-effort (não derruba request).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
