package infra

import (
	"context"

	"filelimit-gateway/middleware/ratelimit/domain"
)

type chanPool struct {
	sem chan struct{}
}

// NewChanPool cria um semáforo baseado em channel com capacidade `max`.
// Com max <= 0 não há limite: Acquire sempre consegue (exceto com ctx já encerrado).
func NewChanPool(max int) domain.SlotPool {
	if max <= 0 {
		return unlimitedPool{}
	}
	return &chanPool{sem: make(chan struct{}, max)}
}

func (p *chanPool) Acquire(ctx context.Context) (func(), bool) {
	select {
	case p.sem <- struct{}{}:
		return func() { <-p.sem }, true
	case <-ctx.Done():
		return nil, false
	}
}

type unlimitedPool struct{}

func (unlimitedPool) Acquire(ctx context.Context) (func(), bool) {
	if ctx.Err() != nil {
		return nil, false
	}
	return func() {}, true
}
