package infra

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// StartJanitor inicia uma goroutine que remove arquivos expirados periodicamente
// (Expire). Pare cancelando o contexto.
func (l *FileLimiter) StartJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}

	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if err := l.Expire(ctx); err != nil && ctx.Err() == nil {
					l.log.Warn("ratelimit janitor failed", zap.String("dir", l.dir), zap.Error(err))
				}
			}
		}
	}()
}
