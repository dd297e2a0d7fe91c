package indexer

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	defaultBackoff = 100 * time.Millisecond
	maxBackoff     = 30 * time.Second
)

// Backoff retries RPC calls with a doubling delay capped at maxBackoff.
type Backoff struct {
	Retries int
	Base    time.Duration
	logger  *zap.Logger
}

// Do runs fn until it succeeds, the retries are spent or ctx ends.
func (b Backoff) Do(ctx context.Context, op string, fn func(context.Context) error) error {
	delay := b.Base
	if delay <= 0 {
		delay = defaultBackoff
	}

	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= b.Retries {
			return err
		}
		if b.logger != nil {
			b.logger.Warn("rpc call failed, retrying",
				zap.String("op", op),
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
				zap.Error(err),
			)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		if delay *= 2; delay > maxBackoff {
			delay = maxBackoff
		}
	}
}
