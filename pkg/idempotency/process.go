package idempotency

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryForever backs off exponentially up to 30s between attempts and never
// gives up on its own; only the context ends it.
func RetryForever() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	return b
}

// Process claims key and runs fn once. Failures of the claim or of fn are
// retried in place on b until fn succeeds or ctx ends. A nil result means the
// message is done (applied now or earlier) and its offset may be committed.
// A non-nil result is the context error; the claim is released so the
// message is processed again after redelivery.
func Process(ctx context.Context, log *slog.Logger, g Guard, key string, b backoff.BackOff, fn func(context.Context) error) error {
	claimed := false
	attempt := 0
	op := func() (struct{}, error) {
		attempt++
		if !claimed {
			seen, err := g.Seen(ctx, key)
			if err != nil {
				log.Warn("idempotency check failed, retrying", "key", key, "attempt", attempt, "err", err)
				return struct{}{}, err
			}
			if seen {
				log.Info("duplicate message skipped", "key", key)
				return struct{}{}, nil
			}
			claimed = true
		}
		if err := fn(ctx); err != nil {
			log.Warn("message not applied, retrying", "key", key, "attempt", attempt, "err", err)
			return struct{}{}, err
		}
		return struct{}{}, nil
	}

	_, err := backoff.Retry(ctx, op, backoff.WithBackOff(b), backoff.WithMaxElapsedTime(0))
	if err != nil && claimed {
		if fErr := g.Forget(context.WithoutCancel(ctx), key); fErr != nil {
			log.Error("idempotency release failed", "key", key, "err", fErr)
		}
	}
	return err
}
