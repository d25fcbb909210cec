package reader

import (
	"context"
	"time"

	"campaignclient/internal/blockchain"
	"campaignclient/internal/logger"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

type readFunc[T any] func(ctx context.Context) (T, error)

// retryRead waits for the rate limiter before every call and repeats calls
// that failed in transport up to the configured attempts with a fixed delay.
// Errors reported by the ledger itself are returned at once.
func retryRead[T any](ctx context.Context, r *ChainReader, method string, fn readFunc[T]) (T, error) {
	var result T
	attempt := 0
	op := func() error {
		attempt++
		if err := r.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		value, err := fn(ctx)
		if err != nil {
			if !blockchain.IsTransportError(err) {
				return backoff.Permanent(err)
			}
			logger.Debug("ledger read failed, retrying", zap.String("method", method), zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		result = value
		return nil
	}

	policy := backoff.WithContext(fixedDelay(r.delay, r.attempts), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

func fixedDelay(delay time.Duration, attempts int) backoff.BackOff {
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), uint64(attempts-1))
}
