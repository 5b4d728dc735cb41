package db

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/railzwaylabs/interviewledger/internal/apperr"
)

// RetryPolicy bounds retries of idempotent reads.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

// RetryUnavailable runs op until it succeeds, fails with an error other than
// storage-unavailable, or the policy's attempts are exhausted. Only use it
// for reads.
func RetryUnavailable[T any](ctx context.Context, policy RetryPolicy, op func() (T, error)) (T, error) {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}

	b := backoff.NewExponentialBackOff()
	if policy.Delay > 0 {
		b.InitialInterval = policy.Delay
	}

	return backoff.Retry(ctx, func() (T, error) {
		v, err := op()
		if err == nil {
			return v, nil
		}
		err = Classify(err)
		if !errors.Is(err, apperr.ErrStorageUnavailable) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(attempts)))
}
