package util

import (
	"context"
	"errors"
	"time"
)

// Retry2WithContext calls fn up to maxTries times until it returns nil
// error, or until ctx is done. Context cancellation is returned
// immediately and never retried.
func Retry2WithContext[A, B any](ctx context.Context, maxTries int, fn func(context.Context) (A, B, error)) (A, B, error) {
	type pair struct {
		a A
		b B
	}
	var zeroA A
	var zeroB B
	res, err := retryBackoff(ctx, maxTries, 0, func(ctx context.Context) (any, error) {
		a, b, err := fn(ctx)
		return pair{a, b}, err
	})
	if err != nil {
		return zeroA, zeroB, err
	}
	p := res.(pair)
	return p.a, p.b, nil
}

// RetryBackoffWithContext retries a single-result call with a sleep
// between attempts, doubling the delay each time. Meant for calls against
// external providers that rate-limit.
func RetryBackoffWithContext[T any](ctx context.Context, maxTries int, delay time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	res, err := retryBackoff(ctx, maxTries, delay, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		return zero, err
	}
	return res.(T), nil
}

func retryBackoff(ctx context.Context, maxTries int, delay time.Duration, fn func(context.Context) (any, error)) (any, error) {
	if maxTries <= 0 {
		maxTries = 1
	}
	var lastErr error
	wait := delay
	for i := 0; i < maxTries; i++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if i > 0 && wait > 0 {
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, ctx.Err()
			case <-t.C:
			}
			wait *= 2
		}
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}
