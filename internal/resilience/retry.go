package resilience

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Policy bounds how many times an upstream call is attempted and how long
// to wait between attempts.
type Policy struct {
	// Attempts counts the first call. Values below 1 mean a single call.
	Attempts int
	// Pause is the wait between attempts.
	Pause time.Duration
	// Retryable reports whether err is worth another attempt. Nil means
	// IsTransient.
	Retryable func(err error) bool
	// OnRetry runs before each wait with the 1-based number of the failed
	// attempt.
	OnRetry func(attempt int, err error)
}

// FixedPolicy retries every error with the same pause.
func FixedPolicy(attempts int, pause time.Duration) Policy {
	return Policy{
		Attempts:  attempts,
		Pause:     pause,
		Retryable: func(error) bool { return true },
	}
}

// Retry calls fn until it succeeds, the error is not retryable, attempts
// run out or ctx ends. The last error from fn is returned on failure.
func Retry[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsTransient
	}
	attempts := max(p.Attempts, 1)

	var zero T
	for n := 1; ; n++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		if n == attempts || ctx.Err() != nil || !retryable(err) {
			return zero, err
		}
		if p.OnRetry != nil {
			p.OnRetry(n, err)
		}
		if Sleep(ctx, p.Pause) != nil {
			return zero, err
		}
	}
}

// Sleep pauses for d or until ctx is done, returning ctx.Err() in the
// latter case. Non-positive durations return immediately.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RetryLogger returns an OnRetry hook that logs at warn level.
func RetryLogger(service, op string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying upstream call",
			zap.String("service", service),
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.String("kind", Kind(err)),
			zap.Error(err),
		)
	}
}
