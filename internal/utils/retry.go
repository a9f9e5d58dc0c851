package utils

import (
	"context"
	"time"
)

// RetryPolicy describes how [Retry] repeats a failing call.
//
// MaxAttempts counts the first call, so a policy with MaxAttempts of 3 calls
// fn at most three times. Delays grow by Multiplier after every retried
// failure, starting from InitialDelay. Only errors for which IsRetryable
// returns true are retried; everything else is returned immediately.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	IsRetryable  func(error) bool

	// Sleep waits between attempts. Defaults to a context aware timer wait.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Retry calls fn until it succeeds, fails with a non-retryable error, or the
// attempt budget is exhausted. The last error is returned unchanged.
func Retry[T any](ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	attempts := max(policy.MaxAttempts, 1)
	multiplier := policy.Multiplier
	if multiplier <= 0 {
		multiplier = 2
	}
	sleep := policy.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	delay := policy.InitialDelay
	var (
		result T
		err    error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err = fn(ctx)
		if err == nil {
			return result, nil
		}
		if policy.IsRetryable == nil || !policy.IsRetryable(err) || attempt == attempts {
			return result, err
		}

		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return result, sleepErr
		}
		delay = time.Duration(float64(delay) * multiplier)
	}

	return result, err
}

// SleepContext blocks for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
