package resilience

import (
	"context"
	"fmt"
	"time"
)

// BackoffFunc returns the delay to wait before the given attempt number.
// Attempt numbering starts at 1 for the delay after the first failure.
type BackoffFunc func(attempt int) time.Duration

// LinearBackoff returns a BackoffFunc that waits base × attempt between
// attempts: base after the first failure, 2×base after the second, and so on.
func LinearBackoff(base time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		return base * time.Duration(attempt)
	}
}

// NoBackoff returns a BackoffFunc with zero delay between attempts.
func NoBackoff() BackoffFunc {
	return func(int) time.Duration { return 0 }
}

// Retry calls fn up to maxAttempts times, sleeping backoff(attempt) between
// failed attempts. It returns nil as soon as any attempt succeeds, the last
// attempt's error once the budget is spent, or ctx.Err() if the context is
// cancelled while waiting between attempts. fn itself is never interrupted
// mid-call.
//
// maxAttempts below 1 is treated as 1.
func Retry(ctx context.Context, maxAttempts int, backoff BackoffFunc, fn func() error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if backoff == nil {
		backoff = NoBackoff()
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt == maxAttempts {
			break
		}

		delay := backoff(attempt)
		if delay <= 0 {
			continue
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return fmt.Errorf("all %d attempts failed: %w", maxAttempts, lastErr)
}
