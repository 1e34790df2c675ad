package resilience

import (
	"context"
	"fmt"
	"time"
)

// RetryConfig defines retry behavior for gateway operations
type RetryConfig struct {
	Backoff     BackoffStrategy
	MaxAttempts int

	// ShouldRetry decides whether a failed attempt is worth repeating
	ShouldRetry func(err error) bool

	// OnRetry is called before each wait, for logging and metrics
	OnRetry func(attempt int, delay time.Duration, err error)
}

// WithRetry runs operation until it succeeds, returns a non-retriable error,
// exhausts MaxAttempts or ctx is done.
func WithRetry(ctx context.Context, cfg RetryConfig, operation func(ctx context.Context) error) error {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := cfg.Backoff
	if backoff == nil {
		backoff = DefaultExponentialBackoff()
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := backoff.NextDelay(attempt - 1)
			if cfg.OnRetry != nil {
				cfg.OnRetry(attempt, delay, lastErr)
			}

			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("retry aborted: %w", ctx.Err())
			}
		}

		err := operation(ctx)
		if err == nil {
			return nil
		}

		lastErr = err
		if cfg.ShouldRetry == nil || !cfg.ShouldRetry(err) {
			return err
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", attempts, lastErr)
}
