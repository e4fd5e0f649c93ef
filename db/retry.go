package db

import (
	"context"
	"fmt"
	"time"
)

// RetryConfig controls WithRetry.
type RetryConfig struct {
	// MaxAttempts is the total number of calls, the first included.
	MaxAttempts int
	// Delay is the pause before the second attempt.
	Delay time.Duration
	// Backoff multiplies the pause after every failed attempt. Values below
	// 1 keep it constant.
	Backoff float64
	// MaxDelay caps the pause. Zero means no cap.
	MaxDelay time.Duration
	// RetryOn reports whether err is worth another attempt. Nil retries on
	// ErrConnectionFailed only.
	RetryOn func(error) bool
}

func (c RetryConfig) next(delay time.Duration) time.Duration {
	if c.Backoff > 1 {
		delay = time.Duration(float64(delay) * c.Backoff)
	}
	if c.MaxDelay > 0 && delay > c.MaxDelay {
		delay = c.MaxDelay
	}
	return delay
}

// WithRetry calls fn until it succeeds, returns an error RetryOn rejects, or
// MaxAttempts is used up. It gives up early when ctx is done.
//
// Record operations never go through WithRetry: a connection failure there
// is terminal for the call. The server uses it at startup, while the store
// may still be coming up.
func WithRetry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	retryOn := cfg.RetryOn
	if retryOn == nil {
		retryOn = IsConnectionFailed
	}

	var (
		lastErr error
		delay   = cfg.Delay
	)
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			delay = cfg.next(delay)
		}

		if lastErr = fn(); lastErr == nil {
			return nil
		}
		if !retryOn(lastErr) {
			return lastErr
		}
	}
	return fmt.Errorf("pereval/db: all %d attempts failed, last error: %w", cfg.MaxAttempts, lastErr)
}
