package database

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// RetryConfig controls retry behavior for datastore operations.
// Agent gateway calls are never retried; a failed call's record or page is
// handled by the pipeline's failure isolation instead.
type RetryConfig struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int
	// BaseDelay is the delay before the second attempt. It doubles after
	// each failure.
	BaseDelay time.Duration
}

// DefaultRetryConfig returns the retry settings used for datastore operations.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
	}
}

// WithRetry runs op up to cfg.MaxAttempts times with exponential backoff.
// It returns the last error if all attempts fail, and stops early when ctx
// is cancelled.
func WithRetry(ctx context.Context, cfg RetryConfig, logger zerolog.Logger, name string, op func(ctx context.Context) error) error {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	delay := cfg.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return lastErr
		}
		if attempt == attempts {
			break
		}

		logger.Warn().
			Err(lastErr).
			Str("operation", name).
			Int("attempt", attempt).
			Dur("retry_in", delay).
			Msg("datastore operation failed, retrying")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
		delay *= 2
	}

	return lastErr
}
