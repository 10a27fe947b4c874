package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRetry(t *testing.T) {
	logger := zerolog.Nop()
	fastRetry := RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond}

	t.Run("succeeds on first attempt", func(t *testing.T) {
		calls := 0
		err := WithRetry(context.Background(), fastRetry, logger, "count_records", func(ctx context.Context) error {
			calls++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("retries transient failures", func(t *testing.T) {
		calls := 0
		err := WithRetry(context.Background(), fastRetry, logger, "count_records", func(ctx context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("connection reset")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("returns last error when all attempts fail", func(t *testing.T) {
		calls := 0
		lastErr := errors.New("still down")
		err := WithRetry(context.Background(), fastRetry, logger, "upsert", func(ctx context.Context) error {
			calls++
			if calls == 3 {
				return lastErr
			}
			return errors.New("down")
		})
		assert.Equal(t, lastErr, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		err := WithRetry(ctx, RetryConfig{MaxAttempts: 5, BaseDelay: time.Hour}, logger, "query", func(ctx context.Context) error {
			calls++
			cancel()
			return errors.New("boom")
		})
		assert.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("zero attempts still runs op once", func(t *testing.T) {
		calls := 0
		err := WithRetry(context.Background(), RetryConfig{}, logger, "query", func(ctx context.Context) error {
			calls++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})
}

func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.BaseDelay)
}
