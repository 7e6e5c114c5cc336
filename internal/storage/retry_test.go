package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestWithRetryRecoversFromTransient(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), fastRetryConfig(), func() error {
		calls++
		if calls < 3 {
			return fmt.Errorf("%w: database is locked", ErrTransient)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetryGivesUpAfterMaxRetries(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), fastRetryConfig(), func() error {
		calls++
		return fmt.Errorf("%w: disk I/O error", ErrTransient)
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransient)
	assert.Equal(t, 4, calls, "initial attempt plus MaxRetries retries")
}

func TestWithRetryDoesNotRetryPermanentErrors(t *testing.T) {
	for _, sentinel := range []error{ErrNotFound, ErrConstraintViolation, errors.New("plain")} {
		calls := 0
		err := WithRetry(context.Background(), fastRetryConfig(), func() error {
			calls++
			return sentinel
		})
		assert.ErrorIs(t, err, sentinel)
		assert.Equal(t, 1, calls, "%v must not be retried", sentinel)
	}
}

func TestWithRetryStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := WithRetry(ctx, fastRetryConfig(), func() error {
		calls++
		cancel()
		return fmt.Errorf("%w: busy", ErrTransient)
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
