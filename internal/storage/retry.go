package storage

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// RetryConfig holds retry configuration for transient storage errors
type RetryConfig struct {
	MaxRetries        int           // Maximum number of retries (default: 3)
	InitialBackoff    time.Duration // Initial backoff duration (default: 50ms)
	MaxBackoff        time.Duration // Maximum backoff duration (default: 2s)
	BackoffMultiplier float64       // Backoff multiplier (default: 2.0)
}

// DefaultRetryConfig returns the default retry configuration. SQLite busy
// windows are short, so the backoff starts small.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    50 * time.Millisecond,
		MaxBackoff:        2 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// WithRetry runs op, retrying with exponential backoff and jitter while it
// returns an error wrapping ErrTransient. Constraint violations and
// not-found errors are returned immediately; retrying those can never
// succeed. The last error is returned after MaxRetries attempts.
func WithRetry(ctx context.Context, cfg RetryConfig, op func() error) error {
	backoff := cfg.InitialBackoff
	var err error
	for attempt := 0; ; attempt++ {
		err = op()
		if err == nil || !errors.Is(err, ErrTransient) {
			return err
		}
		if attempt >= cfg.MaxRetries {
			return err
		}

		// Full jitter keeps concurrent writers from retrying in lockstep.
		sleep := time.Duration(rand.Int63n(int64(backoff) + 1))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}

		backoff = time.Duration(float64(backoff) * cfg.BackoffMultiplier)
		if backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}
}
