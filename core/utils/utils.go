// Package utils holds small helpers shared by busnode packages.
//
// Usage:
//
//	err := utils.Retry(ctx, utils.DefaultRetryConfig(), func() error { return store.Ping(ctx) })
package utils

import (
	"context"
	"fmt"
	"time"
)

// RetryConfig holds configuration for retry operations.
type RetryConfig struct {
	MaxAttempts int           // Maximum number of attempts
	BaseDelay   time.Duration // Delay after the first failure
	MaxDelay    time.Duration // Upper bound for any delay
	Multiplier  float64       // Delay multiplier for exponential backoff
}

// DefaultRetryConfig returns three attempts starting at 100ms.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Multiplier:  2.0,
	}
}

// Retry calls fn until it succeeds, MaxAttempts is reached or ctx is done.
// The delay between attempts grows by Multiplier up to MaxDelay. The last
// error is wrapped in the result.
func Retry(ctx context.Context, config RetryConfig, fn func() error) error {
	var lastErr error
	delay := config.BaseDelay

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt == config.MaxAttempts-1 {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * config.Multiplier)
		if config.MaxDelay > 0 && delay > config.MaxDelay {
			delay = config.MaxDelay
		}
	}

	return fmt.Errorf("retry failed after %d attempts: %w", config.MaxAttempts, lastErr)
}
