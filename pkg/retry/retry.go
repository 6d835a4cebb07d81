// Package retry provides retry logic with exponential backoff, shared by the
// crawler and the download pipeline so both follow the same policy mechanics.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// Config holds retry configuration.
type Config struct {
	MaxAttempts int           // Maximum number of attempts (0 = infinite)
	InitialWait time.Duration // Wait before the second attempt
	MaxWait     time.Duration // Cap on the wait between attempts
	Multiplier  float64       // Backoff multiplier
	Jitter      float64       // Jitter factor (0-1)
}

// Fixed returns a policy with a constant delay between attempts.
func Fixed(attempts int, delay time.Duration) Config {
	return Config{
		MaxAttempts: attempts,
		InitialWait: delay,
		MaxWait:     delay,
		Multiplier:  1.0,
	}
}

// Backoff returns an exponential policy doubling the wait up to max.
func Backoff(attempts int, initial, max time.Duration) Config {
	return Config{
		MaxAttempts: attempts,
		InitialWait: initial,
		MaxWait:     max,
		Multiplier:  2.0,
	}
}

// RetryableError wraps an error that should be retried.
type RetryableError struct {
	Err error
}

func (e RetryableError) Error() string {
	return e.Err.Error()
}

func (e RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error should be retried.
func IsRetryable(err error) bool {
	var retryable RetryableError
	return errors.As(err, &retryable)
}

// Retryable wraps an error to mark it as retryable.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return RetryableError{Err: err}
}

// Do executes fn until it succeeds, a non-retryable error occurs, or the
// attempt budget runs out. It reports how many attempts were made.
func Do(ctx context.Context, cfg Config, fn func() error) (int, error) {
	var lastErr error
	attempts := 0

	for attempt := 1; cfg.MaxAttempts == 0 || attempt <= cfg.MaxAttempts; attempt++ {
		attempts = attempt
		err := fn()
		if err == nil {
			return attempts, nil
		}

		lastErr = err

		if !IsRetryable(err) {
			return attempts, err
		}

		if ctx.Err() != nil {
			return attempts, ctx.Err()
		}

		if cfg.MaxAttempts != 0 && attempt == cfg.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return attempts, ctx.Err()
		case <-time.After(cfg.wait(attempt)):
		}
	}

	return attempts, lastErr
}

func (cfg Config) wait(attempt int) time.Duration {
	wait := float64(cfg.InitialWait) * math.Pow(cfg.Multiplier, float64(attempt-1))
	if wait > float64(cfg.MaxWait) {
		wait = float64(cfg.MaxWait)
	}
	if cfg.Jitter > 0 {
		wait += wait * cfg.Jitter * (rand.Float64()*2 - 1)
	}
	return time.Duration(wait)
}
