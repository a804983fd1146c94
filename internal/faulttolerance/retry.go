// Package faulttolerance provides the bounded retry/backoff discipline applied
// to every external dependency (bus, relational store, vector index, upstream
// HTTP sources).
package faulttolerance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrRateLimited marks a rate-limit response from an upstream HTTP source.
// Rate-limited attempts back off on a longer, capped schedule.
var ErrRateLimited = errors.New("rate limited by upstream")

// RetryConfig holds configuration for retry mechanisms.
type RetryConfig struct {
	MaxAttempts      int           // Maximum number of attempts
	Delay            time.Duration // Delay between ordinary retries
	RateLimitBase    time.Duration // Base delay after a rate-limit response
	RateLimitCeiling time.Duration // Cap on the rate-limit backoff
	Name             string        // Name for logging
	NonRetryable     []error       // Errors that must not be retried (configuration errors)
}

// DefaultRetryConfig returns a default retry configuration.
func DefaultRetryConfig(name string) RetryConfig {
	return RetryConfig{
		MaxAttempts:      5,
		Delay:            10 * time.Second,
		RateLimitBase:    60 * time.Second,
		RateLimitCeiling: 300 * time.Second,
		Name:             name,
	}
}

// RetryableFunc is a function that can be retried.
type RetryableFunc func() error

// Retryer handles retry logic with bounded attempts.
type Retryer struct {
	config RetryConfig
	logger *slog.Logger
}

// NewRetryer creates a new retryer.
func NewRetryer(config RetryConfig, logger *slog.Logger) *Retryer {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 5
	}
	if config.Delay <= 0 {
		config.Delay = 10 * time.Second
	}
	if config.RateLimitBase <= 0 {
		config.RateLimitBase = 60 * time.Second
	}
	if config.RateLimitCeiling <= 0 {
		config.RateLimitCeiling = 300 * time.Second
	}
	if config.Name == "" {
		config.Name = "retryer"
	}

	return &Retryer{
		config: config,
		logger: logger,
	}
}

// Execute runs fn with retry logic. It returns nil on the first success,
// the original error for a non-retryable failure, and a wrapped error once
// all attempts are exhausted.
func (r *Retryer) Execute(ctx context.Context, fn RetryableFunc) error {
	var lastErr error

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn()
		if err == nil {
			if attempt > 1 {
				r.logger.Info("Operation succeeded after retry", "name", r.config.Name, "attempt", attempt)
			}
			return nil
		}

		lastErr = err

		if !r.isRetryable(err) {
			r.logger.Error("Non-retryable error", "name", r.config.Name, "error", err)
			return err
		}

		if attempt == r.config.MaxAttempts {
			r.logger.Error("All attempts failed", "name", r.config.Name, "attempts", attempt, "error", err)
			break
		}

		delay := r.config.DelayFor(attempt, err)
		r.logger.Warn("Attempt failed, retrying", "name", r.config.Name, "attempt", attempt, "delay", delay, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("max retry attempts (%d) exceeded: %w", r.config.MaxAttempts, lastErr)
}

// DelayFor maps (attempt, error kind) to the delay before the next attempt.
// Rate-limit responses back off linearly up to the configured ceiling; every
// other retryable error waits the fixed delay.
func (c RetryConfig) DelayFor(attempt int, err error) time.Duration {
	if errors.Is(err, ErrRateLimited) {
		delay := time.Duration(attempt) * c.RateLimitBase
		if delay > c.RateLimitCeiling {
			delay = c.RateLimitCeiling
		}
		return delay
	}
	return c.Delay
}

// isRetryable reports whether err may be retried.
func (r *Retryer) isRetryable(err error) bool {
	for _, fatal := range r.config.NonRetryable {
		if errors.Is(err, fatal) {
			return false
		}
	}
	return true
}
