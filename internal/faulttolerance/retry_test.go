package faulttolerance

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastConfig(maxAttempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:      maxAttempts,
		Delay:            time.Millisecond,
		RateLimitBase:    time.Millisecond,
		RateLimitCeiling: 5 * time.Millisecond,
		Name:             "test",
	}
}

func TestExecuteSucceedsAfterRetries(t *testing.T) {
	retryer := NewRetryer(fastConfig(5), testLogger())

	calls := 0
	err := retryer.Execute(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
}

func TestExecuteExhaustsAttempts(t *testing.T) {
	retryer := NewRetryer(fastConfig(3), testLogger())

	calls := 0
	cause := errors.New("broker down")
	err := retryer.Execute(context.Background(), func() error {
		calls++
		return cause
	})

	if err == nil {
		t.Fatal("Expected error after exhausting attempts")
	}
	if calls != 3 {
		t.Errorf("Expected exactly 3 attempts, got %d", calls)
	}
	if !errors.Is(err, cause) {
		t.Errorf("Expected wrapped cause, got %v", err)
	}
}

func TestExecuteStopsOnNonRetryable(t *testing.T) {
	fatal := errors.New("dimension mismatch")
	cfg := fastConfig(5)
	cfg.NonRetryable = []error{fatal}
	retryer := NewRetryer(cfg, testLogger())

	calls := 0
	err := retryer.Execute(context.Background(), func() error {
		calls++
		return fatal
	})

	if !errors.Is(err, fatal) {
		t.Errorf("Expected the original error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected a single attempt, got %d", calls)
	}
}

func TestExecuteHonoursContext(t *testing.T) {
	retryer := NewRetryer(fastConfig(5), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := retryer.Execute(ctx, func() error { return errors.New("never retried") })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestDelayForRateLimitBackoff(t *testing.T) {
	cfg := RetryConfig{
		Delay:            10 * time.Second,
		RateLimitBase:    60 * time.Second,
		RateLimitCeiling: 300 * time.Second,
	}

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 60 * time.Second},
		{2, 120 * time.Second},
		{5, 300 * time.Second},
		{10, 300 * time.Second}, // capped at the ceiling
	}

	for _, tc := range cases {
		got := cfg.DelayFor(tc.attempt, ErrRateLimited)
		if got != tc.want {
			t.Errorf("attempt %d: expected %v, got %v", tc.attempt, tc.want, got)
		}
	}
}

func TestDelayForOrdinaryError(t *testing.T) {
	cfg := RetryConfig{Delay: 10 * time.Second, RateLimitBase: 60 * time.Second, RateLimitCeiling: 300 * time.Second}

	if got := cfg.DelayFor(4, errors.New("connection refused")); got != 10*time.Second {
		t.Errorf("Expected the fixed delay, got %v", got)
	}
}

func TestNewRetryerAppliesDefaults(t *testing.T) {
	retryer := NewRetryer(RetryConfig{}, testLogger())

	if retryer.config.MaxAttempts != 5 {
		t.Errorf("Expected default 5 attempts, got %d", retryer.config.MaxAttempts)
	}
	if retryer.config.Delay != 10*time.Second {
		t.Errorf("Expected default 10s delay, got %v", retryer.config.Delay)
	}
	if retryer.config.RateLimitCeiling != 300*time.Second {
		t.Errorf("Expected default 300s ceiling, got %v", retryer.config.RateLimitCeiling)
	}
}
