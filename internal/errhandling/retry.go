// Package errhandling provides retry configuration and mechanism for pipeline execution.
// This file defines retry configuration parsing, validation, and delay calculation.
package errhandling

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Default retry configuration values
const (
	DefaultMaxAttempts       = 3
	DefaultDelayMs           = 100
	DefaultBackoffMultiplier = 2.0
	DefaultMaxDelayMs        = 5000
	MaxRetryAttempts         = 10
	MinBackoffMultiplier     = 1.0
)

// OnErrorStrategy defines what action to take when a stage fails.
type OnErrorStrategy string

// Error handling strategies
const (
	// OnErrorStop aborts the run and returns the error (default).
	OnErrorStop OnErrorStrategy = "stop"

	// OnErrorContinue logs a failed filter and passes its input table through.
	OnErrorContinue OnErrorStrategy = "continue"
)

// RetryConfig holds retry configuration for output writes.
type RetryConfig struct {
	// MaxAttempts is the maximum number of retry attempts (0 = no retry).
	// Default: 3, Max: 10
	MaxAttempts int

	// DelayMs is the initial delay between retries in milliseconds.
	// Default: 100
	DelayMs int

	// BackoffMultiplier is the multiplier for exponential backoff.
	// Default: 2.0, Min: 1.0
	BackoffMultiplier float64

	// MaxDelayMs is the maximum delay between retries in milliseconds.
	// Default: 5000
	MaxDelayMs int
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       DefaultMaxAttempts,
		DelayMs:           DefaultDelayMs,
		BackoffMultiplier: DefaultBackoffMultiplier,
		MaxDelayMs:        DefaultMaxDelayMs,
	}
}

// Validate validates the retry configuration.
// Returns an error if any value is out of valid range.
func (c RetryConfig) Validate() error {
	if c.MaxAttempts < 0 {
		return errors.New("retryCount must be >= 0")
	}
	if c.MaxAttempts > MaxRetryAttempts {
		return fmt.Errorf("retryCount must be <= %d", MaxRetryAttempts)
	}
	if c.DelayMs < 0 {
		return errors.New("retryDelay must be >= 0")
	}
	if c.BackoffMultiplier < MinBackoffMultiplier {
		return fmt.Errorf("backoffMultiplier must be >= %v", MinBackoffMultiplier)
	}
	if c.MaxDelayMs < 0 {
		return errors.New("maxDelayMs must be >= 0")
	}
	return nil
}

// CalculateDelay calculates the retry delay for a given attempt using exponential backoff.
// The formula is: min(delayMs * (backoffMultiplier ^ attempt), maxDelayMs)
func (c RetryConfig) CalculateDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	delayMs := float64(c.DelayMs) * math.Pow(c.BackoffMultiplier, float64(attempt))
	if delayMs > float64(c.MaxDelayMs) {
		delayMs = float64(c.MaxDelayMs)
	}

	return time.Duration(delayMs) * time.Millisecond
}

// ShouldRetry determines if a retry should be attempted based on the attempt number and error.
// Returns false if:
//   - Error is nil
//   - MaxAttempts is 0 (retries disabled)
//   - Current attempt >= MaxAttempts
//   - Error is not retryable
func (c RetryConfig) ShouldRetry(attempt int, err error) bool {
	if err == nil || c.MaxAttempts == 0 || attempt >= c.MaxAttempts {
		return false
	}
	return IsRetryable(err)
}

// ParseRetryConfig parses retry configuration from a map.
// Missing values are filled with defaults. Both the pipeline-level keys
// (retryCount, retryDelay) and the long forms (maxAttempts, delayMs) are read.
func ParseRetryConfig(m map[string]interface{}) RetryConfig {
	config := DefaultRetryConfig()

	if m == nil {
		return config
	}

	for _, key := range []string{"retryCount", "maxAttempts"} {
		if v, ok := getInt(m, key); ok {
			config.MaxAttempts = v
		}
	}
	for _, key := range []string{"retryDelay", "delayMs"} {
		if v, ok := getInt(m, key); ok {
			config.DelayMs = v
		}
	}
	if backoffMultiplier, ok := getFloat(m, "backoffMultiplier"); ok {
		config.BackoffMultiplier = backoffMultiplier
	}
	if maxDelayMs, ok := getInt(m, "maxDelayMs"); ok {
		config.MaxDelayMs = maxDelayMs
	}

	return config
}

// ParseOnErrorStrategy parses an error strategy string.
// Returns OnErrorStop for invalid or empty input.
func ParseOnErrorStrategy(s string) OnErrorStrategy {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "continue", "skip", "log":
		return OnErrorContinue
	default:
		return OnErrorStop
	}
}

// getInt extracts an int value from a map, handling float64 (JSON) and int types.
func getInt(m map[string]interface{}, key string) (int, bool) {
	if v, ok := m[key]; ok {
		switch val := v.(type) {
		case float64:
			return int(val), true
		case int:
			return val, true
		case int64:
			return int(val), true
		}
	}
	return 0, false
}

// getFloat extracts a float64 value from a map.
func getFloat(m map[string]interface{}, key string) (float64, bool) {
	if v, ok := m[key]; ok {
		switch val := v.(type) {
		case float64:
			return val, true
		case int:
			return float64(val), true
		case int64:
			return float64(val), true
		}
	}
	return 0, false
}

// ============================
// Retry Executor
// ============================

// RetryFunc is a function that can be retried.
type RetryFunc func(ctx context.Context) error

// RetryInfo contains information about retry attempts.
type RetryInfo struct {
	// TotalAttempts is the total number of attempts made.
	TotalAttempts int

	// SuccessfulAttempt is the attempt number that succeeded (0 if failed).
	SuccessfulAttempt int

	// RetryCount is the number of retries (TotalAttempts - 1).
	RetryCount int

	// TotalDuration is the total time spent including retries.
	TotalDuration time.Duration

	// Delays is the list of delays between retries.
	Delays []time.Duration

	// Errors is the list of errors encountered during retries.
	Errors []error
}

// RetryExecutor executes functions with retry logic.
type RetryExecutor struct {
	config    RetryConfig
	retryInfo RetryInfo
}

// NewRetryExecutor creates a new retry executor with the given configuration.
func NewRetryExecutor(config RetryConfig) *RetryExecutor {
	return &RetryExecutor{config: config}
}

// Execute runs fn, retrying transient errors up to MaxAttempts times.
func (e *RetryExecutor) Execute(ctx context.Context, fn RetryFunc) error {
	return e.ExecuteWithCallback(ctx, fn, nil)
}

// GetRetryInfo returns information about the retry attempts.
func (e *RetryExecutor) GetRetryInfo() RetryInfo {
	return e.retryInfo
}

// ExecuteWithCallback executes the function with retry and calls the callback after each attempt.
// The callback receives the attempt number (0-indexed), the error (nil on success), and the delay before next retry.
func (e *RetryExecutor) ExecuteWithCallback(
	ctx context.Context,
	fn RetryFunc,
	callback func(attempt int, err error, nextDelay time.Duration),
) error {
	startTime := time.Now()
	e.retryInfo = RetryInfo{
		Delays: make([]time.Duration, 0),
		Errors: make([]error, 0),
	}

	var lastErr error
	maxAttempts := e.config.MaxAttempts + 1 // Initial attempt + retries

	for attempt := 0; attempt < maxAttempts; attempt++ {
		e.retryInfo.TotalAttempts = attempt + 1

		if err := ctx.Err(); err != nil {
			e.retryInfo.TotalDuration = time.Since(startTime)
			return ClassifyError(err)
		}

		err := fn(ctx)
		if err == nil {
			if callback != nil {
				callback(attempt, nil, 0)
			}
			e.retryInfo.SuccessfulAttempt = attempt + 1
			e.retryInfo.RetryCount = attempt
			e.retryInfo.TotalDuration = time.Since(startTime)
			return nil
		}

		lastErr = err
		e.retryInfo.Errors = append(e.retryInfo.Errors, err)
		classified := ClassifyError(err)

		var delay time.Duration
		if attempt < e.config.MaxAttempts && classified.Retryable {
			delay = e.config.CalculateDelay(attempt)
			e.retryInfo.Delays = append(e.retryInfo.Delays, delay)
		}

		if callback != nil {
			callback(attempt, err, delay)
		}

		if !classified.Retryable {
			e.retryInfo.TotalDuration = time.Since(startTime)
			return err
		}
		if attempt >= e.config.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			e.retryInfo.TotalDuration = time.Since(startTime)
			return ClassifyError(ctx.Err())
		case <-time.After(delay):
		}
	}

	e.retryInfo.RetryCount = e.retryInfo.TotalAttempts - 1
	e.retryInfo.TotalDuration = time.Since(startTime)
	return lastErr
}
