package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
)

// RetryConfig configures retry behavior for model calls.
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryConfig returns the defaults used for model API calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// retryableError reports whether err is worth retrying: rate limits,
// transient server errors, and network flakes. Anything else fails fast.
func retryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()

	if containsAny(errStr, "rate limit", "quota exceeded", "429") {
		return true
	}
	if containsAny(errStr, "500", "502", "503", "504", "unavailable") {
		return true
	}
	if containsAny(errStr, "connection reset", "timeout", "temporary") {
		return true
	}
	return false
}

func containsAny(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	return false
}

// generateWithRetry runs call with exponential backoff. Each attempt waits
// on the rate limiter first so retries cannot bypass it.
func (e *Engine) generateWithRetry(ctx context.Context, call func(ctx context.Context) (*ai.ModelResponse, error)) (*ai.ModelResponse, error) {
	var lastErr error
	delay := e.retry.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= e.retry.MaxRetries; attempt++ {
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
		}

		resp, err := call(ctx)
		if err == nil {
			e.logger.Debug("model call succeeded",
				"attempts", attempt+1,
				"elapsed", time.Since(start))
			return resp, nil
		}
		lastErr = err

		if !retryableError(err) {
			return nil, fmt.Errorf("model call: %w", err)
		}
		if attempt == e.retry.MaxRetries {
			break
		}

		e.logger.Debug("retrying model call",
			"attempt", attempt+1,
			"delay", delay,
			"error", err)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("retry interrupted: %w", ctx.Err())
		case <-time.After(delay):
		}

		delay *= 2
		if delay > e.retry.MaxInterval {
			delay = e.retry.MaxInterval
		}
	}

	return nil, fmt.Errorf("model call failed after %d attempts: %w", e.retry.MaxRetries+1, lastErr)
}
