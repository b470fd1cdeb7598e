package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"
)

// RetryPolicy wraps a fallible browser operation with bounded exponential
// backoff. It is the only retry path in the engine: components never loop on
// failure themselves, so backoff behavior stays uniform and testable.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// MaxJitter bounds the random extra wait added to each backoff so that
	// many operations failing at once do not retry in lockstep.
	MaxJitter time.Duration
	// Retryable decides whether an error deserves another attempt.
	// Nil means IsTransient.
	Retryable func(error) bool

	// sleep is replaced in tests.
	sleep func(context.Context, time.Duration) error
}

func NewRetryPolicy(maxAttempts int, baseDelay time.Duration) *RetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if baseDelay <= 0 {
		baseDelay = 1500 * time.Millisecond
	}
	return &RetryPolicy{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		MaxJitter:   time.Second,
		Retryable:   IsTransient,
		sleep:       sleepContext,
	}
}

// Do runs op, retrying on retryable failures with delay
// BaseDelay * 2^attempt + jitter. The last error comes back after the final
// attempt. Cancellation is honored before each attempt and during waits.
func (p *RetryPolicy) Do(ctx context.Context, label string, op func() error) error {
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsTransient
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) {
			return lastErr
		}
		if attempt == p.MaxAttempts-1 {
			break
		}

		delay := p.backoff(attempt)
		log.Printf("⚠️ %s failed (attempt %d/%d), retrying in %v: %v",
			label, attempt+1, p.MaxAttempts, delay.Round(time.Millisecond), lastErr)
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", label, p.MaxAttempts, lastErr)
}

func (p *RetryPolicy) backoff(attempt int) time.Duration {
	delay := p.BaseDelay * time.Duration(1<<uint(attempt))
	if p.MaxJitter > 0 {
		delay += time.Duration(rand.Int63n(int64(p.MaxJitter)))
	}
	return delay
}

// transientMarkers are substrings of driver errors that indicate flaky
// DOM/timing conditions: slow renders, stale or detached handles, clicks
// intercepted by overlays, navigation races.
var transientMarkers = []string{
	"timeout",
	"timed out",
	"stale",
	"detached",
	"intercept",
	"not visible",
	"not stable",
	"navigation",
	"net::err",
	"waiting for",
}

// IsTransient reports whether an error looks like a flaky DOM/timing failure
// worth retrying. Precondition failures are never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrProfileLocked) || errors.Is(err, ErrResumeFileMissing) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
