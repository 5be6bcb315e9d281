// Package retry wraps transient I/O with bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"strings"
	"time"
)

type Options struct {
	MaxRetries   int           // retries after the first attempt; default 3
	InitialDelay time.Duration // default 1s
	MaxDelay     time.Duration // default 10s
	Multiplier   float64       // default 2
	ShouldRetry  func(error) bool
	OnRetry      func(attempt int, err error)
}

func (o Options) withDefaults() Options {
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.InitialDelay <= 0 {
		o.InitialDelay = time.Second
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 10 * time.Second
	}
	if o.Multiplier <= 1 {
		o.Multiplier = 2
	}
	if o.ShouldRetry == nil {
		o.ShouldRetry = DefaultShouldRetry
	}
	return o
}

// Do runs op, retrying transient failures. Non-retryable errors are returned
// immediately without consuming an attempt; once retries are exhausted the
// last error is returned. The delay before retry n is
// min(InitialDelay * Multiplier^(n-1), MaxDelay), jittered by ±25%.
func Do(ctx context.Context, op func() error, opts Options) error {
	opts = opts.withDefaults()

	var lastErr error
	for attempt := 1; ; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !opts.ShouldRetry(lastErr) {
			return lastErr
		}
		if attempt > opts.MaxRetries {
			return lastErr
		}
		if opts.OnRetry != nil {
			opts.OnRetry(attempt, lastErr)
		}

		timer := time.NewTimer(Delay(attempt, opts.InitialDelay, opts.MaxDelay, opts.Multiplier))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Delay computes the jittered backoff delay for attempt n (1-based).
func Delay(attempt int, initial, max time.Duration, multiplier float64) time.Duration {
	d := float64(initial)
	for i := 1; i < attempt; i++ {
		d *= multiplier
	}
	d *= 0.75 + rand.Float64()*0.5
	if d > float64(max) {
		return max
	}
	return time.Duration(d)
}

type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

type terminalError struct{ err error }

func (e *terminalError) Error() string { return e.err.Error() }
func (e *terminalError) Unwrap() error { return e.err }

// Transient marks err as retryable regardless of its shape.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// Terminal marks err as never retryable.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &terminalError{err: err}
}

var retryableSignatures = []string{
	"timeout", "timed out", "connection", "network",
	"rate limit", "too many requests", "temporarily", "unavailable",
}

var terminalSignatures = []string{
	"validation", "invalid", "unauthorized", "forbidden",
	"not found", "conflict", "version mismatch",
}

// DefaultShouldRetry treats network/timeout/connection/rate-limit failures as
// retryable and validation/auth/not-found/conflict failures as terminal.
// Explicit Transient/Terminal markers and context errors win over the
// message-signature heuristic.
func DefaultShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	var transient *transientError
	if errors.As(err, &transient) {
		return true
	}
	var terminal *terminalError
	if errors.As(err, &terminal) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, sig := range terminalSignatures {
		if strings.Contains(msg, sig) {
			return false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	for _, sig := range retryableSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}
