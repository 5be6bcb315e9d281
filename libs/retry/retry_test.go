package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func fastOptions(shouldRetry func(error) bool) Options {
	return Options{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		ShouldRetry:  shouldRetry,
	}
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return Transient(errors.New("flaky"))
		}
		return nil
	}, fastOptions(nil))
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDoReturnsLastErrorAfterExhaustion(t *testing.T) {
	calls := 0
	lastSeen := errors.New("")
	err := Do(context.Background(), func() error {
		calls++
		lastSeen = Transient(fmt.Errorf("attempt %d failed", calls))
		return lastSeen
	}, fastOptions(nil))
	if !errors.Is(err, lastSeen) {
		t.Fatalf("expected last error, got %v", err)
	}
	if calls != 4 { // initial attempt + 3 retries
		t.Fatalf("expected 4 calls, got %d", calls)
	}
}

func TestDoTerminalErrorShortCircuits(t *testing.T) {
	calls := 0
	terminal := errors.New("validation failed")
	err := Do(context.Background(), func() error {
		calls++
		return terminal
	}, fastOptions(nil))
	if !errors.Is(err, terminal) {
		t.Fatalf("expected terminal error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("terminal error must not consume attempts, got %d calls", calls)
	}
}

func TestDoHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, func() error {
		calls++
		cancel()
		return Transient(errors.New("flaky"))
	}, Options{MaxRetries: 5, InitialDelay: time.Hour})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call before cancellation, got %d", calls)
	}
}

func TestDoReportsRetries(t *testing.T) {
	var attempts []int
	_ = Do(context.Background(), func() error {
		return Transient(errors.New("flaky"))
	}, Options{
		MaxRetries:   2,
		InitialDelay: time.Millisecond,
		OnRetry:      func(attempt int, _ error) { attempts = append(attempts, attempt) },
	})
	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Fatalf("unexpected retry reports: %v", attempts)
	}
}

func TestDelayGrowsGeometricallyWithinJitter(t *testing.T) {
	initial := time.Second
	for attempt := 1; attempt <= 5; attempt++ {
		base := initial
		for i := 1; i < attempt; i++ {
			base *= 2
		}
		for trial := 0; trial < 20; trial++ {
			d := Delay(attempt, initial, time.Hour, 2)
			lo := time.Duration(float64(base) * 0.75)
			hi := time.Duration(float64(base) * 1.25)
			if d < lo || d > hi {
				t.Fatalf("attempt %d delay %v outside [%v, %v]", attempt, d, lo, hi)
			}
		}
	}
}

func TestDelayCapped(t *testing.T) {
	for trial := 0; trial < 20; trial++ {
		if d := Delay(10, time.Second, 10*time.Second, 2); d > 10*time.Second {
			t.Fatalf("delay %v above cap", d)
		}
	}
}

func TestDefaultShouldRetryClassification(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{errors.New("connection refused"), true},
		{errors.New("request timed out"), true},
		{errors.New("rate limit exceeded"), true},
		{errors.New("service unavailable"), true},
		{errors.New("validation failed: name required"), false},
		{errors.New("unauthorized"), false},
		{errors.New("reservation not found"), false},
		{errors.New("version conflict"), false},
		{context.Canceled, false},
		{context.DeadlineExceeded, false},
		{Transient(errors.New("weird one-off")), true},
		{Terminal(errors.New("connection broken but do not retry")), false},
		{errors.New("something else entirely"), false},
		{nil, false},
	}
	for _, tc := range cases {
		if got := DefaultShouldRetry(tc.err); got != tc.want {
			t.Fatalf("DefaultShouldRetry(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
