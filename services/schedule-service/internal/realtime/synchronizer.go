// Package realtime keeps a barber's composed timeline in step with the
// reservation change feed. One Synchronizer owns exactly one subscription at
// a time; every feed event triggers a full refetch and recomposition, trading
// bandwidth for correctness simplicity.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/trimline-app/trimline/libs/retry"
	"github.com/trimline-app/trimline/services/schedule-service/internal/feed"
	"github.com/trimline-app/trimline/services/schedule-service/internal/model"
)

type State string

const (
	StateConnecting State = "connecting"
	StateSubscribed State = "subscribed"
	StateBackoff    State = "backoff"
	StateExhausted  State = "exhausted"
	StateClosed     State = "closed"
)

var errFeedClosed = errors.New("feed channel closed")

type Config struct {
	Channel        string
	MaxAttempts    int           // reconnect attempts before giving up; default 5
	InitialBackoff time.Duration // default 1s, doubled per attempt
	HeartbeatEvery time.Duration // default 30s
	StatusTimeout  time.Duration // default 5s
	Retry          retry.Options // wraps the refetch call
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = time.Second
	}
	if c.HeartbeatEvery <= 0 {
		c.HeartbeatEvery = 30 * time.Second
	}
	if c.StatusTimeout <= 0 {
		c.StatusTimeout = 5 * time.Second
	}
	return c
}

type FetchFunc func(ctx context.Context) ([]model.Reservation, error)

// ApplyFunc receives each freshly fetched reservation set. It must be cheap
// and side-effect-free beyond updating the caller's view; it may be invoked
// from both the synchronizer goroutine and direct Refresh callers.
type ApplyFunc func([]model.Reservation)

type Synchronizer struct {
	feed   feed.Feed
	fetch  FetchFunc
	apply  ApplyFunc
	logger *slog.Logger
	cfg    Config

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc

	// applyMu orders refetch applies without stalling state reads: the apply
	// callback may do real work, so it must never run under mu.
	applyMu    sync.Mutex
	generation int64
	appliedGen int64

	exhaustedOnce sync.Once
	exhausted     chan struct{}
	done          chan struct{}
}

func New(f feed.Feed, fetch FetchFunc, apply ApplyFunc, logger *slog.Logger, cfg Config) *Synchronizer {
	return &Synchronizer{
		feed:      f,
		fetch:     fetch,
		apply:     apply,
		logger:    logger,
		cfg:       cfg.withDefaults(),
		state:     StateConnecting,
		exhausted: make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches Run on its own goroutine; Stop tears it down.
func (s *Synchronizer) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	go s.Run(ctx)
}

// Stop cancels the running state machine and blocks until all timers and the
// subscription are released. Safe to call more than once.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-s.done
}

// Run drives the state machine until ctx is cancelled (explicit teardown) or
// reconnect attempts are exhausted. All timers and the subscription are
// released before it returns.
func (s *Synchronizer) Run(ctx context.Context) {
	defer close(s.done)
	defer s.setState(StateClosed)

	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}
		s.setState(StateConnecting)
		sub, err := s.feed.Subscribe(ctx, s.cfg.Channel)
		if err != nil {
			s.logger.Warn("feed subscribe failed", "channel", s.cfg.Channel, "err", err)
			if !s.backoff(ctx, &attempt) {
				return
			}
			continue
		}

		attempt = 0
		s.setState(StateSubscribed)
		s.logger.Info("feed subscribed", "channel", s.cfg.Channel)
		if err := s.Refresh(ctx); err != nil {
			s.logger.Warn("initial refresh failed", "err", err)
		}

		err = s.consume(ctx, sub)
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("feed channel lost", "channel", s.cfg.Channel, "err", err)
		if !s.backoff(ctx, &attempt) {
			return
		}
	}
}

// consume services one live subscription: events trigger refetches and the
// heartbeat probes liveness regardless of event traffic. Returns the reason
// the channel died.
func (s *Synchronizer) consume(ctx context.Context, sub feed.Subscription) error {
	heartbeat := time.NewTicker(s.cfg.HeartbeatEvery)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-sub.Events():
			if !ok {
				return errFeedClosed
			}
			if err := s.Refresh(ctx); err != nil {
				s.logger.Warn("refresh after feed event failed", "type", ev.Type, "err", err)
			}
		case <-heartbeat.C:
			probeCtx, cancel := context.WithTimeout(ctx, s.cfg.StatusTimeout)
			err := sub.Status(probeCtx)
			cancel()
			if err != nil {
				return fmt.Errorf("heartbeat probe: %w", err)
			}
		}
	}
}

// backoff sleeps 2^attempt * InitialBackoff before the next reconnect, or
// reports false once attempts are exhausted. Cancellation interrupts the wait.
func (s *Synchronizer) backoff(ctx context.Context, attempt *int) bool {
	if *attempt >= s.cfg.MaxAttempts {
		s.logger.Error("reconnect attempts exhausted; manual refresh required",
			"channel", s.cfg.Channel, "attempts", *attempt)
		s.setState(StateExhausted)
		s.exhaustedOnce.Do(func() { close(s.exhausted) })
		return false
	}
	delay := s.cfg.InitialBackoff << *attempt
	*attempt++
	s.setState(StateBackoff)

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Refresh refetches the reservation set and hands it to the apply callback.
// It is the single entry point shared by feed events and local mutations;
// overlapping calls resolve as last-refetch-wins.
func (s *Synchronizer) Refresh(ctx context.Context) error {
	s.applyMu.Lock()
	s.generation++
	gen := s.generation
	s.applyMu.Unlock()

	var reservations []model.Reservation
	err := retry.Do(ctx, func() error {
		var err error
		reservations, err = s.fetch(ctx)
		return err
	}, s.cfg.Retry)
	if err != nil {
		return err
	}

	s.applyMu.Lock()
	defer s.applyMu.Unlock()
	if gen < s.appliedGen {
		return nil // a newer refetch already landed
	}
	s.appliedGen = gen
	s.apply(reservations)
	return nil
}

// Connected reports the boolean connectivity signal exposed to the UI.
func (s *Synchronizer) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateSubscribed
}

func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Exhausted is closed once automatic reconnection has given up for good.
func (s *Synchronizer) Exhausted() <-chan struct{} {
	return s.exhausted
}

// Done is closed when Run has fully torn down.
func (s *Synchronizer) Done() <-chan struct{} {
	return s.done
}

func (s *Synchronizer) setState(st State) {
	s.mu.Lock()
	// Exhausted is terminal: a later teardown must not mask it.
	if s.state != StateExhausted {
		s.state = st
	}
	s.mu.Unlock()
}
