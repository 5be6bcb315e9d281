// Package cancel applies the optimistic-concurrency cancellation transition.
package cancel

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/trimline-app/trimline/libs/retry"
	"github.com/trimline-app/trimline/services/schedule-service/internal/model"
	"github.com/trimline-app/trimline/services/schedule-service/internal/notify"
	"github.com/trimline-app/trimline/services/schedule-service/internal/storage"
)

var ErrMissingReservationID = errors.New("validation: reservation id is required")

// Store is the persistence primitive the engine mutates through.
type Store interface {
	ReadVersion(ctx context.Context, reservationID string) (int64, error)
	ApplyCancellation(ctx context.Context, reservationID string, change model.Cancellation) error
}

// Notifier delivers the best-effort counter-party notification.
type Notifier interface {
	ReservationCancelled(ctx context.Context, ev notify.CancellationEvent) error
}

type Engine struct {
	store    Store
	notifier Notifier
	logger   *slog.Logger
	retry    retry.Options
}

// Result reports one cancellation. ConcurrencyConflict signals that the
// caller should refetch and retry with the current version; other failures
// carry no such recovery path.
type Result struct {
	Success             bool
	ConcurrencyConflict bool
	Err                 error
}

type BulkError struct {
	ReservationID string `json:"reservation_id"`
	Reason        string `json:"reason"`
}

type BulkResult struct {
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Errors    []BulkError `json:"errors,omitempty"`
}

func NewEngine(store Store, notifier Notifier, logger *slog.Logger) *Engine {
	return &Engine{
		store:    store,
		notifier: notifier,
		logger:   logger,
		retry:    retry.Options{MaxRetries: 3, InitialDelay: time.Second, MaxDelay: 10 * time.Second},
	}
}

// Cancel transitions one reservation to cancelled. With expectedVersion set,
// a stale version is detected before any mutation and reported as a conflict;
// the write itself carries the same version guard, so a race between the read
// and the update still surfaces as a conflict rather than a lost update.
func (e *Engine) Cancel(ctx context.Context, reservationID string, actor model.Actor, reason string, expectedVersion *int64) Result {
	if reservationID == "" {
		return Result{Err: ErrMissingReservationID}
	}

	if expectedVersion != nil {
		var current int64
		err := retry.Do(ctx, func() error {
			v, err := e.store.ReadVersion(ctx, reservationID)
			current = v
			return err
		}, e.retry)
		if err != nil {
			return Result{Err: err}
		}
		if current != *expectedVersion {
			return Result{ConcurrencyConflict: true, Err: storage.ErrVersionConflict}
		}
	}

	err := retry.Do(ctx, func() error {
		return e.store.ApplyCancellation(ctx, reservationID, model.Cancellation{
			Actor:           actor,
			Reason:          reason,
			ExpectedVersion: expectedVersion,
		})
	}, e.retry)
	if storage.IsConflict(err) {
		return Result{ConcurrencyConflict: true, Err: err}
	}
	if err != nil {
		return Result{Err: err}
	}

	e.notifyAsync(ctx, reservationID, actor, reason)
	return Result{Success: true}
}

// BulkCancel applies the single-item operation to each id independently; one
// failure never halts the rest. No version guard on the bulk path.
func (e *Engine) BulkCancel(ctx context.Context, ids []string, actor model.Actor, reason string) BulkResult {
	var out BulkResult
	for _, id := range ids {
		res := e.Cancel(ctx, id, actor, reason, nil)
		if res.Success {
			out.Succeeded++
			continue
		}
		out.Failed++
		out.Errors = append(out.Errors, BulkError{ReservationID: id, Reason: res.Err.Error()})
	}
	return out
}

// notifyAsync fires the counter-party notification outside the mutation
// boundary. It outlives the request context on purpose.
func (e *Engine) notifyAsync(ctx context.Context, reservationID string, actor model.Actor, reason string) {
	if e.notifier == nil {
		return
	}
	ev := notify.CancellationEvent{
		ReservationID: reservationID,
		CancelledBy:   string(actor),
		Reason:        reason,
	}
	go func(ctx context.Context) {
		ctx, cancelFn := context.WithTimeout(ctx, 10*time.Second)
		defer cancelFn()
		if err := e.notifier.ReservationCancelled(ctx, ev); err != nil {
			e.logger.Warn("cancellation notification failed", "reservation_id", reservationID, "err", err)
		}
	}(context.WithoutCancel(ctx))
}
