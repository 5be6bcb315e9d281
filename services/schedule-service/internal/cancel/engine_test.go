package cancel

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/trimline-app/trimline/libs/retry"
	"github.com/trimline-app/trimline/services/schedule-service/internal/model"
	"github.com/trimline-app/trimline/services/schedule-service/internal/notify"
	"github.com/trimline-app/trimline/services/schedule-service/internal/storage"
)

type fakeRecord struct {
	status  model.ReservationStatus
	version int64
}

type fakeStore struct {
	mu      sync.Mutex
	records map[string]*fakeRecord
	applies int
}

func newFakeStore(records map[string]*fakeRecord) *fakeStore {
	return &fakeStore{records: records}
}

func (s *fakeStore) ReadVersion(_ context.Context, id string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return 0, storage.ErrNotFound
	}
	return rec.version, nil
}

func (s *fakeStore) ApplyCancellation(_ context.Context, id string, change model.Cancellation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applies++
	rec, ok := s.records[id]
	if !ok {
		return storage.ErrNotFound
	}
	if change.ExpectedVersion != nil && rec.version != *change.ExpectedVersion {
		return storage.ErrVersionConflict
	}
	rec.status = model.StatusCancelled
	rec.version++
	return nil
}

type fakeNotifier struct {
	events chan notify.CancellationEvent
	fail   bool
}

func (n *fakeNotifier) ReservationCancelled(_ context.Context, ev notify.CancellationEvent) error {
	if n.fail {
		return errors.New("broker unavailable")
	}
	n.events <- ev
	return nil
}

func newEngine(store Store, notifier Notifier) *Engine {
	e := NewEngine(store, notifier, slog.Default())
	e.retry = retry.Options{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
	return e
}

func TestCancelHappyPath(t *testing.T) {
	store := newFakeStore(map[string]*fakeRecord{
		"r1": {status: model.StatusConfirmed, version: 3},
	})
	notifier := &fakeNotifier{events: make(chan notify.CancellationEvent, 1)}
	e := newEngine(store, notifier)

	v := int64(3)
	res := e.Cancel(context.Background(), "r1", model.ActorCustomer, "running late", &v)
	if !res.Success || res.ConcurrencyConflict || res.Err != nil {
		t.Fatalf("unexpected result: %+v", res)
	}
	if store.records["r1"].status != model.StatusCancelled {
		t.Fatal("reservation not cancelled")
	}
	if store.records["r1"].version != 4 {
		t.Fatalf("version not bumped, got %d", store.records["r1"].version)
	}

	select {
	case ev := <-notifier.events:
		if ev.ReservationID != "r1" || ev.CancelledBy != "customer" {
			t.Fatalf("unexpected notification %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("notification never sent")
	}
}

func TestCancelStaleVersionConflict(t *testing.T) {
	store := newFakeStore(map[string]*fakeRecord{
		"r1": {status: model.StatusConfirmed, version: 5},
	})
	e := newEngine(store, nil)

	stale := int64(4)
	res := e.Cancel(context.Background(), "r1", model.ActorBarber, "", &stale)
	if res.Success || !res.ConcurrencyConflict {
		t.Fatalf("expected conflict, got %+v", res)
	}
	if store.applies != 0 {
		t.Fatal("conflict must be detected before any mutation")
	}
	if store.records["r1"].status != model.StatusConfirmed || store.records["r1"].version != 5 {
		t.Fatal("stored record must be unchanged on conflict")
	}
}

func TestCancelWithoutExpectedVersion(t *testing.T) {
	store := newFakeStore(map[string]*fakeRecord{
		"r1": {status: model.StatusConfirmed, version: 9},
	})
	e := newEngine(store, nil)

	res := e.Cancel(context.Background(), "r1", model.ActorBarber, "shop closed", nil)
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if store.records["r1"].version != 10 {
		t.Fatalf("version not bumped, got %d", store.records["r1"].version)
	}
}

func TestCancelValidation(t *testing.T) {
	e := newEngine(newFakeStore(nil), nil)
	res := e.Cancel(context.Background(), "", model.ActorCustomer, "", nil)
	if res.Success || !errors.Is(res.Err, ErrMissingReservationID) {
		t.Fatalf("expected validation error, got %+v", res)
	}
}

func TestCancelNotificationFailureDoesNotInvalidate(t *testing.T) {
	store := newFakeStore(map[string]*fakeRecord{
		"r1": {status: model.StatusConfirmed, version: 1},
	})
	e := newEngine(store, &fakeNotifier{fail: true})

	res := e.Cancel(context.Background(), "r1", model.ActorCustomer, "", nil)
	if !res.Success {
		t.Fatalf("notification failure must not fail the cancel: %+v", res)
	}
	if store.records["r1"].status != model.StatusCancelled {
		t.Fatal("cancellation not persisted")
	}
}

func TestBulkCancelPartialFailure(t *testing.T) {
	store := newFakeStore(map[string]*fakeRecord{
		"a": {status: model.StatusConfirmed, version: 1},
		"c": {status: model.StatusConfirmed, version: 2},
	})
	e := newEngine(store, nil)

	out := e.BulkCancel(context.Background(), []string{"a", "missing", "c"}, model.ActorBarber, "holiday")
	if out.Succeeded != 2 || out.Failed != 1 {
		t.Fatalf("expected 2/1, got %+v", out)
	}
	if len(out.Errors) != 1 || out.Errors[0].ReservationID != "missing" {
		t.Fatalf("unexpected errors: %+v", out.Errors)
	}
	if store.records["a"].status != model.StatusCancelled || store.records["c"].status != model.StatusCancelled {
		t.Fatal("surviving ids must still be processed")
	}
}
