// Package feed abstracts the reservation change feed the synchronizer
// subscribes to. The production implementation rides Redis pub/sub; tests
// substitute in-memory fakes.
package feed

import "context"

// Event is one change notification. The synchronizer treats every event the
// same way (full refetch), so the payload carries identity only.
type Event struct {
	Type          string `json:"type"` // insert | update | delete
	ReservationID string `json:"reservation_id"`
	BarberID      string `json:"barber_id"`
}

// Subscription is one live channel. Events is closed when the underlying
// channel dies; Status probes actual liveness independent of event traffic.
type Subscription interface {
	Events() <-chan Event
	Status(ctx context.Context) error
	Close() error
}

type Feed interface {
	Subscribe(ctx context.Context, channel string) (Subscription, error)
}

// Channel names the pub/sub channel carrying one barber's reservation changes.
func Channel(barberID string) string {
	return "reservations:" + barberID
}
