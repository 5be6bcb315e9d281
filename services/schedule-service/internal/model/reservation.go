package model

type ReservationStatus string

const (
	StatusConfirmed ReservationStatus = "confirmed"
	StatusCancelled ReservationStatus = "cancelled"
	StatusCompleted ReservationStatus = "completed"
)

type Actor string

const (
	ActorCustomer Actor = "customer"
	ActorBarber   Actor = "barber"
)

// Reservation is a booked (or cancelled) appointment. TimeMillis is the UTC
// epoch-millisecond instant of the appointment and is the single source of
// truth for ordering; civil-time rendering is derived from it on demand.
type Reservation struct {
	ID                 string
	BarberID           string
	ServiceID          string
	CustomerID         string
	CustomerName       string
	CustomerPhone      string
	TimeMillis         int64
	Status             ReservationStatus
	CancelledBy        Actor
	CancellationReason string
	Version            int64
}

// Cancellation carries the fields applied when a reservation is cancelled.
// ExpectedVersion, when set, makes the write conditional on the stored version.
type Cancellation struct {
	Actor           Actor
	Reason          string
	ExpectedVersion *int64
}
