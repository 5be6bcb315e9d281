package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/trimline-app/trimline/libs/db"
	"github.com/trimline-app/trimline/services/schedule-service/internal/model"
)

var (
	ErrNotFound        = errors.New("reservation not found")
	ErrVersionConflict = errors.New("reservation version conflict")
)

func IsConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

type ReservationRepository struct {
	pool *db.Pool
}

func NewReservationRepository(pool *db.Pool) *ReservationRepository {
	return &ReservationRepository{pool: pool}
}

// ListByBarber returns the barber's full reservation set ordered by instant.
// The synchronizer refetches through this on every feed event, so the query
// stays deliberately unconditional.
func (r *ReservationRepository) ListByBarber(ctx context.Context, barberID string) ([]model.Reservation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, barber_id, service_id, customer_id, customer_name, customer_phone,
			time_millis, status, COALESCE(cancelled_by, ''), COALESCE(cancellation_reason, ''), version
		FROM reservations
		WHERE barber_id = $1
		ORDER BY time_millis
	`, barberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reservations []model.Reservation
	for rows.Next() {
		var res model.Reservation
		var status, cancelledBy string
		if err := rows.Scan(
			&res.ID,
			&res.BarberID,
			&res.ServiceID,
			&res.CustomerID,
			&res.CustomerName,
			&res.CustomerPhone,
			&res.TimeMillis,
			&status,
			&cancelledBy,
			&res.CancellationReason,
			&res.Version,
		); err != nil {
			return nil, err
		}
		res.Status = model.ReservationStatus(status)
		res.CancelledBy = model.Actor(cancelledBy)
		reservations = append(reservations, res)
	}
	return reservations, rows.Err()
}

func (r *ReservationRepository) ReadVersion(ctx context.Context, reservationID string) (int64, error) {
	var version int64
	err := r.pool.QueryRow(ctx, `
		SELECT version FROM reservations WHERE id = $1
	`, reservationID).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return version, nil
}

// ApplyCancellation marks the reservation cancelled and bumps its version.
// With ExpectedVersion set the update is conditional: a zero-row result on an
// existing reservation means the version moved underneath the caller.
func (r *ReservationRepository) ApplyCancellation(ctx context.Context, reservationID string, change model.Cancellation) error {
	args := []any{reservationID, string(change.Actor), change.Reason}
	query := `
		UPDATE reservations
		SET status = 'cancelled',
			cancelled_by = $2,
			cancellation_reason = $3,
			version = version + 1,
			updated_at = now()
		WHERE id = $1
	`
	if change.ExpectedVersion != nil {
		query += ` AND version = $4`
		args = append(args, *change.ExpectedVersion)
	}

	ct, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("apply cancellation: %w", err)
	}
	if ct.RowsAffected() > 0 {
		return nil
	}
	if change.ExpectedVersion == nil {
		return ErrNotFound
	}

	// Distinguish a stale version from a missing row.
	if _, err := r.ReadVersion(ctx, reservationID); err != nil {
		return err
	}
	return ErrVersionConflict
}
