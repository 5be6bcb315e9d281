package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/trimline-app/trimline/libs/db"
	"github.com/trimline-app/trimline/services/schedule-service/internal/model"
)

type SettingsRepository struct {
	pool *db.Pool
}

func NewSettingsRepository(pool *db.Pool) *SettingsRepository {
	return &SettingsRepository{pool: pool}
}

func (r *SettingsRepository) WorkDaySettings(ctx context.Context, barberID string) ([]model.WorkDaySetting, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT barber_id, day_of_week, is_working, COALESCE(start_time, ''), COALESCE(end_time, '')
		FROM work_day_settings
		WHERE barber_id = $1
	`, barberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var settings []model.WorkDaySetting
	for rows.Next() {
		var wd model.WorkDaySetting
		if err := rows.Scan(&wd.BarberID, &wd.DayOfWeek, &wd.IsWorking, &wd.StartTime, &wd.EndTime); err != nil {
			return nil, err
		}
		settings = append(settings, wd)
	}
	return settings, rows.Err()
}

// WorkDayFor returns the barber's override for one weekday, or nil when none
// is configured.
func (r *SettingsRepository) WorkDayFor(ctx context.Context, barberID, weekday string) (*model.WorkDaySetting, error) {
	var wd model.WorkDaySetting
	err := r.pool.QueryRow(ctx, `
		SELECT barber_id, day_of_week, is_working, COALESCE(start_time, ''), COALESCE(end_time, '')
		FROM work_day_settings
		WHERE barber_id = $1 AND day_of_week = $2
	`, barberID, weekday).Scan(&wd.BarberID, &wd.DayOfWeek, &wd.IsWorking, &wd.StartTime, &wd.EndTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &wd, nil
}

// ShopDefaults reads the shop-wide fallback hours. A missing row is recovered
// locally with built-in defaults; the composer must never see a config error.
func (r *SettingsRepository) ShopDefaults(ctx context.Context) (model.ShopDefaults, error) {
	var d model.ShopDefaults
	err := r.pool.QueryRow(ctx, `
		SELECT start_time, end_time, open_days FROM shop_defaults LIMIT 1
	`).Scan(&d.StartTime, &d.EndTime, &d.OpenDays)
	if errors.Is(err, pgx.ErrNoRows) {
		return FallbackShopDefaults(), nil
	}
	if err != nil {
		return model.ShopDefaults{}, err
	}
	return d, nil
}

func FallbackShopDefaults() model.ShopDefaults {
	return model.ShopDefaults{
		StartTime: "09:00",
		EndTime:   "19:00",
		OpenDays:  []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday"},
	}
}
