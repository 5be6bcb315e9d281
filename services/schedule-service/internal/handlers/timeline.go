package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/trimline-app/trimline/services/schedule-service/internal/clock"
	"github.com/trimline-app/trimline/services/schedule-service/internal/model"
	"github.com/trimline-app/trimline/services/schedule-service/internal/storage"
	"github.com/trimline-app/trimline/services/schedule-service/internal/timeline"
)

type TimelineHandler struct {
	reservations *storage.ReservationRepository
	settings     *storage.SettingsRepository
	clk          *clock.Clock
	logger       *slog.Logger
}

func NewTimelineHandler(reservations *storage.ReservationRepository, settings *storage.SettingsRepository, clk *clock.Clock, logger *slog.Logger) *TimelineHandler {
	return &TimelineHandler{
		reservations: reservations,
		settings:     settings,
		clk:          clk,
		logger:       logger,
	}
}

type reservationDTO struct {
	ID                 string `json:"id"`
	BarberID           string `json:"barber_id"`
	ServiceID          string `json:"service_id,omitempty"`
	CustomerID         string `json:"customer_id,omitempty"`
	CustomerName       string `json:"customer_name,omitempty"`
	CustomerPhone      string `json:"customer_phone,omitempty"`
	TimeMillis         int64  `json:"time_millis"`
	Status             string `json:"status"`
	CancelledBy        string `json:"cancelled_by,omitempty"`
	CancellationReason string `json:"cancellation_reason,omitempty"`
	Version            int64  `json:"version"`
}

type timelineItemDTO struct {
	Kind        string          `json:"kind"`
	Reservation *reservationDTO `json:"reservation,omitempty"`
	IsPast      bool            `json:"is_past,omitempty"`
	Instant     int64           `json:"instant,omitempty"`
	Label       string          `json:"label,omitempty"`
}

type timelineResponse struct {
	BarberID string            `json:"barber_id"`
	Items    []timelineItemDTO `json:"items"`
}

// Timeline serves GET /api/v1/timeline. Query parameters: barber_id
// (required), view (all|upcoming|cancelled), date (civil YYYY-MM-DD),
// show_empty (default true), interval (slot minutes, default 30),
// from/to (epoch millis, both or neither).
func (h *TimelineHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()

	barberID := strings.TrimSpace(q.Get("barber_id"))
	if barberID == "" {
		http.Error(w, "barber_id is required", http.StatusBadRequest)
		return
	}

	mode := timeline.ModeAll
	switch q.Get("view") {
	case "", "all":
	case "upcoming":
		mode = timeline.ModeUpcoming
	case "cancelled":
		mode = timeline.ModeCancelled
	default:
		http.Error(w, "invalid view", http.StatusBadRequest)
		return
	}

	filters := timeline.Filters{Mode: mode}
	if from, to := q.Get("from"), q.Get("to"); from != "" && to != "" {
		fromMs, err1 := strconv.ParseInt(from, 10, 64)
		toMs, err2 := strconv.ParseInt(to, 10, 64)
		if err1 != nil || err2 != nil || toMs < fromMs {
			http.Error(w, "invalid from/to range", http.StatusBadRequest)
			return
		}
		filters.RangeStart, filters.RangeEnd = &fromMs, &toMs
	}

	now := h.clk.NowMillis()
	day := timeline.DayContext{
		NowMillis:      now,
		ShowEmptySlots: q.Get("show_empty") != "false",
	}
	if raw := q.Get("interval"); raw != "" {
		interval, err := strconv.Atoi(raw)
		if err != nil || interval <= 0 || interval > 24*60 {
			http.Error(w, "invalid interval", http.StatusBadRequest)
			return
		}
		day.IntervalMin = interval
	}
	if rawDate := strings.TrimSpace(q.Get("date")); rawDate != "" {
		parsed, err := time.Parse("2006-01-02", rawDate)
		if err != nil {
			http.Error(w, "invalid date", http.StatusBadRequest)
			return
		}
		selected := h.clk.InstantOf(parsed.Year(), parsed.Month(), parsed.Day(), 12, 0)
		day.SelectedDay = &selected
	}

	ctx := r.Context()
	reservations, err := h.reservations.ListByBarber(ctx, barberID)
	if err != nil {
		h.logger.Error("list reservations failed", "barber_id", barberID, "err", err)
		http.Error(w, "failed to load reservations", http.StatusInternalServerError)
		return
	}

	defaults, err := h.settings.ShopDefaults(ctx)
	if err != nil {
		// Missing or unreadable config never blocks the timeline.
		h.logger.Warn("shop defaults unavailable, using fallback", "err", err)
		defaults = storage.FallbackShopDefaults()
	}
	day.Defaults = defaults

	if day.SelectedDay != nil {
		weekday := h.clk.WeekdayKey(*day.SelectedDay)
		workDay, err := h.settings.WorkDayFor(ctx, barberID, weekday)
		if err != nil {
			h.logger.Warn("work day settings unavailable", "barber_id", barberID, "err", err)
		} else {
			day.WorkDay = workDay
		}
	}

	items := timeline.Compose(h.clk, reservations, filters, day)
	writeJSON(w, http.StatusOK, timelineResponse{BarberID: barberID, Items: toItemDTOs(items)})
}

func toItemDTOs(items []timeline.Item) []timelineItemDTO {
	out := make([]timelineItemDTO, 0, len(items))
	for _, it := range items {
		dto := timelineItemDTO{
			Kind:    string(it.Kind),
			IsPast:  it.IsPast,
			Instant: it.Instant,
			Label:   it.Label,
		}
		if it.Reservation != nil {
			dto.Reservation = toReservationDTO(it.Reservation)
		}
		out = append(out, dto)
	}
	return out
}

func toReservationDTO(res *model.Reservation) *reservationDTO {
	return &reservationDTO{
		ID:                 res.ID,
		BarberID:           res.BarberID,
		ServiceID:          res.ServiceID,
		CustomerID:         res.CustomerID,
		CustomerName:       res.CustomerName,
		CustomerPhone:      res.CustomerPhone,
		TimeMillis:         res.TimeMillis,
		Status:             string(res.Status),
		CancelledBy:        string(res.CancelledBy),
		CancellationReason: res.CancellationReason,
		Version:            res.Version,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
