package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/trimline-app/trimline/services/schedule-service/internal/model"
	"github.com/trimline-app/trimline/services/schedule-service/internal/storage"
	"github.com/trimline-app/trimline/services/schedule-service/internal/timeline"
)

var weekdays = []string{
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
}

type HoursHandler struct {
	settings *storage.SettingsRepository
	logger   *slog.Logger
}

func NewHoursHandler(settings *storage.SettingsRepository, logger *slog.Logger) *HoursHandler {
	return &HoursHandler{settings: settings, logger: logger}
}

type weekdayHoursDTO struct {
	Weekday string `json:"weekday"`
	Source  string `json:"source"`
	Start   string `json:"start,omitempty"`
	End     string `json:"end,omitempty"`
}

type hoursResponse struct {
	BarberID string            `json:"barber_id"`
	Days     []weekdayHoursDTO `json:"days"`
}

// Hours serves GET /api/v1/work-hours: the barber's effective weekly schedule
// after overrides and shop defaults are resolved.
func (h *HoursHandler) Hours(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	barberID := strings.TrimSpace(r.URL.Query().Get("barber_id"))
	if barberID == "" {
		http.Error(w, "barber_id is required", http.StatusBadRequest)
		return
	}
	ctx := r.Context()

	defaults, err := h.settings.ShopDefaults(ctx)
	if err != nil {
		h.logger.Warn("shop defaults unavailable, using fallback", "err", err)
		defaults = storage.FallbackShopDefaults()
	}

	overrides := map[string]*model.WorkDaySetting{}
	settings, err := h.settings.WorkDaySettings(ctx, barberID)
	if err != nil {
		h.logger.Warn("work day settings unavailable", "barber_id", barberID, "err", err)
	}
	for i := range settings {
		overrides[strings.ToLower(settings[i].DayOfWeek)] = &settings[i]
	}

	days := make([]weekdayHoursDTO, 0, len(weekdays))
	for _, weekday := range weekdays {
		resolved := timeline.ResolveWeekday(weekday, overrides[weekday], defaults)
		days = append(days, weekdayHoursDTO{
			Weekday: weekday,
			Source:  string(resolved.Source),
			Start:   resolved.Start,
			End:     resolved.End,
		})
	}
	writeJSON(w, http.StatusOK, hoursResponse{BarberID: barberID, Days: days})
}
