package timeline

import (
	"github.com/trimline-app/trimline/services/schedule-service/internal/clock"
	"github.com/trimline-app/trimline/services/schedule-service/internal/model"
)

type HoursSource string

const (
	SourceBarberOverride HoursSource = "barber_override"
	SourceShopDefault    HoursSource = "shop_default"
	SourceClosed         HoursSource = "closed"
)

// WorkHours is the resolved work-hour window for one civil day, tagged with
// where it came from so callers can branch exhaustively.
type WorkHours struct {
	Source HoursSource
	Start  string
	End    string
}

// ResolveWorkHours picks the effective hours for the selected day.
func ResolveWorkHours(clk *clock.Clock, day DayContext) WorkHours {
	if day.SelectedDay == nil {
		return WorkHours{Source: SourceClosed}
	}
	return ResolveWeekday(clk.WeekdayKey(*day.SelectedDay), day.WorkDay, day.Defaults)
}

// ResolveWeekday resolves one weekday token: a barber override wins when
// present, an explicit non-working override closes the day, and otherwise
// shop defaults apply on open weekdays.
func ResolveWeekday(weekday string, wd *model.WorkDaySetting, defaults model.ShopDefaults) WorkHours {
	if wd != nil {
		if !wd.IsWorking {
			return WorkHours{Source: SourceClosed}
		}
		if wd.StartTime != "" && wd.EndTime != "" {
			return WorkHours{Source: SourceBarberOverride, Start: wd.StartTime, End: wd.EndTime}
		}
		// Working override with missing hours: fall through to defaults.
	}
	if !defaults.Open(weekday) {
		return WorkHours{Source: SourceClosed}
	}
	return WorkHours{Source: SourceShopDefault, Start: defaults.StartTime, End: defaults.EndTime}
}
