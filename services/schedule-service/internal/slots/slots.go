// Package slots generates the bookable time-slot grid for one civil day.
package slots

import (
	"strconv"
	"strings"

	"github.com/trimline-app/trimline/services/schedule-service/internal/clock"
)

// Slot is a derived, non-persisted unit of bookable time. It is produced fresh
// on every composition run and never stored.
type Slot struct {
	Instant int64
	Label   string
}

// Generate returns the slot grid for the civil day containing dayMillis,
// from start to end (civil "HH:MM", end exclusive), stepping by
// intervalMinutes. An end of "00:00" is a sentinel meaning end of day.
//
// Slots at or before nowMillis are omitted only when the target day is the
// current civil day; for any other day the full grid is returned. Pure
// function of its inputs.
func Generate(clk *clock.Clock, dayMillis int64, start, end string, intervalMinutes int, nowMillis int64) []Slot {
	if intervalMinutes <= 0 {
		return nil
	}
	startMinute, ok := parseHHMM(start)
	if !ok {
		return nil
	}
	endMinute, ok := parseHHMM(end)
	if !ok {
		return nil
	}
	if endMinute == 0 {
		// Midnight end means "until end of day": 23:59 is the last
		// admissible slot instant, not a literal zero-length window.
		endMinute = 24 * 60
	}
	if endMinute <= startMinute {
		return nil
	}

	isToday := clk.SameCivilDay(dayMillis, nowMillis)
	y, mo, d := clk.Civil(dayMillis).Date()

	var grid []Slot
	for minute := startMinute; minute < endMinute; minute += intervalMinutes {
		instant := clk.InstantOf(y, mo, d, minute/60, minute%60)
		if isToday && instant <= nowMillis {
			continue
		}
		grid = append(grid, Slot{Instant: instant, Label: clk.TimeLabel(instant)})
	}
	return grid
}

func parseHHMM(v string) (minuteOfDay int, ok bool) {
	h, m, found := strings.Cut(strings.TrimSpace(v), ":")
	if !found {
		return 0, false
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, false
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, false
	}
	return hour*60 + minute, true
}
