// Package timeline merges persisted reservations with the generated slot grid
// into a single chronological render sequence. Compose is pure and synchronous:
// it performs no I/O, never errors, and is safe to invoke repeatedly and
// concurrently for the same inputs.
package timeline

import (
	"sort"

	"github.com/trimline-app/trimline/services/schedule-service/internal/clock"
	"github.com/trimline-app/trimline/services/schedule-service/internal/model"
	"github.com/trimline-app/trimline/services/schedule-service/internal/slots"
)

type Kind string

const (
	KindReservation Kind = "reservation"
	KindEmptySlot   Kind = "empty_slot"
	KindDivider     Kind = "divider"
)

const (
	DividerUpcoming  = "Upcoming"
	DividerNoFurther = "No further appointments today"
)

// slotMatchToleranceMillis absorbs clock/rounding drift when pairing a
// reservation with a generated slot. Far smaller than any sane slot interval.
const slotMatchToleranceMillis = 60 * 1000

// Item is one render unit. Exactly one variant applies per Kind:
// reservations carry Reservation and IsPast, empty slots carry Instant and
// Label, dividers carry only Label.
type Item struct {
	Kind        Kind
	Reservation *model.Reservation
	IsPast      bool
	Instant     int64
	Label       string
}

type ViewMode string

const (
	ModeAll       ViewMode = "all"
	ModeUpcoming  ViewMode = "upcoming"
	ModeCancelled ViewMode = "cancelled"
)

// Filters select which reservations participate. RangeStart/RangeEnd bound the
// normalized instant and only apply when both are set.
type Filters struct {
	Mode       ViewMode
	RangeStart *int64
	RangeEnd   *int64
}

// DayContext supplies everything the single-day assembly needs. SelectedDay is
// any instant within the target civil day; when set, composition is scoped to
// that day and reservations on any other civil day are excluded. WorkDay is
// the barber's override for that weekday, if one exists.
type DayContext struct {
	SelectedDay    *int64
	WorkDay        *model.WorkDaySetting
	Defaults       model.ShopDefaults
	IntervalMin    int
	ShowEmptySlots bool
	NowMillis      int64
}

type entry struct {
	res *model.Reservation
	ms  int64
}

// Compose produces the ordered render sequence for one barber's reservations.
// Every reservation that passes the active filters appears exactly once in the
// output; missing configuration degrades to shop defaults, never to an error.
func Compose(clk *clock.Clock, reservations []model.Reservation, f Filters, day DayContext) []Item {
	entries := make([]entry, 0, len(reservations))
	for i := range reservations {
		res := &reservations[i]
		ms := clock.NormalizeEpochMillis(res.TimeMillis)
		if f.RangeStart != nil && f.RangeEnd != nil {
			if ms < *f.RangeStart || ms > *f.RangeEnd {
				continue
			}
		}
		if day.SelectedDay != nil && !clk.SameCivilDay(ms, *day.SelectedDay) {
			continue
		}
		switch f.Mode {
		case ModeUpcoming:
			if res.Status != model.StatusConfirmed || ms <= day.NowMillis {
				continue
			}
		case ModeCancelled:
			if res.Status != model.StatusCancelled {
				continue
			}
		default: // ModeAll
			if res.Status == model.StatusCancelled {
				continue
			}
		}
		entries = append(entries, entry{res: res, ms: ms})
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].ms < entries[j].ms })

	if f.Mode == ModeAll && day.SelectedDay != nil && day.ShowEmptySlots {
		return assembleDay(clk, entries, day)
	}
	return assembleFlat(entries, day.NowMillis)
}

// assembleFlat renders the filtered reservations directly, without slots or
// dividers: multi-day ranges, cancelled/upcoming views, and hidden-slot views.
func assembleFlat(entries []entry, now int64) []Item {
	items := make([]Item, 0, len(entries))
	for _, e := range entries {
		items = append(items, Item{
			Kind:        KindReservation,
			Reservation: e.res,
			IsPast:      e.ms <= now,
			Instant:     e.ms,
		})
	}
	return items
}

// assembleDay builds the full single-day view: past reservations, one divider,
// then the slot grid with upcoming reservations slotted in and out-of-hours
// bookings woven back into chronological position.
func assembleDay(clk *clock.Clock, entries []entry, day DayContext) []Item {
	var past, upcoming []entry
	for _, e := range entries {
		if e.ms <= day.NowMillis {
			past = append(past, e)
		} else {
			upcoming = append(upcoming, e)
		}
	}

	var items []Item
	for _, e := range past {
		items = append(items, Item{Kind: KindReservation, Reservation: e.res, IsPast: true, Instant: e.ms})
	}
	if len(past) > 0 {
		label := DividerNoFurther
		if len(upcoming) > 0 {
			label = DividerUpcoming
		}
		items = append(items, Item{Kind: KindDivider, Label: label})
	}

	hours := ResolveWorkHours(clk, day)
	if hours.Source == SourceClosed {
		// Off day: no grid, but manually booked appointments still show.
		for _, e := range upcoming {
			items = append(items, Item{Kind: KindReservation, Reservation: e.res, Instant: e.ms})
		}
		return items
	}

	interval := day.IntervalMin
	if interval <= 0 {
		interval = 30
	}
	grid := slots.Generate(clk, *day.SelectedDay, hours.Start, hours.End, interval, day.NowMillis)

	consumed := make([]bool, len(upcoming))
	for _, s := range grid {
		matched := false
		for i, e := range upcoming {
			if consumed[i] {
				continue
			}
			if diff := e.ms - s.Instant; diff >= -slotMatchToleranceMillis && diff <= slotMatchToleranceMillis {
				items = append(items, Item{Kind: KindReservation, Reservation: e.res, Instant: e.ms})
				consumed[i] = true
				matched = true
				break
			}
		}
		if !matched {
			items = append(items, Item{Kind: KindEmptySlot, Instant: s.Instant, Label: s.Label})
		}
	}

	// Orphans: upcoming reservations outside the grid (off-hours bookings).
	// Already in ascending order thanks to the stable sort above.
	for i, e := range upcoming {
		if !consumed[i] {
			items = insertChronological(items, Item{Kind: KindReservation, Reservation: e.res, Instant: e.ms})
		}
	}
	return items
}

// insertChronological places it before the first non-divider item whose
// instant exceeds it, or at the end when none does.
func insertChronological(items []Item, it Item) []Item {
	at := len(items)
	for i, existing := range items {
		if existing.Kind == KindDivider {
			continue
		}
		if existing.Instant > it.Instant {
			at = i
			break
		}
	}
	items = append(items, Item{})
	copy(items[at+1:], items[at:])
	items[at] = it
	return items
}
