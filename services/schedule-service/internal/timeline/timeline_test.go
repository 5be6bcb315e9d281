package timeline

import (
	"testing"
	"time"

	"github.com/trimline-app/trimline/services/schedule-service/internal/clock"
	"github.com/trimline-app/trimline/services/schedule-service/internal/model"
)

var clk = clock.MustNew("Asia/Dhaka")

func at(hour, minute int) int64 {
	return clk.InstantOf(2026, time.April, 2, hour, minute) // a Thursday
}

func confirmed(id string, ms int64) model.Reservation {
	return model.Reservation{ID: id, BarberID: "b1", TimeMillis: ms, Status: model.StatusConfirmed}
}

func dayCtx(now int64) DayContext {
	day := at(0, 0)
	return DayContext{
		SelectedDay: &day,
		Defaults: model.ShopDefaults{
			StartTime: "09:00",
			EndTime:   "19:00",
			OpenDays:  []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday"},
		},
		IntervalMin:    30,
		ShowEmptySlots: true,
		NowMillis:      now,
	}
}

func reservationIDs(items []Item) []string {
	var ids []string
	for _, it := range items {
		if it.Kind == KindReservation {
			ids = append(ids, it.Reservation.ID)
		}
	}
	return ids
}

func TestComposeExampleScenario(t *testing.T) {
	// Past confirmed at 09:00, cancelled at 11:00, hours 09:00-12:00, now 10:30.
	reservations := []model.Reservation{
		confirmed("A", at(9, 0)),
		{ID: "B", BarberID: "b1", TimeMillis: at(11, 0), Status: model.StatusCancelled},
	}
	day := dayCtx(at(10, 30))
	day.WorkDay = &model.WorkDaySetting{BarberID: "b1", DayOfWeek: "thursday", IsWorking: true, StartTime: "09:00", EndTime: "12:00"}

	items := Compose(clk, reservations, Filters{Mode: ModeAll}, day)

	if len(items) != 4 {
		t.Fatalf("expected [A, divider, 11:00, 11:30], got %d items", len(items))
	}
	if items[0].Kind != KindReservation || items[0].Reservation.ID != "A" || !items[0].IsPast {
		t.Fatalf("first item should be past reservation A, got %+v", items[0])
	}
	if items[1].Kind != KindDivider || items[1].Label != DividerNoFurther {
		t.Fatalf("expected %q divider, got %+v", DividerNoFurther, items[1])
	}
	for i, want := range []int64{at(11, 0), at(11, 30)} {
		it := items[2+i]
		if it.Kind != KindEmptySlot || it.Instant != want {
			t.Fatalf("expected empty slot at %s, got %+v", clk.SlotKey(want), it)
		}
	}
}

func TestComposeUpcomingDividerAndSlotFill(t *testing.T) {
	reservations := []model.Reservation{
		confirmed("past", at(9, 30)),
		confirmed("next", at(11, 0)),
	}
	day := dayCtx(at(10, 15))
	day.WorkDay = &model.WorkDaySetting{IsWorking: true, StartTime: "09:00", EndTime: "12:00"}

	items := Compose(clk, reservations, Filters{Mode: ModeAll}, day)

	if items[1].Kind != KindDivider || items[1].Label != DividerUpcoming {
		t.Fatalf("expected %q divider, got %+v", DividerUpcoming, items[1])
	}
	// Grid after 10:15 is 10:30, 11:00, 11:30; "next" fills the 11:00 slot.
	if items[2].Kind != KindEmptySlot || items[2].Instant != at(10, 30) {
		t.Fatalf("expected empty 10:30 slot, got %+v", items[2])
	}
	if items[3].Kind != KindReservation || items[3].Reservation.ID != "next" || items[3].IsPast {
		t.Fatalf("expected reservation in the 11:00 slot, got %+v", items[3])
	}
	if items[4].Kind != KindEmptySlot || items[4].Instant != at(11, 30) {
		t.Fatalf("expected empty 11:30 slot, got %+v", items[4])
	}
}

func TestComposeSlotMatchTolerance(t *testing.T) {
	// 45 seconds off the grid line still lands in the slot; 90 seconds does not.
	near := confirmed("near", at(11, 0)+45*1000)
	day := dayCtx(at(10, 0))

	items := Compose(clk, []model.Reservation{near}, Filters{Mode: ModeAll}, day)
	for _, it := range items {
		if it.Kind == KindEmptySlot && clk.SameSlot(it.Instant, at(11, 0)) {
			t.Fatal("11:00 slot should have been consumed by the near reservation")
		}
	}

	far := confirmed("far", at(11, 0)+90*1000)
	items = Compose(clk, []model.Reservation{far}, Filters{Mode: ModeAll}, day)
	ids := reservationIDs(items)
	if len(ids) != 1 || ids[0] != "far" {
		t.Fatalf("far reservation must still appear exactly once, got %v", ids)
	}
}

func TestComposeOrphanPlacedAtEnd(t *testing.T) {
	// Confirmed 20:30 with hours 09:00-19:00 lands strictly after the grid.
	reservations := []model.Reservation{confirmed("orphan", at(20, 30))}
	day := dayCtx(at(10, 0))

	items := Compose(clk, reservations, Filters{Mode: ModeAll}, day)
	if len(items) == 0 {
		t.Fatal("expected items")
	}
	last := items[len(items)-1]
	if last.Kind != KindReservation || last.Reservation.ID != "orphan" {
		t.Fatalf("orphan must be the final item, got %+v", last)
	}
	for _, it := range items[:len(items)-1] {
		if it.Kind != KindDivider && it.Instant > at(20, 30) {
			t.Fatalf("item after orphan instant found before it: %+v", it)
		}
	}
}

func TestComposeOrphanInsertedMidSequence(t *testing.T) {
	// An 08:00 booking before opening must appear before the 09:00+ grid.
	reservations := []model.Reservation{confirmed("early", at(8, 0))}
	day := dayCtx(at(7, 0))

	items := Compose(clk, reservations, Filters{Mode: ModeAll}, day)
	if items[0].Kind != KindReservation || items[0].Reservation.ID != "early" {
		t.Fatalf("early orphan must lead the sequence, got %+v", items[0])
	}
	if items[1].Kind != KindEmptySlot || items[1].Instant != at(9, 0) {
		t.Fatalf("grid must follow the early orphan, got %+v", items[1])
	}
}

func TestComposeOffDaySkipsGrid(t *testing.T) {
	reservations := []model.Reservation{
		confirmed("manual1", at(11, 0)),
		confirmed("manual2", at(15, 0)),
	}
	day := dayCtx(at(10, 0))
	day.WorkDay = &model.WorkDaySetting{IsWorking: false}

	items := Compose(clk, reservations, Filters{Mode: ModeAll}, day)
	if len(items) != 2 {
		t.Fatalf("off day keeps only manual bookings, got %d items", len(items))
	}
	for _, it := range items {
		if it.Kind != KindReservation {
			t.Fatalf("no slots or dividers on an off day, got %+v", it)
		}
	}
	if items[0].Reservation.ID != "manual1" || items[1].Reservation.ID != "manual2" {
		t.Fatalf("manual bookings out of order: %v", reservationIDs(items))
	}
}

func TestComposeClosedWeekdayFallsBackToClosed(t *testing.T) {
	day := dayCtx(at(10, 0))
	day.Defaults.OpenDays = []string{"monday"} // selected day is a Thursday

	items := Compose(clk, nil, Filters{Mode: ModeAll}, day)
	if len(items) != 0 {
		t.Fatalf("closed weekday with no bookings must be empty, got %d items", len(items))
	}
}

func TestComposeConservation(t *testing.T) {
	reservations := []model.Reservation{
		confirmed("r1", at(9, 0)),
		confirmed("r2", at(10, 30)),
		confirmed("r3", at(11, 0)),
		confirmed("r4", at(21, 0)), // orphan
		{ID: "r5", TimeMillis: at(12, 0), Status: model.StatusCancelled},
	}
	items := Compose(clk, reservations, Filters{Mode: ModeAll}, dayCtx(at(10, 0)))

	seen := map[string]int{}
	for _, id := range reservationIDs(items) {
		seen[id]++
	}
	for _, id := range []string{"r1", "r2", "r3", "r4"} {
		if seen[id] != 1 {
			t.Fatalf("reservation %s appeared %d times", id, seen[id])
		}
	}
	if seen["r5"] != 0 {
		t.Fatal("cancelled reservation leaked into the all view")
	}
}

func TestComposeModeFilters(t *testing.T) {
	reservations := []model.Reservation{
		confirmed("pastc", at(9, 0)),
		confirmed("future", at(15, 0)),
		{ID: "gone", TimeMillis: at(16, 0), Status: model.StatusCancelled},
		{ID: "done", TimeMillis: at(8, 0), Status: model.StatusCompleted},
	}
	now := at(12, 0)

	up := Compose(clk, reservations, Filters{Mode: ModeUpcoming}, DayContext{NowMillis: now})
	if ids := reservationIDs(up); len(ids) != 1 || ids[0] != "future" {
		t.Fatalf("upcoming view wrong: %v", ids)
	}
	if up[0].IsPast {
		t.Fatal("upcoming item marked past")
	}

	cancelled := Compose(clk, reservations, Filters{Mode: ModeCancelled}, DayContext{NowMillis: now})
	if ids := reservationIDs(cancelled); len(ids) != 1 || ids[0] != "gone" {
		t.Fatalf("cancelled view wrong: %v", ids)
	}

	all := Compose(clk, reservations, Filters{Mode: ModeAll}, DayContext{NowMillis: now})
	if ids := reservationIDs(all); len(ids) != 3 {
		t.Fatalf("all view keeps confirmed+completed, got %v", ids)
	}
	if !all[0].IsPast || all[0].Reservation.ID != "done" {
		t.Fatalf("flat assembly must sort and mark past per item, got %+v", all[0])
	}
}

func TestComposeRangeFilter(t *testing.T) {
	reservations := []model.Reservation{
		confirmed("in", at(10, 0)),
		confirmed("out", at(18, 0)),
	}
	from, to := at(9, 0), at(12, 0)
	items := Compose(clk, reservations, Filters{Mode: ModeAll, RangeStart: &from, RangeEnd: &to}, DayContext{NowMillis: at(8, 0)})
	if ids := reservationIDs(items); len(ids) != 1 || ids[0] != "in" {
		t.Fatalf("range filter wrong: %v", ids)
	}

	// A single bound is not a range: both reservations stay.
	items = Compose(clk, reservations, Filters{Mode: ModeAll, RangeStart: &from}, DayContext{NowMillis: at(8, 0)})
	if ids := reservationIDs(items); len(ids) != 2 {
		t.Fatalf("half-open bound must be ignored: %v", ids)
	}
}

func TestComposeSelectedDayScopesOutOtherDays(t *testing.T) {
	reservations := []model.Reservation{
		confirmed("last-week", clk.InstantOf(2026, time.March, 26, 10, 0)),
		confirmed("today", at(10, 0)),
		confirmed("tomorrow", clk.InstantOf(2026, time.April, 3, 10, 0)),
	}
	items := Compose(clk, reservations, Filters{Mode: ModeAll}, dayCtx(at(12, 0)))
	if ids := reservationIDs(items); len(ids) != 1 || ids[0] != "today" {
		t.Fatalf("single-day view must contain only that day's reservations, got %v", ids)
	}

	// Day scoping applies even when the flat assembly is used.
	day := at(0, 0)
	flat := Compose(clk, reservations, Filters{Mode: ModeUpcoming},
		DayContext{SelectedDay: &day, NowMillis: at(8, 0)})
	if ids := reservationIDs(flat); len(ids) != 1 || ids[0] != "today" {
		t.Fatalf("upcoming single-day view leaked other days: %v", ids)
	}
}

func TestComposeNormalizesSecondTimestamps(t *testing.T) {
	legacy := model.Reservation{ID: "legacy", Status: model.StatusConfirmed, TimeMillis: at(15, 0) / 1000}
	items := Compose(clk, []model.Reservation{legacy}, Filters{Mode: ModeAll}, dayCtx(at(10, 0)))

	found := false
	for _, it := range items {
		if it.Kind == KindReservation && it.Reservation.ID == "legacy" {
			found = true
			if it.Instant != at(15, 0) {
				t.Fatalf("legacy timestamp not rescaled: %d", it.Instant)
			}
		}
	}
	if !found {
		t.Fatal("legacy reservation missing from output")
	}
}

func TestComposeIdempotent(t *testing.T) {
	reservations := []model.Reservation{
		confirmed("a", at(9, 0)),
		confirmed("b", at(11, 0)),
		confirmed("c", at(20, 30)),
	}
	day := dayCtx(at(10, 0))

	first := Compose(clk, reservations, Filters{Mode: ModeAll}, day)
	second := Compose(clk, reservations, Filters{Mode: ModeAll}, day)
	if len(first) != len(second) {
		t.Fatalf("length differs between runs: %d vs %d", len(first), len(second))
	}
	for i := range first {
		a, b := first[i], second[i]
		if a.Kind != b.Kind || a.Instant != b.Instant || a.Label != b.Label || a.IsPast != b.IsPast {
			t.Fatalf("run mismatch at %d: %+v vs %+v", i, a, b)
		}
	}
}

func TestResolveWorkHours(t *testing.T) {
	day := at(0, 0) // Thursday
	defaults := model.ShopDefaults{StartTime: "09:00", EndTime: "19:00", OpenDays: []string{"thursday"}}

	got := ResolveWorkHours(clk, DayContext{SelectedDay: &day, Defaults: defaults})
	if got.Source != SourceShopDefault || got.Start != "09:00" {
		t.Fatalf("expected shop default hours, got %+v", got)
	}

	override := &model.WorkDaySetting{IsWorking: true, StartTime: "10:00", EndTime: "16:00"}
	got = ResolveWorkHours(clk, DayContext{SelectedDay: &day, WorkDay: override, Defaults: defaults})
	if got.Source != SourceBarberOverride || got.Start != "10:00" || got.End != "16:00" {
		t.Fatalf("expected barber override, got %+v", got)
	}

	off := &model.WorkDaySetting{IsWorking: false}
	got = ResolveWorkHours(clk, DayContext{SelectedDay: &day, WorkDay: off, Defaults: defaults})
	if got.Source != SourceClosed {
		t.Fatalf("expected closed, got %+v", got)
	}

	incomplete := &model.WorkDaySetting{IsWorking: true}
	got = ResolveWorkHours(clk, DayContext{SelectedDay: &day, WorkDay: incomplete, Defaults: defaults})
	if got.Source != SourceShopDefault {
		t.Fatalf("working override without hours must fall back, got %+v", got)
	}
}
