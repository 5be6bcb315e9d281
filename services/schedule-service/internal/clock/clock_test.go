package clock

import (
	"testing"
	"time"
)

func TestDayBoundaries(t *testing.T) {
	c := MustNew("Asia/Dhaka")

	// 2026-03-10 14:37 local.
	ms := c.InstantOf(2026, time.March, 10, 14, 37)

	start := c.DayStart(ms)
	if got := c.Civil(start); got.Hour() != 0 || got.Minute() != 0 || got.Day() != 10 {
		t.Fatalf("day start not at civil midnight: %s", got)
	}

	end := c.DayEnd(ms)
	if end != start+24*60*60*1000-1 {
		t.Fatalf("day end should be start+24h-1ms, got diff %d", end-start)
	}
	if !c.SameCivilDay(start, end) {
		t.Fatal("day start and day end must share a civil day")
	}
	if c.SameCivilDay(end, end+1) {
		t.Fatal("instant after day end must fall on the next civil day")
	}
}

func TestWeekdayKeyUsesCivilDay(t *testing.T) {
	c := MustNew("Asia/Dhaka")

	// 2026-03-09 01:00 local is still 2026-03-08 UTC (Dhaka is UTC+6); the
	// key must come from the civil day, not the UTC day.
	ms := c.InstantOf(2026, time.March, 9, 1, 0)
	if got := c.WeekdayKey(ms); got != "monday" {
		t.Fatalf("expected monday, got %q", got)
	}
	if utcDay := time.UnixMilli(ms).UTC().Weekday(); utcDay != time.Sunday {
		t.Fatalf("fixture no longer crosses the UTC day boundary (utc=%s)", utcDay)
	}
}

func TestFloorToSlot(t *testing.T) {
	c := MustNew("Asia/Dhaka")

	base := c.InstantOf(2026, time.March, 10, 10, 17)
	withSeconds := base + 42*1000 + 250 // 10:17:42.250

	got := c.FloorToSlot(withSeconds, 30)
	if want := c.InstantOf(2026, time.March, 10, 10, 0); got != want {
		t.Fatalf("expected floor to 10:00, got %s", c.SlotKey(got))
	}

	got = c.FloorToSlot(withSeconds, 15)
	if want := c.InstantOf(2026, time.March, 10, 10, 15); got != want {
		t.Fatalf("expected floor to 10:15, got %s", c.SlotKey(got))
	}
}

func TestFloorToSlotIdempotent(t *testing.T) {
	c := MustNew("Asia/Dhaka")

	instants := []int64{
		c.InstantOf(2026, time.March, 10, 9, 0),
		c.InstantOf(2026, time.March, 10, 9, 29) + 59999,
		c.InstantOf(2026, time.December, 31, 23, 45) + 123,
	}
	for _, ms := range instants {
		once := c.FloorToSlot(ms, 30)
		twice := c.FloorToSlot(once, 30)
		if once != twice {
			t.Fatalf("flooring not idempotent for %d: %d != %d", ms, once, twice)
		}
	}
}

func TestSlotKeyEquality(t *testing.T) {
	c := MustNew("Asia/Dhaka")

	a := c.InstantOf(2026, time.March, 10, 9, 30)
	b := a + 59*1000 // same civil minute, 59s later
	if c.SlotKey(a) != "2026-03-10-09-30" {
		t.Fatalf("unexpected slot key %q", c.SlotKey(a))
	}
	if !c.SameSlot(a, b) {
		t.Fatal("instants in the same civil minute must share a slot key")
	}
	if c.SameSlot(a, a+minuteMillis) {
		t.Fatal("instants one minute apart must not share a slot key")
	}
}

func TestNormalizeEpochMillis(t *testing.T) {
	seconds := int64(1767225600) // 2026-01-01 in seconds
	if got := NormalizeEpochMillis(seconds); got != seconds*1000 {
		t.Fatalf("second-precision value not rescaled: %d", got)
	}

	millis := int64(1767225600000)
	if got := NormalizeEpochMillis(millis); got != millis {
		t.Fatalf("millisecond value must pass through, got %d", got)
	}

	if got := NormalizeEpochMillis(0); got != 0 {
		t.Fatalf("zero must pass through, got %d", got)
	}
}
