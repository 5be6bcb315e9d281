// Package clock converts between UTC epoch-millisecond instants and civil time
// in the shop's fixed timezone, and provides the day/slot boundary arithmetic
// the scheduling engine is built on. All instants are int64 UTC milliseconds.
package clock

import (
	"fmt"
	"strings"
	"time"
)

// epoch2000Millis is 2000-01-01T00:00:00Z in epoch milliseconds. Stored values
// below this magnitude are assumed to be legacy second-precision timestamps.
const epoch2000Millis = 946684800000

const minuteMillis = 60 * 1000

// Clock holds the shop's civil timezone. The business operates in exactly one
// zone, so a single Clock is constructed at startup and shared.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

func New(zone string) (*Clock, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", zone, err)
	}
	return &Clock{loc: loc, now: time.Now}, nil
}

// MustNew is for tests and fixed wiring where the zone name is a literal.
func MustNew(zone string) *Clock {
	c, err := New(zone)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Clock) NowMillis() int64 {
	return c.now().UnixMilli()
}

// Civil returns the civil calendar/clock reading of an instant in the shop zone.
func (c *Clock) Civil(ms int64) time.Time {
	return time.UnixMilli(ms).In(c.loc)
}

// InstantOf encodes a civil date and clock reading back into a UTC instant.
func (c *Clock) InstantOf(year int, month time.Month, day, hour, minute int) int64 {
	return time.Date(year, month, day, hour, minute, 0, 0, c.loc).UnixMilli()
}

// DayStart returns the instant at civil midnight of the day containing ms.
func (c *Clock) DayStart(ms int64) int64 {
	y, mo, d := c.Civil(ms).Date()
	return c.InstantOf(y, mo, d, 0, 0)
}

// DayEnd returns the last millisecond of the civil day containing ms.
func (c *Clock) DayEnd(ms int64) int64 {
	y, mo, d := c.Civil(ms).Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, c.loc).AddDate(0, 0, 1).UnixMilli() - 1
}

// WeekdayKey returns the lowercase weekday token ("monday".."sunday") of the
// civil day containing ms. Always derived via civil conversion so the token
// matches what the customer sees, not the UTC day.
func (c *Clock) WeekdayKey(ms int64) string {
	return strings.ToLower(c.Civil(ms).Weekday().String())
}

// FloorToSlot floors the civil minute of ms to the nearest multiple of
// intervalMinutes and discards seconds and sub-second precision.
func (c *Clock) FloorToSlot(ms int64, intervalMinutes int) int64 {
	civil := c.Civil(ms)
	y, mo, d := civil.Date()
	minute := civil.Minute()
	if intervalMinutes > 0 {
		minute = (minute / intervalMinutes) * intervalMinutes
	}
	return c.InstantOf(y, mo, d, civil.Hour(), minute)
}

// SlotKey renders an instant as "YYYY-MM-DD-HH-MM" in civil time. Slot equality
// is decided on these keys rather than on raw numbers, which makes it immune to
// sub-minute drift in stored values.
func (c *Clock) SlotKey(ms int64) string {
	return c.Civil(ms).Format("2006-01-02-15-04")
}

func (c *Clock) SameSlot(a, b int64) bool {
	return c.SlotKey(a) == c.SlotKey(b)
}

// SameCivilDay reports whether two instants fall on the same civil calendar day.
func (c *Clock) SameCivilDay(a, b int64) bool {
	ay, am, ad := c.Civil(a).Date()
	by, bm, bd := c.Civil(b).Date()
	return ay == by && am == bm && ad == bd
}

// TimeLabel renders the civil clock reading of an instant, e.g. "9:30 AM".
func (c *Clock) TimeLabel(ms int64) string {
	return c.Civil(ms).Format("3:04 PM")
}

// NormalizeEpochMillis rescales legacy second-precision timestamps to
// milliseconds. Best-effort compatibility shim for old stored rows; values
// already in milliseconds pass through untouched.
func NormalizeEpochMillis(v int64) int64 {
	if v > 0 && v < epoch2000Millis {
		return v * 1000
	}
	return v
}
