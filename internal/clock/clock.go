// Package clock adapts the wall clock for calendar and minute-of-day queries.
// Until the system clock has been set (e.g. by NTP) every accessor reports -1
// and automation treats the clock as not ready.
package clock

import "time"

// syncedAfter is the earliest instant considered a set clock. Devices without
// an RTC boot at the Unix epoch.
var syncedAfter = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// Calendar holds broken-down local time. Month is 0-11 and Weekday is days
// since Sunday.
type Calendar struct {
	Second  int
	Minute  int
	Hour    int
	MDay    int
	WDay    int
	Month   int
	Year    int
	YDay    int
	Seconds int // seconds since midnight
}

// Clock reads time from a source in a fixed location.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

// New creates a Clock. A nil location means UTC; a nil source means time.Now.
func New(loc *time.Location, now func() time.Time) *Clock {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Clock{loc: loc, now: now}
}

// Synced reports whether the wall clock has been set.
func (c *Clock) Synced() bool {
	return c.now().After(syncedAfter)
}

// Location returns the configured location.
func (c *Clock) Location() *time.Location { return c.loc }

// Calendar returns the current broken-down time, or false when not synced.
func (c *Clock) Calendar() (Calendar, bool) {
	t := c.now()
	if !t.After(syncedAfter) {
		return Calendar{}, false
	}
	t = t.In(c.loc)
	return Calendar{
		Second:  t.Second(),
		Minute:  t.Minute(),
		Hour:    t.Hour(),
		MDay:    t.Day(),
		WDay:    int(t.Weekday()),
		Month:   int(t.Month()) - 1,
		Year:    t.Year(),
		YDay:    t.YearDay() - 1,
		Seconds: t.Hour()*3600 + t.Minute()*60 + t.Second(),
	}, true
}

// MinuteOfDay returns minutes since local midnight (0-1439), or -1.
func (c *Clock) MinuteOfDay() int {
	cal, ok := c.Calendar()
	if !ok {
		return -1
	}
	return cal.Hour*60 + cal.Minute
}

func (c *Clock) field(get func(Calendar) int) int {
	cal, ok := c.Calendar()
	if !ok {
		return -1
	}
	return get(cal)
}

// Second returns 0-59, or -1 when not synced.
func (c *Clock) Second() int { return c.field(func(k Calendar) int { return k.Second }) }

// Minute returns 0-59, or -1 when not synced.
func (c *Clock) Minute() int { return c.field(func(k Calendar) int { return k.Minute }) }

// Hour returns 0-23, or -1 when not synced.
func (c *Clock) Hour() int { return c.field(func(k Calendar) int { return k.Hour }) }

// MDay returns 1-31, or -1 when not synced.
func (c *Clock) MDay() int { return c.field(func(k Calendar) int { return k.MDay }) }

// WDay returns days since Sunday (0-6), or -1 when not synced.
func (c *Clock) WDay() int { return c.field(func(k Calendar) int { return k.WDay }) }

// Month returns months since January (0-11), or -1 when not synced.
func (c *Clock) Month() int { return c.field(func(k Calendar) int { return k.Month }) }

// Year returns the full year, or -1 when not synced.
func (c *Clock) Year() int { return c.field(func(k Calendar) int { return k.Year }) }

// YDay returns days since January 1 (0-365), or -1 when not synced.
func (c *Clock) YDay() int { return c.field(func(k Calendar) int { return k.YDay }) }

// DaySeconds returns seconds since local midnight, or -1 when not synced.
func (c *Clock) DaySeconds() int { return c.field(func(k Calendar) int { return k.Seconds }) }
