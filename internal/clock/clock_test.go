package clock

import (
	"testing"
	"time"
)

func fixed(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestUnsyncedReturnsSentinel(t *testing.T) {
	c := New(time.UTC, fixed(time.Unix(120, 0)))

	if c.Synced() {
		t.Fatal("clock at epoch should not be synced")
	}
	accessors := map[string]func() int{
		"Second":      c.Second,
		"Minute":      c.Minute,
		"Hour":        c.Hour,
		"MDay":        c.MDay,
		"WDay":        c.WDay,
		"Month":       c.Month,
		"Year":        c.Year,
		"YDay":        c.YDay,
		"DaySeconds":  c.DaySeconds,
		"MinuteOfDay": c.MinuteOfDay,
	}
	for name, get := range accessors {
		if got := get(); got != -1 {
			t.Errorf("%s: got %d, want -1", name, got)
		}
	}
	if _, ok := c.Calendar(); ok {
		t.Error("Calendar should report not ready")
	}
}

func TestCalendarFields(t *testing.T) {
	// Tuesday 2026-03-03 14:25:36 UTC
	now := time.Date(2026, 3, 3, 14, 25, 36, 0, time.UTC)
	c := New(nil, fixed(now))

	if !c.Synced() {
		t.Fatal("expected synced")
	}
	checks := []struct {
		name string
		got  int
		want int
	}{
		{"Second", c.Second(), 36},
		{"Minute", c.Minute(), 25},
		{"Hour", c.Hour(), 14},
		{"MDay", c.MDay(), 3},
		{"WDay", c.WDay(), 2},
		{"Month", c.Month(), 2},
		{"Year", c.Year(), 2026},
		{"YDay", c.YDay(), 61},
		{"DaySeconds", c.DaySeconds(), 14*3600 + 25*60 + 36},
		{"MinuteOfDay", c.MinuteOfDay(), 14*60 + 25},
	}
	for _, tt := range checks {
		if tt.got != tt.want {
			t.Errorf("%s: got %d, want %d", tt.name, tt.got, tt.want)
		}
	}
}

func TestLocationApplied(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	now := time.Date(2026, 6, 1, 20, 30, 0, 0, time.UTC)
	c := New(loc, fixed(now))

	if got := c.MinuteOfDay(); got != 4*60+30 {
		t.Errorf("MinuteOfDay: got %d, want %d", got, 4*60+30)
	}
	if got := c.MDay(); got != 2 {
		t.Errorf("MDay: got %d, want 2", got)
	}
}
