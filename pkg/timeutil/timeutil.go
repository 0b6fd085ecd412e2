// Package timeutil provides timezone utilities for Nairobi time (UTC+3).
// Term dates, assessment windows, and cache warm-up schedules are all
// anchored to the school day in East Africa Time, which has no DST.
// No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"time"
)

// NairobiTZ is the Nairobi timezone (UTC+3, no DST).
// Kenya has not observed daylight saving time, so this is constant year-round.
var NairobiTZ = time.FixedZone("Africa/Nairobi", 3*60*60)

// Now returns the current time in Nairobi timezone.
func Now() time.Time {
	return time.Now().In(NairobiTZ)
}

// ToNairobi converts a time to Nairobi timezone.
func ToNairobi(t time.Time) time.Time {
	return t.In(NairobiTZ)
}

// ToUTC converts a time to UTC.
func ToUTC(t time.Time) time.Time {
	return t.UTC()
}

// Date creates a time in Nairobi timezone with the given date.
func Date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, NairobiTZ)
}

// StartOfDay returns midnight of the given time's day in Nairobi timezone.
func StartOfDay(t time.Time) time.Time {
	local := ToNairobi(t)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, NairobiTZ)
}

// EndOfDay returns the last nanosecond of the given time's day.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).Add(24*time.Hour - time.Nanosecond)
}

// DayKey formats a time as a YYYY-MM-DD key in Nairobi timezone.
func DayKey(t time.Time) string {
	return ToNairobi(t).Format("2006-01-02")
}

// IsSchoolHours reports whether the time falls within the teaching day
// (08:00-17:00 Nairobi time, Monday to Friday).
func IsSchoolHours(t time.Time) bool {
	local := ToNairobi(t)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return local.Hour() >= 8 && local.Hour() < 17
}

// FormatDateTime formats a time for human-readable output in Nairobi timezone.
func FormatDateTime(t time.Time) string {
	return ToNairobi(t).Format("2006-01-02 15:04:05")
}

// HumanDuration formats a duration in a compact human-readable form.
func HumanDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
