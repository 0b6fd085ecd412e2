package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDayKey(t *testing.T) {
	// 22:30 UTC is already the next day in Nairobi (UTC+3)
	lateUTC := time.Date(2026, 3, 10, 22, 30, 0, 0, time.UTC)
	assert.Equal(t, "2026-03-11", DayKey(lateUTC))

	noon := time.Date(2026, 3, 10, 12, 0, 0, 0, NairobiTZ)
	assert.Equal(t, "2026-03-10", DayKey(noon))
}

func TestStartEndOfDay(t *testing.T) {
	afternoon := time.Date(2026, 3, 10, 15, 45, 12, 0, NairobiTZ)

	start := StartOfDay(afternoon)
	assert.Equal(t, 0, start.Hour())
	assert.Equal(t, 10, start.Day())

	end := EndOfDay(afternoon)
	assert.Equal(t, 23, end.Hour())
	assert.Equal(t, 10, end.Day())
	assert.True(t, end.After(afternoon))
}

func TestIsSchoolHours(t *testing.T) {
	// Tuesday 2026-03-10, 10:00 EAT
	assert.True(t, IsSchoolHours(time.Date(2026, 3, 10, 10, 0, 0, 0, NairobiTZ)))

	// Tuesday 07:59 EAT is before the teaching day
	assert.False(t, IsSchoolHours(time.Date(2026, 3, 10, 7, 59, 0, 0, NairobiTZ)))

	// Tuesday 17:00 EAT is after it
	assert.False(t, IsSchoolHours(time.Date(2026, 3, 10, 17, 0, 0, 0, NairobiTZ)))

	// Saturday 2026-03-14
	assert.False(t, IsSchoolHours(time.Date(2026, 3, 14, 10, 0, 0, 0, NairobiTZ)))
}

func TestHumanDuration(t *testing.T) {
	assert.Equal(t, "45s", HumanDuration(45*time.Second))
	assert.Equal(t, "3m", HumanDuration(3*time.Minute+20*time.Second))
	assert.Equal(t, "2h15m", HumanDuration(2*time.Hour+15*time.Minute))
}
