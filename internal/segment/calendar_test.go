package segment

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nowtrain.tokyo/internal/timetable"
)

func jst(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	return loc
}

func TestServiceDayBoundary(t *testing.T) {
	loc := jst(t)
	cal, err := NewCalendar(loc, t.TempDir())
	require.NoError(t, err)

	tests := []struct {
		name        string
		instant     time.Time
		wantDate    string
		wantEffSec  int
		wantService timetable.ServiceType
	}{
		{
			name:        "Morning belongs to its own day",
			instant:     time.Date(2025, 1, 15, 8, 0, 0, 0, loc), // Wednesday
			wantDate:    "2025-01-15",
			wantEffSec:  28800,
			wantService: timetable.ServiceWeekday,
		},
		{
			name:        "Just past midnight belongs to previous day",
			instant:     time.Date(2025, 1, 16, 0, 5, 0, 0, loc),
			wantDate:    "2025-01-15",
			wantEffSec:  86700,
			wantService: timetable.ServiceWeekday,
		},
		{
			name:        "04:00 starts the new day",
			instant:     time.Date(2025, 1, 16, 4, 0, 0, 0, loc),
			wantDate:    "2025-01-16",
			wantEffSec:  14400,
			wantService: timetable.ServiceWeekday,
		},
		{
			name:        "Saturday maps to holiday calendar",
			instant:     time.Date(2025, 1, 18, 12, 0, 0, 0, loc),
			wantDate:    "2025-01-18",
			wantEffSec:  43200,
			wantService: timetable.ServiceSaturdayHoliday,
		},
		{
			name:        "Sunday small hours still Saturday service",
			instant:     time.Date(2025, 1, 19, 1, 0, 0, 0, loc),
			wantDate:    "2025-01-18",
			wantEffSec:  90000,
			wantService: timetable.ServiceSaturdayHoliday,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantDate, cal.ServiceDate(tt.instant).Format("2006-01-02"))
			assert.Equal(t, tt.wantEffSec, cal.EffectiveSeconds(tt.instant))
			assert.Equal(t, tt.wantService, cal.ServiceTypeAt(tt.instant))
		})
	}
}

func TestHolidayCalendarFile(t *testing.T) {
	loc := jst(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "holidays.yml"),
		[]byte("holidays:\n  - 2025-01-13\n"), 0o644))

	cal, err := NewCalendar(loc, dir)
	require.NoError(t, err)

	// 2025-01-13 is a Monday, but it is Coming of Age Day.
	monday := time.Date(2025, 1, 13, 10, 0, 0, 0, loc)
	assert.Equal(t, timetable.ServiceSaturdayHoliday, cal.ServiceTypeAt(monday))

	nextDay := time.Date(2025, 1, 14, 10, 0, 0, 0, loc)
	assert.Equal(t, timetable.ServiceWeekday, cal.ServiceTypeAt(nextDay))
}

func TestHolidayCalendarRejectsBadDates(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "holidays.yml"),
		[]byte("holidays:\n  - not-a-date\n"), 0o644))

	_, err := NewCalendar(jst(t), dir)
	assert.Error(t, err)
}
