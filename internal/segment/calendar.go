package segment

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"nowtrain.tokyo/internal/logging"
	"nowtrain.tokyo/internal/timetable"
)

// serviceDayStartHour is the operational day boundary: instants before 04:00
// local belong to the previous service day.
const serviceDayStartHour = 4

// Calendar maps wall-clock instants to service days, effective seconds, and
// operating calendars. Frozen after construction.
type Calendar struct {
	loc      *time.Location
	holidays map[string]bool
}

type holidaysYAML struct {
	Holidays []string `yaml:"holidays"`
}

// NewCalendar builds a calendar for the given zone. dataDir may contain an
// optional holidays.yml listing public holidays as YYYY-MM-DD strings; when
// the file is absent only weekends map to the SaturdayHoliday calendar.
func NewCalendar(loc *time.Location, dataDir string) (*Calendar, error) {
	cal := &Calendar{
		loc:      loc,
		holidays: make(map[string]bool),
	}

	path := filepath.Join(dataDir, "holidays.yml")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cal, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading holidays file: %w", err)
	}

	var parsed holidaysYAML
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("invalid holidays file %s: %w", path, err)
	}
	for _, d := range parsed.Holidays {
		if _, err := time.ParseInLocation("2006-01-02", d, loc); err != nil {
			return nil, fmt.Errorf("invalid holiday date %q: %w", d, err)
		}
		cal.holidays[d] = true
	}

	logging.LogOperation(slog.Default().With(slog.String("component", "calendar")),
		"holiday_calendar_loaded", slog.Int("holidays", len(cal.holidays)))

	return cal, nil
}

// ServiceDate returns the midnight of the service day covering t.
func (c *Calendar) ServiceDate(t time.Time) time.Time {
	local := t.In(c.loc)
	if local.Hour() < serviceDayStartHour {
		local = local.AddDate(0, 0, -1)
	}
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc)
}

// EffectiveSeconds converts t to seconds since the midnight of its service
// day. Instants in the 00:00-03:59 band therefore land past 86400, matching
// how timetable times past midnight are folded.
func (c *Calendar) EffectiveSeconds(t time.Time) int {
	return int(t.In(c.loc).Sub(c.ServiceDate(t)).Seconds())
}

// ServiceTypeAt returns the operating calendar for the service day covering
// t: Monday-Friday Weekday, Saturday/Sunday/public-holiday SaturdayHoliday.
func (c *Calendar) ServiceTypeAt(t time.Time) timetable.ServiceType {
	date := c.ServiceDate(t)
	if c.holidays[date.Format("2006-01-02")] {
		return timetable.ServiceSaturdayHoliday
	}
	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		return timetable.ServiceSaturdayHoliday
	default:
		return timetable.ServiceWeekday
	}
}

// Location returns the calendar's timezone.
func (c *Calendar) Location() *time.Location {
	return c.loc
}
