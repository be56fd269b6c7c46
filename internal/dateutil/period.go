package dateutil

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/starford/almanac/internal/apperr"
)

// Granularity names a calendar period.
type Granularity int

const (
	GranularityDay Granularity = iota
	GranularityWeek
	GranularityMonth
	GranularityYear
)

func (g Granularity) String() string {
	switch g {
	case GranularityDay:
		return "day"
	case GranularityWeek:
		return "week"
	case GranularityMonth:
		return "month"
	case GranularityYear:
		return "year"
	}
	return "unknown"
}

// WeekStart is the first day of every week computed by this package.
const WeekStart = time.Sunday

var hhmmRe = regexp.MustCompile(`^([01][0-9]|2[0-3])[0-5][0-9]$`)

// StartOfPeriod returns the first instant of the day, week, month, or year containing t.
func StartOfPeriod(t time.Time, g Granularity) time.Time {
	y, m, d := t.Date()
	loc := t.Location()
	switch g {
	case GranularityWeek:
		offset := (int(t.Weekday()) - int(WeekStart) + 7) % 7
		return time.Date(y, m, d-offset, 0, 0, 0, 0, loc)
	case GranularityMonth:
		return time.Date(y, m, 1, 0, 0, 0, 0, loc)
	case GranularityYear:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
	default:
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	}
}

// FormatPeriod formats the start of the period containing t.
func FormatPeriod(template string, t time.Time, g Granularity) string {
	return Format(template, StartOfPeriod(t, g))
}

// AddDays moves t by n calendar days, keeping wall-clock time.
func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

// ValidTimeOfDay reports whether s is a 24-hour "HHMM" string.
func ValidTimeOfDay(s string) bool {
	return hhmmRe.MatchString(s)
}

// ReminderInstant returns the day of t at the hour and minute given by hhmm.
func ReminderInstant(hhmm string, t time.Time) (time.Time, error) {
	if !hhmmRe.MatchString(hhmm) {
		return time.Time{}, fmt.Errorf("%w: %q is not HHMM", apperr.ErrInvalidTime, hhmm)
	}
	hour, _ := strconv.Atoi(hhmm[:2])
	minute, _ := strconv.Atoi(hhmm[2:])
	y, m, d := t.Date()
	return time.Date(y, m, d, hour, minute, 0, 0, t.Location()), nil
}
