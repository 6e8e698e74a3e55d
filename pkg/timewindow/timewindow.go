// Package timewindow provides pure interval and recurrence date arithmetic
// used by the scheduling engine. All intervals are half-open [start, end).
package timewindow

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Pattern identifies a recurrence pattern for generated shift series.
type Pattern string

const (
	PatternDaily    Pattern = "DAILY"
	PatternWeekly   Pattern = "WEEKLY"
	PatternBiWeekly Pattern = "BI_WEEKLY"
	PatternMonthly  Pattern = "MONTHLY"
	PatternCustom   Pattern = "CUSTOM"
)

// ParsePattern validates a recurrence pattern string.
func ParsePattern(s string) (Pattern, error) {
	switch Pattern(s) {
	case PatternDaily, PatternWeekly, PatternBiWeekly, PatternMonthly, PatternCustom:
		return Pattern(s), nil
	}
	return "", fmt.Errorf("invalid recurrence pattern: %s", s)
}

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect. Touching endpoints do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// OverlapsMinutes is the minute-of-day form of Overlaps, used for HH:MM
// shift windows on a single date.
func OverlapsMinutes(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && bStart < aEnd
}

// DurationMinutes returns the whole-minute duration of [start, end).
// end must be strictly after start.
func DurationMinutes(start, end time.Time) (int, error) {
	if !end.After(start) {
		return 0, fmt.Errorf("end %s is not after start %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return int(end.Sub(start) / time.Minute), nil
}

// ParseClock parses an "HH:MM" clock string into minutes since midnight.
func ParseClock(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid time format %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}

// FormatClock renders minutes since midnight as "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Weekday returns the day of week for date, 0 = Sunday.
func Weekday(date time.Time) int {
	return int(date.Weekday())
}

// AddOccurrence maps an occurrence index to a calendar date for the given
// pattern, starting from start (index 0 is start itself).
//
// MONTHLY keeps the start's day-of-month, clamped to the target month's
// length (Jan 31 + 1 month = Feb 28/29). CUSTOM advances interval days per
// index; interval must be >= 1.
func AddOccurrence(start time.Time, pattern Pattern, interval, index int) time.Time {
	switch pattern {
	case PatternDaily:
		return start.AddDate(0, 0, index)
	case PatternWeekly:
		return start.AddDate(0, 0, 7*index)
	case PatternBiWeekly:
		return start.AddDate(0, 0, 14*index)
	case PatternMonthly:
		return addMonthsClamped(start, index)
	case PatternCustom:
		if interval < 1 {
			interval = 1
		}
		return start.AddDate(0, 0, interval*index)
	}
	return start
}

// addMonthsClamped adds months keeping the day-of-month, clamping to the last
// day of the target month instead of rolling over the way AddDate does.
func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
	target := first.AddDate(0, months, 0)
	last := daysInMonth(target.Year(), target.Month())
	if d > last {
		d = last
	}
	return time.Date(target.Year(), target.Month(), d,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
