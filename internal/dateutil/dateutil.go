// Package dateutil provides calendar helpers for month-based scheduling.
package dateutil

import (
	"errors"
	"strings"
	"time"
)

// Validation errors.
var (
	ErrInvalidMonthFormat = errors.New("month must be in YYYY-MM format")
)

// MonthStart returns midnight of the first day of t's month.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// AddMonths moves t by n calendar months, anchored at the first of the month
// so that Jan 31 + 1 month lands in February rather than March.
func AddMonths(t time.Time, n int) time.Time {
	return MonthStart(t).AddDate(0, n, 0)
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// MondayIndex returns the weekday of t counted from Monday = 0.
func MondayIndex(t time.Time) int {
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday is the last day of the week
	}
	return weekday - 1
}

// ParseMonth parses a "YYYY-MM" string.
// If the string is empty, returns the current month.
func ParseMonth(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return MonthStart(now), nil
	}
	t, err := time.ParseInLocation("2006-01", s, now.Location())
	if err != nil {
		return time.Time{}, ErrInvalidMonthFormat
	}
	return t, nil
}
