package slot

import (
	"strconv"
	"strings"
)

// Shift is one of the four daily broadcast windows.
type Shift int

const (
	Morning Shift = iota
	Afternoon
	Day
	Evening
)

// Shifts lists every shift in column order.
var Shifts = [...]Shift{Morning, Afternoon, Day, Evening}

func (s Shift) String() string {
	switch s {
	case Morning:
		return "morning"
	case Afternoon:
		return "afternoon"
	case Day:
		return "day"
	default:
		return "evening"
	}
}

// ClassifyShift maps an "H:MM" or "HH:MM" time of day to its shift.
// Only the hour is inspected. Input that cannot be parsed falls back to Evening.
func ClassifyShift(t string) Shift {
	hourPart, _, ok := strings.Cut(strings.TrimSpace(t), ":")
	if !ok {
		return Evening
	}
	hour, err := strconv.Atoi(hourPart)
	if err != nil {
		return Evening
	}
	switch {
	case hour >= 6 && hour < 12:
		return Morning
	case hour >= 12 && hour < 15:
		return Afternoon
	case hour >= 15 && hour < 18:
		return Day
	default:
		return Evening
	}
}

// ValidateTime checks the H:MM / HH:MM shape of a request time.
func ValidateTime(t string) error {
	hourPart, minPart, ok := strings.Cut(t, ":")
	if !ok || len(hourPart) < 1 || len(hourPart) > 2 || len(minPart) != 2 {
		return Invalid("time", t, ErrInvalidTimeFormat)
	}
	if !isDigits(hourPart) || !isDigits(minPart) {
		return Invalid("time", t, ErrInvalidTimeFormat)
	}
	return nil
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
