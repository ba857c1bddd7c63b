package lifecycle

import (
	"errors"
	"fmt"
	"strings"
)

// Names holds the locale-specific labels written into grids.
type Names struct {
	// Months are the month names used in canonical grid names, January first.
	Months [12]string
	// Weekdays are the day-name column labels, Monday first.
	Weekdays [7]string
	// Headers label the table columns: day name, date, then the four shifts.
	Headers []string
	// DateFormat is the Go layout of the date column.
	DateFormat string
}

// DefaultNames returns English labels.
func DefaultNames() Names {
	return Names{
		Months: [12]string{
			"January", "February", "March", "April", "May", "June",
			"July", "August", "September", "October", "November", "December",
		},
		Weekdays:   [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"},
		Headers:    []string{"Day", "Date", "#1 (morning)", "#2 (noon)", "#3 (day)", "#4 (evening)"},
		DateFormat: "02.01.06",
	}
}

// Validate checks that month names are usable as grid name prefixes.
func (n Names) Validate() error {
	seen := make(map[string]bool, len(n.Months))
	for i, m := range n.Months {
		m = strings.TrimSpace(m)
		if m == "" {
			return fmt.Errorf("month name %d is empty", i+1)
		}
		if seen[m] {
			return fmt.Errorf("duplicate month name %q", m)
		}
		seen[m] = true
	}
	for i, w := range n.Weekdays {
		if strings.TrimSpace(w) == "" {
			return fmt.Errorf("weekday name %d is empty", i+1)
		}
	}
	if len(n.Headers) == 0 {
		return errors.New("at least one column header is required")
	}
	if n.DateFormat == "" {
		return errors.New("date format cannot be empty")
	}
	return nil
}
