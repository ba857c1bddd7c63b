package slot

import (
	"fmt"
	"time"

	"github.com/javiermolinar/airtime/internal/dateutil"
)

// Period identifies one scheduling month, backed by one grid.
type Period struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

// NewPeriod validates and builds a period.
func NewPeriod(year, month int) (Period, error) {
	if month < 1 || month > 12 {
		return Period{}, Invalid("month", fmt.Sprint(month), ErrInvalidMonth)
	}
	if year < 1 {
		return Period{}, Invalid("year", fmt.Sprint(year), fmt.Errorf("year must be positive"))
	}
	return Period{Year: year, Month: time.Month(month)}, nil
}

// PeriodOf returns the period containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// AddMonths returns the period n months later (or earlier for negative n).
func (p Period) AddMonths(n int) Period {
	return PeriodOf(dateutil.AddMonths(p.Start(), n))
}

// Start returns midnight UTC of the first day of the period.
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// Days returns the number of calendar days in the period.
func (p Period) Days() int {
	return dateutil.DaysIn(p.Year, p.Month)
}

// Date returns the calendar date of the given day of the period.
func (p Period) Date(day int) time.Time {
	return time.Date(p.Year, p.Month, day, 0, 0, 0, 0, time.UTC)
}

// HasDay reports whether day exists in the period's month.
func (p Period) HasDay(day int) bool {
	return day >= 1 && day <= p.Days()
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}
