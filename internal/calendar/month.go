package calendar

import (
	"fmt"
	"time"
)

// Month identifies one calendar month. It is the cache's bucket granularity.
type Month struct {
	Year  int
	Month time.Month
}

// NewMonth builds a normalized Month (month 13 rolls into the next year).
func NewMonth(year int, month time.Month) Month {
	t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return Month{Year: t.Year(), Month: t.Month()}
}

// ParseMonth parses "2006-01".
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, fmt.Errorf("parse month %q: %w", s, err)
	}
	return Month{Year: t.Year(), Month: t.Month()}, nil
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Add returns m shifted by n months (n may be negative).
func (m Month) Add(n int) Month {
	t := time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	return Month{Year: t.Year(), Month: t.Month()}
}

// Next returns the following month.
func (m Month) Next() Month { return m.Add(1) }

// Prev returns the preceding month.
func (m Month) Prev() Month { return m.Add(-1) }

// First returns the first day of the month.
func (m Month) First() Date { return Date{Year: m.Year, Month: m.Month, Day: 1} }

// Last returns the last day of the month.
func (m Month) Last() Date { return m.Next().First().AddDays(-1) }

// Len returns the number of days in the month.
func (m Month) Len() int { return m.Last().Day }

// Contains reports whether d falls inside m.
func (m Month) Contains(d Date) bool {
	return d.Year == m.Year && d.Month == m.Month
}

// MonthsBetween returns the signed number of whole months from a to b.
func MonthsBetween(a, b Month) int {
	return (b.Year-a.Year)*12 + int(b.Month) - int(a.Month)
}
