// Package calendar provides timezone-free civil dates and calendar-month
// buckets used throughout the schedule pipeline.
//
// A Date is a plain (year, month, day) triple. All arithmetic goes through
// time.Time in UTC so leap years and month lengths are handled by the
// standard library, but no Date ever carries a location.
package calendar

import (
	"fmt"
	"time"
)

// Date is a civil calendar date (no timezone, no clock time).
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate builds a normalized Date. Out-of-range components roll over the
// same way time.Date does (e.g. Feb 30 becomes Mar 1/2).
func NewDate(year int, month time.Month, day int) Date {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// Today returns the current civil date as seen by now().
// Callers inject the clock so tests stay deterministic.
func Today(now func() time.Time) Date {
	t := now()
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// ParseDate parses "2006-01-02".
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool { return d.Year == 0 && d.Month == 0 && d.Day == 0 }

// Before reports whether d is strictly earlier than o.
func (d Date) Before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

// After reports whether d is strictly later than o.
func (d Date) After(o Date) bool { return o.Before(d) }

// AddDays returns d shifted by n days (n may be negative).
func (d Date) AddDays(n int) Date {
	t := d.time().AddDate(0, 0, n)
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// Weekday returns the weekday of d.
func (d Date) Weekday() time.Weekday { return d.time().Weekday() }

// MonthOf returns the calendar-month bucket containing d.
func (d Date) MonthOf() Month { return Month{Year: d.Year, Month: d.Month} }

// DaysBetween returns the signed number of days from a to b.
// Negative when b is before a.
func DaysBetween(a, b Date) int {
	// Both operands are midnight UTC, so the division is exact.
	return int(b.time().Sub(a.time()) / (24 * time.Hour))
}
