package calendar

import (
	"testing"
	"time"
)

func TestDaysBetween(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		a, b Date
		want int
	}{
		{name: "same day", a: NewDate(2024, time.March, 10), b: NewDate(2024, time.March, 10), want: 0},
		{name: "forward", a: NewDate(2024, time.March, 10), b: NewDate(2024, time.March, 17), want: 7},
		{name: "backward", a: NewDate(2024, time.March, 10), b: NewDate(2024, time.March, 3), want: -7},
		{name: "across leap day", a: NewDate(2024, time.February, 28), b: NewDate(2024, time.March, 1), want: 2},
		{name: "across non-leap", a: NewDate(2023, time.February, 28), b: NewDate(2023, time.March, 1), want: 1},
		{name: "across years", a: NewDate(2023, time.December, 31), b: NewDate(2024, time.January, 1), want: 1},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := DaysBetween(tt.a, tt.b); got != tt.want {
				t.Fatalf("DaysBetween(%s, %s) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestAddDaysRoundTrip(t *testing.T) {
	t.Parallel()
	d := NewDate(2024, time.January, 31)
	for _, n := range []int{-400, -31, -1, 0, 1, 29, 365} {
		got := DaysBetween(d, d.AddDays(n))
		if got != n {
			t.Fatalf("DaysBetween(d, d.AddDays(%d)) = %d", n, got)
		}
	}
}

func TestParseDate(t *testing.T) {
	t.Parallel()
	d, err := ParseDate("2025-02-01")
	if err != nil {
		t.Fatalf("ParseDate error: %v", err)
	}
	if d != (Date{Year: 2025, Month: time.February, Day: 1}) {
		t.Fatalf("unexpected date: %v", d)
	}
	if _, err := ParseDate("not-a-date"); err == nil {
		t.Fatal("expected error for invalid date")
	}
	if d.String() != "2025-02-01" {
		t.Fatalf("String() = %s", d.String())
	}
}

func TestDateOrdering(t *testing.T) {
	t.Parallel()
	a := NewDate(2024, time.May, 3)
	b := NewDate(2024, time.May, 4)
	if !a.Before(b) || b.Before(a) || !b.After(a) {
		t.Fatal("ordering broken")
	}
}

func TestMonthArithmetic(t *testing.T) {
	t.Parallel()
	m := NewMonth(2024, time.December)
	if m.Next() != (Month{Year: 2025, Month: time.January}) {
		t.Fatalf("Next() = %v", m.Next())
	}
	if m.Prev() != (Month{Year: 2024, Month: time.November}) {
		t.Fatalf("Prev() = %v", m.Prev())
	}
	if got := NewMonth(2024, time.February).Len(); got != 29 {
		t.Fatalf("Feb 2024 Len() = %d, want 29", got)
	}
	if got := NewMonth(2023, time.February).Len(); got != 28 {
		t.Fatalf("Feb 2023 Len() = %d, want 28", got)
	}
	if !m.Contains(NewDate(2024, time.December, 31)) {
		t.Fatal("Contains failed for in-month date")
	}
	if m.Contains(NewDate(2025, time.January, 1)) {
		t.Fatal("Contains accepted out-of-month date")
	}
	if got := MonthsBetween(NewMonth(2024, time.November), NewMonth(2025, time.February)); got != 3 {
		t.Fatalf("MonthsBetween = %d, want 3", got)
	}
}
