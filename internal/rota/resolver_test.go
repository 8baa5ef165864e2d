package rota

import (
	"errors"
	"testing"
	"time"

	"rotaplan/internal/calendar"
)

// sixDayCycle builds the canonical test cycle: one shift per day, teams
// A, B, C each covering two of the six positions.
func sixDayCycle(t *testing.T) (*CycleDefinition, map[string]ShiftType) {
	t.Helper()
	day := ShiftType{ID: "day", Name: "Day", Start: 8 * 60, End: 16 * 60}
	slots := [][]SlotAssignment{
		{{ShiftTypeID: "day", TeamIDs: []string{"A"}}},
		{{ShiftTypeID: "day", TeamIDs: []string{"B"}}},
		{{ShiftTypeID: "day", TeamIDs: []string{"C"}}},
		{{ShiftTypeID: "day", TeamIDs: []string{"A"}}},
		{{ShiftTypeID: "day", TeamIDs: []string{"B"}}},
		{{ShiftTypeID: "day", TeamIDs: []string{"C"}}},
	}
	c, err := NewCycleDefinition("test-6", slots)
	if err != nil {
		t.Fatalf("NewCycleDefinition: %v", err)
	}
	return c, map[string]ShiftType{"day": day}
}

func TestCyclePositionNormalizesNegatives(t *testing.T) {
	t.Parallel()
	anchor := calendar.NewDate(2024, time.January, 10)
	tests := []struct {
		name  string
		date  calendar.Date
		phase int
		want  int
	}{
		{name: "anchor itself", date: anchor, want: 0},
		{name: "one after", date: anchor.AddDays(1), want: 1},
		{name: "full cycle later", date: anchor.AddDays(6), want: 0},
		{name: "one before anchor", date: anchor.AddDays(-1), want: 5},
		{name: "far before anchor", date: anchor.AddDays(-13), want: 5},
		{name: "phase wraps", date: anchor, phase: 8, want: 2},
		{name: "negative phase", date: anchor, phase: -1, want: 5},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := CyclePosition(tt.date, 6, anchor, tt.phase); got != tt.want {
				t.Fatalf("CyclePosition = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestResolveMatchesSlotTable(t *testing.T) {
	t.Parallel()
	cycle, types := sixDayCycle(t)
	anchor := calendar.NewDate(2024, time.January, 1)

	// For every date in a window straddling the anchor, Resolve must agree
	// with a direct modular lookup into the slot table.
	for off := -12; off <= 12; off++ {
		d := anchor.AddDays(off)
		got, err := Resolve(d, cycle, anchor, 0, types)
		if err != nil {
			t.Fatalf("Resolve(%s): %v", d, err)
		}
		pos := ((off % 6) + 6) % 6
		want := cycle.Day(pos)
		if len(got) != len(want) {
			t.Fatalf("day %s: %d shifts, want %d", d, len(got), len(want))
		}
		for i := range got {
			if got[i].Teams[0] != want[i].TeamIDs[0] {
				t.Fatalf("day %s slot %d: team %s, want %s", d, i, got[i].Teams[0], want[i].TeamIDs[0])
			}
		}
	}
}

func TestResolvePhaseEqualsDateShift(t *testing.T) {
	t.Parallel()
	cycle, types := sixDayCycle(t)
	anchor := calendar.NewDate(2024, time.March, 1)

	// resolve(d, offset=o1) == resolve(d + (o2-o1), offset=o2) shifted back:
	// a phase shift is equivalent to a date shift.
	for o1 := 0; o1 < 6; o1++ {
		for o2 := 0; o2 < 6; o2++ {
			for off := -6; off <= 6; off++ {
				d := anchor.AddDays(off)
				a, err := Resolve(d, cycle, anchor, o1, types)
				if err != nil {
					t.Fatal(err)
				}
				b, err := Resolve(d.AddDays(o1-o2), cycle, anchor, o2, types)
				if err != nil {
					t.Fatal(err)
				}
				if a[0].Teams[0] != b[0].Teams[0] {
					t.Fatalf("o1=%d o2=%d off=%d: %s != %s", o1, o2, off, a[0].Teams[0], b[0].Teams[0])
				}
			}
		}
	}
}

func TestResolveRejectsBadCycle(t *testing.T) {
	t.Parallel()
	_, types := sixDayCycle(t)
	anchor := calendar.NewDate(2024, time.January, 1)

	if _, err := Resolve(anchor, nil, anchor, 0, types); err == nil {
		t.Fatal("expected error for nil cycle")
	}

	var cfgErr *ConfigurationError
	_, err := NewCycleDefinition("empty", nil)
	if err == nil || !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError for zero-length cycle, got %v", err)
	}
}

func TestResolveUnknownShiftType(t *testing.T) {
	t.Parallel()
	cycle, _ := sixDayCycle(t)
	anchor := calendar.NewDate(2024, time.January, 1)

	var cfgErr *ConfigurationError
	_, err := Resolve(anchor, cycle, anchor, 0, map[string]ShiftType{})
	if err == nil || !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError for unknown shift type, got %v", err)
	}
}

func TestResolveSkipsRestMarkers(t *testing.T) {
	t.Parallel()
	rest := ShiftType{ID: "off", Name: "Off", Rest: true}
	work := ShiftType{ID: "day", Name: "Day", Start: 8 * 60, End: 16 * 60}
	c, err := NewCycleDefinition("restful", [][]SlotAssignment{
		{{ShiftTypeID: "day", TeamIDs: []string{"A"}}, {ShiftTypeID: "off", TeamIDs: []string{"B"}}},
	})
	if err != nil {
		t.Fatal(err)
	}
	types := map[string]ShiftType{"off": rest, "day": work}
	anchor := calendar.NewDate(2024, time.January, 1)

	got, err := Resolve(anchor, c, anchor, 0, types)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Type.ID != "day" {
		t.Fatalf("rest marker leaked into output: %+v", got)
	}
}

func TestBuiltinCycleShape(t *testing.T) {
	t.Parallel()
	c := BuiltinCycle()
	if c.Len() != 18 {
		t.Fatalf("builtin cycle length = %d, want 18", c.Len())
	}
	counts := map[string]int{}
	for day := 0; day < c.Len(); day++ {
		for _, sa := range c.Day(day) {
			if len(sa.TeamIDs) != 2 {
				t.Fatalf("day %d slot %s has %d teams, want 2", day, sa.ShiftTypeID, len(sa.TeamIDs))
			}
			for _, id := range sa.TeamIDs {
				counts[id]++
			}
		}
	}
	// Every team works 12 of 18 days (4 per shift slot).
	for _, team := range BuiltinTeams() {
		if counts[team.ID] != 12 {
			t.Fatalf("team %s works %d days, want 12", team.ID, counts[team.ID])
		}
	}
}
