package rota

import (
	"testing"
	"time"

	"rotaplan/internal/calendar"
)

func TestGenerateWholeCrewView(t *testing.T) {
	t.Parallel()
	cycle, types := sixDayCycle(t)
	anchor := calendar.NewDate(2024, time.June, 1)

	days, err := Generate(anchor, anchor.AddDays(5), cycle, anchor, "", nil, types)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(days) != 6 {
		t.Fatalf("got %d days, want 6", len(days))
	}
	wantTeams := []string{"A", "B", "C", "A", "B", "C"}
	for i, d := range days {
		if d.Date != anchor.AddDays(i) {
			t.Fatalf("day %d has date %s, want %s", i, d.Date, anchor.AddDays(i))
		}
		if len(d.Shifts) != 1 || d.Shifts[0].Teams[0] != wantTeams[i] {
			t.Fatalf("day %d: %+v, want team %s", i, d.Shifts, wantTeams[i])
		}
	}
}

func TestGenerateTeamFilter(t *testing.T) {
	t.Parallel()
	cycle, types := sixDayCycle(t)
	anchor := calendar.NewDate(2024, time.June, 1)
	teams := []Team{{ID: "A"}, {ID: "B"}, {ID: "C"}}

	// End-to-end scenario: team A is on duty on days 0, 3, 6 and off on
	// 1, 2, 4, 5, 7 of an eight-day window.
	days, err := Generate(anchor, anchor.AddDays(7), cycle, anchor, "A", teams, types)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(days) != 8 {
		t.Fatalf("got %d days, want 8", len(days))
	}
	onDuty := map[int]bool{0: true, 3: true, 6: true}
	for i, d := range days {
		if got := len(d.Shifts) == 1; got != onDuty[i] {
			t.Fatalf("day %d: on duty = %v, want %v", i, got, onDuty[i])
		}
	}
}

func TestGenerateIdempotent(t *testing.T) {
	t.Parallel()
	cycle, types := sixDayCycle(t)
	anchor := calendar.NewDate(2024, time.June, 1)
	teams := []Team{{ID: "A"}, {ID: "B"}, {ID: "C"}}

	a, err := Generate(anchor.AddDays(-10), anchor.AddDays(40), cycle, anchor, "B", teams, types)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Generate(anchor.AddDays(-10), anchor.AddDays(40), cycle, anchor, "B", teams, types)
	if err != nil {
		t.Fatal(err)
	}
	if !EqualDays(a, b) {
		t.Fatal("identical inputs produced different output")
	}
}

func TestGenerateEmptyAndInvalidRanges(t *testing.T) {
	t.Parallel()
	cycle, types := sixDayCycle(t)
	anchor := calendar.NewDate(2024, time.June, 10)

	days, err := Generate(anchor, anchor.AddDays(-1), cycle, anchor, "", nil, types)
	if err != nil {
		t.Fatalf("inverted range must not error: %v", err)
	}
	if len(days) != 0 {
		t.Fatalf("inverted range produced %d days", len(days))
	}

	if _, err := Generate(anchor, anchor, cycle, anchor, "Z", nil, types); err == nil {
		t.Fatal("expected error for unknown team filter")
	}
}

func TestGeneratePhaseOffsetTeam(t *testing.T) {
	t.Parallel()
	cycle, types := sixDayCycle(t)
	anchor := calendar.NewDate(2024, time.June, 1)
	// Team A with phase offset 1 reads the cycle one day ahead, so it sees
	// position 0 ("A" slot) on the day before the anchor.
	teams := []Team{{ID: "A", PhaseOffsetDays: 1}}

	days, err := Generate(anchor.AddDays(-1), anchor.AddDays(-1), cycle, anchor, "A", teams, types)
	if err != nil {
		t.Fatal(err)
	}
	if len(days) != 1 || len(days[0].Shifts) != 1 {
		t.Fatalf("expected an on-duty day, got %+v", days)
	}
}
