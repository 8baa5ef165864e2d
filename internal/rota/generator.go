package rota

import (
	"rotaplan/internal/calendar"
)

// Generate produces the base schedule for the inclusive date range
// [start, end]: one ComputedDay per date, ascending, no gaps, no duplicates.
//
// When teamFilter is non-empty, each day's shifts are narrowed to those
// where that team is on duty; days where the team rests come back with an
// empty shift list (the day itself is always present so callers can index
// the result by position). An empty teamFilter returns the whole-crew view.
//
// Generate is a pure function of its inputs: identical inputs always
// produce identical output.
func Generate(start, end calendar.Date, cycle *CycleDefinition, anchor calendar.Date, teamFilter string, teams []Team, shiftTypes map[string]ShiftType) ([]ComputedDay, error) {
	if cycle == nil || cycle.Len() == 0 {
		return nil, configErrf("nil or zero-length cycle")
	}
	if end.Before(start) {
		return nil, nil
	}

	phase := 0
	if teamFilter != "" {
		t, ok := teamByID(teams, teamFilter)
		if !ok {
			return nil, configErrf("unknown team %q", teamFilter)
		}
		phase = t.PhaseOffsetDays
	}

	n := calendar.DaysBetween(start, end) + 1
	days := make([]ComputedDay, 0, n)
	for d := start; !d.After(end); d = d.AddDays(1) {
		shifts, err := Resolve(d, cycle, anchor, phase, shiftTypes)
		if err != nil {
			return nil, err
		}
		if teamFilter != "" {
			shifts = filterTeam(shifts, teamFilter)
		}
		days = append(days, ComputedDay{Date: d, Shifts: shifts})
	}
	return days, nil
}

func teamByID(teams []Team, id string) (Team, bool) {
	for _, t := range teams {
		if t.ID == id {
			return t, true
		}
	}
	return Team{}, false
}

func filterTeam(shifts []ComputedShift, teamID string) []ComputedShift {
	out := make([]ComputedShift, 0, len(shifts))
	for _, s := range shifts {
		if s.HasTeam(teamID) {
			out = append(out, s)
		}
	}
	return out
}
