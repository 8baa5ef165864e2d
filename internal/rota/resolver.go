package rota

import (
	"rotaplan/internal/calendar"
)

// Resolve maps a date onto its cycle position and returns the shift layout
// for that day, with the team's phase offset applied.
//
// The function is pure and total: any date works, including dates strictly
// before the anchor (negative raw offsets normalize into [0, cycle length)),
// and any integer phase offset is accepted.
//
// shiftTypes maps shift type IDs to their full definitions; unknown IDs in
// the cycle table fail with a ConfigurationError.
func Resolve(d calendar.Date, cycle *CycleDefinition, anchor calendar.Date, phaseOffsetDays int, shiftTypes map[string]ShiftType) ([]ComputedShift, error) {
	if cycle == nil || cycle.Len() == 0 {
		return nil, configErrf("nil or zero-length cycle")
	}

	pos := CyclePosition(d, cycle.Len(), anchor, phaseOffsetDays)

	assignments := cycle.Day(pos)
	shifts := make([]ComputedShift, 0, len(assignments))
	for _, sa := range assignments {
		st, ok := shiftTypes[sa.ShiftTypeID]
		if !ok {
			return nil, configErrf("cycle %q references unknown shift type %q", cycle.Name(), sa.ShiftTypeID)
		}
		if st.Rest {
			// Rest markers exist only inside cycle tables; computed output
			// expresses rest as absence.
			continue
		}
		shifts = append(shifts, ComputedShift{
			Type:  st,
			Teams: append([]string(nil), sa.TeamIDs...),
		})
	}
	return shifts, nil
}

// CyclePosition computes the normalized read position within a cycle of
// length cycleLen for the given date, anchor and phase offset.
func CyclePosition(d calendar.Date, cycleLen int, anchor calendar.Date, phaseOffsetDays int) int {
	raw := calendar.DaysBetween(anchor, d)
	pos := (raw + phaseOffsetDays) % cycleLen
	if pos < 0 {
		pos += cycleLen
	}
	return pos
}
