package rota

// Built-in continuous rotation: nine teams, three shifts per day, each team
// working four days on / two days off and rotating morning -> afternoon ->
// night. The full pattern repeats every 18 days with two teams per shift
// slot on every day (six teams working, three resting).
//
// The table is generated from the per-team pattern below rather than
// written out day by day: every team follows the same 18-day sequence,
// read two days apart from its alphabetical neighbor.

const (
	// BuiltinCycleName identifies the built-in fixed cycle.
	BuiltinCycleName = "builtin-4x2"

	builtinCycleLen  = 18
	builtinTeamStep  = 2
	builtinShiftDays = 4
)

// Shift type IDs used by the built-in cycle.
const (
	ShiftMorning   = "morning"
	ShiftAfternoon = "afternoon"
	ShiftNight     = "night"
)

// BuiltinTeams returns the nine teams of the built-in cycle.
// Phase offsets are zero: team positions are encoded in the slot table.
func BuiltinTeams() []Team {
	ids := []string{"A", "B", "C", "D", "E", "F", "G", "H", "I"}
	teams := make([]Team, len(ids))
	for i, id := range ids {
		teams[i] = Team{ID: id}
	}
	return teams
}

// BuiltinShiftTypes returns the three shift slots of the built-in cycle.
func BuiltinShiftTypes() []ShiftType {
	return []ShiftType{
		{ID: ShiftMorning, Name: "Morning", Start: 6 * 60, End: 14 * 60},
		{ID: ShiftAfternoon, Name: "Afternoon", Start: 14 * 60, End: 22 * 60},
		{ID: ShiftNight, Name: "Night", Start: 22 * 60, End: 6 * 60},
	}
}

// BuiltinCycle constructs the built-in 18-day cycle table.
func BuiltinCycle() *CycleDefinition {
	slotOrder := []string{ShiftMorning, ShiftAfternoon, ShiftNight}
	teams := BuiltinTeams()

	slots := make([][]SlotAssignment, builtinCycleLen)
	for day := 0; day < builtinCycleLen; day++ {
		assignments := make([]SlotAssignment, 0, len(slotOrder))
		for si, shiftID := range slotOrder {
			var onDuty []string
			for ti, team := range teams {
				// Team ti starts its pattern builtinTeamStep*ti days into
				// the cycle. Pattern position p means: p in [0,4) morning,
				// [6,10) afternoon, [12,16) night, rest otherwise.
				p := (day - builtinTeamStep*ti) % builtinCycleLen
				if p < 0 {
					p += builtinCycleLen
				}
				block := si * (builtinShiftDays + 2)
				if p >= block && p < block+builtinShiftDays {
					onDuty = append(onDuty, team.ID)
				}
			}
			assignments = append(assignments, SlotAssignment{ShiftTypeID: shiftID, TeamIDs: onDuty})
		}
		slots[day] = assignments
	}

	// The generated table is valid by construction.
	c, err := NewCycleDefinition(BuiltinCycleName, slots)
	if err != nil {
		panic(err)
	}
	return c
}
