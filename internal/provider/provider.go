// Package provider builds the rotation configuration the schedule cache
// consumes: the active cycle, its teams and shift types, the anchor date,
// and the user-to-team mapping. All validation happens at construction;
// a provider that exists is internally consistent.
package provider

import (
	"fmt"
	"sort"

	"rotaplan/internal/calendar"
	"rotaplan/internal/config"
	"rotaplan/internal/rota"
)

type Provider struct {
	anchor     calendar.Date
	cycle      *rota.CycleDefinition
	teams      []rota.Team
	shiftTypes map[string]rota.ShiftType
	users      map[string]string
}

// FromConfig validates rc and builds a provider. Any inconsistency is a
// rota.ConfigurationError; nothing is silently defaulted except the
// built-in cycle selection for an empty cycle name.
func FromConfig(rc config.RotaConfig) (*Provider, error) {
	anchor, err := calendar.ParseDate(rc.Anchor)
	if err != nil {
		return nil, configErrf("rota.anchor: invalid date %q (want 2006-01-02)", rc.Anchor)
	}

	p := &Provider{anchor: anchor, users: map[string]string{}}

	switch rc.Cycle {
	case "", "builtin", rota.BuiltinCycleName:
		p.cycle = rota.BuiltinCycle()
		p.teams = rota.BuiltinTeams()
		p.shiftTypes = map[string]rota.ShiftType{}
		for _, st := range rota.BuiltinShiftTypes() {
			p.shiftTypes[st.ID] = st
		}
	default:
		if err := p.buildCustom(rc); err != nil {
			return nil, err
		}
	}

	teamIDs := map[string]bool{}
	for _, t := range p.teams {
		teamIDs[t.ID] = true
	}
	for user, team := range rc.Users {
		if user == "" {
			return nil, configErrf("rota.users: empty user id")
		}
		if !teamIDs[team] {
			return nil, configErrf("rota.users[%s]: unknown team %q", user, team)
		}
		p.users[user] = team
	}
	return p, nil
}

func (p *Provider) buildCustom(rc config.RotaConfig) error {
	if len(rc.ShiftTypes) == 0 {
		return configErrf("rota.shift_types: required for custom cycle %q", rc.Cycle)
	}
	p.shiftTypes = make(map[string]rota.ShiftType, len(rc.ShiftTypes))
	for _, sc := range rc.ShiftTypes {
		if sc.ID == "" {
			return configErrf("rota.shift_types: empty id")
		}
		if _, dup := p.shiftTypes[sc.ID]; dup {
			return configErrf("rota.shift_types: duplicate id %q", sc.ID)
		}
		st := rota.ShiftType{ID: sc.ID, Name: sc.Name, Rest: sc.Rest}
		if !sc.Rest {
			start, err := rota.ParseMinuteOfDay(sc.Start)
			if err != nil {
				return configErrf("rota.shift_types[%s].start: %v", sc.ID, err)
			}
			end, err := rota.ParseMinuteOfDay(sc.End)
			if err != nil {
				return configErrf("rota.shift_types[%s].end: %v", sc.ID, err)
			}
			st.Start, st.End = start, end
		}
		p.shiftTypes[sc.ID] = st
	}

	if len(rc.Teams) == 0 {
		return configErrf("rota.teams: required for custom cycle %q", rc.Cycle)
	}
	seen := map[string]bool{}
	p.teams = make([]rota.Team, 0, len(rc.Teams))
	for _, tc := range rc.Teams {
		if tc.ID == "" {
			return configErrf("rota.teams: empty id")
		}
		if seen[tc.ID] {
			return configErrf("rota.teams: duplicate id %q", tc.ID)
		}
		seen[tc.ID] = true
		p.teams = append(p.teams, rota.Team{ID: tc.ID, PhaseOffsetDays: tc.PhaseOffsetDays})
	}

	var cc *config.CycleConfig
	names := make([]string, 0, len(rc.Cycles))
	for i := range rc.Cycles {
		names = append(names, rc.Cycles[i].Name)
		if rc.Cycles[i].Name == rc.Cycle {
			cc = &rc.Cycles[i]
		}
	}
	if cc == nil {
		sort.Strings(names)
		return configErrf("rota.cycle: %q not found (have %v)", rc.Cycle, names)
	}

	slots := make([][]rota.SlotAssignment, len(cc.Days))
	for di, day := range cc.Days {
		slots[di] = make([]rota.SlotAssignment, 0, len(day))
		for _, slot := range day {
			if _, ok := p.shiftTypes[slot.Shift]; !ok {
				return configErrf("rota.cycles[%s].days[%d]: unknown shift type %q", cc.Name, di, slot.Shift)
			}
			for _, team := range slot.Teams {
				if !seen[team] {
					return configErrf("rota.cycles[%s].days[%d]: unknown team %q", cc.Name, di, team)
				}
			}
			slots[di] = append(slots[di], rota.SlotAssignment{ShiftTypeID: slot.Shift, TeamIDs: slot.Teams})
		}
	}
	cycle, err := rota.NewCycleDefinition(cc.Name, slots)
	if err != nil {
		return err
	}
	p.cycle = cycle
	return nil
}

// CycleFor returns the active cycle. The scope argument is accepted for
// future per-user cycles; today every scope shares one cycle.
func (p *Provider) CycleFor(string) (*rota.CycleDefinition, error) {
	return p.cycle, nil
}

func (p *Provider) Anchor() calendar.Date { return p.anchor }

func (p *Provider) Teams() []rota.Team {
	return append([]rota.Team(nil), p.teams...)
}

func (p *Provider) ShiftTypes() map[string]rota.ShiftType {
	out := make(map[string]rota.ShiftType, len(p.shiftTypes))
	for k, v := range p.shiftTypes {
		out[k] = v
	}
	return out
}

// TeamOf maps a user to their team; unknown users get the whole-crew view.
func (p *Provider) TeamOf(userID string) string {
	return p.users[userID]
}

func configErrf(format string, args ...any) error {
	return &rota.ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}
