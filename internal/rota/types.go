// Package rota implements the deterministic half of the schedule pipeline:
// repeating cycle definitions, per-team phase offsets, and the pure
// resolver/generator that turn a (date, cycle, anchor, team) tuple into
// computed day schedules.
//
// Everything in this package is a value type or immutable after
// construction. Mutation always produces a new value, so computed results
// are safe to cache and share across goroutines without synchronization.
package rota

import (
	"fmt"
	"sort"
	"strings"

	"rotaplan/internal/calendar"
)

// ConfigurationError marks invalid cycle/team/shift configuration.
// It is fatal: the caller must fix the configuration, nothing is defaulted.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "rota: invalid configuration: " + e.Reason
}

func configErrf(format string, args ...any) error {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// MinuteOfDay is a clock time expressed as minutes since midnight.
type MinuteOfDay int

func (m MinuteOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(m)/60, int(m)%60)
}

// ParseMinuteOfDay parses "HH:MM".
func ParseMinuteOfDay(s string) (MinuteOfDay, error) {
	var h, mi int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d:%d", &h, &mi); err != nil {
		return 0, fmt.Errorf("parse time %q: %w", s, err)
	}
	if h < 0 || h > 23 || mi < 0 || mi > 59 {
		return 0, fmt.Errorf("parse time %q: out of range", s)
	}
	return MinuteOfDay(h*60 + mi), nil
}

// ShiftType describes one shift slot of the day (or the synthetic rest
// marker, which never appears in computed output).
type ShiftType struct {
	ID    string
	Name  string
	Start MinuteOfDay
	End   MinuteOfDay
	Rest  bool
}

// Team is a work crew reading a shared cycle at its own phase offset.
type Team struct {
	ID string

	// PhaseOffsetDays shifts the team's read position within the cycle.
	// Values outside [0, cycle length) are normalized at resolve time.
	PhaseOffsetDays int
}

// SlotAssignment names the teams on duty for one shift slot of one cycle day.
type SlotAssignment struct {
	ShiftTypeID string
	TeamIDs     []string
}

// CycleDefinition is an immutable repeating day-indexed rotation.
//
// Slots[dayOffset] lists the shift-slot assignments for that offset.
// A day offset with no assignments is a rest day for everyone.
type CycleDefinition struct {
	name  string
	slots [][]SlotAssignment
}

// NewCycleDefinition validates and freezes a cycle.
// The slot table is deep-copied so later edits to the input cannot leak in.
func NewCycleDefinition(name string, slots [][]SlotAssignment) (*CycleDefinition, error) {
	if len(slots) == 0 {
		return nil, configErrf("cycle %q has zero length", name)
	}
	cp := make([][]SlotAssignment, len(slots))
	for i, day := range slots {
		cp[i] = make([]SlotAssignment, len(day))
		for j, sa := range day {
			if strings.TrimSpace(sa.ShiftTypeID) == "" {
				return nil, configErrf("cycle %q day %d slot %d has empty shift type", name, i, j)
			}
			teams := append([]string(nil), sa.TeamIDs...)
			sort.Strings(teams)
			cp[i][j] = SlotAssignment{ShiftTypeID: sa.ShiftTypeID, TeamIDs: teams}
		}
	}
	return &CycleDefinition{name: name, slots: cp}, nil
}

func (c *CycleDefinition) Name() string { return c.name }

// Len returns the cycle length in days. Always > 0 for a constructed cycle.
func (c *CycleDefinition) Len() int { return len(c.slots) }

// Day returns the slot assignments for a cycle position in [0, Len()).
// The returned slice must not be modified.
func (c *CycleDefinition) Day(pos int) []SlotAssignment { return c.slots[pos] }

// ComputedShift is one shift of a computed day: its type and the teams on duty.
type ComputedShift struct {
	Type  ShiftType
	Teams []string
}

// HasTeam reports whether teamID is on duty for this shift.
func (s ComputedShift) HasTeam(teamID string) bool {
	for _, t := range s.Teams {
		if t == teamID {
			return true
		}
	}
	return false
}

// ComputedDay is the final per-day result delivered to callers.
//
// It is a value type: once built it is never mutated. Overlays (exception
// merging) construct new ComputedDay values.
type ComputedDay struct {
	Date   calendar.Date
	Shifts []ComputedShift

	// Degraded marks base-only data produced while the exception store
	// was unavailable.
	Degraded bool

	// Notes carries metadata attached by informational exceptions.
	Notes []string
}

// Equal compares two computed days by value.
func (d ComputedDay) Equal(o ComputedDay) bool {
	if d.Date != o.Date || d.Degraded != o.Degraded {
		return false
	}
	if len(d.Shifts) != len(o.Shifts) || len(d.Notes) != len(o.Notes) {
		return false
	}
	for i := range d.Notes {
		if d.Notes[i] != o.Notes[i] {
			return false
		}
	}
	for i := range d.Shifts {
		a, b := d.Shifts[i], o.Shifts[i]
		if a.Type != b.Type || len(a.Teams) != len(b.Teams) {
			return false
		}
		for j := range a.Teams {
			if a.Teams[j] != b.Teams[j] {
				return false
			}
		}
	}
	return true
}

// EqualDays compares two day sequences by value.
func EqualDays(a, b []ComputedDay) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
