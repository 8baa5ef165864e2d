package exception

import (
	"sort"

	"rotaplan/internal/calendar"
	"rotaplan/internal/rota"
	logx "rotaplan/pkg/logx"
)

// Merge overlays exception records onto a generated base schedule and
// returns the final per-day result. The inputs are never mutated; days
// without applicable records are passed through unchanged.
//
// Rules:
//   - Only ACTIVE records apply; anything else is skipped.
//   - Per (date, target shift), the latest-created record wins. Records
//     are applied in (CreatedAt, ID) ascending order so later writes
//     override earlier ones deterministically.
//   - A shift-targeted record whose shift is missing from the base day
//     degrades to an appended shift when its payload can describe one
//     (TimeChange with explicit times); otherwise it is dropped with a
//     warning. Exceptions are overlays, never a hard failure.
//
// Merge is idempotent: merging an already-merged result with the same
// record set yields the same result.
func Merge(base []rota.ComputedDay, recs []Record, shiftTypes map[string]rota.ShiftType, log logx.Logger) []rota.ComputedDay {
	if len(base) == 0 || len(recs) == 0 {
		return base
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	byDate := make(map[calendar.Date][]Record)
	for _, r := range recs {
		if !r.Active() {
			continue
		}
		byDate[r.Date] = append(byDate[r.Date], r)
	}
	if len(byDate) == 0 {
		return base
	}

	out := make([]rota.ComputedDay, len(base))
	for i, day := range base {
		dayRecs := byDate[day.Date]
		if len(dayRecs) == 0 {
			out[i] = day
			continue
		}
		out[i] = mergeDay(day, dayRecs, shiftTypes, log)
	}
	return out
}

func mergeDay(day rota.ComputedDay, recs []Record, shiftTypes map[string]rota.ShiftType, log logx.Logger) rota.ComputedDay {
	// Last-write-wins: ascending (CreatedAt, ID) so a later record's
	// effect replaces an earlier one targeting the same shift.
	ordered := append([]Record(nil), recs...)
	sort.SliceStable(ordered, func(a, b int) bool {
		ra, rb := ordered[a], ordered[b]
		if !ra.CreatedAt.Equal(rb.CreatedAt) {
			return ra.CreatedAt.Before(rb.CreatedAt)
		}
		return ra.ID < rb.ID
	})

	// Collapse shift-targeted records to the single winner per target.
	winners := make(map[string]Record)
	var additions []Record
	var notes []Record
	for _, r := range ordered {
		switch r.Kind {
		case KindTimeChange, KindCancelled, KindSwap:
			winners[r.ShiftTypeID] = r
		case KindAdditional:
			additions = append(additions, r)
		case KindOther:
			notes = append(notes, r)
		}
	}

	merged := rota.ComputedDay{
		Date:     day.Date,
		Degraded: day.Degraded,
		Shifts:   make([]rota.ComputedShift, 0, len(day.Shifts)+len(additions)),
		Notes:    append([]string(nil), day.Notes...),
	}

	matched := make(map[string]bool, len(winners))
	for _, s := range day.Shifts {
		w, ok := winners[s.Type.ID]
		if !ok {
			merged.Shifts = append(merged.Shifts, s)
			continue
		}
		matched[s.Type.ID] = true
		switch w.Kind {
		case KindCancelled:
			// Removed entirely.
		case KindTimeChange:
			ns := s
			ns.Type.Start = w.NewStart
			ns.Type.End = w.NewEnd
			ns.Teams = append([]string(nil), s.Teams...)
			merged.Shifts = append(merged.Shifts, ns)
		case KindSwap:
			ns := s
			ns.Teams = []string{w.SwapTeam}
			merged.Shifts = append(merged.Shifts, ns)
		}
	}

	// Shift-targeted records whose shift is absent from the base day.
	for id, w := range winners {
		if matched[id] {
			continue
		}
		if w.Kind == KindTimeChange && w.HasNewTimes {
			if shift, ok := materialize(w, shiftTypes); ok {
				merged.Shifts = append(merged.Shifts, shift)
				continue
			}
		}
		log.Warn("exception targets missing shift, dropped",
			logx.Int64("id", w.ID),
			logx.String("kind", w.Kind.String()),
			logx.String("date", w.Date.String()),
			logx.String("shift_type", w.ShiftTypeID))
	}

	for _, r := range additions {
		shift, ok := materialize(r, shiftTypes)
		if !ok {
			log.Warn("additional shift references unknown shift type, dropped",
				logx.Int64("id", r.ID), logx.String("shift_type", r.ShiftTypeID))
			continue
		}
		// Skip duplicates so re-merging an already-merged day is a no-op.
		if !containsShift(merged.Shifts, shift) {
			merged.Shifts = append(merged.Shifts, shift)
		}
	}

	for _, r := range notes {
		if r.Note != "" && !containsNote(merged.Notes, r.Note) {
			merged.Notes = append(merged.Notes, r.Note)
		}
	}

	return merged
}

func containsShift(shifts []rota.ComputedShift, s rota.ComputedShift) bool {
	for _, have := range shifts {
		if have.Type != s.Type || len(have.Teams) != len(s.Teams) {
			continue
		}
		same := true
		for i := range have.Teams {
			if have.Teams[i] != s.Teams[i] {
				same = false
				break
			}
		}
		if same {
			return true
		}
	}
	return false
}

func containsNote(notes []string, n string) bool {
	for _, have := range notes {
		if have == n {
			return true
		}
	}
	return false
}

// materialize builds a ComputedShift from an append-capable record.
func materialize(r Record, shiftTypes map[string]rota.ShiftType) (rota.ComputedShift, bool) {
	st, ok := shiftTypes[r.ShiftTypeID]
	if !ok || st.Rest {
		return rota.ComputedShift{}, false
	}
	if r.HasNewTimes {
		st.Start = r.NewStart
		st.End = r.NewEnd
	}
	return rota.ComputedShift{Type: st, Teams: append([]string(nil), r.Teams...)}, true
}
