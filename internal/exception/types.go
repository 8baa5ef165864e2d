// Package exception holds per-user, per-date schedule override records and
// the merge engine that overlays them onto generated base schedules.
//
// Record lifecycle (create/update/cancel) belongs to a Store; the merge
// engine only ever reads ACTIVE records and never mutates base data.
package exception

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"rotaplan/internal/calendar"
	"rotaplan/internal/rota"
)

// ErrStoreUnavailable marks a transient store failure. Schedule loads
// degrade to base-only data instead of failing the whole bucket.
var ErrStoreUnavailable = errors.New("exception store unavailable")

// Kind is the closed set of override variants. The merge engine switches
// exhaustively over it; adding a kind is a compile-visible change there.
type Kind int

const (
	KindTimeChange Kind = iota + 1
	KindCancelled
	KindAdditional
	KindSwap
	KindOther
)

var kindNames = map[Kind]string{
	KindTimeChange: "time_change",
	KindCancelled:  "cancelled",
	KindAdditional: "additional",
	KindSwap:       "swap",
	KindOther:      "other",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind maps the stored string form back to a Kind.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == strings.TrimSpace(strings.ToLower(s)) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown exception kind %q", s)
}

// Status gates whether a record affects output at all.
type Status int

const (
	StatusActive Status = iota + 1
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// ParseStatus maps the stored string form back to a Status.
func ParseStatus(s string) (Status, error) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "active":
		return StatusActive, nil
	case "cancelled":
		return StatusCancelled, nil
	default:
		return 0, fmt.Errorf("unknown exception status %q", s)
	}
}

// Record is one per-user, per-date override.
//
// Payload fields by kind:
//   - TimeChange: ShiftTypeID (target), NewStart, NewEnd
//   - Cancelled:  ShiftTypeID (target)
//   - Swap:       ShiftTypeID (target), SwapTeam
//   - Additional: ShiftTypeID (type of the added shift), Teams,
//     optionally NewStart/NewEnd overriding the type's default times
//   - Other:      Note (informational, timing untouched)
type Record struct {
	ID        int64
	UserID    string
	Date      calendar.Date
	Kind      Kind
	Status    Status
	CreatedAt time.Time

	ShiftTypeID string
	NewStart    rota.MinuteOfDay
	NewEnd      rota.MinuteOfDay
	HasNewTimes bool
	SwapTeam    string
	Teams       []string
	Note        string
}

// Active reports whether the record may affect output.
func (r Record) Active() bool { return r.Status == StatusActive }
