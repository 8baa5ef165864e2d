package schedcache

import (
	"rotaplan/internal/calendar"
)

// BucketKey identifies one cached month of computed schedule, optionally
// narrowed to a single user's view. The zero UserID means the whole-crew
// layout with no exception overlay.
type BucketKey struct {
	Month  calendar.Month
	UserID string
}

func (k BucketKey) String() string {
	if k.UserID == "" {
		return k.Month.String()
	}
	return k.Month.String() + "/" + k.UserID
}

// State is the lifecycle of one bucket. Transitions for a single key are
// strictly ordered; a new load after expiry starts a fresh epoch.
type State uint8

const (
	StateNotRequested State = iota
	StateLoading
	StateAvailable
	StateError
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateNotRequested:
		return "not_requested"
	case StateLoading:
		return "loading"
	case StateAvailable:
		return "available"
	case StateError:
		return "error"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}
