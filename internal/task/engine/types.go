// Package engine runs background tasks on a bounded worker pool.
//
// The schedule cache submits one task per bucket load; the pool caps load
// volume under fast scrolling, and per-key overlap gating guarantees that
// at most one task runs per bucket at a time.
package engine

import (
	"context"
	"sync"
	"time"
)

// Config controls the task execution engine.
type Config struct {
	Workers   int
	QueueSize int

	// DefaultTimeout is used when Task.Timeout is 0.
	// Zero disables the global default.
	DefaultTimeout time.Duration

	HistorySize int
}

// Task is one unit of background work.
type Task struct {
	ID   string
	Name string

	// Key gates overlap: while a task with the same Key is queued or
	// running, further tasks with that Key are rejected with
	// ErrOverlapSkip. Empty Key falls back to Name.
	Key string

	// Ctx, when non-nil, cancels this task independently of the engine
	// (checked while queued and wired into the run context).
	Ctx context.Context

	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// RunState tracks whether a task is already queued or in-flight for a key.
// "Skip if running" means "skip if running OR already queued", which
// prevents queue blow-ups when callers request faster than execution.
type RunState struct {
	mu       sync.Mutex
	inflight int
}

func (s *RunState) tryAcquire() bool {
	if s == nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight > 0 {
		return false
	}
	s.inflight++
	return true
}

func (s *RunState) release() {
	if s == nil {
		return
	}
	s.mu.Lock()
	if s.inflight > 0 {
		s.inflight--
	}
	s.mu.Unlock()
}

// TaskEvent is the payload of task lifecycle events on the bus.
type TaskEvent struct {
	ID         string
	Name       string
	Started    time.Time
	QueueDelay time.Duration
	Duration   time.Duration
	Error      string
}

// HistoryItem records one finished task for operator visibility.
type HistoryItem struct {
	ID         string
	Name       string
	Started    time.Time
	QueueDelay time.Duration
	Duration   time.Duration
	Error      string
}

// Snapshot is a point-in-time view of the engine.
type Snapshot struct {
	Workers  int
	QueueLen int
	QueueCap int
	InFlight int
	Dropped  uint64
	History  []HistoryItem
}
