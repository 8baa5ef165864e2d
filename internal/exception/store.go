package exception

import (
	"context"
	"errors"
	"strings"

	"rotaplan/internal/calendar"
	logx "rotaplan/pkg/logx"
)

// Store is the persistence API for exception records.
//
// ActiveForRange must return only ACTIVE records whose date falls inside
// the inclusive [start, end] range; filtering cancelled records is the
// store's concern, not the merge engine's.
type Store interface {
	ActiveForRange(ctx context.Context, userID string, start, end calendar.Date) ([]Record, error)
	Put(ctx context.Context, r Record) (int64, error)
	Cancel(ctx context.Context, id int64) error
	Close() error
}

// Config selects and configures a store backend.
//
// Driver values:
//   - "memory": in-process only (default when empty)
//   - "file":   JSONL journal + snapshot
//   - "sqlite": SQLite database file
type Config struct {
	Driver string
	Path   string
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "memory":
		return NewMemoryStore(), nil
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown exception store driver: " + cfg.Driver)
	}
}
