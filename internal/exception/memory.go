package exception

import (
	"context"
	"sort"
	"sync"

	"rotaplan/internal/calendar"
)

// MemoryStore is a mutex-guarded in-process store. It backs tests and the
// dep-free default configuration.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	recs   map[int64]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1, recs: map[int64]Record{}}
}

func (m *MemoryStore) ActiveForRange(ctx context.Context, userID string, start, end calendar.Date) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Record
	for _, r := range m.recs {
		if !r.Active() || r.UserID != userID {
			continue
		}
		if r.Date.Before(start) || r.Date.After(end) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) Put(ctx context.Context, r Record) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if r.ID == 0 {
		r.ID = m.nextID
		m.nextID++
	} else if r.ID >= m.nextID {
		m.nextID = r.ID + 1
	}
	if r.Status == 0 {
		r.Status = StatusActive
	}
	m.recs[r.ID] = r
	return r.ID, nil
}

func (m *MemoryStore) Cancel(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.recs[id]
	if !ok {
		return nil
	}
	r.Status = StatusCancelled
	m.recs[id] = r
	return nil
}

func (m *MemoryStore) Close() error { return nil }
