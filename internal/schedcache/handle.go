package schedcache

import (
	"context"
	"sync"

	"rotaplan/internal/rota"
)

// Handle is the caller-facing promise for one bucket load. The same handle
// is shared by every Request issued while the load is in flight.
//
// Result is valid only after Done is closed. The day slice it returns is
// immutable and safe to share.
type Handle struct {
	key  BucketKey
	done chan struct{}

	once sync.Once
	days []rota.ComputedDay
	err  error
}

func newHandle(key BucketKey) *Handle {
	return &Handle{key: key, done: make(chan struct{})}
}

func resolvedHandle(key BucketKey, days []rota.ComputedDay, err error) *Handle {
	h := newHandle(key)
	h.resolve(days, err)
	return h
}

func (h *Handle) resolve(days []rota.ComputedDay, err error) {
	h.once.Do(func() {
		h.days = days
		h.err = err
		close(h.done)
	})
}

func (h *Handle) Key() BucketKey { return h.key }

// Done is closed once the handle carries a result or an error.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Result returns the outcome. It must not be called before Done is closed.
func (h *Handle) Result() ([]rota.ComputedDay, error) {
	select {
	case <-h.done:
		return h.days, h.err
	default:
		return nil, errNotResolved
	}
}

// Wait blocks until the handle resolves or ctx is done.
func (h *Handle) Wait(ctx context.Context) ([]rota.ComputedDay, error) {
	select {
	case <-h.done:
		return h.days, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
