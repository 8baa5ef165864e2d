package schedcache

import (
	"sync"

	"rotaplan/internal/rota"
)

// Callback receives bucket lifecycle notifications. Implementations must
// unsubscribe explicitly when done; the cache never drops subscribers on
// its own.
type Callback interface {
	// OnStateChanged fires once per transition. days is non-nil only for
	// StateAvailable; err carries the failure for StateError and the
	// degraded-data warning (if any) alongside StateAvailable.
	OnStateChanged(key BucketKey, state State, days []rota.ComputedDay, err error)

	// OnLoadingProgress reports coarse progress (0-100) while loading.
	OnLoadingProgress(key BucketKey, percent int)
}

type notification struct {
	key      BucketKey
	progress bool
	percent  int
	state    State
	days     []rota.ComputedDay
	err      error
}

// notifier serializes all callback delivery through a single goroutine so
// subscribers observe state transitions in the order they happened, and so
// callbacks may safely call back into the cache.
type notifier struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []notification
	subs   map[uint64]Callback
	nextID uint64
	closed bool
	done   chan struct{}
}

func newNotifier() *notifier {
	n := &notifier{
		subs: map[uint64]Callback{},
		done: make(chan struct{}),
	}
	n.cond = sync.NewCond(&n.mu)
	go n.run()
	return n
}

func (n *notifier) subscribe(cb Callback) func() {
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.subs[id] = cb
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.mu.Unlock()
		})
	}
}

func (n *notifier) enqueue(v notification) {
	n.mu.Lock()
	if !n.closed {
		n.queue = append(n.queue, v)
		n.cond.Signal()
	}
	n.mu.Unlock()
}

// close stops accepting notifications, drains the queue, and waits for the
// delivery goroutine to exit.
func (n *notifier) close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		<-n.done
		return
	}
	n.closed = true
	n.cond.Broadcast()
	n.mu.Unlock()
	<-n.done
}

func (n *notifier) run() {
	defer close(n.done)
	for {
		n.mu.Lock()
		for len(n.queue) == 0 && !n.closed {
			n.cond.Wait()
		}
		if len(n.queue) == 0 {
			n.mu.Unlock()
			return
		}
		v := n.queue[0]
		n.queue = n.queue[1:]
		cbs := make([]Callback, 0, len(n.subs))
		for _, cb := range n.subs {
			cbs = append(cbs, cb)
		}
		n.mu.Unlock()

		for _, cb := range cbs {
			if v.progress {
				cb.OnLoadingProgress(v.key, v.percent)
			} else {
				cb.OnStateChanged(v.key, v.state, v.days, v.err)
			}
		}
	}
}
