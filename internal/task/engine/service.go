package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"rotaplan/internal/eventbus"
	rtsup "rotaplan/internal/runtime/supervisor"
	logx "rotaplan/pkg/logx"
)

type Service struct {
	mu  sync.Mutex
	cfg Config
	log logx.Logger
	bus eventbus.Bus

	q chan queuedTask

	inFlight int32

	sup      *rtsup.Supervisor
	stopCh   chan struct{}
	stopDone chan struct{}

	stateMu sync.Mutex
	states  map[string]*RunState

	hmu     sync.Mutex
	history []HistoryItem

	idSeq   uint64
	dropped uint64
}

type queuedTask struct {
	task Task

	enqueuedAt time.Time
	timeout    time.Duration

	state *RunState
}

func New(cfg Config, log logx.Logger, bus eventbus.Bus) *Service {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 100
	}
	return &Service{
		cfg:    cfg,
		log:    log,
		bus:    bus,
		states: make(map[string]*RunState),
	}
}

func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	cfg := s.cfg

	// Start is idempotent.
	if s.stopCh != nil {
		// If stopping, wait for it to finish before restarting.
		done := s.stopDone
		s.mu.Unlock()
		if done != nil {
			select {
			case <-done:
			case <-ctx.Done():
				return
			}
			s.Start(ctx)
		}
		return
	}

	s.q = make(chan queuedTask, cfg.QueueSize)
	s.stopCh = make(chan struct{})
	s.stopDone = nil
	stopCh := s.stopCh
	queue := s.q

	s.sup = rtsup.New(ctx,
		rtsup.WithLogger(s.log.With(logx.String("comp", "taskengine"))),
		// Worker failures should not hard-kill the app; treat as best-effort.
		rtsup.WithCancelOnError(false),
	)
	sup := s.sup
	s.mu.Unlock()

	for i := 0; i < cfg.Workers; i++ {
		idx := i
		sup.Go(fmt.Sprintf("worker.%d", idx), func(c context.Context) error {
			s.worker(c, stopCh, queue)
			return nil
		})
	}

	s.log.Info("task engine started", logx.Int("workers", cfg.Workers), logx.Int("queue", cap(queue)))
}

func (s *Service) Stop(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.stopCh == nil {
		s.mu.Unlock()
		return
	}
	// If already stopping, wait.
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
		}
		return
	}

	done := make(chan struct{})
	s.stopDone = done
	close(s.stopCh)
	sup := s.sup
	s.mu.Unlock()

	if sup != nil {
		sup.Cancel()
	}

	go func() {
		// Wait unbounded in background; caller can still time out.
		if sup != nil {
			_ = sup.Wait(context.Background())
		}
		s.mu.Lock()
		s.q = nil
		s.stopCh = nil
		s.stopDone = nil
		s.sup = nil
		atomic.StoreInt32(&s.inFlight, 0)
		s.mu.Unlock()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("task engine stopped")
	case <-ctx.Done():
		s.log.Warn("task engine stop timed out", logx.Any("err", ctx.Err()))
	}
}

// Enqueue tries to enqueue a task without blocking. If the queue is full,
// the task is dropped and ErrQueueFull returned.
func (s *Service) Enqueue(t Task) error {
	return s.enqueue(context.Background(), t, false)
}

// Submit enqueues a task and blocks until it is accepted, ctx is canceled,
// or the engine stops.
func (s *Service) Submit(ctx context.Context, t Task) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.enqueue(ctx, t, true)
}

func (s *Service) enqueue(ctx context.Context, t Task, block bool) error {
	if t.Run == nil {
		return errors.New("task Run is nil")
	}
	name := strings.TrimSpace(t.Name)
	if name == "" {
		return errors.New("task Name is required")
	}
	t.Name = name

	now := time.Now()
	if strings.TrimSpace(t.ID) == "" {
		t.ID = s.newTaskID(now)
	}

	s.mu.Lock()
	cfg := s.cfg
	q := s.q
	stopCh := s.stopCh
	stopping := s.stopDone != nil
	s.mu.Unlock()

	if q == nil || stopCh == nil {
		return ErrStopped
	}
	if stopping {
		return ErrStopping
	}

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = cfg.DefaultTimeout
	}

	st := s.stateFor(t.Key, t.Name)
	if !st.tryAcquire() {
		if s.bus != nil {
			s.bus.Publish(eventbus.Event{Type: "task.skipped", Time: now, Data: TaskEvent{ID: t.ID, Name: t.Name, Started: now, Error: "overlap_skip"}})
		}
		s.log.Debug("task skipped due to overlap", logx.String("task", t.Name), logx.String("id", t.ID))
		return ErrOverlapSkip
	}

	qt := queuedTask{task: t, enqueuedAt: now, timeout: timeout, state: st}

	if !block {
		select {
		case q <- qt:
			return nil
		default:
			st.release()
			s.onQueueFullDropped(now, t, q)
			return ErrQueueFull
		}
	}

	select {
	case q <- qt:
		return nil
	case <-ctx.Done():
		st.release()
		return ctx.Err()
	case <-stopCh:
		st.release()
		return ErrStopping
	}
}

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	cfg := s.cfg
	q := s.q
	s.mu.Unlock()

	ql := 0
	qc := 0
	if q != nil {
		ql = len(q)
		qc = cap(q)
	}

	s.hmu.Lock()
	h := make([]HistoryItem, len(s.history))
	copy(h, s.history)
	s.hmu.Unlock()

	return Snapshot{
		Workers:  cfg.Workers,
		QueueLen: ql,
		QueueCap: qc,
		InFlight: int(atomic.LoadInt32(&s.inFlight)),
		Dropped:  atomic.LoadUint64(&s.dropped),
		History:  h,
	}
}

func (s *Service) stateFor(key, name string) *RunState {
	k := strings.TrimSpace(key)
	if k == "" {
		k = strings.TrimSpace(name)
	}
	if k == "" {
		k = "default"
	}

	s.stateMu.Lock()
	st := s.states[k]
	if st == nil {
		st = &RunState{}
		s.states[k] = st
	}
	s.stateMu.Unlock()
	return st
}

func (s *Service) newTaskID(now time.Time) string {
	seq := atomic.AddUint64(&s.idSeq, 1)
	// Short but unique-ish across restarts.
	return fmt.Sprintf("tsk-%x-%x", now.UnixNano(), seq)
}

func (s *Service) onQueueFullDropped(now time.Time, t Task, q chan queuedTask) {
	atomic.AddUint64(&s.dropped, 1)

	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: "task.dropped", Time: now, Data: TaskEvent{ID: t.ID, Name: t.Name, Started: now, Error: "queue_full"}})
	}
	s.log.Warn("task dropped: queue full",
		logx.String("task", t.Name),
		logx.String("id", t.ID),
		logx.Int("queue_len", len(q)),
		logx.Int("queue_cap", cap(q)),
		logx.Uint64("dropped", atomic.LoadUint64(&s.dropped)),
	)
}
