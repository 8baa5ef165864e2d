package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"rotaplan/internal/eventbus"
	logx "rotaplan/pkg/logx"
)

func (s *Service) worker(ctx context.Context, stopCh <-chan struct{}, queue chan queuedTask) {
	for {
		// Fast-exit check so a closed stopCh wins over queued work.
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		default:
		}

		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case t, ok := <-queue:
			if !ok {
				return
			}
			atomic.AddInt32(&s.inFlight, 1)
			s.execOne(ctx, t)
			atomic.AddInt32(&s.inFlight, -1)
		}
	}
}

func (s *Service) execOne(ctx context.Context, qt queuedTask) {
	defer qt.state.release()

	start := time.Now()
	queueDelay := start.Sub(qt.enqueuedAt)
	if queueDelay < 0 {
		queueDelay = 0
	}

	// Tasks carrying their own context may be cancelled while queued
	// (e.g. bucket evicted before its load ran). Skip them outright.
	if qt.task.Ctx != nil && qt.task.Ctx.Err() != nil {
		s.log.Debug("task cancelled while queued", logx.String("task", qt.task.Name), logx.String("id", qt.task.ID))
		return
	}

	s.log.Debug("task.started", logx.String("task", qt.task.Name), logx.Duration("queue_delay", queueDelay))
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: "task.started", Time: start, Data: TaskEvent{ID: qt.task.ID, Name: qt.task.Name, Started: start, QueueDelay: queueDelay}})
	}

	runCtx := ctx
	var cancels []func()
	if qt.task.Ctx != nil {
		// Run under the engine context AND the task's own context: either
		// cancellation stops the work.
		merged, cancel := context.WithCancel(runCtx)
		cancels = append(cancels, cancel)
		stop := context.AfterFunc(qt.task.Ctx, cancel)
		cancels = append(cancels, func() { stop() })
		runCtx = merged
	}
	if qt.timeout > 0 {
		tctx, cancel := context.WithTimeout(runCtx, qt.timeout)
		cancels = append(cancels, cancel)
		runCtx = tctx
	}

	var err error
	// Guard against task panics: one bad load must not kill a worker.
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
				s.log.Error("task.panic", logx.String("task", qt.task.Name), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
			}
		}()
		err = qt.task.Run(runCtx)
	}()
	for i := len(cancels) - 1; i >= 0; i-- {
		cancels[i]()
	}

	dur := time.Since(start)
	item := HistoryItem{ID: qt.task.ID, Name: qt.task.Name, Started: start, Duration: dur, QueueDelay: queueDelay}
	if err != nil {
		item.Error = err.Error()
		s.log.Warn("task.failed", logx.String("task", qt.task.Name), logx.Any("err", err), logx.Duration("dur", dur))
		if s.bus != nil {
			s.bus.Publish(eventbus.Event{Type: "task.failed", Time: time.Now(), Data: TaskEvent{ID: qt.task.ID, Name: qt.task.Name, Started: start, QueueDelay: queueDelay, Duration: dur, Error: item.Error}})
		}
	} else {
		s.log.Debug("task.completed", logx.String("task", qt.task.Name), logx.Duration("dur", dur))
		if s.bus != nil {
			s.bus.Publish(eventbus.Event{Type: "task.finished", Time: time.Now(), Data: TaskEvent{ID: qt.task.ID, Name: qt.task.Name, Started: start, QueueDelay: queueDelay, Duration: dur}})
		}
	}

	s.hmu.Lock()
	s.history = append(s.history, item)
	if max := s.historySize(); len(s.history) > max {
		s.history = s.history[len(s.history)-max:]
	}
	s.hmu.Unlock()
}

func (s *Service) historySize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.HistorySize <= 0 {
		return 100
	}
	return s.cfg.HistorySize
}
