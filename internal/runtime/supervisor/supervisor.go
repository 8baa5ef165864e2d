// Package supervisor manages named goroutines tied to a shared context:
// panic recovery, optional cancel-on-first-error, and graceful waiting.
package supervisor

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	logx "rotaplan/pkg/logx"
)

type Supervisor struct {
	ctx    context.Context
	cancel context.CancelFunc

	log         logx.Logger
	cancelOnErr bool
	errOnce     sync.Once
	firstErr    atomic.Value // stores error
	wg          sync.WaitGroup

	// Best-effort operational counters.
	started uint64
	active  int64
}

type Option func(*Supervisor)

func WithLogger(log logx.Logger) Option {
	return func(s *Supervisor) { s.log = log }
}

// If enabled, the first non-nil error from any goroutine cancels the
// supervisor context.
func WithCancelOnError(enabled bool) Option {
	return func(s *Supervisor) { s.cancelOnErr = enabled }
}

func New(parent context.Context, opts ...Option) *Supervisor {
	ctx, cancel := context.WithCancel(parent)
	s := &Supervisor{ctx: ctx, cancel: cancel}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Supervisor) Context() context.Context { return s.ctx }

// Cancel cancels the supervisor context without waiting for goroutines.
func (s *Supervisor) Cancel() { s.cancel() }

func (s *Supervisor) Err() error {
	v := s.firstErr.Load()
	if v == nil {
		return nil
	}
	err, _ := v.(error)
	return err
}

// Active returns the number of goroutines currently running.
func (s *Supervisor) Active() int64 { return atomic.LoadInt64(&s.active) }

// Go runs fn under the supervisor. Panics are recovered and recorded as
// errors so one bad goroutine cannot take down the process.
func (s *Supervisor) Go(name string, fn func(ctx context.Context) error) {
	s.wg.Add(1)
	atomic.AddUint64(&s.started, 1)
	atomic.AddInt64(&s.active, 1)

	go func() {
		defer s.wg.Done()
		defer atomic.AddInt64(&s.active, -1)

		err := s.run(name, fn)
		if err == nil || err == context.Canceled || s.ctx.Err() != nil {
			return
		}
		s.recordErr(err)
		if !s.log.IsZero() {
			s.log.Error("goroutine failed", logx.String("name", name), logx.Err(err))
		}
		if s.cancelOnErr {
			s.cancel()
		}
	}()
}

func (s *Supervisor) run(name string, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", name, r)
			if !s.log.IsZero() {
				s.log.Error("goroutine panic",
					logx.String("name", name),
					logx.Any("panic", r),
					logx.String("stack", string(debug.Stack())))
			}
		}
	}()
	return fn(s.ctx)
}

func (s *Supervisor) recordErr(err error) {
	s.errOnce.Do(func() { s.firstErr.Store(err) })
}

// Wait blocks until all goroutines exit or ctx is done.
func (s *Supervisor) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return s.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}
