package engine

import "errors"

var (
	ErrStopped     = errors.New("task engine not running")
	ErrStopping    = errors.New("task engine stopping")
	ErrQueueFull   = errors.New("task queue full")
	ErrOverlapSkip = errors.New("task skipped: already queued or running")
)
