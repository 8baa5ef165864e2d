package schedcache

import "errors"

var (
	// ErrLoadCancelled resolves handles whose bucket was evicted while the
	// load was still in flight. It is not a failure: no result exists for
	// that epoch and none will be published.
	ErrLoadCancelled = errors.New("schedcache: load cancelled")

	// ErrClosed resolves handles requested after Close.
	ErrClosed = errors.New("schedcache: cache closed")

	errNotResolved = errors.New("schedcache: handle not resolved yet")
)
