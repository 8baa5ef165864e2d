// Package schedcache is the asynchronous, stateful access layer for
// computed schedules. It caches one bucket per (month, user), loads
// buckets on a shared bounded worker pool, coalesces concurrent requests,
// and keeps a bounded retention window around the month being viewed.
package schedcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"rotaplan/internal/calendar"
	"rotaplan/internal/eventbus"
	"rotaplan/internal/exception"
	"rotaplan/internal/rota"
	"rotaplan/internal/task/engine"
	logx "rotaplan/pkg/logx"
)

// Provider supplies the rotation configuration a load needs. Implementations
// must be safe for concurrent use; the cache never caches provider output
// across loads.
type Provider interface {
	// CycleFor returns the cycle for a user scope ("" = whole crew).
	CycleFor(userID string) (*rota.CycleDefinition, error)
	Anchor() calendar.Date
	Teams() []rota.Team
	ShiftTypes() map[string]rota.ShiftType

	// TeamOf maps a user to the team whose schedule they follow.
	// Unknown users get the whole-crew view ("").
	TeamOf(userID string) string
}

// ExceptionSource is the read surface of the exception store the load
// pipeline consumes. exception.Store satisfies it.
type ExceptionSource interface {
	ActiveForRange(ctx context.Context, userID string, start, end calendar.Date) ([]exception.Record, error)
}

// Config tunes cache behavior. Zero values take defaults.
type Config struct {
	// RetentionWindow keeps buckets within current ± N months; buckets
	// outside are evicted opportunistically on access.
	RetentionWindow int

	// LoadTimeout bounds a single bucket load; expiry moves the bucket
	// to StateError (the cache never auto-retries).
	LoadTimeout time.Duration

	// PrefetchNeighbors is how many months ahead Prefetch requests at
	// rest; PrefetchWide applies once |velocity| crosses
	// VelocityThreshold (months per second of scrolling).
	PrefetchNeighbors int
	PrefetchWide      int
	VelocityThreshold float64

	// PrefetchRate/PrefetchBurst throttle speculative (non-center) loads.
	PrefetchRate  float64
	PrefetchBurst int
}

func (c Config) withDefaults() Config {
	if c.RetentionWindow <= 0 {
		c.RetentionWindow = 2
	}
	if c.LoadTimeout <= 0 {
		c.LoadTimeout = 10 * time.Second
	}
	if c.PrefetchNeighbors <= 0 {
		c.PrefetchNeighbors = 1
	}
	if c.PrefetchWide <= c.PrefetchNeighbors {
		c.PrefetchWide = c.PrefetchNeighbors + 2
	}
	if c.VelocityThreshold <= 0 {
		c.VelocityThreshold = 2
	}
	if c.PrefetchRate <= 0 {
		c.PrefetchRate = 4
	}
	if c.PrefetchBurst <= 0 {
		c.PrefetchBurst = 2
	}
	return c
}

type entry struct {
	state    State
	epoch    uint64
	days     []rota.ComputedDay
	err      error
	loadedAt time.Time
	cancel   context.CancelFunc
	handle   *Handle
}

// BucketEvent is the bus payload for bucket lifecycle topics.
type BucketEvent struct {
	Key   string `json:"key"`
	State string `json:"state"`
	Days  int    `json:"days,omitempty"`
	Err   string `json:"err,omitempty"`
}

// Cache is safe for concurrent use. The entry map is the only shared
// mutable structure; published day slices are immutable.
type Cache struct {
	cfg      Config
	provider Provider
	store    ExceptionSource
	engine   *engine.Service
	bus      eventbus.Bus
	log      logx.Logger
	limiter  *rate.Limiter
	nowFn    func() time.Time
	notify   *notifier

	mu        sync.Mutex
	entries   map[BucketKey]*entry
	center    calendar.Month
	hasCenter bool
	epoch     uint64
	closed    bool
}

// New assembles a cache around an already-started engine. The bus may be
// nil; the store may be nil (no exception overlay).
func New(cfg Config, p Provider, store ExceptionSource, eng *engine.Service, bus eventbus.Bus, log logx.Logger) *Cache {
	cfg = cfg.withDefaults()
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Cache{
		cfg:      cfg,
		provider: p,
		store:    store,
		engine:   eng,
		bus:      bus,
		log:      log.With(logx.String("component", "schedcache")),
		limiter:  rate.NewLimiter(rate.Limit(cfg.PrefetchRate), cfg.PrefetchBurst),
		nowFn:    time.Now,
		notify:   newNotifier(),
		entries:  map[BucketKey]*entry{},
	}
}

// Subscribe registers cb for bucket notifications and returns its
// unsubscribe func. Delivery is serialized and ordered per subscriber.
func (c *Cache) Subscribe(cb Callback) func() {
	return c.notify.subscribe(cb)
}

// Request returns the handle for key without blocking. An in-flight load
// is joined, available data resolves immediately, anything else starts a
// fresh load epoch. Request never panics and never returns nil.
func (c *Cache) Request(key BucketKey) *Handle {
	return c.request(key, true)
}

func (c *Cache) request(key BucketKey, recenter bool) *Handle {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return resolvedHandle(key, nil, ErrClosed)
	}
	if recenter {
		c.center = key.Month
		c.hasCenter = true
		c.sweepLocked()
	}
	if e := c.entries[key]; e != nil {
		switch e.state {
		case StateLoading, StateAvailable:
			h := e.handle
			c.mu.Unlock()
			return h
		}
	}
	h := c.startLoadLocked(key)
	c.mu.Unlock()
	return h
}

func (c *Cache) startLoadLocked(key BucketKey) *Handle {
	c.epoch++
	epoch := c.epoch
	ctx, cancel := context.WithCancel(context.Background())
	h := newHandle(key)

	e := c.entries[key]
	if e == nil {
		e = &entry{}
		c.entries[key] = e
	}
	e.state = StateLoading
	e.epoch = epoch
	e.days = nil
	e.err = nil
	e.cancel = cancel
	e.handle = h

	c.notify.enqueue(notification{key: key, state: StateLoading})
	c.publish(eventbus.TopicBucketLoading, key, StateLoading, 0, nil)

	t := engine.Task{
		Name:    "bucket.load",
		Key:     fmt.Sprintf("%s#%d", key, epoch),
		Ctx:     ctx,
		Timeout: c.cfg.LoadTimeout,
		Run: func(runCtx context.Context) error {
			return c.load(runCtx, key, epoch)
		},
	}
	if err := c.engine.Enqueue(t); err != nil {
		cancel()
		e.state = StateError
		e.err = err
		e.cancel = nil
		h.resolve(nil, err)
		c.notify.enqueue(notification{key: key, state: StateError, err: err})
		c.publish(eventbus.TopicBucketError, key, StateError, 0, err)
		c.log.Warn("bucket load rejected", logx.String("bucket", key.String()), logx.Err(err))
	}
	return h
}

// load runs on an engine worker. Cooperative cancellation is checked
// between the blocking collaborator calls; the pure steps never block.
func (c *Cache) load(ctx context.Context, key BucketKey, epoch uint64) error {
	c.progress(key, epoch, 0)

	cycle, err := c.provider.CycleFor(key.UserID)
	if err != nil {
		return c.fail(key, epoch, err)
	}
	if err := ctx.Err(); err != nil {
		return c.interrupted(key, epoch, err)
	}

	start, end := key.Month.First(), key.Month.Last()
	teamFilter := ""
	if key.UserID != "" {
		teamFilter = c.provider.TeamOf(key.UserID)
	}
	shiftTypes := c.provider.ShiftTypes()

	base, err := rota.Generate(start, end, cycle, c.provider.Anchor(), teamFilter, c.provider.Teams(), shiftTypes)
	if err != nil {
		return c.fail(key, epoch, err)
	}
	c.progress(key, epoch, 50)
	if err := ctx.Err(); err != nil {
		return c.interrupted(key, epoch, err)
	}

	days := base
	var warn error
	if key.UserID != "" && c.store != nil {
		recs, err := c.store.ActiveForRange(ctx, key.UserID, start, end)
		switch {
		case err != nil && ctx.Err() != nil:
			return c.interrupted(key, epoch, ctx.Err())
		case err != nil:
			warn = fmt.Errorf("%w: %v", exception.ErrStoreUnavailable, err)
			days = markDegraded(base)
			c.log.Warn("serving base-only schedule", logx.String("bucket", key.String()), logx.Err(err))
		default:
			days = exception.Merge(base, recs, shiftTypes, c.log)
		}
	}

	c.progress(key, epoch, 100)
	if err := ctx.Err(); err != nil {
		return c.interrupted(key, epoch, err)
	}
	return c.complete(key, epoch, days, warn)
}

// interrupted classifies a mid-load context error: deadline expiry is a
// real failure, plain cancellation (eviction, shutdown) publishes nothing.
func (c *Cache) interrupted(key BucketKey, epoch uint64, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return c.fail(key, epoch, fmt.Errorf("load timed out: %w", err))
	}
	return c.abandon(key)
}

func (c *Cache) complete(key BucketKey, epoch uint64, days []rota.ComputedDay, warn error) error {
	c.mu.Lock()
	e := c.entries[key]
	if e == nil || e.epoch != epoch || e.state != StateLoading {
		c.mu.Unlock()
		c.log.Debug("discarding stale bucket result", logx.String("bucket", key.String()))
		return nil
	}
	e.state = StateAvailable
	e.days = days
	e.err = warn
	e.loadedAt = c.nowFn()
	e.cancel = nil
	e.handle.resolve(days, nil)
	c.notify.enqueue(notification{key: key, state: StateAvailable, days: days, err: warn})
	c.mu.Unlock()

	c.publish(eventbus.TopicBucketAvailable, key, StateAvailable, len(days), warn)
	return nil
}

func (c *Cache) fail(key BucketKey, epoch uint64, err error) error {
	c.mu.Lock()
	e := c.entries[key]
	if e == nil || e.epoch != epoch || e.state != StateLoading {
		c.mu.Unlock()
		return nil
	}
	e.state = StateError
	e.days = nil
	e.err = err
	e.cancel = nil
	e.handle.resolve(nil, err)
	c.notify.enqueue(notification{key: key, state: StateError, err: err})
	c.mu.Unlock()

	c.publish(eventbus.TopicBucketError, key, StateError, 0, err)
	c.log.Warn("bucket load failed", logx.String("bucket", key.String()), logx.Err(err))
	return err
}

func (c *Cache) abandon(key BucketKey) error {
	c.log.Debug("bucket load cancelled", logx.String("bucket", key.String()))
	return nil
}

func (c *Cache) progress(key BucketKey, epoch uint64, pct int) {
	c.mu.Lock()
	if e := c.entries[key]; e != nil && e.epoch == epoch && e.state == StateLoading {
		c.notify.enqueue(notification{key: key, progress: true, percent: pct})
	}
	c.mu.Unlock()
}

// Evict cancels any in-flight load for key and drops its data. Safe to call
// for keys never requested. A load cancelled here resolves its handle with
// ErrLoadCancelled and its late result, if any, is discarded.
func (c *Cache) Evict(key BucketKey) {
	c.mu.Lock()
	if e := c.entries[key]; e != nil {
		c.evictLocked(key, e)
	}
	c.mu.Unlock()
}

func (c *Cache) evictLocked(key BucketKey, e *entry) {
	if e.state == StateExpired {
		return
	}
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	if e.state == StateLoading && e.handle != nil {
		e.handle.resolve(nil, ErrLoadCancelled)
	}
	e.state = StateExpired
	e.days = nil
	e.err = nil
	e.handle = nil
	c.notify.enqueue(notification{key: key, state: StateExpired})
	c.publish(eventbus.TopicBucketEvicted, key, StateExpired, 0, nil)
}

// Flush evicts every bucket. Used when the rotation configuration changes
// under the cache.
func (c *Cache) Flush() {
	c.mu.Lock()
	for k, e := range c.entries {
		if e.state == StateExpired {
			delete(c.entries, k)
			continue
		}
		c.evictLocked(k, e)
	}
	c.mu.Unlock()
}

// sweepLocked evicts buckets outside center ± RetentionWindow. In-flight
// loads just beyond the edge are left to finish to avoid cancellation
// churn during fast back-and-forth scrolling.
func (c *Cache) sweepLocked() {
	if !c.hasCenter {
		return
	}
	for k, e := range c.entries {
		d := calendar.MonthsBetween(c.center, k.Month)
		if d < 0 {
			d = -d
		}
		if d <= c.cfg.RetentionWindow {
			continue
		}
		if e.state == StateExpired {
			delete(c.entries, k)
			continue
		}
		if e.state == StateLoading && d <= c.cfg.RetentionWindow+1 {
			continue
		}
		c.evictLocked(k, e)
	}
}

// Prefetch requests center plus a direction-biased set of neighboring
// months. velocity is the scroll speed in months per second; beyond the
// configured threshold the lookahead widens. Speculative (non-center)
// loads pass through a rate limiter and are skipped when throttled.
func (c *Cache) Prefetch(center BucketKey, direction int, velocity float64) {
	c.request(center, true)

	if velocity < 0 {
		velocity = -velocity
	}
	width := c.cfg.PrefetchNeighbors
	if velocity >= c.cfg.VelocityThreshold {
		width = c.cfg.PrefetchWide
	}

	var offsets []int
	switch {
	case direction > 0:
		for i := 1; i <= width; i++ {
			offsets = append(offsets, i)
		}
		offsets = append(offsets, -1)
	case direction < 0:
		for i := 1; i <= width; i++ {
			offsets = append(offsets, -i)
		}
		offsets = append(offsets, 1)
	default:
		offsets = []int{-1, 1}
	}

	for _, off := range offsets {
		k := BucketKey{Month: center.Month.Add(off), UserID: center.UserID}
		if c.hot(k) {
			continue
		}
		if !c.limiter.Allow() {
			c.log.Debug("prefetch throttled", logx.String("bucket", k.String()))
			continue
		}
		c.request(k, false)
	}
}

func (c *Cache) hot(key BucketKey) bool {
	c.mu.Lock()
	e := c.entries[key]
	ok := e != nil && (e.state == StateLoading || e.state == StateAvailable)
	c.mu.Unlock()
	return ok
}

// Peek reports key's current data and state without triggering a load.
func (c *Cache) Peek(key BucketKey) ([]rota.ComputedDay, State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entries[key]
	if e == nil {
		return nil, StateNotRequested
	}
	return e.days, e.state
}

// States snapshots every tracked bucket's state, for status surfaces.
func (c *Cache) States() map[BucketKey]State {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[BucketKey]State, len(c.entries))
	for k, e := range c.entries {
		out[k] = e.state
	}
	return out
}

// Close cancels all in-flight loads, resolves their handles with ErrClosed,
// and drains pending notifications. The cache rejects requests afterwards.
func (c *Cache) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	for _, e := range c.entries {
		if e.cancel != nil {
			e.cancel()
			e.cancel = nil
		}
		if e.state == StateLoading && e.handle != nil {
			e.handle.resolve(nil, ErrClosed)
		}
	}
	c.entries = nil
	c.mu.Unlock()

	c.notify.close()
}

func (c *Cache) publish(topic string, key BucketKey, st State, days int, err error) {
	if c.bus == nil {
		return
	}
	ev := BucketEvent{Key: key.String(), State: st.String(), Days: days}
	if err != nil {
		ev.Err = err.Error()
	}
	c.bus.Publish(eventbus.Event{Type: topic, Time: c.nowFn(), Data: ev})
}

func markDegraded(base []rota.ComputedDay) []rota.ComputedDay {
	out := make([]rota.ComputedDay, len(base))
	for i, d := range base {
		d.Degraded = true
		out[i] = d
	}
	return out
}
