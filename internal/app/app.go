// Package app assembles the runtime: config manager, logging, exception
// store, task engine, schedule cache, and the reload/refresh loops that
// tie them together. Collaborators are injected at construction; nothing
// is looked up ambiently.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"rotaplan/internal/calendar"
	"rotaplan/internal/config"
	"rotaplan/internal/eventbus"
	"rotaplan/internal/exception"
	"rotaplan/internal/provider"
	"rotaplan/internal/runtime/supervisor"
	"rotaplan/internal/schedcache"
	"rotaplan/internal/task/engine"
	logx "rotaplan/pkg/logx"
)

type App struct {
	cfgPath string
	cfgm    *config.Manager
	sup     *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	store  exception.Store
	prov   *providerHolder
	engine *engine.Service
	cache  *schedcache.Cache
	cron   *cron.Cron
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(cfg.Logging.Logx())
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	store, err := exception.Open(exception.Config{
		Driver: cfg.Exceptions.Driver,
		Path:   cfg.Exceptions.Path,
	}, log.With(logx.String("comp", "store")))
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}

	prov, err := provider.FromConfig(cfg.Rota)
	if err != nil {
		_ = store.Close()
		_ = logSvc.Close()
		return nil, err
	}
	holder := &providerHolder{}
	holder.set(prov)

	engCfg, err := mapEngineConfig(cfg)
	if err != nil {
		_ = store.Close()
		_ = logSvc.Close()
		return nil, err
	}
	engineSvc := engine.New(engCfg, log.With(logx.String("comp", "engine")), bus)

	cacheCfg, err := mapCacheConfig(cfg)
	if err != nil {
		_ = store.Close()
		_ = logSvc.Close()
		return nil, err
	}
	cache := schedcache.New(cacheCfg, holder, store, engineSvc, bus, log)

	return &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		store:   store,
		prov:    holder,
		engine:  engineSvc,
		cache:   cache,
	}, nil
}

func (a *App) Cache() *schedcache.Cache { return a.cache }
func (a *App) Store() exception.Store { return a.store }
func (a *App) Config() *config.Config { return a.cfgm.Get() }
func (a *App) Logger() logx.Logger { return a.log }

// Done is closed when the supervisor context ends (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return validate(cfg)
	})

	a.engine.Start(a.sup.Context())

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go("config.reload", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return nil
			case newCfg, ok := <-sub:
				if !ok {
					return nil
				}
				// Coalesce bursts: keep only the newest config.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.applyReload(lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	// Debug mirror of bus traffic.
	events, unsub := a.bus.Subscribe(128)
	a.sup.Go("eventbus.log", func(c context.Context) error {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return nil
			case e, ok := <-events:
				if !ok {
					return nil
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	if err := a.startRefresh(a.cfgm.Get()); err != nil {
		return err
	}

	a.log.Info("rotaplan started")
	return nil
}

// applyReload applies a validated config: logging first, then the rotation
// definition. A rota change rebuilds the provider and flushes every cached
// bucket so stale layouts never survive a reload.
func (a *App) applyReload(prev, cfg *config.Config) {
	a.logs.Apply(cfg.Logging.Logx())

	prov, err := provider.FromConfig(cfg.Rota)
	if err != nil {
		// The validator vets rota before publish; a failure here means the
		// validator and provider disagree. Keep the old rotation.
		a.log.Error("reload produced invalid rotation; keeping previous", logx.Err(err))
		return
	}
	a.prov.set(prov)
	a.cache.Flush()

	a.log.Info("rotation config applied; cache flushed")
	a.bus.Publish(eventbus.Event{Type: eventbus.TopicConfigReloaded, Time: time.Now()})

	if prev != nil {
		if cfg.Exceptions != prev.Exceptions {
			a.log.Warn("exception store config changed; restart required")
		}
		if cfg.Engine != prev.Engine {
			a.log.Warn("engine config changed; restart required")
		}
	}
}

func (a *App) startRefresh(cfg *config.Config) error {
	if cfg == nil || !cfg.Refresh.Enabled {
		return nil
	}
	loc := time.Local
	if tz := strings.TrimSpace(cfg.Refresh.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return fmt.Errorf("refresh.timezone: %w", err)
		}
		loc = l
	}
	spec := strings.TrimSpace(cfg.Refresh.Spec)
	if spec == "" {
		spec = "5 0 * * *"
	}

	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(spec, a.refreshCurrent); err != nil {
		return fmt.Errorf("refresh.spec: %w", err)
	}
	a.cron = c
	c.Start()
	a.log.Info("refresh scheduled", logx.String("spec", spec))
	return nil
}

// refreshCurrent reloads the current month's buckets: the whole-crew view
// plus each configured user. Runs on the day rollover so "today" is always
// computed against fresh exception data.
func (a *App) refreshCurrent() {
	month := calendar.Today(time.Now).MonthOf()

	keys := []schedcache.BucketKey{{Month: month}}
	if cfg := a.cfgm.Get(); cfg != nil {
		for user := range cfg.Rota.Users {
			keys = append(keys, schedcache.BucketKey{Month: month, UserID: user})
		}
	}
	for _, k := range keys {
		a.cache.Evict(k)
		a.cache.Request(k)
	}
	a.log.Debug("current month refreshed", logx.String("month", month.String()), logx.Int("buckets", len(keys)))
}

func (a *App) Stop(ctx context.Context) error {
	if a.cron != nil {
		stopCtx := a.cron.Stop()
		select {
		case <-stopCtx.Done():
		case <-ctx.Done():
		}
	}
	if a.sup != nil {
		a.sup.Cancel()
	}
	a.cache.Close()
	a.engine.Stop(ctx)
	if err := a.store.Close(); err != nil {
		a.log.Warn("store close failed", logx.Err(err))
	}
	if a.sup != nil {
		_ = a.sup.Wait(ctx)
	}
	a.log.Info("rotaplan stopped")
	return a.logs.Close()
}
