package app

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"rotaplan/internal/calendar"
	"rotaplan/internal/config"
	"rotaplan/internal/provider"
	"rotaplan/internal/rota"
	"rotaplan/internal/schedcache"
	"rotaplan/internal/task/engine"
)

// providerHolder lets a config reload swap the rotation definition under
// the cache without rebuilding the cache itself.
type providerHolder struct {
	mu sync.RWMutex
	p  *provider.Provider
}

func (h *providerHolder) set(p *provider.Provider) {
	h.mu.Lock()
	h.p = p
	h.mu.Unlock()
}

func (h *providerHolder) get() *provider.Provider {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.p
}

func (h *providerHolder) CycleFor(userID string) (*rota.CycleDefinition, error) {
	return h.get().CycleFor(userID)
}
func (h *providerHolder) Anchor() calendar.Date { return h.get().Anchor() }
func (h *providerHolder) Teams() []rota.Team { return h.get().Teams() }
func (h *providerHolder) ShiftTypes() map[string]rota.ShiftType { return h.get().ShiftTypes() }
func (h *providerHolder) TeamOf(userID string) string { return h.get().TeamOf(userID) }

func mapEngineConfig(cfg *config.Config) (engine.Config, error) {
	timeout, err := config.ParseDurationField("engine.default_timeout", cfg.Engine.DefaultTimeout)
	if err != nil {
		return engine.Config{}, err
	}
	return engine.Config{
		Workers:        cfg.Engine.Workers,
		QueueSize:      cfg.Engine.QueueSize,
		DefaultTimeout: timeout,
		HistorySize:    cfg.Engine.HistorySize,
	}, nil
}

func mapCacheConfig(cfg *config.Config) (schedcache.Config, error) {
	timeout, err := config.ParseDurationField("cache.load_timeout", cfg.Cache.LoadTimeout)
	if err != nil {
		return schedcache.Config{}, err
	}
	return schedcache.Config{
		RetentionWindow:   cfg.Cache.RetentionMonths,
		LoadTimeout:       timeout,
		PrefetchNeighbors: cfg.Cache.PrefetchNeighbors,
		PrefetchWide:      cfg.Cache.PrefetchWide,
		VelocityThreshold: cfg.Cache.VelocityThreshold,
		PrefetchRate:      cfg.Cache.PrefetchRate,
		PrefetchBurst:     cfg.Cache.PrefetchBurst,
	}, nil
}

// validate vets a config before it is committed, so a bad hot reload never
// displaces a working one.
func validate(cfg *config.Config) error {
	if cfg.Engine.Workers < 0 {
		return fmt.Errorf("engine.workers must be >= 0")
	}
	if cfg.Engine.QueueSize < 0 {
		return fmt.Errorf("engine.queue_size must be >= 0")
	}
	if cfg.Engine.HistorySize < 0 {
		return fmt.Errorf("engine.history_size must be >= 0")
	}
	if _, err := mapEngineConfig(cfg); err != nil {
		return err
	}

	if cfg.Cache.RetentionMonths < 0 {
		return fmt.Errorf("cache.retention_months must be >= 0")
	}
	if _, err := mapCacheConfig(cfg); err != nil {
		return err
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Exceptions.Driver)) {
	case "", "memory", "file", "sqlite", "sqlite3":
	default:
		return fmt.Errorf("exceptions.driver: unknown driver %q", cfg.Exceptions.Driver)
	}

	if _, err := provider.FromConfig(cfg.Rota); err != nil {
		return err
	}

	if cfg.Refresh.Enabled {
		if tz := strings.TrimSpace(cfg.Refresh.Timezone); tz != "" {
			if _, err := time.LoadLocation(tz); err != nil {
				return fmt.Errorf("refresh.timezone: invalid %q: %w", tz, err)
			}
		}
		if spec := strings.TrimSpace(cfg.Refresh.Spec); spec != "" {
			if _, err := cron.ParseStandard(spec); err != nil {
				return fmt.Errorf("refresh.spec: %w", err)
			}
		}
	}
	return nil
}
