package config

import (
	logx "rotaplan/pkg/logx"
)

type Config struct {
	Logging LoggingConfig `json:"logging"`

	// Engine controls the shared bucket-load worker pool.
	Engine EngineConfig `json:"engine,omitempty"`

	// Cache controls retention, prefetch, and per-load timeouts.
	Cache CacheConfig `json:"cache,omitempty"`

	// Exceptions selects the exception store backend.
	Exceptions StorageConfig `json:"exceptions,omitempty"`

	Rota RotaConfig `json:"rota"`

	// Refresh reloads the current month's buckets on a cron spec.
	Refresh RefreshConfig `json:"refresh,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file,omitempty"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

func (l LoggingConfig) Logx() logx.Config {
	return logx.Config{
		Level:   l.Level,
		Console: l.Console,
		File:    logx.FileConfig{Enabled: l.File.Enabled, Path: l.File.Path},
	}
}

// EngineConfig controls the task execution engine.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
// Defaults when omitted: workers 2, queue_size 64, history_size 100.
type EngineConfig struct {
	Workers   int `json:"workers,omitempty"`
	QueueSize int `json:"queue_size,omitempty"`

	// DefaultTimeout bounds each load task. "0s" disables the default.
	DefaultTimeout string `json:"default_timeout,omitempty"`

	HistorySize int `json:"history_size,omitempty"`
}

// CacheConfig controls the schedule bucket cache.
type CacheConfig struct {
	// RetentionMonths keeps buckets within viewed month ± N.
	RetentionMonths int `json:"retention_months,omitempty"`

	// LoadTimeout is a Go duration string bounding one bucket load.
	LoadTimeout string `json:"load_timeout,omitempty"`

	PrefetchNeighbors int     `json:"prefetch_neighbors,omitempty"`
	PrefetchWide      int     `json:"prefetch_wide,omitempty"`
	VelocityThreshold float64 `json:"velocity_threshold,omitempty"`

	// PrefetchRate/PrefetchBurst throttle speculative loads.
	PrefetchRate  float64 `json:"prefetch_rate,omitempty"`
	PrefetchBurst int     `json:"prefetch_burst,omitempty"`
}

// StorageConfig selects the exception store backend.
//
// Example:
//
//	"exceptions": { "driver": "sqlite", "path": "./rotaplan.db" }
type StorageConfig struct {
	Driver string `json:"driver,omitempty"`
	Path   string `json:"path,omitempty"`
}

// RotaConfig is the rotation definition: shift types, teams, cycles, and
// the anchor date every cycle position is computed from.
type RotaConfig struct {
	// Anchor is the date at cycle position 0 ("2006-01-02").
	Anchor string `json:"anchor"`

	// Cycle names the active cycle. "builtin" (or empty) selects the
	// built-in rotation and implies its shift types and teams.
	Cycle string `json:"cycle,omitempty"`

	ShiftTypes []ShiftTypeConfig `json:"shift_types,omitempty"`
	Teams      []TeamConfig      `json:"teams,omitempty"`
	Cycles     []CycleConfig     `json:"cycles,omitempty"`

	// Users maps a user id to the team whose schedule they follow.
	Users map[string]string `json:"users,omitempty"`
}

type ShiftTypeConfig struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`

	// Start/End are "HH:MM" wall-clock times; End before Start wraps
	// past midnight.
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
	Rest  bool   `json:"rest,omitempty"`
}

type TeamConfig struct {
	ID string `json:"id"`

	// PhaseOffsetDays shifts where this team reads the cycle.
	PhaseOffsetDays int `json:"phase_offset_days,omitempty"`
}

type CycleConfig struct {
	Name string `json:"name"`

	// Days is the repeating slot table: Days[i] lists the shift
	// assignments for cycle offset i. An empty day is a full rest day.
	Days [][]SlotConfig `json:"days"`
}

type SlotConfig struct {
	Shift string   `json:"shift"`
	Teams []string `json:"teams"`
}

// RefreshConfig drives the periodic reload of today's bucket.
type RefreshConfig struct {
	Enabled bool `json:"enabled"`

	// Spec is a cron expression; default "5 0 * * *" (just past midnight).
	Spec string `json:"spec,omitempty"`

	Timezone string `json:"timezone,omitempty"`
}
