package config

// Config is the on-disk configuration. JSON and YAML share one strict schema;
// unknown keys are rejected.
type Config struct {
	Logging LoggingConfig `json:"logging"`

	// Scheduler controls the trigger layer (cron/daily/interval).
	Scheduler SchedulerConfig `json:"scheduler"`

	// TaskEngine controls execution of triggered jobs. If omitted, the engine
	// follows scheduler.enabled with default sizing.
	TaskEngine *TaskEngineConfig `json:"task_engine,omitempty"`

	Lifecycle LifecycleConfig `json:"lifecycle"`
	Notifier  *NotifierConfig `json:"notifier,omitempty"`
	Storage   *StorageConfig  `json:"storage,omitempty"`
	Admin     AdminConfig     `json:"admin,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type SchedulerConfig struct {
	Enabled bool `json:"enabled"`
	// Timezone of triggers. Defaults to UTC; lifecycle windows are UTC
	// regardless.
	Timezone string `json:"timezone,omitempty"`
}

// TaskEngineConfig controls the task execution engine.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
//
// Defaults (when fields are omitted/zero):
//   - enabled: scheduler.enabled
//   - workers: 2
//   - queue_size: 64
//   - default_timeout: "0s" (disabled)
//   - max_queue_delay: "0s" (disabled)
//   - history_size: 200
type TaskEngineConfig struct {
	Enabled        *bool  `json:"enabled,omitempty"`
	Workers        int    `json:"workers,omitempty"`
	QueueSize      int    `json:"queue_size,omitempty"`
	DefaultTimeout string `json:"default_timeout,omitempty"`
	MaxQueueDelay  string `json:"max_queue_delay,omitempty"`
	HistorySize    int    `json:"history_size,omitempty"`
}

// LifecycleConfig tunes the order lifecycle jobs.
//
// Example:
//
//	"lifecycle": {
//	  "hourly_schedule": "5 * * * *",
//	  "daily_at": "00:15",
//	  "open_expiry": "168h",
//	  "active_expiry": "336h",
//	  "overdue_after": "72h"
//	}
type LifecycleConfig struct {
	HourlySchedule string `json:"hourly_schedule,omitempty"`
	DailyAt        string `json:"daily_at,omitempty"`

	OpenExpiry   string `json:"open_expiry,omitempty"`
	ActiveExpiry string `json:"active_expiry,omitempty"`
	OverdueAfter string `json:"overdue_after,omitempty"`

	HourlyWindowFrom string `json:"hourly_window_from,omitempty"`
	HourlyWindowTo   string `json:"hourly_window_to,omitempty"`

	SystemActorID string `json:"system_actor_id,omitempty"`

	// DedupReminders defaults to true when omitted.
	DedupReminders *bool `json:"dedup_reminders,omitempty"`

	Lease      LeaseConfig `json:"lease,omitempty"`
	JobTimeout string      `json:"job_timeout,omitempty"`
}

type LeaseConfig struct {
	Enabled bool   `json:"enabled"`
	TTL     string `json:"ttl,omitempty"`
}

// NotifierConfig throttles notification writes. Zero rate means unlimited.
type NotifierConfig struct {
	RatePerSec float64 `json:"rate_per_sec"`
	Burst      int     `json:"burst,omitempty"`
}

// StorageConfig selects the order store.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/orderpulse.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// AdminConfig controls the optional admin HTTP server.
//
// Security note:
//   - Prefer binding to localhost (e.g. "127.0.0.1:8089").
//   - If you bind to a non-loopback address, set a token or explicitly allow_insecure.
type AdminConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`  // default: "127.0.0.1:8089"
	Token         string `json:"token,omitempty"` // optional bearer token (do not log)
	AllowInsecure bool   `json:"allow_insecure,omitempty"`

	// Pprof mounts net/http/pprof under PprofPrefix.
	Pprof       bool   `json:"pprof,omitempty"`
	PprofPrefix string `json:"pprof_prefix,omitempty"` // default: "/debug/pprof/"

	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`

	MutexProfileFraction int `json:"mutex_profile_fraction,omitempty"`
	BlockProfileRate     int `json:"block_profile_rate,omitempty"`
}
