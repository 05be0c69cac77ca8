package app

import (
	"context"
	"strings"
	"time"

	"orderpulse/internal/admin"
	"orderpulse/internal/config"
	"orderpulse/internal/lifecycle"
	"orderpulse/internal/storage"
	"orderpulse/internal/task/engine"
	"orderpulse/internal/task/scheduler"
	"orderpulse/pkg/logx"

	"github.com/cockroachdb/errors"
	"github.com/robfig/cron/v3"
)

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapSchedulerConfig(cfg *config.Config) scheduler.Config {
	return scheduler.Config{Enabled: cfg.Scheduler.Enabled, Timezone: strings.TrimSpace(cfg.Scheduler.Timezone)}
}

func mapTaskEngineConfig(cfg *config.Config) (engine.Config, error) {
	out := engine.Config{Enabled: cfg.Scheduler.Enabled}
	te := cfg.TaskEngine
	if te == nil {
		return out, nil
	}
	if te.Enabled != nil {
		// triggers without an engine would only fill the log with drops
		if cfg.Scheduler.Enabled && !*te.Enabled {
			return engine.Config{}, errors.New("task_engine.enabled cannot be false while scheduler.enabled is true")
		}
		out.Enabled = *te.Enabled
	}
	for key, v := range map[string]int{
		"task_engine.workers":      te.Workers,
		"task_engine.queue_size":   te.QueueSize,
		"task_engine.history_size": te.HistorySize,
	} {
		if v < 0 {
			return engine.Config{}, errors.Newf("%s must be >= 0", key)
		}
	}
	out.Workers, out.QueueSize, out.HistorySize = te.Workers, te.QueueSize, te.HistorySize

	var err error
	if out.DefaultTimeout, err = config.ParseDurationField("task_engine.default_timeout", te.DefaultTimeout); err != nil {
		return engine.Config{}, err
	}
	if out.MaxQueueDelay, err = config.ParseDurationField("task_engine.max_queue_delay", te.MaxQueueDelay); err != nil {
		return engine.Config{}, err
	}
	return out, nil
}

func mapLifecycleConfig(cfg *config.Config) (lifecycle.Config, error) {
	lc := cfg.Lifecycle
	out := lifecycle.DefaultConfig()
	if s := strings.TrimSpace(lc.HourlySchedule); s != "" {
		out.HourlySchedule = s
	}
	if s := strings.TrimSpace(lc.DailyAt); s != "" {
		out.DailyAt = s
	}
	out.SystemActorID = strings.TrimSpace(lc.SystemActorID)
	if lc.DedupReminders != nil {
		out.DedupReminders = *lc.DedupReminders
	}
	out.Lease.Enabled = lc.Lease.Enabled

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"lifecycle.open_expiry", lc.OpenExpiry, &out.OpenExpiry},
		{"lifecycle.active_expiry", lc.ActiveExpiry, &out.ActiveExpiry},
		{"lifecycle.overdue_after", lc.OverdueAfter, &out.OverdueAfter},
		{"lifecycle.hourly_window_from", lc.HourlyWindowFrom, &out.HourlyFrom},
		{"lifecycle.hourly_window_to", lc.HourlyWindowTo, &out.HourlyTo},
		{"lifecycle.lease.ttl", lc.Lease.TTL, &out.Lease.TTL},
		{"lifecycle.job_timeout", lc.JobTimeout, &out.JobTimeout},
	}
	for _, d := range durations {
		v, err := config.ParseDurationOrDefault(d.key, d.raw, *d.dst)
		if err != nil {
			return lifecycle.Config{}, err
		}
		*d.dst = v
	}

	if n := cfg.Notifier; n != nil {
		if n.Burst < 0 {
			return lifecycle.Config{}, errors.New("notifier.burst must be >= 0")
		}
		out.NotifyRatePerSec = n.RatePerSec
		if n.Burst > 0 {
			out.NotifyBurst = n.Burst
		}
	}
	if _, err := scheduler.ParseSchedule("daily:" + out.DailyAt); err != nil {
		return lifecycle.Config{}, errors.Wrap(err, "lifecycle.daily_at")
	}
	ps, err := scheduler.ParseSchedule(out.HourlySchedule)
	if err != nil {
		return lifecycle.Config{}, errors.Wrap(err, "lifecycle.hourly_schedule")
	}
	if ps.Kind == scheduler.SpecCron {
		if _, err := cron.ParseStandard(ps.Cron); err != nil {
			return lifecycle.Config{}, errors.Wrap(err, "lifecycle.hourly_schedule")
		}
	}
	return out, errors.Wrap(out.Validate(), "lifecycle")
}

// mapStorageConfig returns enabled=false when no store is configured.
func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	sc := cfg.Storage
	if sc == nil {
		return storage.Config{}, false, nil
	}
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	switch driver {
	case "", "none":
		return storage.Config{}, false, nil
	case "sqlite", "sqlite3":
		path := strings.TrimSpace(sc.Path)
		if path == "" {
			return storage.Config{}, false, errors.New("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, 5*time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, errors.Newf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapAdminConfig(cfg *config.Config) (admin.Config, error) {
	ac := cfg.Admin
	out := admin.Config{
		Enabled:              ac.Enabled,
		Addr:                 strings.TrimSpace(ac.Addr),
		Token:                strings.TrimSpace(ac.Token),
		AllowInsecure:        ac.AllowInsecure,
		Pprof:                ac.Pprof,
		PprofPrefix:          strings.TrimSpace(ac.PprofPrefix),
		MutexProfileFraction: ac.MutexProfileFraction,
		BlockProfileRate:     ac.BlockProfileRate,
	}
	if out.Addr == "" {
		out.Addr = admin.DefaultAddr
	}
	if ac.MutexProfileFraction < 0 || ac.BlockProfileRate < 0 {
		return out, errors.New("admin profile rates must be >= 0")
	}
	var err error
	if out.ReadTimeout, err = config.ParseDurationOrDefault("admin.read_timeout", ac.ReadTimeout, 5*time.Second); err != nil {
		return out, err
	}
	// manual runs and /profile can take a while; no write timeout by default
	if out.WriteTimeout, err = config.ParseDurationField("admin.write_timeout", ac.WriteTimeout); err != nil {
		return out, err
	}
	if out.IdleTimeout, err = config.ParseDurationOrDefault("admin.idle_timeout", ac.IdleTimeout, 120*time.Second); err != nil {
		return out, err
	}
	return out, out.Validate()
}

// Validate checks everything a hot reload would apply.
func Validate(_ context.Context, cfg *config.Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return errors.Wrapf(err, "scheduler.timezone: invalid %q", tz)
		}
	}
	if _, err := mapTaskEngineConfig(cfg); err != nil {
		return err
	}
	if _, err := mapLifecycleConfig(cfg); err != nil {
		return err
	}
	if _, _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	_, err := mapAdminConfig(cfg)
	return err
}
