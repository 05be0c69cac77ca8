package lifecycle

import (
	"time"

	"github.com/cockroachdb/errors"
)

const (
	JobDaily  = "lifecycle.daily"
	JobHourly = "lifecycle.hourly"
)

type LeaseConfig struct {
	Enabled bool
	TTL     time.Duration
}

type Config struct {
	// HourlySchedule is a scheduler spec (cron, "every:1h", "55m"); DailyAt
	// is HH:MM. Both UTC.
	HourlySchedule string
	DailyAt        string

	OpenExpiry   time.Duration // OPEN orders expire this long after scheduledDate
	ActiveExpiry time.Duration // ACTIVE orders expire this long after scheduledDate
	OverdueAfter time.Duration // IN_PROGRESS reminder threshold after startTime

	// Hourly reminders cover startTime in [now+HourlyFrom, now+HourlyTo).
	HourlyFrom time.Duration
	HourlyTo   time.Duration

	// SystemActorID authors automatic notes. Empty falls back to the first
	// admin user.
	SystemActorID string

	DedupReminders bool
	Lease          LeaseConfig
	JobTimeout     time.Duration

	// NotifyRatePerSec caps notification writes; 0 means unlimited.
	NotifyRatePerSec float64
	NotifyBurst      int
}

func DefaultConfig() Config {
	return Config{
		HourlySchedule: "5 * * * *",
		DailyAt:        "00:15",
		OpenExpiry:     7 * 24 * time.Hour,
		ActiveExpiry:   14 * 24 * time.Hour,
		OverdueAfter:   3 * 24 * time.Hour,
		HourlyFrom:     time.Hour,
		HourlyTo:       2 * time.Hour,
		DedupReminders: true,
		Lease:          LeaseConfig{TTL: 30 * time.Minute},
		JobTimeout:     10 * time.Minute,
		NotifyBurst:    10,
	}
}

// withDefaults fills zero durations from DefaultConfig. Booleans are taken
// as given.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.HourlySchedule == "" {
		c.HourlySchedule = d.HourlySchedule
	}
	if c.DailyAt == "" {
		c.DailyAt = d.DailyAt
	}
	if c.OpenExpiry <= 0 {
		c.OpenExpiry = d.OpenExpiry
	}
	if c.ActiveExpiry <= 0 {
		c.ActiveExpiry = d.ActiveExpiry
	}
	if c.OverdueAfter <= 0 {
		c.OverdueAfter = d.OverdueAfter
	}
	if c.HourlyFrom <= 0 {
		c.HourlyFrom = d.HourlyFrom
	}
	if c.HourlyTo <= 0 {
		c.HourlyTo = d.HourlyTo
	}
	if c.Lease.TTL <= 0 {
		c.Lease.TTL = d.Lease.TTL
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = d.JobTimeout
	}
	if c.NotifyBurst <= 0 {
		c.NotifyBurst = d.NotifyBurst
	}
	return c
}

func (c Config) Validate() error {
	c = c.withDefaults()
	if c.HourlyTo <= c.HourlyFrom {
		return errors.Newf("hourly window end %s must be after start %s", c.HourlyTo, c.HourlyFrom)
	}
	if c.Lease.Enabled && c.JobTimeout >= c.Lease.TTL {
		return errors.Newf("job timeout %s must be shorter than lease ttl %s", c.JobTimeout, c.Lease.TTL)
	}
	if c.NotifyRatePerSec < 0 {
		return errors.Newf("notify rate must be >= 0, got %v", c.NotifyRatePerSec)
	}
	return nil
}
