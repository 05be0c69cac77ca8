package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"orderpulse/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, body string) *config.Config {
	t.Helper()
	cfg, err := config.Decode("c.yaml", []byte(body))
	require.NoError(t, err)
	return cfg
}

func TestMapLifecycleConfig(t *testing.T) {
	cfg := decode(t, `
lifecycle:
  daily_at: "01:30"
  open_expiry: 48h
  hourly_window_from: 30m
  hourly_window_to: 90m
  dedup_reminders: false
  lease: {enabled: true, ttl: 5m}
notifier:
  rate_per_sec: 20
  burst: 5
`)
	lc, err := mapLifecycleConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "01:30", lc.DailyAt)
	assert.Equal(t, "5 * * * *", lc.HourlySchedule)
	assert.Equal(t, 48*time.Hour, lc.OpenExpiry)
	assert.Equal(t, 14*24*time.Hour, lc.ActiveExpiry)
	assert.Equal(t, 30*time.Minute, lc.HourlyFrom)
	assert.Equal(t, 90*time.Minute, lc.HourlyTo)
	assert.False(t, lc.DedupReminders)
	assert.True(t, lc.Lease.Enabled)
	assert.Equal(t, 5*time.Minute, lc.Lease.TTL)
	assert.Equal(t, 20.0, lc.NotifyRatePerSec)
	assert.Equal(t, 5, lc.NotifyBurst)

	lc, err = mapLifecycleConfig(decode(t, `{}`))
	require.NoError(t, err)
	assert.True(t, lc.DedupReminders)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		body string
		ok   bool
	}{
		{"minimal", `storage: {driver: sqlite, path: ./x.db}`, true},
		{"bad daily_at", `lifecycle: {daily_at: "25:00"}`, false},
		{"bad hourly cron", `lifecycle: {hourly_schedule: "every hour"}`, false},
		{"hourly interval", `{storage: {driver: sqlite, path: ./x.db}, lifecycle: {hourly_schedule: "every:30m"}}`, true},
		{"bad duration", `lifecycle: {overdue_after: 3d}`, false},
		{"inverted window", `lifecycle: {hourly_window_from: 2h, hourly_window_to: 1h}`, false},
		{"bad timezone", `scheduler: {enabled: true, timezone: Nowhere/Land}`, false},
		{"engine off while scheduler on", `{scheduler: {enabled: true}, task_engine: {enabled: false}}`, false},
		{"sqlite without path", `storage: {driver: sqlite}`, false},
		{"unknown driver", `storage: {driver: postgres, path: x}`, false},
		{"public admin without token", `admin: {enabled: true, addr: "0.0.0.0:8089"}`, false},
		{"public admin with token", `admin: {enabled: true, addr: "0.0.0.0:8089", token: t}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(context.Background(), decode(t, tt.body))
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestMapTaskEngineConfig(t *testing.T) {
	ec, err := mapTaskEngineConfig(decode(t, `{scheduler: {enabled: true}}`))
	require.NoError(t, err)
	assert.True(t, ec.Enabled)

	ec, err = mapTaskEngineConfig(decode(t, `task_engine: {enabled: true, workers: 4, default_timeout: 30s}`))
	require.NoError(t, err)
	assert.True(t, ec.Enabled)
	assert.Equal(t, 4, ec.Workers)
	assert.Equal(t, 30*time.Second, ec.DefaultTimeout)

	_, err = mapTaskEngineConfig(decode(t, `task_engine: {workers: -1}`))
	assert.Error(t, err)
}

func TestNew_RequiresStorage(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte("logging: {level: error}\n"), 0o600))
	_, err := New(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage is required")
}

func TestApp_StartStop(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	body := "logging: {level: error}\n" +
		"scheduler: {enabled: true}\n" +
		"storage: {driver: sqlite, path: " + filepath.Join(dir, "orders.db") + "}\n"
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))

	a, err := New(p)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.Start(ctx))

	st := a.Lifecycle().Status()
	assert.Equal(t, 2, st.TaskCount)
	assert.NotEqual(t, "not scheduled", st.NextRunDescription)

	rep, err := a.Lifecycle().RunDailyStatusCheck(ctx)
	require.NoError(t, err)
	assert.Len(t, rep.Checks, 5)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	require.NoError(t, a.Stop(stopCtx, StopSIGTERM))
	assert.NoError(t, a.Err())
}
