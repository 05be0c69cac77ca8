package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
logging:
  level: debug
  console: true
scheduler:
  enabled: true
lifecycle:
  daily_at: "01:30"
  open_expiry: 168h
  dedup_reminders: false
  lease:
    enabled: true
    ttl: 15m
storage:
  driver: sqlite
  path: ./data/orders.db
admin:
  enabled: true
  addr: 127.0.0.1:8089
  token: s3cret
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestParse_YAML(t *testing.T) {
	p := writeFile(t, t.TempDir(), "config.yaml", sampleYAML)
	cfg, err := NewConfigManager(p).Parse()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, "01:30", cfg.Lifecycle.DailyAt)
	require.NotNil(t, cfg.Lifecycle.DedupReminders)
	assert.False(t, *cfg.Lifecycle.DedupReminders)
	assert.True(t, cfg.Lifecycle.Lease.Enabled)
	require.NotNil(t, cfg.Storage)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "s3cret", cfg.Admin.Token)
}

func TestDecode_Strict(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
	}{
		{"unknown json key", "c.json", `{"scheduler":{"enabled":true,"workers":2}}`},
		{"unknown yaml key", "c.yml", "smtp:\n  host: x\n"},
		{"trailing data", "c.json", `{"scheduler":{}} {}`},
		{"bad yaml", "c.yaml", "scheduler: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.file, []byte(tt.body))
			assert.Error(t, err)
		})
	}
}

func TestParseDurationField(t *testing.T) {
	d, err := ParseDurationField("x", " 90s ")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	d, err = ParseDurationField("x", "")
	require.NoError(t, err)
	assert.Zero(t, d)

	_, err = ParseDurationField("lifecycle.open_expiry", "7d")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lifecycle.open_expiry")

	_, err = ParseDurationField("x", "-1s")
	assert.Error(t, err)

	d, err = ParseDurationOrDefault("x", "0s", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, d)
}

func TestSummarizeConfigChange(t *testing.T) {
	oldCfg, err := Decode("a.yaml", []byte(sampleYAML))
	require.NoError(t, err)
	newCfg, err := Decode("a.yaml", []byte(sampleYAML))
	require.NoError(t, err)

	sections, _ := SummarizeConfigChange(oldCfg, newCfg)
	assert.Empty(t, sections)

	newCfg.Lifecycle.DailyAt = "02:00"
	newCfg.Admin.Token = "rotated"
	newCfg.Notifier = &NotifierConfig{RatePerSec: 5}
	sections, attrs := SummarizeConfigChange(oldCfg, newCfg)
	assert.Equal(t, []string{"lifecycle", "notifier"}, sections)
	assert.NotEmpty(t, attrs)

	newCfg.Admin.Token = ""
	sections, _ = SummarizeConfigChange(oldCfg, newCfg)
	assert.Contains(t, sections, "admin")
}

func TestSubscribe_KeepsLatest(t *testing.T) {
	m := NewConfigManager("unused.json")
	ch := m.Subscribe(1)
	a, b := &Config{}, &Config{Scheduler: SchedulerConfig{Enabled: true}}
	m.publish(a)
	m.publish(b)
	assert.Same(t, b, <-ch)

	m.Unsubscribe(ch)
	_, ok := <-ch
	assert.False(t, ok)
}

func TestWatch_ReloadsValidatedChanges(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "config.json", `{"scheduler":{"enabled":false}}`)
	m := NewConfigManager(p)
	_, err := m.Load()
	require.NoError(t, err)
	m.SetValidator(func(ctx context.Context, cfg *Config) error {
		if cfg.Scheduler.Timezone == "Mars/Olympus" {
			return errors.New("unknown timezone")
		}
		return nil
	})
	sub := m.Subscribe(4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Watch(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Give the watcher a moment to register the directory.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, dir, "config.json", `{"scheduler":{"enabled":true,"timezone":"Mars/Olympus"}}`)
	time.Sleep(3 * reloadDebounce)
	assert.False(t, m.Get().Scheduler.Enabled)

	writeFile(t, dir, "config.json", `{"scheduler":{"enabled":true}}`)
	select {
	case cfg := <-sub:
		assert.True(t, cfg.Scheduler.Enabled)
	case <-time.After(5 * time.Second):
		t.Fatal("no config published")
	}
	assert.True(t, m.Get().Scheduler.Enabled)
}
