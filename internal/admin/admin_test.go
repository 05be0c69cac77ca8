package admin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"orderpulse/internal/lifecycle"
	"orderpulse/internal/task/scheduler"
	"orderpulse/pkg/logx"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLifecycle struct {
	daily  atomic.Int32
	hourly atomic.Int32
	skip   bool
	err    error
}

func (f *fakeLifecycle) RunDailyStatusCheck(ctx context.Context) (lifecycle.Report, error) {
	f.daily.Add(1)
	return lifecycle.Report{Job: lifecycle.JobDaily, Skipped: f.skip}, f.err
}

func (f *fakeLifecycle) SendHourlyReminders(ctx context.Context) (lifecycle.Report, error) {
	f.hourly.Add(1)
	return lifecycle.Report{Job: lifecycle.JobHourly, NotificationsSent: 3}, nil
}

func (f *fakeLifecycle) Status() lifecycle.Status {
	return lifecycle.Status{TaskCount: 2, NextRunDescription: "lifecycle.daily at 2024-01-02 00:15 UTC"}
}

func newTestServer(t *testing.T, cfg Config, deps Deps) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(NewHandler(cfg, deps, logx.Nop()))
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, cfg.Token)
	c.HTTP = srv.Client()
	return srv, c
}

func TestStatusAndRun(t *testing.T) {
	lc := &fakeLifecycle{}
	_, c := newTestServer(t, Config{}, Deps{
		Lifecycle: lc,
		Scheduler: func() scheduler.Snapshot { return scheduler.Snapshot{Enabled: true, Timezone: "UTC"} },
		Pending:   func(context.Context) (int, error) { return 4, nil },
	})
	ctx := context.Background()

	st, err := c.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Lifecycle.TaskCount)
	require.NotNil(t, st.Scheduler)
	assert.Equal(t, "UTC", st.Scheduler.Timezone)
	require.NotNil(t, st.PendingDeliveries)
	assert.Equal(t, 4, *st.PendingDeliveries)

	out, err := c.Run(ctx, "hourly")
	require.NoError(t, err)
	assert.Equal(t, 3, out.Report.NotificationsSent)
	assert.EqualValues(t, 1, lc.hourly.Load())
}

func TestRun_SkippedAndFailed(t *testing.T) {
	srv, _ := newTestServer(t, Config{}, Deps{Lifecycle: &fakeLifecycle{skip: true}})
	resp, err := srv.Client().Post(srv.URL+"/run/daily", "", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	_, c := newTestServer(t, Config{}, Deps{Lifecycle: &fakeLifecycle{err: errors.New("auto_expire aborted: db gone")}})
	out, err := c.Run(context.Background(), "daily")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db gone")
	assert.Equal(t, lifecycle.JobDaily, out.Report.Job)
}

func TestRun_RequiresPost(t *testing.T) {
	srv, _ := newTestServer(t, Config{}, Deps{Lifecycle: &fakeLifecycle{}})
	resp, err := srv.Client().Get(srv.URL + "/run/daily")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestAuth(t *testing.T) {
	lc := &fakeLifecycle{}
	srv, c := newTestServer(t, Config{Token: "s3cret"}, Deps{Lifecycle: lc})

	resp, err := srv.Client().Get(srv.URL + "/status")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	bad := NewClient(srv.URL, "wrong")
	bad.HTTP = srv.Client()
	_, err = bad.Run(context.Background(), "daily")
	require.Error(t, err)
	assert.Zero(t, lc.daily.Load())

	_, err = c.Status(context.Background())
	require.NoError(t, err)
}

func TestHealthz(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	srv, _ := newTestServer(t, Config{}, Deps{
		Lifecycle: &fakeLifecycle{},
		Ping: func(context.Context) error {
			if healthy.Load() {
				return nil
			}
			return errors.New("database is locked")
		},
	})

	resp, err := srv.Client().Get(srv.URL + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	healthy.Store(false)
	resp, err = srv.Client().Get(srv.URL + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestPprofMountedOnlyWhenEnabled(t *testing.T) {
	srv, _ := newTestServer(t, Config{}, Deps{Lifecycle: &fakeLifecycle{}})
	resp, err := srv.Client().Get(srv.URL + "/debug/pprof/")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	srv, _ = newTestServer(t, Config{Pprof: true, PprofPrefix: "ops/pprof"}, Deps{Lifecycle: &fakeLifecycle{}})
	resp, err = srv.Client().Get(srv.URL + "/ops/pprof/")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, Config{}.Validate())
	assert.NoError(t, Config{Enabled: true}.Validate())
	assert.Error(t, Config{Enabled: true, Addr: "0.0.0.0:8089"}.Validate())
	assert.NoError(t, Config{Enabled: true, Addr: "0.0.0.0:8089", Token: "x"}.Validate())
	assert.Error(t, Config{Enabled: true, Addr: "nope"}.Validate())
}

func TestService_StartStop(t *testing.T) {
	svc := New(Config{Enabled: true, Addr: "127.0.0.1:0"}, Deps{Lifecycle: &fakeLifecycle{}}, logx.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	svc.Start(ctx)

	require.Eventually(t, func() bool { return svc.Addr() != "" }, 3*time.Second, 20*time.Millisecond)
	resp, err := http.Get("http://" + svc.Addr() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	svc.Reconfigure(ctx, Config{Enabled: false})
	assert.Empty(t, svc.Addr())
	assert.Nil(t, svc.Supervisor())
}

func TestNewClient_Normalizes(t *testing.T) {
	assert.Equal(t, "http://"+DefaultAddr, NewClient("", "").BaseURL)
	assert.Equal(t, "https://ops.example:9000", NewClient("https://ops.example:9000/", "").BaseURL)
	assert.True(t, strings.HasPrefix(NewClient("127.0.0.1:1", "").BaseURL, "http://"))
}
