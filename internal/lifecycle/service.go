package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"orderpulse/internal/domain"
	"orderpulse/internal/eventbus"
	"orderpulse/internal/task/engine"
	"orderpulse/pkg/logx"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// ErrAlreadyRunning is the skip reason of a call that found its job in flight.
var ErrAlreadyRunning = errors.New("lifecycle job already running")

// Registrar is the scheduler surface used to install the lifecycle jobs.
type Registrar interface {
	AddSchedule(name, spec string, timeout time.Duration, opt engine.TaskOptions, job func(ctx context.Context) error) error
	AddDaily(name, atHHMM string, timeout time.Duration, opt engine.TaskOptions, job func(ctx context.Context) error) error
	NextRun(name string) time.Time
}

type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func WithBus(bus eventbus.Publisher) Option { return func(s *Service) { s.bus = bus } }

// WithLeaser enables cross-instance leases through l. By default the store is
// used when it implements domain.Leaser.
func WithLeaser(l domain.Leaser) Option { return func(s *Service) { s.leaser = l } }

// WithOwner sets the lease owner id; a random UUID by default.
func WithOwner(id string) Option { return func(s *Service) { s.owner = id } }

// jobState is the single-flight guard and last-run record of one job.
type jobState struct {
	name    string
	running atomic.Bool

	mu   sync.Mutex
	last Report
	err  string
	runs uint64
}

func (j *jobState) finish(rep Report, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.runs++
	j.last = rep
	j.err = ""
	if err != nil {
		j.err = err.Error()
	}
}

type Service struct {
	store  domain.Store
	leaser domain.Leaser
	log    logx.Logger
	bus    eventbus.Publisher
	now    func() time.Time
	owner  string

	cfgMu sync.RWMutex
	cfg   Config
	lim   *rate.Limiter

	actorMu sync.RWMutex
	actor   domain.User

	daily  *jobState
	hourly *jobState

	regMu sync.Mutex
	reg   Registrar
}

func New(store domain.Store, cfg Config, log logx.Logger, opts ...Option) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		store:  store,
		log:    log.With(logx.String("comp", "lifecycle")),
		now:    time.Now,
		daily:  &jobState{name: JobDaily},
		hourly: &jobState{name: JobHourly},
	}
	if l, ok := store.(domain.Leaser); ok {
		s.leaser = l
	}
	for _, o := range opts {
		o(s)
	}
	if s.owner == "" {
		s.owner = uuid.NewString()
	}
	s.Apply(cfg)
	return s
}

// Apply swaps the configuration used by subsequent runs.
func (s *Service) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	lim := rate.NewLimiter(rate.Inf, cfg.NotifyBurst)
	if cfg.NotifyRatePerSec > 0 {
		lim = rate.NewLimiter(rate.Limit(cfg.NotifyRatePerSec), cfg.NotifyBurst)
	}
	s.cfgMu.Lock()
	s.cfg = cfg
	s.lim = lim
	s.cfgMu.Unlock()
}

func (s *Service) config() Config {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg
}

func (s *Service) limiter() *rate.Limiter {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.lim
}

func (s *Service) publish(typ string, at time.Time, data any) {
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: typ, Time: at, Data: data})
	}
}

// RunDailyStatusCheck runs auto-start, auto-expire and the tomorrow, hourly
// and overdue reminders in order. A call while the job is running returns a
// skipped report and no error.
func (s *Service) RunDailyStatusCheck(ctx context.Context) (Report, error) {
	return s.runJob(ctx, s.daily, func(ctx context.Context, now time.Time, cfg Config, rep *Report) error {
		steps := []struct {
			name string
			run  func(context.Context, time.Time, Config, *Report) (CheckResult, error)
		}{
			{CheckAutoStart, s.autoStart},
			{CheckAutoExpire, s.autoExpire},
			{CheckTomorrowReminders, s.reminderStep(tomorrowReminder)},
			{CheckHourlyReminders, s.reminderStep(hourlyReminder)},
			{CheckOverdueReminders, s.reminderStep(overdueReminder)},
		}
		var collected error
		for _, st := range steps {
			res, err := st.run(ctx, now, cfg, rep)
			rep.Checks = append(rep.Checks, res)
			if err != nil {
				s.log.Error("check aborted; skipping remaining checks", logx.String("check", st.name), logx.Err(err))
				return errors.CombineErrors(errors.Wrapf(err, "%s aborted", st.name), collected)
			}
			collected = errors.CombineErrors(collected, res.Err())
		}
		return collected
	})
}

// SendHourlyReminders runs the hourly reminder check alone.
func (s *Service) SendHourlyReminders(ctx context.Context) (Report, error) {
	return s.runJob(ctx, s.hourly, func(ctx context.Context, now time.Time, cfg Config, rep *Report) error {
		res, err := s.remind(ctx, hourlyReminder, now, cfg, rep)
		rep.Checks = append(rep.Checks, res)
		return err
	})
}

func (s *Service) reminderStep(k reminderKind) func(context.Context, time.Time, Config, *Report) (CheckResult, error) {
	return func(ctx context.Context, now time.Time, cfg Config, rep *Report) (CheckResult, error) {
		return s.remind(ctx, k, now, cfg, rep)
	}
}

type jobFunc func(ctx context.Context, now time.Time, cfg Config, rep *Report) error

func (s *Service) runJob(ctx context.Context, j *jobState, fn jobFunc) (Report, error) {
	cfg := s.config()
	// Stored instants have millisecond precision.
	now := s.now().UTC().Truncate(time.Millisecond)
	rep := Report{Job: j.name, StartedAt: now}
	log := s.log.With(logx.String("job", j.name))

	if !j.running.CompareAndSwap(false, true) {
		log.Info("job already running; skipping")
		rep.Skipped, rep.SkipReason, rep.FinishedAt = true, ErrAlreadyRunning.Error(), now
		return rep, nil
	}
	defer j.running.Store(false)

	// Manual and scheduled runs share the job timeout; Validate keeps it
	// below the lease TTL.
	ctx, cancel := context.WithTimeout(ctx, cfg.JobTimeout)
	defer cancel()

	if cfg.Lease.Enabled && s.leaser != nil {
		err := s.leaser.AcquireJobLease(ctx, j.name, s.owner, cfg.Lease.TTL, now)
		if errors.Is(err, domain.ErrLeaseHeld) {
			log.Info("job lease held by another instance; skipping")
			rep.Skipped, rep.SkipReason, rep.FinishedAt = true, "lease held by another instance", now
			j.finish(rep, nil)
			return rep, nil
		}
		if err != nil {
			rep.FinishedAt = s.now().UTC()
			err = errors.Wrap(err, "acquire job lease")
			j.finish(rep, err)
			return rep, err
		}
		defer func() {
			if err := s.leaser.ReleaseJobLease(context.WithoutCancel(ctx), j.name, s.owner); err != nil {
				log.Warn("job lease release failed", logx.Err(err))
			}
		}()
	}

	log.Debug("job started", logx.Time("now", now))
	err := fn(ctx, now, cfg, &rep)
	rep.FinishedAt = s.now().UTC()
	j.finish(rep, err)
	s.publish(eventbus.TopicLifecycleRun, rep.FinishedAt, rep)

	fields := []logx.Field{
		logx.Duration("took", rep.Duration()),
		logx.Int("notifications_sent", rep.NotificationsSent),
		logx.Int("notifications_failed", rep.NotificationsFailed),
	}
	for _, c := range rep.Checks {
		fields = append(fields, logx.Int(c.Name, c.Succeeded))
	}
	if err != nil {
		log.Warn("job finished with errors", append(fields, logx.Err(err))...)
		return rep, err
	}
	log.Info("job finished", fields...)
	return rep, nil
}

// Register installs the daily and hourly triggers on r. A failed run is not
// repeated; the next tick picks up whatever is still pending.
func (s *Service) Register(r Registrar) error {
	cfg := s.config()
	opt := engine.TaskOptions{Overlap: engine.OverlapSkipIfRunning}
	daily := func(ctx context.Context) error {
		_, err := s.RunDailyStatusCheck(ctx)
		return err
	}
	hourly := func(ctx context.Context) error {
		_, err := s.SendHourlyReminders(ctx)
		return err
	}
	if err := r.AddDaily(JobDaily, cfg.DailyAt, cfg.JobTimeout, opt, daily); err != nil {
		return errors.Wrap(err, "register daily job")
	}
	if err := r.AddSchedule(JobHourly, cfg.HourlySchedule, cfg.JobTimeout, opt, hourly); err != nil {
		return errors.Wrap(err, "register hourly job")
	}
	s.regMu.Lock()
	s.reg = r
	s.regMu.Unlock()
	s.log.Info("lifecycle jobs registered", logx.String("daily_at", cfg.DailyAt), logx.String("hourly", cfg.HourlySchedule))
	return nil
}

type JobStatus struct {
	Name           string    `json:"name"`
	Running        bool      `json:"running"`
	Runs           uint64    `json:"runs"`
	NextRun        time.Time `json:"next_run,omitempty"`
	LastStartedAt  time.Time `json:"last_started_at,omitempty"`
	LastFinishedAt time.Time `json:"last_finished_at,omitempty"`
	LastSkipped    bool      `json:"last_skipped,omitempty"`
	LastError      string    `json:"last_error,omitempty"`
	LastReport     *Report   `json:"last_report,omitempty"`
}

type Status struct {
	IsRunning          bool        `json:"is_running"`
	TaskCount          int         `json:"task_count"`
	NextRunDescription string      `json:"next_run_description"`
	SystemActorID      string      `json:"system_actor_id,omitempty"`
	Jobs               []JobStatus `json:"jobs"`
}

// Status reports guard state, last runs and next trigger times.
func (s *Service) Status() Status {
	s.regMu.Lock()
	reg := s.reg
	s.regMu.Unlock()

	st := Status{SystemActorID: s.actorID()}
	var next []string
	for _, j := range []*jobState{s.daily, s.hourly} {
		js := JobStatus{Name: j.name, Running: j.running.Load()}
		j.mu.Lock()
		js.Runs = j.runs
		js.LastError = j.err
		if j.runs > 0 {
			last := j.last
			js.LastStartedAt, js.LastFinishedAt, js.LastSkipped = last.StartedAt, last.FinishedAt, last.Skipped
			js.LastReport = &last
		}
		j.mu.Unlock()
		if reg != nil {
			js.NextRun = reg.NextRun(j.name)
			st.TaskCount++
			if !js.NextRun.IsZero() {
				next = append(next, fmt.Sprintf("%s at %s", j.name, js.NextRun.UTC().Format(dateLayout)))
			}
		}
		st.IsRunning = st.IsRunning || js.Running
		st.Jobs = append(st.Jobs, js)
	}
	st.NextRunDescription = "not scheduled"
	if len(next) > 0 {
		st.NextRunDescription = strings.Join(next, "; ")
	}
	return st
}
