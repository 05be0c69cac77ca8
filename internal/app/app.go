// Package app wires configuration, storage, the task engine, the trigger
// scheduler, the lifecycle service and the admin server into one process.
package app

import (
	"context"
	"strings"
	"time"

	"orderpulse/internal/admin"
	"orderpulse/internal/config"
	"orderpulse/internal/eventbus"
	"orderpulse/internal/lifecycle"
	rtsup "orderpulse/internal/runtime/supervisor"
	"orderpulse/internal/storage"
	"orderpulse/internal/task/engine"
	"orderpulse/internal/task/scheduler"
	"orderpulse/pkg/logx"

	"github.com/cockroachdb/errors"
)

type StopReason string

const (
	StopUnknown    StopReason = "unknown"
	StopSIGINT     StopReason = "sigint"
	StopSIGTERM    StopReason = "sigterm"
	StopFatalError StopReason = "fatal_error"
	StopOneShot    StopReason = "one_shot"
)

type App struct {
	cfgm *config.ConfigManager
	sup  *rtsup.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store *storage.SQLStore

	engine    *engine.Service
	sched     *scheduler.Service
	lifecycle *lifecycle.Service
	admin     *admin.Service
}

// New loads cfgPath and builds every component without starting any
// goroutine. The store is opened and migrated.
func New(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := Validate(context.Background(), cfg); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	logSvc, root := logx.New(mapLoggingConfig(cfg))
	log := root.With(logx.String("comp", "app"))
	bus := eventbus.New()

	sc, enabled, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	if !enabled {
		_ = logSvc.Close()
		return nil, errors.New("storage is required: set storage.driver=sqlite")
	}
	store, err := storage.Open(sc, root.With(logx.String("comp", "storage")))
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}

	engCfg, _ := mapTaskEngineConfig(cfg)
	engineSvc := engine.New(engCfg, root.With(logx.String("comp", "taskengine")), bus)
	schedSvc := scheduler.New(mapSchedulerConfig(cfg), engineSvc, root.With(logx.String("comp", "scheduler")))

	lcCfg, _ := mapLifecycleConfig(cfg)
	lc := lifecycle.New(store, lcCfg, root, lifecycle.WithBus(bus))

	adminCfg, _ := mapAdminConfig(cfg)
	adminSvc := admin.New(adminCfg, admin.Deps{
		Lifecycle: lc,
		Scheduler: schedSvc.Snapshot,
		Ping:      store.Ping,
		Pending:   store.CountPendingDeliveries,
	}, root.With(logx.String("comp", "admin")))

	return &App{
		cfgm:      cfgm,
		log:       log,
		logs:      logSvc,
		bus:       bus,
		store:     store,
		engine:    engineSvc,
		sched:     schedSvc,
		lifecycle: lc,
		admin:     adminSvc,
	}, nil
}

func (a *App) Lifecycle() *lifecycle.Service { return a.lifecycle }
func (a *App) Store() *storage.SQLStore      { return a.store }
func (a *App) Logger() logx.Logger           { return a.log }
func (a *App) Config() *config.Config        { return a.cfgm.Get() }

// Done is closed when the app supervisor context ends (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error seen by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Start resolves the system actor, installs the lifecycle triggers and
// starts every background loop.
func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	runCtx := a.sup.Context()

	if err := a.lifecycle.ResolveActor(runCtx); err != nil {
		return err
	}
	if a.engine.Enabled() {
		a.engine.Start(runCtx)
	}
	if err := a.lifecycle.Register(a.sched); err != nil {
		return err
	}
	if a.sched.Enabled() {
		a.sched.Start(runCtx)
	} else {
		a.log.Warn("scheduler disabled; lifecycle jobs run only on manual trigger")
	}
	if a.admin.Enabled() {
		a.admin.Start(runCtx)
	}

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(Validate)
	a.startEventLog()
	a.startConfigReload()
	a.sup.Go("config.watch", a.cfgm.Watch)
	a.startSystemd()

	a.log.Info("app started", logx.String("status", a.lifecycle.Status().NextRunDescription))
	return nil
}

// startEventLog mirrors bus events into the debug log.
func (a *App) startEventLog() {
	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				fields := []logx.Field{logx.String("type", e.Type), logx.Time("time", e.Time)}
				switch d := e.Data.(type) {
				case lifecycle.OrderEvent:
					fields = append(fields, logx.String("order", d.OrderNumber), logx.String("to", string(d.To)))
				case lifecycle.NotificationEvent:
					fields = append(fields, logx.String("order_id", d.OrderID), logx.String("user_id", d.UserID))
				case lifecycle.Report:
					fields = append(fields, logx.String("job", d.Job), logx.Bool("skipped", d.Skipped))
				}
				a.log.Debug("event", fields...)
			}
		}
	})
}

func (a *App) startConfigReload() {
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		last := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// coalesce bursts
				for drained := false; !drained; {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						drained = true
					}
				}
				a.applyConfig(c, last, newCfg)
				last = newCfg
			}
		}
	})
}

func (a *App) applyConfig(ctx context.Context, oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	changed := func(name string) bool {
		for _, s := range sections {
			if s == name {
				return true
			}
		}
		return false
	}

	if changed("logging") {
		a.logs.Apply(mapLoggingConfig(newCfg))
	}
	if changed("storage") {
		a.log.Warn("storage config changed; restart required for changes to take effect")
	}

	if changed("task_engine") || changed("scheduler") {
		if ec, err := mapTaskEngineConfig(newCfg); err != nil {
			a.log.Warn("invalid task_engine config; keeping previous", logx.Err(err))
		} else {
			a.engine.Apply(ctx, ec)
		}
		a.sched.Apply(mapSchedulerConfig(newCfg))
		if newCfg.Scheduler.Enabled {
			a.sched.Start(ctx)
		} else {
			stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			a.sched.Stop(stopCtx)
			cancel()
		}
	}

	if changed("lifecycle") || changed("notifier") {
		lc, err := mapLifecycleConfig(newCfg)
		if err != nil {
			a.log.Warn("invalid lifecycle config; keeping previous", logx.Err(err))
		} else {
			a.lifecycle.Apply(lc)
			if err := a.lifecycle.Register(a.sched); err != nil {
				a.log.Warn("lifecycle re-register failed", logx.Err(err))
			}
			if strings.TrimSpace(oldCfg.Lifecycle.SystemActorID) != lc.SystemActorID {
				if err := a.lifecycle.ResolveActor(ctx); err != nil {
					a.log.Warn("system actor refresh failed", logx.Err(err))
				}
			}
		}
	}

	if changed("admin") {
		if ac, err := mapAdminConfig(newCfg); err != nil {
			a.log.Warn("invalid admin config; keeping previous", logx.Err(err))
		} else {
			a.admin.Reconfigure(ctx, ac)
		}
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

// Stop shuts components down in reverse start order. Each step is bounded so
// one stuck component cannot stall the rest.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return a.Close()
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	notifySystemd(a.log, sdStopping)
	a.sup.Cancel()

	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- errors.Newf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)),
			)
		}
	}

	step("admin", 2*time.Second, func(c context.Context) error { a.admin.Stop(c); return nil })
	step("scheduler", 2*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("taskengine", 5*time.Second, func(c context.Context) error { a.engine.Stop(c); return nil })
	step("supervisor", 2*time.Second, a.sup.Wait)
	step("storage", time.Second, func(context.Context) error { return a.store.Close() })

	a.log.Info("stopped")
	return a.logs.Close()
}

// Close releases the store and log sinks of an app that was never started.
func (a *App) Close() error {
	err := a.store.Close()
	return errors.CombineErrors(err, a.logs.Close())
}
