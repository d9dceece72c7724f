package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"jobwrk/internal/config"
	"jobwrk/internal/eventbus"
	"jobwrk/internal/jobs"
	"jobwrk/internal/runtime/supervisor"
	"jobwrk/internal/state"
	"jobwrk/internal/worker"
	logx "jobwrk/pkg/logx"
	"jobwrk/pkg/systemd"
)

// App wires config, logging, the state store and the worker into one process.
type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store state.Store

	worker *worker.Worker
	notify *systemd.Notifier

	stopped atomic.Bool

	// applied is the config the registered jobs and logging were built from.
	applied *config.Config
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath, logx.Nop())
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	sc, err := cfg.StoreConfig()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	// From here on the log service may hold an open file.
	logSvc, log := logx.New(cfg.LoggerConfig())
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	store, err := state.Open(sc, log.With(logx.String("comp", "state")))
	if err != nil {
		_ = logSvc.Close()
		return nil, fmt.Errorf("state: %w", err)
	}

	bus := eventbus.New()
	w := worker.New(cfg.WorkerOptions(), store, log.With(logx.String("comp", "worker")), bus)

	return &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log.With(logx.String("comp", "app")),
		logs:    logSvc,
		bus:     bus,
		store:   store,
		worker:  w,
		notify:  systemd.NewNotifier(log.With(logx.String("comp", "systemd"))),
	}, nil
}

func (a *App) Worker() *worker.Worker { return a.worker }

// Done is closed when the app context is cancelled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Start loads state, registers the configured jobs and starts the
// background loops. The worker runs on a context detached from ctx so
// cancelling ctx never interrupts tasks; call Stop to shut down.
func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))), supervisor.WithCancelOnError(true))

	if err := a.worker.Start(ctx); err != nil {
		a.sup.Cancel()
		return fmt.Errorf("worker: %w", err)
	}

	cfg := a.cfgm.Get()
	a.applyJobs(config.DiffJobs(nil, cfg))
	a.applied = cfg

	if a.bus != nil {
		events, unsub := a.bus.Subscribe(128)
		a.sup.Go("eventbus.log", func(c context.Context) error {
			defer unsub()
			for {
				select {
				case <-c.Done():
					return nil
				case e, ok := <-events:
					if !ok {
						return nil
					}
					// trace only: interval jobs can fire many times a second
					fields := []logx.Field{logx.String("type", e.Type)}
					if je, ok := e.Data.(eventbus.JobEvent); ok {
						fields = append(fields, logx.String("key", je.Key), logx.String("kind", je.Kind))
					}
					a.log.Trace("event", fields...)
				}
			}
		})
	}

	sub := a.cfgm.Subscribe(8)
	a.sup.Go("config.reload", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return nil
			case newCfg, ok := <-sub:
				if !ok {
					return nil
				}
				a.apply(drainLatest(sub, newCfg))
			}
		}
	})

	a.sup.GoRestart("config.watch", a.cfgm.Watch, supervisor.WithRestartBackoff(time.Second, 30*time.Second))

	if interval := a.notify.WatchdogInterval(); interval > 0 {
		a.sup.Go("systemd.watchdog", func(c context.Context) error {
			a.notify.RunWatchdog(c, interval)
			return nil
		})
	}

	a.notify.Ready()
	a.notify.Status(fmt.Sprintf("%d jobs", len(a.worker.Jobs())))
	a.log.Info("app started",
		logx.String("config", a.cfgPath),
		logx.String("state", a.worker.StateLocation()),
		logx.Int("jobs", len(a.worker.Jobs())),
	)
	return nil
}

// Reload re-reads the config file now (SIGHUP) instead of waiting for the watcher.
func (a *App) Reload(ctx context.Context) {
	a.notify.Reloading()
	if !a.cfgm.Reload(ctx) {
		a.notify.Ready()
	}
}

func drainLatest(sub <-chan *config.Config, cfg *config.Config) *config.Config {
	for {
		select {
		case newer := <-sub:
			if newer != nil {
				cfg = newer
			}
		default:
			return cfg
		}
	}
}

// apply moves the running process to newCfg: logging first, then jobs.
func (a *App) apply(newCfg *config.Config) {
	a.notify.Reloading()
	defer a.notify.Ready()

	sections, attrs := config.SummarizeConfigChange(a.applied, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}

	for _, s := range sections {
		switch s {
		case "logging":
			a.logs.Apply(newCfg.LoggerConfig())
		case "state":
			a.log.Warn("state config changed; restart required for changes to take effect")
		case "worker":
			if strings.TrimSpace(a.applied.Worker.Timezone) != strings.TrimSpace(newCfg.Worker.Timezone) {
				a.log.Warn("worker timezone changed; restart required for changes to take effect")
			}
		}
	}

	a.applyJobs(config.DiffJobs(a.applied, newCfg))
	a.applied = newCfg

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

// applyJobs stops removed jobs before adding new ones so a changed job can
// take over its key.
func (a *App) applyJobs(change config.JobChange) {
	for _, j := range change.Remove {
		var ok bool
		if j.Kind() == worker.KindCron {
			ok = a.worker.StopCronJob(j.Key)
		} else {
			ok = a.worker.StopJob(j.Key)
		}
		if !ok {
			a.log.Debug("job was not registered", logx.String("key", j.Key), logx.String("kind", string(j.Kind())))
		}
	}
	for _, j := range change.Add {
		if err := a.addJob(j); err != nil {
			a.log.Warn("job not registered", logx.String("key", j.Key), logx.Err(err))
		}
	}
}

func (a *App) addJob(j config.JobConfig) error {
	task, err := jobs.Build(j, a.worker.State(), a.log)
	if err != nil {
		return err
	}
	var ok bool
	if j.Kind() == worker.KindCron {
		ok = a.worker.AddCronJob(j.Key, task, j.Cron, j.Immediate)
	} else {
		every, err := j.Interval()
		if err != nil {
			return err
		}
		ok = a.worker.AddJob(j.Key, task, every, j.Immediate)
	}
	if !ok {
		return errors.New("rejected by worker")
	}
	return nil
}

// Stop shuts down in order: cancel background loops, stop the worker
// (which persists state), wait for the loops, close the store.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil || !a.stopped.CompareAndSwap(false, true) {
		return nil
	}
	a.notify.Stopping()
	a.log.Info("stopping", logx.String("reason", string(reason)))
	start := time.Now()

	a.sup.Cancel()

	var errs []error
	if err := a.worker.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("worker: %w", err))
	}

	waitCtx, cancel := context.WithTimeout(ctx, a.stopTimeout())
	err := a.sup.Wait(waitCtx)
	cancel()
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		a.log.Warn("background loops did not stop in time")
		errs = append(errs, err)
	case err != nil:
		errs = append(errs, err)
	}

	if err := a.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("state: %w", err))
	}

	a.log.Info("stopped", logx.Duration("took", time.Since(start)))
	_ = a.logs.Close()
	return errors.Join(errs...)
}

func (a *App) stopTimeout() time.Duration {
	if cfg := a.cfgm.Get(); cfg != nil {
		return cfg.StopTimeout()
	}
	return config.DefaultStopTimeout
}
