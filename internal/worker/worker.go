package worker

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"jobwrk/internal/eventbus"
	"jobwrk/internal/state"
	logx "jobwrk/pkg/logx"
)

type Worker struct {
	mu sync.Mutex

	cfg   Config
	log   logx.Logger
	bus   eventbus.Bus
	store state.Store
	blob  *state.Blob

	// runtime, rebuilt on every Start
	started   bool
	ctx       context.Context
	loc       *time.Location
	c         *cron.Cron
	intervals *registry
	crons     *registry
}

// New builds a worker. When store is nil a file store at cfg.StatePath is used.
func New(cfg Config, store state.Store, log logx.Logger, bus eventbus.Bus) *Worker {
	if log.IsZero() {
		log = logx.Nop()
	}
	if store == nil {
		store = state.NewFile(cfg.StatePath, log)
	}
	return &Worker{
		cfg:   cfg,
		log:   log,
		bus:   bus,
		store: store,
		blob:  state.NewBlob(nil),
	}
}

// State returns the caller-owned blob. The pointer stays the same across
// restarts; Start replaces its contents with what was persisted.
func (w *Worker) State() *state.Blob { return w.blob }

// StateLocation is the path (or DSN) of the backing store.
func (w *Worker) StateLocation() string { return w.store.Location() }

// Running reports whether Start succeeded and Stop has not been called since.
func (w *Worker) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.started
}

// Start loads persisted state and creates empty job registries.
//
// It fails with *state.FilesystemError or *state.ParseError when the state
// cannot be loaded, and with ErrStarted when called twice without Stop.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return ErrStarted
	}

	v, err := w.store.Load(ctx)
	if err != nil {
		return err
	}
	w.blob.Replace(v)

	loc := w.loadLocation()
	w.loc = loc
	// Stop must not cancel in-flight tasks, so they get a detached context.
	w.ctx = context.WithoutCancel(ctx)
	w.intervals = newRegistry(KindInterval)
	w.crons = newRegistry(KindCron)
	w.c = cron.New(
		cron.WithParser(cronParser),
		cron.WithLocation(loc),
		cron.WithLogger(logx.CronLogger(w.log)),
	)
	w.c.Start()
	w.started = true

	w.log.Info("worker started", logx.String("state", w.store.Location()), logx.String("tz", loc.String()), logx.String("state_type", w.blob.Kind()))
	w.publish(eventbus.WorkerStarted, nil)
	return nil
}

// Stop cancels every cron job, then every interval job, and persists the
// state blob. In-flight tasks are not awaited.
func (w *Worker) Stop(ctx context.Context) error {
	start := time.Now()

	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return nil
	}
	crons := w.crons.keys()
	for _, key := range crons {
		w.removeLocked(w.crons, key)
	}
	intervals := w.intervals.keys()
	for _, key := range intervals {
		w.removeLocked(w.intervals, key)
	}
	c := w.c
	w.c = nil
	w.started = false
	w.mu.Unlock()

	if c != nil {
		// Stop returns a context that is done once running jobs finish; we don't wait on it.
		_ = c.Stop()
	}

	if err := w.store.Save(ctx, w.blob); err != nil {
		w.log.Error("state save failed", logx.String("state", w.store.Location()), logx.Err(err))
		return err
	}

	w.log.Info("worker stopped",
		logx.Int("cron_jobs", len(crons)),
		logx.Int("interval_jobs", len(intervals)),
		logx.Duration("took", time.Since(start)),
	)
	w.publish(eventbus.WorkerStopped, nil)
	return nil
}

// removeLocked cancels and unregisters one job. Call with w.mu held.
func (w *Worker) removeLocked(r *registry, key string) bool {
	j, ok := r.remove(key)
	if !ok {
		return false
	}
	// Flag first: a fire already dispatched by the runner checks it on entry.
	j.cancelled.Store(true)
	if w.c != nil && j.entryID != 0 {
		w.c.Remove(j.entryID)
	}
	w.log.Debug("job removed", logx.String("key", key), logx.String("kind", string(j.kind)))
	w.publish(eventbus.JobRemoved, eventbus.JobEvent{Key: j.key, Kind: string(j.kind), Schedule: j.spec})
	return true
}

func (w *Worker) loadLocation() *time.Location {
	tz := strings.TrimSpace(w.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		w.log.Warn("invalid timezone; falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

func (w *Worker) publish(typ string, data any) {
	if w.bus == nil {
		return
	}
	w.bus.Publish(eventbus.Event{Type: typ, Time: time.Now(), Data: data})
}
