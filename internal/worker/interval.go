package worker

import (
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"jobwrk/internal/eventbus"
	logx "jobwrk/pkg/logx"
)

// everySchedule fires every d after the previous activation.
//
// cron.Every rounds to whole seconds; this one keeps sub-second periods.
type everySchedule time.Duration

func (s everySchedule) Next(t time.Time) time.Time { return t.Add(time.Duration(s)) }

// AddJob registers task under key, fired every interval.
//
// It returns false without changing anything when key is already an interval
// job, when the worker is not started, when every <= 0 or task is nil.
// With immediate set the task also starts right away, guarded like a tick.
func (w *Worker) AddJob(key string, task Task, every time.Duration, immediate bool) bool {
	if strings.TrimSpace(key) == "" || task == nil || every <= 0 {
		w.log.Warn("interval job rejected", logx.String("key", key), logx.Duration("every", every), logx.Bool("task", task != nil))
		return false
	}

	w.mu.Lock()
	if !w.started || w.intervals.has(key) {
		w.mu.Unlock()
		return false
	}
	j := newJob(key, KindInterval, "@every "+every.String(), task)
	j.every = every
	j.entryID = w.c.Schedule(everySchedule(every), cron.FuncJob(func() { w.fire(j) }))
	w.intervals.put(j)
	if immediate {
		w.startNow(j)
	}
	w.mu.Unlock()

	w.log.Debug("job added",
		logx.String("key", key),
		logx.String("kind", string(KindInterval)),
		logx.Duration("every", every),
		logx.Bool("immediate", immediate),
	)
	w.publish(eventbus.JobAdded, eventbus.JobEvent{Key: key, Kind: string(KindInterval), Schedule: j.spec})
	return true
}

// StopJob cancels the interval job under key. It returns false if there is none.
// A running invocation finishes; no further tick fires.
func (w *Worker) StopJob(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.removeLocked(w.intervals, key)
}
