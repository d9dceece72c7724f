package worker

import (
	"context"
	"fmt"
	"time"

	"jobwrk/internal/eventbus"
	logx "jobwrk/pkg/logx"
)

// fire is the guarded wrapper every tick goes through.
func (w *Worker) fire(j *job) {
	if j.cancelled.Load() {
		return
	}
	if !j.state.tryAcquire() {
		j.state.skipped.Add(1)
		j.skipLog.Do(func() {
			w.log.Debug("job still running, tick skipped",
				logx.String("key", j.key),
				logx.String("kind", string(j.kind)),
				logx.Uint64("skipped", j.state.skipped.Load()),
			)
		})
		w.publish(eventbus.JobSkipped, eventbus.JobEvent{Key: j.key, Kind: string(j.kind), Schedule: j.spec})
		return
	}
	w.run(j)
}

// startNow runs j outside its schedule. The guard is taken by the caller's
// goroutine so a tick racing the goroutine start is skipped. Call with w.mu held.
func (w *Worker) startNow(j *job) {
	if !j.state.tryAcquire() {
		return
	}
	go w.run(j)
}

// run executes the task with the guard already held and releases it on exit.
func (w *Worker) run(j *job) {
	defer j.state.release()

	start := time.Now()
	j.state.markStart(start)
	w.publish(eventbus.JobStarted, eventbus.JobEvent{Key: j.key, Kind: string(j.kind), Schedule: j.spec, Started: start})

	err := invoke(w.taskContext(), j.task)

	end := time.Now()
	j.state.markFinish(end, err)
	w.publish(eventbus.JobFinished, eventbus.JobEvent{
		Key:      j.key,
		Kind:     string(j.kind),
		Schedule: j.spec,
		Started:  start,
		Duration: end.Sub(start),
		OK:       err == nil,
	})
}

func (w *Worker) taskContext() context.Context {
	w.mu.Lock()
	ctx := w.ctx
	w.mu.Unlock()
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// invoke runs task, turning a panic into an error. The result is only
// counted, never surfaced.
func invoke(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return task(ctx)
}
