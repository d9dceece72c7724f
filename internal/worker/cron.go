package worker

import (
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"jobwrk/internal/eventbus"
	logx "jobwrk/pkg/logx"
)

// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseCron parses expr with the same rules AddCronJob uses.
func ParseCron(expr string) (cron.Schedule, error) {
	return cronParser.Parse(strings.TrimSpace(expr))
}

// AddCronJob registers task under key, fired by the cron expression expr.
//
// Same contract as AddJob; an expression that does not parse also returns false.
func (w *Worker) AddCronJob(key string, task Task, expr string, immediate bool) bool {
	expr = strings.TrimSpace(expr)
	if strings.TrimSpace(key) == "" || task == nil {
		w.log.Warn("cron job rejected", logx.String("key", key), logx.String("spec", expr), logx.Bool("task", task != nil))
		return false
	}
	sched, err := ParseCron(expr)
	if err != nil {
		w.log.Warn("cron job rejected: invalid schedule", logx.String("key", key), logx.String("spec", expr), logx.Err(err))
		return false
	}

	w.mu.Lock()
	if !w.started || w.crons.has(key) {
		w.mu.Unlock()
		return false
	}
	j := newJob(key, KindCron, expr, task)
	j.entryID = w.c.Schedule(sched, cron.FuncJob(func() { w.fire(j) }))
	w.crons.put(j)
	if immediate {
		w.startNow(j)
	}
	loc := w.loc
	w.mu.Unlock()

	args := []logx.Field{
		logx.String("key", key),
		logx.String("kind", string(KindCron)),
		logx.String("spec", expr),
		logx.Bool("immediate", immediate),
	}
	if next := previewNextRuns(w.log, sched, loc, 3); next != "" {
		args = append(args, logx.String("next", next))
	}
	w.log.Debug("job added", args...)
	w.publish(eventbus.JobAdded, eventbus.JobEvent{Key: key, Kind: string(KindCron), Schedule: expr})
	return true
}

// StopCronJob cancels the cron job under key. It returns false if there is none.
// A fire already dispatched but not yet started is discarded.
func (w *Worker) StopCronJob(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.removeLocked(w.crons, key)
}

// previewNextRuns returns a short list of upcoming fire times, only when
// debug logging is on.
func previewNextRuns(log logx.Logger, sched cron.Schedule, loc *time.Location, n int) string {
	if n <= 0 || !log.Enabled(logx.LevelDebug) {
		return ""
	}
	if loc == nil {
		loc = time.Local
	}
	t := time.Now().In(loc)
	var b strings.Builder
	for i := 0; i < n; i++ {
		t = sched.Next(t)
		if t.IsZero() {
			break
		}
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(t.Format("2006-01-02 15:04:05"))
	}
	return b.String()
}
