package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"
)

var ErrStarted = errors.New("worker already started")

// Task is one unit of recurring work. Its error is discarded by the worker.
type Task func(ctx context.Context) error

// Kind tells which registry a job lives in.
type Kind string

const (
	KindInterval Kind = "interval"
	KindCron     Kind = "cron"
)

// Config controls a Worker.
type Config struct {
	// StatePath is used to build a file store when New gets a nil store.
	StatePath string
	// Timezone is the IANA zone cron expressions are evaluated in. Empty means Local.
	Timezone string
}

// skipLogInterval bounds how often a skipped tick is logged per job.
const skipLogInterval = 5 * time.Second

// RunState is the per-job guard plus counters.
type RunState struct {
	running atomic.Bool

	runs     atomic.Uint64
	skipped  atomic.Uint64
	failures atomic.Uint64

	mu         sync.Mutex
	lastStart  time.Time
	lastFinish time.Time
}

func (s *RunState) tryAcquire() bool { return s.running.CompareAndSwap(false, true) }

func (s *RunState) release() { s.running.Store(false) }

// Running reports whether an invocation is in flight.
func (s *RunState) Running() bool { return s.running.Load() }

func (s *RunState) markStart(t time.Time) {
	s.runs.Add(1)
	s.mu.Lock()
	s.lastStart = t
	s.mu.Unlock()
}

func (s *RunState) markFinish(t time.Time, err error) {
	if err != nil {
		s.failures.Add(1)
	}
	s.mu.Lock()
	s.lastFinish = t
	s.mu.Unlock()
}

type job struct {
	key  string
	kind Kind
	task Task

	every time.Duration // interval jobs
	spec  string        // cron expression, or "@every <d>" for interval jobs

	entryID   cron.EntryID
	cancelled atomic.Bool
	state     RunState
	skipLog   rate.Sometimes
}

func newJob(key string, kind Kind, spec string, task Task) *job {
	return &job{
		key:     key,
		kind:    kind,
		spec:    spec,
		task:    task,
		skipLog: rate.Sometimes{Interval: skipLogInterval},
	}
}

// JobInfo is a point-in-time view of one registered job.
type JobInfo struct {
	Key      string        `json:"key"`
	Kind     Kind          `json:"kind"`
	Every    time.Duration `json:"every,omitempty"`
	Spec     string        `json:"spec"`
	Running  bool          `json:"running"`
	Runs     uint64        `json:"runs"`
	Skipped  uint64        `json:"skipped"`
	Failures uint64        `json:"failures"`

	LastStart  time.Time `json:"last_start"`
	LastFinish time.Time `json:"last_finish"`
	Next       time.Time `json:"next"`
	Prev       time.Time `json:"prev"`
}

func (j *job) info() JobInfo {
	j.state.mu.Lock()
	ls, lf := j.state.lastStart, j.state.lastFinish
	j.state.mu.Unlock()
	return JobInfo{
		Key:        j.key,
		Kind:       j.kind,
		Every:      j.every,
		Spec:       j.spec,
		Running:    j.state.Running(),
		Runs:       j.state.runs.Load(),
		Skipped:    j.state.skipped.Load(),
		Failures:   j.state.failures.Load(),
		LastStart:  ls,
		LastFinish: lf,
	}
}
