package eventbus

import "time"

// Event types published by the worker.
const (
	WorkerStarted = "worker.started"
	WorkerStopped = "worker.stopped"
	JobAdded      = "job.added"
	JobRemoved    = "job.removed"
	JobStarted    = "job.started"
	JobFinished   = "job.finished"
	JobSkipped    = "job.skipped"
)

// JobEvent is the payload of every job.* event.
//
// Task errors are never carried; OK only tells whether the run returned nil.
type JobEvent struct {
	Key      string        `json:"key"`
	Kind     string        `json:"kind"`
	Schedule string        `json:"schedule"`
	Started  time.Time     `json:"started,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	OK       bool          `json:"ok"`
}
