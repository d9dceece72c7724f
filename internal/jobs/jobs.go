// Package jobs holds the built-in tasks a config file can schedule.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"jobwrk/internal/config"
	"jobwrk/internal/state"
	"jobwrk/internal/worker"
	logx "jobwrk/pkg/logx"
)

// Build maps a configured job onto its task.
func Build(def config.JobConfig, blob *state.Blob, log logx.Logger) (worker.Task, error) {
	log = log.With(logx.String("job", def.Key))
	switch strings.ToLower(strings.TrimSpace(def.Task)) {
	case config.TaskHeartbeat:
		if blob == nil {
			return nil, errors.New("heartbeat: state blob is required")
		}
		return Heartbeat(def.Key, blob, time.Now), nil
	case config.TaskExec:
		if len(def.Command) == 0 {
			return nil, fmt.Errorf("exec %s: empty command", def.Key)
		}
		timeout, err := def.TaskTimeout()
		if err != nil {
			return nil, err
		}
		return Exec(def.Command, timeout, log), nil
	default:
		return nil, fmt.Errorf("unknown task %q", def.Task)
	}
}

var (
	// ErrStateNotObject is returned by tasks that keep keys in the blob when
	// the loaded state is an array or scalar.
	ErrStateNotObject = errors.New("state is not a JSON object")
	ErrEmptyCommand   = errors.New("exec: empty command")
)

// Heartbeat bumps "<key>.count" and stamps "<key>.last" (RFC3339, UTC) in blob.
func Heartbeat(key string, blob *state.Blob, now func() time.Time) worker.Task {
	countKey, lastKey := key+".count", key+".last"
	return func(context.Context) error {
		ok := blob.Update(func(m map[string]any) {
			m[countKey] = toInt(m[countKey]) + 1
			m[lastKey] = now().UTC().Format(time.RFC3339)
		})
		if !ok {
			return fmt.Errorf("heartbeat %s: %w (got %s)", key, ErrStateNotObject, blob.Kind())
		}
		return nil
	}
}

// toInt reads a counter back whether it came from disk (json.Number) or
// was set in this process.
func toInt(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i
		}
		if f, err := n.Float64(); err == nil {
			return int64(f)
		}
	case string:
		if i, err := strconv.ParseInt(n, 10, 64); err == nil {
			return i
		}
	}
	return 0
}

// Exec runs argv with output discarded. A non-zero exit or a hit timeout is
// returned as the task error; timeout 0 means none. An empty argv yields a
// task that always fails.
func Exec(argv []string, timeout time.Duration, log logx.Logger) worker.Task {
	if len(argv) == 0 {
		return func(context.Context) error { return ErrEmptyCommand }
	}
	argv = append([]string(nil), argv...)
	return func(ctx context.Context) error {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		start := time.Now()
		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
		err := cmd.Run()

		code := -1
		if cmd.ProcessState != nil {
			code = cmd.ProcessState.ExitCode()
		}
		log.Trace("exec finished",
			logx.String("cmd", argv[0]),
			logx.Int("exit_code", code),
			logx.Duration("took", time.Since(start)),
		)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("exec %s: %w", argv[0], ctx.Err())
			}
			return fmt.Errorf("exec %s: %w", argv[0], err)
		}
		return nil
	}
}
