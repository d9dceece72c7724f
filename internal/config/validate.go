package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"jobwrk/internal/worker"
)

// Task names accepted in jobs[].task.
const (
	TaskHeartbeat = "heartbeat"
	TaskExec      = "exec"
)

// Validate checks cfg before it is committed. All problems are joined into
// one error so a bad reload reports everything at once.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error

	switch strings.ToLower(strings.TrimSpace(cfg.Logging.Level)) {
	case "", "trace", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level: unknown level %q", cfg.Logging.Level))
	}

	switch strings.ToLower(strings.TrimSpace(cfg.State.Driver)) {
	case "", "file", "sqlite", "sqlite3":
	default:
		errs = append(errs, fmt.Errorf("state.driver: unknown driver %q", cfg.State.Driver))
	}
	if strings.TrimSpace(cfg.State.Path) == "" {
		errs = append(errs, errors.New("state.path: required"))
	}
	if _, err := ParseDurationField("state.busy_timeout", cfg.State.BusyTimeout); err != nil {
		errs = append(errs, err)
	}

	if tz := strings.TrimSpace(cfg.Worker.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			errs = append(errs, fmt.Errorf("worker.timezone: %w", err))
		}
	}
	if _, err := ParseDurationField("worker.stop_timeout", cfg.Worker.StopTimeout); err != nil {
		errs = append(errs, err)
	}

	seen := map[worker.Kind]map[string]struct{}{
		worker.KindInterval: {},
		worker.KindCron:     {},
	}
	for i, j := range cfg.Jobs {
		if err := validateJob(j); err != nil {
			errs = append(errs, fmt.Errorf("jobs[%d]: %w", i, err))
			continue
		}
		keys := seen[j.Kind()]
		if _, dup := keys[j.Key]; dup {
			errs = append(errs, fmt.Errorf("jobs[%d]: duplicate %s job key %q", i, j.Kind(), j.Key))
			continue
		}
		keys[j.Key] = struct{}{}
	}

	return errors.Join(errs...)
}

func validateJob(j JobConfig) error {
	if strings.TrimSpace(j.Key) == "" {
		return errors.New("key: required")
	}
	every, cron := strings.TrimSpace(j.Every), strings.TrimSpace(j.Cron)
	switch {
	case every == "" && cron == "":
		return fmt.Errorf("%s: one of every or cron is required", j.Key)
	case every != "" && cron != "":
		return fmt.Errorf("%s: every and cron are mutually exclusive", j.Key)
	case every != "":
		d, err := j.Interval()
		if err != nil {
			return err
		}
		if d <= 0 {
			return fmt.Errorf("%s: every must be > 0", j.Key)
		}
	default:
		if _, err := worker.ParseCron(cron); err != nil {
			return fmt.Errorf("%s: invalid cron %q: %w", j.Key, cron, err)
		}
	}

	switch strings.ToLower(strings.TrimSpace(j.Task)) {
	case TaskHeartbeat:
		if len(j.Command) > 0 {
			return fmt.Errorf("%s: command only applies to exec tasks", j.Key)
		}
	case TaskExec:
		if len(j.Command) == 0 || strings.TrimSpace(j.Command[0]) == "" {
			return fmt.Errorf("%s: exec task needs a command", j.Key)
		}
	default:
		return fmt.Errorf("%s: unknown task %q", j.Key, j.Task)
	}
	if _, err := j.TaskTimeout(); err != nil {
		return err
	}
	return nil
}
