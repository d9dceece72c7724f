package config

import (
	"strings"
	"time"

	"jobwrk/internal/state"
	"jobwrk/internal/worker"
	logx "jobwrk/pkg/logx"
)

// Config is the host process configuration. JSON and YAML files share these tags.
type Config struct {
	Logging LoggingConfig `json:"logging"`
	State   StateConfig   `json:"state"`
	Worker  WorkerConfig  `json:"worker"`
	Jobs    []JobConfig   `json:"jobs"`
}

type LoggingConfig struct {
	Level   string        `json:"level"`
	Console bool          `json:"console"`
	File    LogFileConfig `json:"file"`
}

type LogFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// StateConfig selects where the state blob lives.
//
// Driver is "file" (default) or "sqlite". BusyTimeout is a Go duration string
// and only applies to sqlite.
type StateConfig struct {
	Driver      string `json:"driver,omitempty"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// WorkerConfig tunes the worker and the process around it.
//
// Defaults (when fields are omitted/zero):
//   - timezone: Local
//   - stop_timeout: "10s"
type WorkerConfig struct {
	Timezone    string `json:"timezone,omitempty"`
	StopTimeout string `json:"stop_timeout,omitempty"`
}

// JobConfig declares one job. Exactly one of Every and Cron is set.
//
// Task selects the built-in task ("heartbeat" or "exec"); Command and Timeout
// only apply to exec.
type JobConfig struct {
	Key       string   `json:"key"`
	Task      string   `json:"task"`
	Every     string   `json:"every,omitempty"`
	Cron      string   `json:"cron,omitempty"`
	Immediate bool     `json:"immediate,omitempty"`
	Disabled  bool     `json:"disabled,omitempty"`
	Command   []string `json:"command,omitempty"`
	Timeout   string   `json:"timeout,omitempty"`
}

const DefaultStopTimeout = 10 * time.Second

// Kind reports which worker registry the job belongs to.
func (j JobConfig) Kind() worker.Kind {
	if strings.TrimSpace(j.Cron) != "" {
		return worker.KindCron
	}
	return worker.KindInterval
}

// Interval parses Every. Cron jobs return 0.
func (j JobConfig) Interval() (time.Duration, error) {
	return ParseDurationField("jobs."+j.Key+".every", j.Every)
}

// TaskTimeout parses Timeout; 0 means no timeout.
func (j JobConfig) TaskTimeout() (time.Duration, error) {
	return ParseDurationField("jobs."+j.Key+".timeout", j.Timeout)
}

// LoggerConfig maps the logging block onto logx.
func (c *Config) LoggerConfig() logx.Config {
	if c == nil {
		return logx.Config{Level: "info", Console: true}
	}
	return logx.Config{
		Level:   c.Logging.Level,
		Console: c.Logging.Console,
		File: logx.FileConfig{
			Enabled: c.Logging.File.Enabled,
			Path:    strings.TrimSpace(c.Logging.File.Path),
		},
	}
}

// StoreConfig maps the state block onto state.Open.
func (c *Config) StoreConfig() (state.Config, error) {
	busy, err := ParseDurationField("state.busy_timeout", c.State.BusyTimeout)
	if err != nil {
		return state.Config{}, err
	}
	return state.Config{
		Driver:      strings.TrimSpace(c.State.Driver),
		Path:        strings.TrimSpace(c.State.Path),
		BusyTimeout: busy,
	}, nil
}

// WorkerOptions maps the worker block onto worker.New.
func (c *Config) WorkerOptions() worker.Config {
	return worker.Config{
		StatePath: strings.TrimSpace(c.State.Path),
		Timezone:  strings.TrimSpace(c.Worker.Timezone),
	}
}

// StopTimeout is how long shutdown waits for supervised goroutines.
func (c *Config) StopTimeout() time.Duration {
	d, err := ParseDurationOrDefault("worker.stop_timeout", c.Worker.StopTimeout, DefaultStopTimeout)
	if err != nil {
		return DefaultStopTimeout
	}
	return d
}
