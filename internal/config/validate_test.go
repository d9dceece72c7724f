package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Console: true},
		State:   StateConfig{Path: "state.json"},
		Jobs: []JobConfig{
			{Key: "beat", Task: TaskHeartbeat, Every: "1s"},
			{Key: "beat", Task: TaskHeartbeat, Cron: "*/5 * * * * *"},
			{Key: "sync", Task: TaskExec, Cron: "@hourly", Command: []string{"rsync", "-a"}, Timeout: "5m"},
		},
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "bad level", mutate: func(c *Config) { c.Logging.Level = "loud" }, want: "logging.level"},
		{name: "bad driver", mutate: func(c *Config) { c.State.Driver = "redis" }, want: "state.driver"},
		{name: "missing state path", mutate: func(c *Config) { c.State.Path = " " }, want: "state.path"},
		{name: "bad busy timeout", mutate: func(c *Config) { c.State.BusyTimeout = "-1s" }, want: "state.busy_timeout"},
		{name: "bad timezone", mutate: func(c *Config) { c.Worker.Timezone = "Mars/Olympus" }, want: "worker.timezone"},
		{name: "missing key", mutate: func(c *Config) { c.Jobs[0].Key = "" }, want: "key: required"},
		{name: "no schedule", mutate: func(c *Config) { c.Jobs[0].Every = "" }, want: "one of every or cron"},
		{name: "both schedules", mutate: func(c *Config) { c.Jobs[0].Cron = "@daily" }, want: "mutually exclusive"},
		{name: "zero interval", mutate: func(c *Config) { c.Jobs[0].Every = "0s" }, want: "every must be > 0"},
		{name: "bad interval", mutate: func(c *Config) { c.Jobs[0].Every = "often" }, want: "invalid duration"},
		{name: "bad cron", mutate: func(c *Config) { c.Jobs[1].Cron = "every day" }, want: "invalid cron"},
		{name: "unknown task", mutate: func(c *Config) { c.Jobs[0].Task = "email" }, want: "unknown task"},
		{name: "exec without command", mutate: func(c *Config) { c.Jobs[2].Command = nil }, want: "needs a command"},
		{name: "heartbeat with command", mutate: func(c *Config) { c.Jobs[0].Command = []string{"ls"} }, want: "only applies to exec"},
		{name: "bad timeout", mutate: func(c *Config) { c.Jobs[2].Timeout = "soon" }, want: "timeout"},
		{
			name: "duplicate key same kind",
			mutate: func(c *Config) {
				c.Jobs = append(c.Jobs, JobConfig{Key: "beat", Task: TaskHeartbeat, Every: "2s"})
			},
			want: "duplicate interval job key",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.want == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.State.Path = ""
	cfg.Jobs[0].Task = "nope"
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"state.path", "unknown task"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("err = %v, missing %q", err, want)
		}
	}
}

func TestConfigMappings(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.State = StateConfig{Driver: " sqlite ", Path: " db/state.db ", BusyTimeout: "2s"}
	cfg.Worker = WorkerConfig{Timezone: "UTC"}

	sc, err := cfg.StoreConfig()
	if err != nil {
		t.Fatal(err)
	}
	if sc.Driver != "sqlite" || sc.Path != "db/state.db" || sc.BusyTimeout != 2*time.Second {
		t.Fatalf("store config = %+v", sc)
	}
	if wc := cfg.WorkerOptions(); wc.Timezone != "UTC" || wc.StatePath != "db/state.db" {
		t.Fatalf("worker config = %+v", wc)
	}
	if got := cfg.StopTimeout(); got != DefaultStopTimeout {
		t.Fatalf("StopTimeout = %v, want default", got)
	}
	cfg.Worker.StopTimeout = "3s"
	if got := cfg.StopTimeout(); got != 3*time.Second {
		t.Fatalf("StopTimeout = %v, want 3s", got)
	}
	if lc := cfg.LoggerConfig(); lc.Level != "info" || !lc.Console {
		t.Fatalf("logger config = %+v", lc)
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	if d, err := ParseDurationField("x", " "); err != nil || d != 0 {
		t.Fatalf("empty = %v, %v", d, err)
	}
	if d, err := ParseDurationField("x", "1m30s"); err != nil || d != 90*time.Second {
		t.Fatalf("1m30s = %v, %v", d, err)
	}
	if _, err := ParseDurationField("jobs.a.every", "-1s"); err == nil || !strings.Contains(err.Error(), "jobs.a.every") {
		t.Fatalf("negative err = %v", err)
	}
	if d, err := ParseDurationOrDefault("x", "0s", time.Minute); err != nil || d != time.Minute {
		t.Fatalf("default = %v, %v", d, err)
	}
}
