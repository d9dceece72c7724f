package config

import (
	"slices"
	"testing"

	"jobwrk/internal/worker"
)

func keys(js []JobConfig) []string {
	out := make([]string, 0, len(js))
	for _, j := range js {
		out = append(out, string(j.Kind())+":"+j.Key)
	}
	return out
}

func TestDiffJobs(t *testing.T) {
	t.Parallel()
	oldCfg := &Config{Jobs: []JobConfig{
		{Key: "keep", Task: TaskHeartbeat, Every: "1s"},
		{Key: "change", Task: TaskHeartbeat, Every: "1s"},
		{Key: "gone", Task: TaskHeartbeat, Cron: "@hourly"},
		{Key: "off", Task: TaskHeartbeat, Every: "1s", Disabled: true},
	}}
	newCfg := &Config{Jobs: []JobConfig{
		{Key: "keep", Task: " heartbeat ", Every: "1s "},
		{Key: "change", Task: TaskHeartbeat, Every: "2s"},
		{Key: "off", Task: TaskHeartbeat, Every: "1s"},
		{Key: "new", Task: TaskExec, Cron: "@daily", Command: []string{"true"}},
		{Key: "skipped", Task: TaskHeartbeat, Every: "1s", Disabled: true},
	}}

	ch := DiffJobs(oldCfg, newCfg)
	if got, want := keys(ch.Remove), []string{"cron:gone", "interval:change"}; !slices.Equal(got, want) {
		t.Fatalf("remove = %v, want %v", got, want)
	}
	if got, want := keys(ch.Add), []string{"cron:new", "interval:change", "interval:off"}; !slices.Equal(got, want) {
		t.Fatalf("add = %v, want %v", got, want)
	}
}

func TestDiffJobsKindSwitch(t *testing.T) {
	t.Parallel()
	oldCfg := &Config{Jobs: []JobConfig{{Key: "j", Task: TaskHeartbeat, Every: "1m"}}}
	newCfg := &Config{Jobs: []JobConfig{{Key: "j", Task: TaskHeartbeat, Cron: "* * * * *"}}}

	ch := DiffJobs(oldCfg, newCfg)
	if len(ch.Remove) != 1 || ch.Remove[0].Kind() != worker.KindInterval {
		t.Fatalf("remove = %+v", ch.Remove)
	}
	if len(ch.Add) != 1 || ch.Add[0].Kind() != worker.KindCron {
		t.Fatalf("add = %+v", ch.Add)
	}
}

func TestDiffJobsNil(t *testing.T) {
	t.Parallel()
	if ch := DiffJobs(nil, nil); !ch.Empty() {
		t.Fatalf("nil diff = %+v", ch)
	}
	ch := DiffJobs(nil, &Config{Jobs: []JobConfig{{Key: "a", Task: TaskHeartbeat, Every: "1s"}}})
	if len(ch.Add) != 1 || len(ch.Remove) != 0 {
		t.Fatalf("initial diff = %+v", ch)
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	t.Parallel()
	oldCfg := validConfig()
	newCfg := validConfig()
	newCfg.Logging.Level = "debug"
	newCfg.Jobs = newCfg.Jobs[:1]

	changed, attrs := SummarizeConfigChange(oldCfg, newCfg)
	if want := []string{"jobs", "logging"}; !slices.Equal(changed, want) {
		t.Fatalf("changed = %v, want %v", changed, want)
	}
	if len(attrs) == 0 {
		t.Fatal("no attrs")
	}

	if changed, _ := SummarizeConfigChange(validConfig(), validConfig()); len(changed) != 0 {
		t.Fatalf("identical configs reported %v", changed)
	}
}
