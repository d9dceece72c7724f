package config

import (
	"encoding/json"
	"sort"
	"strings"

	"jobwrk/internal/worker"
	logx "jobwrk/pkg/logx"
)

// JobChange is what a reload has to do to the worker's registries.
// Changed jobs appear in both lists: removed first, then re-added.
type JobChange struct {
	Remove []JobConfig
	Add    []JobConfig
}

func (c JobChange) Empty() bool { return len(c.Remove) == 0 && len(c.Add) == 0 }

type jobID struct {
	kind worker.Kind
	key  string
}

// DiffJobs compares the enabled jobs of two configs. A job is identified by
// kind and key; any change to its definition replaces it.
func DiffJobs(oldCfg, newCfg *Config) JobChange {
	oldJobs := enabledJobs(oldCfg)
	newJobs := enabledJobs(newCfg)

	var ch JobChange
	for id, o := range oldJobs {
		n, ok := newJobs[id]
		if !ok || hashJob(o) != hashJob(n) {
			ch.Remove = append(ch.Remove, o)
		}
	}
	for id, n := range newJobs {
		o, ok := oldJobs[id]
		if !ok || hashJob(o) != hashJob(n) {
			ch.Add = append(ch.Add, n)
		}
	}
	sortJobs(ch.Remove)
	sortJobs(ch.Add)
	return ch
}

func enabledJobs(cfg *Config) map[jobID]JobConfig {
	out := map[jobID]JobConfig{}
	if cfg == nil {
		return out
	}
	for _, j := range cfg.Jobs {
		if j.Disabled {
			continue
		}
		out[jobID{kind: j.Kind(), key: j.Key}] = j
	}
	return out
}

func hashJob(j JobConfig) uint64 {
	j.Key = strings.TrimSpace(j.Key)
	j.Task = strings.ToLower(strings.TrimSpace(j.Task))
	j.Every = strings.TrimSpace(j.Every)
	j.Cron = strings.TrimSpace(j.Cron)
	j.Timeout = strings.TrimSpace(j.Timeout)
	b, err := json.Marshal(j)
	if err != nil {
		return 0
	}
	return hashBytes(b)
}

func sortJobs(js []JobConfig) {
	sort.Slice(js, func(a, b int) bool {
		if js[a].Kind() != js[b].Kind() {
			return js[a].Kind() == worker.KindCron
		}
		return js[a].Key < js[b].Key
	})
}

// SummarizeConfigChange returns the changed sections and compact attrs for
// the reload log line.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 4)
	attrs := make([]logx.Field, 0, 12)

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	// The store is opened once per process; a change here needs a restart.
	if oldCfg.State != newCfg.State {
		changed = append(changed, "state")
		attrs = append(attrs,
			logx.String("state.driver", newCfg.State.Driver),
			logx.String("state.path", newCfg.State.Path),
			logx.Bool("state.restart_required", true),
		)
	}

	if oldCfg.Worker != newCfg.Worker {
		changed = append(changed, "worker")
		attrs = append(attrs,
			logx.String("worker.timezone", newCfg.Worker.Timezone),
			logx.String("worker.stop_timeout", newCfg.Worker.StopTimeout),
		)
	}

	if jc := DiffJobs(oldCfg, newCfg); !jc.Empty() {
		changed = append(changed, "jobs")
		attrs = append(attrs,
			logx.Int("jobs.removed", len(jc.Remove)),
			logx.Int("jobs.added", len(jc.Add)),
			logx.Int("jobs.total", len(newCfg.Jobs)),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}
