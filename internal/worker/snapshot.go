package worker

import (
	"sort"

	"github.com/robfig/cron/v3"
)

// Jobs returns every registered job, cron jobs first, each kind sorted by key.
func (w *Worker) Jobs() []JobInfo {
	w.mu.Lock()
	defer w.mu.Unlock()

	entries := w.entriesLocked()
	out := make([]JobInfo, 0, w.crons.len()+w.intervals.len())
	for _, r := range []*registry{w.crons, w.intervals} {
		for _, key := range r.keys() {
			j, _ := r.get(key)
			out = append(out, withEntry(j.info(), entries, j.entryID))
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Kind != out[b].Kind {
			return out[a].Kind == KindCron
		}
		return out[a].Key < out[b].Key
	})
	return out
}

// Job returns the job registered under key in the kind's registry.
func (w *Worker) Job(kind Kind, key string) (JobInfo, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	r := w.intervals
	if kind == KindCron {
		r = w.crons
	}
	j, ok := r.get(key)
	if !ok {
		return JobInfo{}, false
	}
	return withEntry(j.info(), w.entriesLocked(), j.entryID), true
}

func (w *Worker) entriesLocked() map[cron.EntryID]cron.Entry {
	if w.c == nil {
		return nil
	}
	es := w.c.Entries()
	out := make(map[cron.EntryID]cron.Entry, len(es))
	for _, e := range es {
		out[e.ID] = e
	}
	return out
}

func withEntry(info JobInfo, entries map[cron.EntryID]cron.Entry, id cron.EntryID) JobInfo {
	if e, ok := entries[id]; ok {
		info.Next = e.Next
		info.Prev = e.Prev
	}
	return info
}
