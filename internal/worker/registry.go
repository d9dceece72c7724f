package worker

import "sort"

// registry maps key -> job for one schedule kind. Guarded by Worker.mu.
type registry struct {
	kind Kind
	jobs map[string]*job
}

func newRegistry(kind Kind) *registry {
	return &registry{kind: kind, jobs: map[string]*job{}}
}

func (r *registry) has(key string) bool {
	if r == nil {
		return false
	}
	_, ok := r.jobs[key]
	return ok
}

func (r *registry) get(key string) (*job, bool) {
	if r == nil {
		return nil, false
	}
	j, ok := r.jobs[key]
	return j, ok
}

func (r *registry) put(j *job) { r.jobs[j.key] = j }

func (r *registry) remove(key string) (*job, bool) {
	if r == nil {
		return nil, false
	}
	j, ok := r.jobs[key]
	if ok {
		delete(r.jobs, key)
	}
	return j, ok
}

func (r *registry) len() int {
	if r == nil {
		return 0
	}
	return len(r.jobs)
}

// keys returns a sorted snapshot so callers can remove while iterating.
func (r *registry) keys() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.jobs))
	for k := range r.jobs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
