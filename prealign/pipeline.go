package prealign

import (
	"os"
	"sync"

	"github.com/grailbio/base/log"
)

// A Stat is one named numeric result recorded during the run.
type Stat struct {
	Name  string
	Value float64
}

// Run is the explicit context threaded through every cascade component.
// It carries the stat sink, the cleanup registry for intermediate
// artifacts, and the subprocess runner. There is no package-level
// mutable state.
type Run struct {
	Opts   Options
	Tools  Tools
	Runner Runner

	mu       sync.Mutex
	stats    map[string]float64
	order    []string
	cleanups []string
}

// NewRun constructs a run context with the default bash runner.
func NewRun(opts Options, tools Tools) *Run {
	return &Run{
		Opts:   opts,
		Tools:  tools,
		Runner: BashRunner(),
		stats:  map[string]float64{},
	}
}

// RecordStat records a named numeric result, overwriting any earlier
// value of the same name.
func (r *Run) RecordStat(name string, value float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.stats[name]; !ok {
		r.order = append(r.order, name)
	}
	r.stats[name] = value
}

// Stat returns a previously recorded result. The second return value
// reports whether the stat was ever recorded; a dependent metric whose
// input is missing is omitted, not defaulted.
func (r *Run) Stat(name string) (float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.stats[name]
	return v, ok
}

// Stats returns all recorded results in recording order.
func (r *Run) Stats() []Stat {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Stat, len(r.order))
	for i, name := range r.order {
		out[i] = Stat{Name: name, Value: r.stats[name]}
	}
	return out
}

// RegisterCleanup marks a filesystem path (pipe, temp file, temp dir)
// for removal at end of run, regardless of which execution branch
// created it.
func (r *Run) RegisterCleanup(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleanups = append(r.cleanups, path)
}

// Cleanup removes all registered intermediate artifacts. Removal
// failures are logged, not fatal; a re-run will remove stale leftovers
// itself.
func (r *Run) Cleanup() {
	r.mu.Lock()
	paths := r.cleanups
	r.cleanups = nil
	r.mu.Unlock()
	for _, p := range paths {
		if err := os.RemoveAll(p); err != nil {
			log.Error.Printf("cleanup %s: %v", p, err)
		}
	}
}
