// Package jobs tracks running commands per owning scope so they can be
// aborted together.
package jobs

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Job is one tracked command.
type Job struct {
	// ID is the unique identifier for this job.
	ID string

	// Name is a human-readable name, usually the command line.
	Name string

	// Pid is the process ID of the job's child, or -1.
	Pid int

	// Started is the time the job was registered.
	Started time.Time

	abort func()
}

// Abort calls the job's abort function.
func (j *Job) Abort() {
	if j.abort != nil {
		j.abort()
	}
}

// Registry holds the running jobs of one scope.
//
// Registry is safe for concurrent use. Abort functions and observers are
// called without the lock held, so they may call back into the registry.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*Job

	// maxJobs limits the number of concurrent jobs (0 = unlimited)
	maxJobs int

	observers []func(running bool)
}

// Option configures a Registry.
type Option func(*Registry)

// WithMaxJobs sets the maximum number of concurrent jobs.
// A value of 0 (default) means unlimited.
func WithMaxJobs(max int) Option {
	return func(r *Registry) {
		r.maxJobs = max
	}
}

// WithRunningObserver registers fn as a running-state observer.
func WithRunningObserver(fn func(running bool)) Option {
	return func(r *Registry) {
		r.observers = append(r.observers, fn)
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		jobs: make(map[string]*Job),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Register tracks a new job with a generated ID.
func (r *Registry) Register(name string, pid int, abort func()) (*Job, error) {
	return r.RegisterWithID(uuid.New().String(), name, pid, abort)
}

// RegisterWithID tracks a new job with a specific ID.
func (r *Registry) RegisterWithID(id, name string, pid int, abort func()) (*Job, error) {
	r.mu.Lock()

	if r.maxJobs > 0 && len(r.jobs) >= r.maxJobs {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %d", ErrJobLimit, r.maxJobs)
	}
	if _, exists := r.jobs[id]; exists {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrDuplicateJob, id)
	}

	job := &Job{
		ID:      id,
		Name:    name,
		Pid:     pid,
		Started: time.Now(),
		abort:   abort,
	}
	r.jobs[id] = job
	becameRunning := len(r.jobs) == 1
	observers := r.observers
	r.mu.Unlock()

	if becameRunning {
		notify(observers, true)
	}
	return job, nil
}

// Unregister stops tracking job. Unknown jobs are ignored.
func (r *Registry) Unregister(job *Job) {
	if job == nil {
		return
	}

	r.mu.Lock()
	if _, ok := r.jobs[job.ID]; !ok {
		r.mu.Unlock()
		return
	}
	delete(r.jobs, job.ID)
	becameIdle := len(r.jobs) == 0
	observers := r.observers
	r.mu.Unlock()

	if becameIdle {
		notify(observers, false)
	}
}

// AbortAll calls the abort function of every registered job and returns
// how many were called. Jobs stay registered until their owner
// unregisters them, so a job that finishes during the sweep only sees a
// no-op abort.
func (r *Registry) AbortAll() int {
	jobs := r.Jobs()
	for _, j := range jobs {
		j.Abort()
	}
	return len(jobs)
}

// Get returns a job by ID, or nil.
func (r *Registry) Get(id string) *Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.jobs[id]
}

// Jobs returns the registered jobs ordered by start time.
func (r *Registry) Jobs() []*Job {
	r.mu.RLock()
	result := make([]*Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		result = append(result, j)
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, k int) bool {
		if result[i].Started.Equal(result[k].Started) {
			return result[i].ID < result[k].ID
		}
		return result[i].Started.Before(result[k].Started)
	})
	return result
}

// Count returns the number of registered jobs.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

// Running reports whether any job is registered.
func (r *Registry) Running() bool {
	return r.Count() > 0
}

// OnRunningChanged registers fn to be called whenever Running flips.
func (r *Registry) OnRunningChanged(fn func(running bool)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, fn)
}

func notify(observers []func(bool), running bool) {
	for _, fn := range observers {
		fn(running)
	}
}

// Sentinel errors.
var (
	// ErrJobLimit is returned when the registry is full.
	ErrJobLimit = errors.New("job limit reached")

	// ErrDuplicateJob is returned when a job ID is already registered.
	ErrDuplicateJob = errors.New("job ID already exists")
)
