package jobs

import (
	"errors"
	"sync"
	"testing"
)

func TestRegistry_RegisterUnregister(t *testing.T) {
	r := NewRegistry()

	if r.Running() {
		t.Error("expected new registry to be idle")
	}

	job, err := r.Register("make", 42, nil)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if job.ID == "" {
		t.Error("expected generated ID")
	}
	if job.Pid != 42 || job.Name != "make" {
		t.Errorf("unexpected job %+v", job)
	}
	if !r.Running() || r.Count() != 1 {
		t.Errorf("expected one running job, got %d", r.Count())
	}
	if r.Get(job.ID) != job {
		t.Error("Get should return the registered job")
	}

	r.Unregister(job)
	r.Unregister(job)

	if r.Running() {
		t.Error("expected registry to be idle after unregister")
	}
}

func TestRegistry_DuplicateAndLimit(t *testing.T) {
	r := NewRegistry(WithMaxJobs(1))

	if _, err := r.RegisterWithID("a", "first", 1, nil); err != nil {
		t.Fatalf("RegisterWithID failed: %v", err)
	}

	_, err := r.RegisterWithID("a", "again", 2, nil)
	if !errors.Is(err, ErrJobLimit) {
		t.Errorf("expected ErrJobLimit, got %v", err)
	}

	r2 := NewRegistry()
	_, _ = r2.RegisterWithID("a", "first", 1, nil)
	if _, err := r2.RegisterWithID("a", "second", 2, nil); !errors.Is(err, ErrDuplicateJob) {
		t.Errorf("expected ErrDuplicateJob, got %v", err)
	}
}

func TestRegistry_AbortAll(t *testing.T) {
	r := NewRegistry()

	var mu sync.Mutex
	aborted := map[string]int{}
	var jobs []*Job
	for _, name := range []string{"a", "b", "c"} {
		name := name
		var job *Job
		job, _ = r.Register(name, -1, func() {
			mu.Lock()
			aborted[name]++
			mu.Unlock()
			// Jobs may finish while the sweep is running.
			r.Unregister(job)
		})
		jobs = append(jobs, job)
	}

	if n := r.AbortAll(); n != 3 {
		t.Errorf("expected 3 aborts, got %d", n)
	}
	for _, name := range []string{"a", "b", "c"} {
		if aborted[name] != 1 {
			t.Errorf("expected %s aborted once, got %d", name, aborted[name])
		}
	}
	if r.Running() {
		t.Error("expected all jobs unregistered")
	}

	if n := r.AbortAll(); n != 0 {
		t.Errorf("expected no aborts on empty registry, got %d", n)
	}
}

func TestRegistry_RunningObserver(t *testing.T) {
	var edges []bool
	r := NewRegistry(WithRunningObserver(func(running bool) {
		edges = append(edges, running)
	}))

	a, _ := r.Register("a", -1, nil)
	b, _ := r.Register("b", -1, nil)
	r.Unregister(a)
	r.Unregister(b)

	want := []bool{true, false}
	if len(edges) != len(want) {
		t.Fatalf("expected edges %v, got %v", want, edges)
	}
	for i := range want {
		if edges[i] != want[i] {
			t.Errorf("edge %d: expected %v, got %v", i, want[i], edges[i])
		}
	}
}

func TestRegistry_JobsOrdered(t *testing.T) {
	r := NewRegistry()
	first, _ := r.RegisterWithID("z", "first", -1, nil)
	second, _ := r.RegisterWithID("a", "second", -1, nil)
	second.Started = first.Started.Add(1)

	jobs := r.Jobs()
	if len(jobs) != 2 || jobs[0] != first || jobs[1] != second {
		t.Errorf("expected jobs in start order, got %v", jobs)
	}
}
