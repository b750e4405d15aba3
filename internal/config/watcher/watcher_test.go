package watcher

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func newWatcher(t *testing.T, opts ...Option) *Watcher {
	t.Helper()
	w, err := New(opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(w.Stop)
	return w
}

// collector records events delivered to it.
type collector struct {
	mu     sync.Mutex
	events []Event
}

func (c *collector) handle(e Event) {
	c.mu.Lock()
	c.events = append(c.events, e)
	c.mu.Unlock()
}

func (c *collector) snapshot() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

func (c *collector) waitFor(t *testing.T, fn func(Event) bool) Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, e := range c.snapshot() {
			if fn(e) {
				return e
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("no matching event, got %v", c.snapshot())
	return Event{}
}

func TestOperation_String(t *testing.T) {
	tests := []struct {
		op   Operation
		want string
	}{
		{OpWrite, "write"},
		{OpCreate, "create"},
		{OpRemove, "remove"},
		{OpRename, "rename"},
		{Operation(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.op, got, tt.want)
		}
	}
}

func TestOperationOf(t *testing.T) {
	tests := []struct {
		op   fsnotify.Op
		want Operation
		ok   bool
	}{
		{fsnotify.Write, OpWrite, true},
		{fsnotify.Create, OpCreate, true},
		{fsnotify.Create | fsnotify.Write, OpCreate, true},
		{fsnotify.Remove, OpRemove, true},
		{fsnotify.Rename, OpRename, true},
		{fsnotify.Chmod, 0, false},
	}
	for _, tt := range tests {
		got, ok := operationOf(tt.op)
		if got != tt.want || ok != tt.ok {
			t.Errorf("operationOf(%v) = %v, %v; want %v, %v", tt.op, got, ok, tt.want, tt.ok)
		}
	}
}

func TestWatcher_WatchUnwatch(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.toml")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := newWatcher(t)
	if err := w.Watch(file); err != nil {
		t.Fatalf("Watch file failed: %v", err)
	}
	if err := w.Watch(dir); err != nil {
		t.Fatalf("Watch dir failed: %v", err)
	}
	if err := w.Watch(filepath.Join(dir, "later.toml")); err != nil {
		t.Fatalf("Watch of a missing file in an existing dir failed: %v", err)
	}
	if got := len(w.Watched()); got != 3 {
		t.Errorf("expected 3 watched paths, got %d", got)
	}
	if w.watched[dir] != 3 {
		t.Errorf("expected dir watched for 3 reasons, got %d", w.watched[dir])
	}

	if err := w.Watch(filepath.Join(dir, "nodir", "x.toml")); err == nil {
		t.Error("expected an error for a file in a missing directory")
	}

	_ = w.Unwatch(file)
	_ = w.Unwatch(dir)
	if w.watched[dir] != 1 {
		t.Errorf("expected one remaining reason, got %d", w.watched[dir])
	}
}

func TestWatcher_DetectsFileModification(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "filters.toml")
	other := filepath.Join(dir, "other.toml")
	if err := os.WriteFile(file, []byte("initial"), 0o644); err != nil {
		t.Fatal(err)
	}

	var c collector
	w := newWatcher(t, WithDebounce(0))
	w.OnChange(c.handle)
	if err := w.Watch(file); err != nil {
		t.Fatal(err)
	}
	w.Start()

	if err := os.WriteFile(other, []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(file, []byte("modified"), 0o644); err != nil {
		t.Fatal(err)
	}

	e := c.waitFor(t, func(e Event) bool { return e.Path == file })
	if e.Op != OpWrite {
		t.Errorf("event.Op = %v, want write", e.Op)
	}
	for _, e := range c.snapshot() {
		if e.Path == other {
			t.Errorf("unwatched sibling reported: %v", e)
		}
	}
}

func TestWatcher_DirectoryMatch(t *testing.T) {
	dir := t.TempDir()

	var c collector
	w := newWatcher(t, WithDebounce(0), WithMatch(func(p string) bool {
		return strings.HasSuffix(p, ".yaml")
	}))
	w.OnChange(c.handle)
	if err := w.Watch(dir); err != nil {
		t.Fatal(err)
	}
	w.Start()

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	created := filepath.Join(dir, "new.yaml")
	if err := os.WriteFile(created, []byte("filters: []"), 0o644); err != nil {
		t.Fatal(err)
	}

	c.waitFor(t, func(e Event) bool { return e.Path == created && e.Op == OpCreate })
	for _, e := range c.snapshot() {
		if strings.HasSuffix(e.Path, ".txt") {
			t.Errorf("unmatched file reported: %v", e)
		}
	}
}

func TestWatcher_Debounce(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "debounce.toml")
	if err := os.WriteFile(file, []byte("initial"), 0o644); err != nil {
		t.Fatal(err)
	}

	var count atomic.Int32
	w := newWatcher(t, WithDebounce(100*time.Millisecond))
	w.OnChange(func(Event) { count.Add(1) })
	if err := w.Watch(file); err != nil {
		t.Fatal(err)
	}
	w.Start()

	for i := 0; i < 5; i++ {
		if err := os.WriteFile(file, []byte("modified"), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	deadline := time.Now().Add(2 * time.Second)
	for count.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	time.Sleep(300 * time.Millisecond)

	if n := count.Load(); n < 1 || n > 2 {
		t.Errorf("received %d events, expected 1-2 (debounced)", n)
	}
}

func TestWatcher_QueueCoalesces(t *testing.T) {
	w := newWatcher(t)
	now := time.Now()

	w.queueEvent(Event{Path: "/a", Op: OpCreate, Time: now})
	w.queueEvent(Event{Path: "/a", Op: OpWrite, Time: now})
	w.queueEvent(Event{Path: "/b", Op: OpWrite, Time: now})
	w.queueEvent(Event{Path: "/b", Op: OpRemove, Time: now})

	if got := w.pending["/a"].Op; got != OpCreate {
		t.Errorf("create then write = %v, want create", got)
	}
	if got := w.pending["/b"].Op; got != OpRemove {
		t.Errorf("write then remove = %v, want remove", got)
	}
}

func TestWatcher_HandlerPanicRecovered(t *testing.T) {
	w := newWatcher(t)

	var called atomic.Bool
	w.OnChange(func(Event) { panic("boom") })
	w.OnChange(func(Event) { called.Store(true) })

	w.emitEvent(Event{Path: "/x", Op: OpWrite})
	if !called.Load() {
		t.Error("later handlers should run after a panic")
	}
}

func TestWatcher_StopIsFinal(t *testing.T) {
	w := newWatcher(t)
	w.Start()
	if !w.IsRunning() {
		t.Error("expected running after Start")
	}
	w.Stop()
	w.Stop()
	if w.IsRunning() {
		t.Error("expected stopped")
	}
	if err := w.Watch(t.TempDir()); err != ErrStopped {
		t.Errorf("expected ErrStopped, got %v", err)
	}
}
