// Package watcher reports changes to filter and settings files.
//
// Files are watched through their parent directory so that editors which
// replace a file on save are still seen. Rapid changes to one path are
// coalesced into a single event.
package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/runpane/internal/logging"
)

// ErrStopped is returned when a stopped watcher is used.
var ErrStopped = errors.New("watcher stopped")

// Event represents a file change event.
type Event struct {
	// Path is the absolute path to the changed file.
	Path string

	// Op is the operation that triggered the event.
	Op Operation

	// Time is when the event occurred.
	Time time.Time
}

// Operation represents the type of file operation.
type Operation int

const (
	// OpWrite indicates the file was modified.
	OpWrite Operation = iota

	// OpCreate indicates a new file was created.
	OpCreate

	// OpRemove indicates the file was deleted.
	OpRemove

	// OpRename indicates the file was renamed.
	OpRename
)

// String returns the operation name.
func (op Operation) String() string {
	switch op {
	case OpWrite:
		return "write"
	case OpCreate:
		return "create"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Handler is called when a file change is detected.
type Handler func(event Event)

// Watcher monitors files and directories for changes.
type Watcher struct {
	mu sync.RWMutex

	fsw *fsnotify.Watcher

	// files are watched individually; dirs report every entry that passes
	// match.
	files map[string]bool
	dirs  map[string]bool

	// watched counts the reasons each directory is added to fsw.
	watched map[string]int

	match    func(path string) bool
	handlers []Handler
	log      *logging.Logger

	debounce  time.Duration
	pendingMu sync.Mutex
	pending   map[string]pendingEvent

	running bool
	stopped bool
	closeCh chan struct{}
	wg      sync.WaitGroup
}

// pendingEvent stores a pending event with its operation for debouncing.
type pendingEvent struct {
	Op   Operation
	Time time.Time
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets how long a path must stay quiet before its event is
// delivered. Zero delivers every event immediately.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d >= 0 {
			w.debounce = d
		}
	}
}

// WithMatch limits directory watches to the paths fn accepts. Individually
// watched files are always reported.
func WithMatch(fn func(path string) bool) Option {
	return func(w *Watcher) {
		w.match = fn
	}
}

// WithLogger sets the watcher logger.
func WithLogger(l *logging.Logger) Option {
	return func(w *Watcher) {
		w.log = logging.OrNull(l)
	}
}

// New creates a watcher. It does not deliver events until Start.
func New(opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsw:      fsw,
		files:    make(map[string]bool),
		dirs:     make(map[string]bool),
		watched:  make(map[string]int),
		match:    func(string) bool { return true },
		log:      logging.NullLogger,
		debounce: 100 * time.Millisecond,
		pending:  make(map[string]pendingEvent),
		closeCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Watch adds a file or directory. A file that does not exist yet is
// reported when it is created; its directory must exist.
func (w *Watcher) Watch(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return ErrStopped
	}

	info, err := os.Stat(absPath)
	if err == nil && info.IsDir() {
		if w.dirs[absPath] {
			return nil
		}
		if err := w.addDir(absPath); err != nil {
			return err
		}
		w.dirs[absPath] = true
		return nil
	}
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	if w.files[absPath] {
		return nil
	}
	if err := w.addDir(filepath.Dir(absPath)); err != nil {
		return err
	}
	w.files[absPath] = true
	return nil
}

// Unwatch removes a file or directory added with Watch.
func (w *Watcher) Unwatch(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	switch {
	case w.dirs[absPath]:
		delete(w.dirs, absPath)
		return w.removeDir(absPath)
	case w.files[absPath]:
		delete(w.files, absPath)
		return w.removeDir(filepath.Dir(absPath))
	}
	return nil
}

// addDir must be called with mu held.
func (w *Watcher) addDir(dir string) error {
	if w.watched[dir] == 0 {
		if err := w.fsw.Add(dir); err != nil {
			return err
		}
	}
	w.watched[dir]++
	return nil
}

// removeDir must be called with mu held.
func (w *Watcher) removeDir(dir string) error {
	w.watched[dir]--
	if w.watched[dir] > 0 {
		return nil
	}
	delete(w.watched, dir)
	return w.fsw.Remove(dir)
}

// OnChange registers a handler for file change events.
func (w *Watcher) OnChange(handler Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, handler)
}

// Start begins delivering events.
func (w *Watcher) Start() {
	w.mu.Lock()
	if w.running || w.stopped {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	w.wg.Add(1)
	go w.loop()
}

// Stop stops the watcher and releases its resources. A stopped watcher
// cannot be restarted.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	w.running = false
	close(w.closeCh)
	w.mu.Unlock()

	w.wg.Wait()
	if err := w.fsw.Close(); err != nil {
		w.log.Debug("closing watcher: %v", err)
	}
}

// IsRunning returns whether the watcher is delivering events.
func (w *Watcher) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// Watched returns the watched files and directories.
func (w *Watcher) Watched() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	paths := make([]string, 0, len(w.files)+len(w.dirs))
	for path := range w.dirs {
		paths = append(paths, path)
	}
	for path := range w.files {
		paths = append(paths, path)
	}
	return paths
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	var tick <-chan time.Time
	if w.debounce > 0 {
		ticker := time.NewTicker(w.debounce)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-w.closeCh:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error: %v", err)
		case <-tick:
			w.processPendingEvents()
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	op, ok := operationOf(ev.Op)
	if !ok || !w.relevant(ev.Name) {
		return
	}

	event := Event{Path: ev.Name, Op: op, Time: time.Now()}
	if w.debounce > 0 {
		w.queueEvent(event)
	} else {
		w.emitEvent(event)
	}
}

func operationOf(op fsnotify.Op) (Operation, bool) {
	switch {
	case op.Has(fsnotify.Remove):
		return OpRemove, true
	case op.Has(fsnotify.Rename):
		return OpRename, true
	case op.Has(fsnotify.Create):
		return OpCreate, true
	case op.Has(fsnotify.Write):
		return OpWrite, true
	default:
		return 0, false
	}
}

func (w *Watcher) relevant(path string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.files[path] {
		return true
	}
	return w.dirs[filepath.Dir(path)] && w.match(path)
}

// queueEvent queues an event for debounced delivery. A remove wins over
// anything queued, a create is kept over later writes, and otherwise the
// latest operation is kept.
func (w *Watcher) queueEvent(event Event) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	existing, exists := w.pending[event.Path]
	op := event.Op
	if exists && op == OpWrite && existing.Op == OpCreate {
		op = OpCreate
	}
	w.pending[event.Path] = pendingEvent{Op: op, Time: event.Time}
}

// processPendingEvents emits events that have been stable for the
// debounce duration.
func (w *Watcher) processPendingEvents() {
	w.pendingMu.Lock()
	stableThreshold := time.Now().Add(-w.debounce)

	var toEmit []Event
	for path, pending := range w.pending {
		if pending.Time.Before(stableThreshold) {
			toEmit = append(toEmit, Event{
				Path: path,
				Op:   pending.Op,
				Time: pending.Time,
			})
			delete(w.pending, path)
		}
	}
	w.pendingMu.Unlock()

	for _, event := range toEmit {
		w.emitEvent(event)
	}
}

// emitEvent calls all handlers with the event.
func (w *Watcher) emitEvent(event Event) {
	w.mu.RLock()
	handlers := make([]Handler, len(w.handlers))
	copy(handlers, w.handlers)
	w.mu.RUnlock()

	for _, handler := range handlers {
		w.safeCallHandler(handler, event)
	}
}

// safeCallHandler calls a handler with panic recovery.
func (w *Watcher) safeCallHandler(handler Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("watch handler panic on %s: %v", event.Path, r)
		}
	}()
	handler(event)
}
