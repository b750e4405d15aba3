package process

import (
	"runtime/debug"
	"sync"

	"github.com/dshills/runpane/internal/logging"
)

// Loop runs posted functions one at a time on a dedicated goroutine.
//
// The queue is unbounded so that posting never blocks a reader. Functions
// queued before Close are still run; Post fails after Close.
type Loop struct {
	mu     sync.Mutex
	queue  []func()
	closed bool

	wake chan struct{}
	done chan struct{}

	logger *logging.Logger
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithLoopLogger sets the logger used to report panicking callbacks.
func WithLoopLogger(l *logging.Logger) LoopOption {
	return func(loop *Loop) {
		loop.logger = logging.OrNull(l)
	}
}

// NewLoop creates a loop and starts its goroutine.
func NewLoop(opts ...LoopOption) *Loop {
	l := &Loop{
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		logger: logging.NullLogger,
	}

	for _, opt := range opts {
		opt(l)
	}

	go l.run()

	return l
}

// Post queues fn to run on the loop. It reports false if the loop is closed.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Do runs fn on the loop and waits for it to return.
// It reports false if the loop is closed. Do must not be called from the
// loop goroutine itself.
func (l *Loop) Do(fn func()) bool {
	ran := make(chan struct{})
	if !l.Post(func() {
		defer close(ran)
		fn()
	}) {
		return false
	}
	<-ran
	return true
}

// Close stops accepting work. Already queued functions still run.
func (l *Loop) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Done returns a channel that is closed once the loop goroutine exits.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) run() {
	defer close(l.done)

	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		closed := l.closed
		l.mu.Unlock()

		for _, fn := range batch {
			l.call(fn)
		}

		if len(batch) == 0 {
			if closed {
				return
			}
			<-l.wake
		}
	}
}

func (l *Loop) call(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("loop callback panicked: %v\n%s", r, debug.Stack())
		}
	}()
	fn()
}
