package process

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/dshills/runpane/internal/logging"
)

// readBufferSize is the size of a single pipe read.
const readBufferSize = 32 * 1024

// Stream identifies one of the child's output streams.
type Stream int

const (
	// Stdout is standard output.
	Stdout Stream = iota
	// Stderr is standard error.
	Stderr
)

// String returns the stream name.
func (s Stream) String() string {
	switch s {
	case Stdout:
		return "stdout"
	case Stderr:
		return "stderr"
	default:
		return "unknown"
	}
}

// State represents the lifecycle state of a Runner.
type State int

const (
	// StateIdle indicates the runner has not started a process.
	StateIdle State = iota
	// StateRunning indicates the process is running or its output is being drained.
	StateRunning
	// StateExited indicates the process has exited but output may still be pending.
	StateExited
	// StateAborted indicates Abort was called before the runner finished.
	StateAborted
	// StateFinished indicates exit and both stream closes have been observed.
	StateFinished
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateAborted:
		return "aborted"
	case StateFinished:
		return "finished"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Spec describes the process to run.
type Spec struct {
	// Argv is the program and its arguments. Argv[0] is looked up in PATH.
	Argv []string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Env holds extra KEY=VALUE entries added on top of the current
	// environment. Later entries win.
	Env []string

	// Stdin is copied to the child's standard input when non-nil.
	Stdin io.Reader

	// Encoding names the charset used for lines that are not valid UTF-8.
	// Empty or "none" replaces invalid bytes instead.
	Encoding string

	// StripCR removes one trailing '\r' from each delivered line.
	StripCR bool

	// AbortSignal is sent to the process group on Abort.
	// Zero means DefaultAbortSignal.
	AbortSignal syscall.Signal

	// CollectStdout and CollectStderr keep the full text of each stream,
	// retrievable with Output once the runner has finished.
	CollectStdout bool
	CollectStderr bool
}

// Callbacks receive runner events. They are always invoked on the loop.
type Callbacks struct {
	// OnLine is called once per complete line, in order within a stream.
	OnLine func(stream Stream, line string)

	// OnExit is called exactly once, after every line has been delivered.
	OnExit func(status ExitStatus)
}

// Runner owns one child process and its output streams.
//
// Fields other than the atomics are only touched on the loop.
type Runner struct {
	loop   *Loop
	spec   Spec
	cb     Callbacks
	cmd    *exec.Cmd
	logger *logging.Logger

	pipes   [2]*os.File
	open    int
	exited  bool
	status  ExitStatus

	// readErr is the first read error of a stream that delivered no data.
	readErr error

	decoder *lineDecoder
	collect [2]*strings.Builder

	state   atomic.Int32
	aborted atomic.Bool

	started  time.Time
	done     chan struct{}
	doneOnce sync.Once
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithRunnerLogger sets the logger for stream and kill errors.
func WithRunnerLogger(l *logging.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logging.OrNull(l)
	}
}

// Spawn starts the process described by spec and begins delivering its
// output through cb on loop.
//
// Failures to build the command are returned as a SpawnError of kind
// SpawnArgv; failures to start it as kind SpawnOS. Everything that happens
// after a successful start is reported through cb.
func Spawn(loop *Loop, spec Spec, cb Callbacks, opts ...RunnerOption) (*Runner, error) {
	if len(spec.Argv) == 0 || spec.Argv[0] == "" {
		return nil, &SpawnError{Kind: SpawnArgv, Argv: spec.Argv, Err: ErrEmptyCommand}
	}

	decoder, err := newLineDecoder(spec.Encoding)
	if err != nil {
		return nil, &SpawnError{Kind: SpawnArgv, Argv: spec.Argv, Err: err}
	}

	r := &Runner{
		loop:    loop,
		spec:    spec,
		cb:      cb,
		logger:  logging.NullLogger,
		decoder: decoder,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if spec.CollectStdout {
		r.collect[Stdout] = &strings.Builder{}
	}
	if spec.CollectStderr {
		r.collect[Stderr] = &strings.Builder{}
	}

	if err := r.start(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Runner) start() error {
	// Track created files for cleanup on error
	var created []*os.File
	cleanup := func() {
		for _, f := range created {
			_ = f.Close()
		}
	}

	outR, outW, err := os.Pipe()
	if err != nil {
		return &SpawnError{Kind: SpawnOS, Argv: r.spec.Argv, Err: fmt.Errorf("stdout pipe: %w", err)}
	}
	created = append(created, outR, outW)

	errR, errW, err := os.Pipe()
	if err != nil {
		cleanup()
		return &SpawnError{Kind: SpawnOS, Argv: r.spec.Argv, Err: fmt.Errorf("stderr pipe: %w", err)}
	}
	created = append(created, errR, errW)

	cmd := exec.Command(r.spec.Argv[0], r.spec.Argv[1:]...)
	cmd.Dir = r.spec.Dir
	cmd.Env = append(os.Environ(), r.spec.Env...)
	cmd.Stdin = r.spec.Stdin
	cmd.Stdout = outW
	cmd.Stderr = errW
	cmd.SysProcAttr = sysProcAttr()

	if err := cmd.Start(); err != nil {
		cleanup()
		return &SpawnError{Kind: SpawnOS, Argv: r.spec.Argv, Err: err}
	}

	// The child holds its own copies of the write ends.
	_ = outW.Close()
	_ = errW.Close()

	r.cmd = cmd
	r.started = time.Now()
	r.pipes = [2]*os.File{outR, errR}
	r.open = 2
	r.state.Store(int32(StateRunning))

	go r.read(Stdout, outR)
	go r.read(Stderr, errR)
	go r.wait()

	return nil
}

// read drains one pipe until EOF or until Abort closes it.
func (r *Runner) read(stream Stream, f io.ReadCloser) {
	var split LineSplitter
	buf := make([]byte, readBufferSize)

	var readErr error
	gotData := false
	for {
		n, err := f.Read(buf)
		if n > 0 {
			gotData = true
			if lines := split.Feed(buf[:n]); len(lines) > 0 {
				r.loop.Post(func() { r.deliver(stream, lines) })
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				r.logger.Debug("read %s of pid %d: %v", stream, r.Pid(), err)
				if !gotData {
					readErr = fmt.Errorf("reading %s: %w", stream, err)
				}
			}
			break
		}
	}

	last, ok := split.Flush()
	posted := r.loop.Post(func() {
		if ok {
			r.deliver(stream, []string{last})
		}
		if readErr != nil && r.readErr == nil {
			r.readErr = readErr
		}
		r.streamClosed(stream)
	})
	if !posted {
		_ = f.Close()
	}
}

// wait reaps the child and posts its status.
func (r *Runner) wait() {
	err := r.cmd.Wait()
	status := exitStatusOf(r.cmd.ProcessState, err)

	if !r.loop.Post(func() { r.processExited(status) }) {
		r.markDone()
	}
}

func (r *Runner) deliver(stream Stream, lines []string) {
	for _, line := range lines {
		if r.aborted.Load() {
			return
		}

		line = r.decoder.decode(line)
		if r.spec.StripCR {
			line = strings.TrimSuffix(line, "\r")
		}
		if b := r.collect[stream]; b != nil {
			b.WriteString(line)
			b.WriteByte('\n')
		}
		if r.cb.OnLine != nil {
			r.cb.OnLine(stream, line)
		}
	}
}

func (r *Runner) streamClosed(stream Stream) {
	if f := r.pipes[stream]; f != nil {
		_ = f.Close()
		r.pipes[stream] = nil
	}
	r.open--
	r.checkFinished()
}

func (r *Runner) processExited(status ExitStatus) {
	r.exited = true
	r.status = status
	r.state.CompareAndSwap(int32(StateRunning), int32(StateExited))
	r.checkFinished()
}

// checkFinished completes the join of exit, stdout EOF and stderr EOF.
func (r *Runner) checkFinished() {
	if !r.exited || r.open > 0 || r.State() == StateFinished {
		return
	}

	r.state.Store(int32(StateFinished))
	defer r.markDone()

	// Read errors are only reported on runs that failed.
	if r.readErr != nil && r.status.Err == nil && !r.status.Success() {
		r.status.Err = r.readErr
	}

	if r.cb.OnExit != nil {
		r.cb.OnExit(r.status)
	}
}

func (r *Runner) markDone() {
	r.doneOnce.Do(func() {
		close(r.done)
	})
}

// Abort kills the process group and detaches both readers.
//
// After Abort returns no OnLine callback fires. OnExit still fires once the
// child has been reaped. Abort is idempotent and a no-op once the runner has
// finished. It must be called on the loop.
func (r *Runner) Abort() {
	if r.State() == StateFinished || r.aborted.Swap(true) {
		return
	}
	r.state.Store(int32(StateAborted))

	if err := killProcessTree(r.cmd.Process, r.spec.AbortSignal); err != nil {
		r.logger.Warn("kill process group %d: %v", r.Pid(), err)
	}

	// Closing the read ends unblocks the readers; their final posts only
	// count the stream as closed.
	for _, f := range r.pipes {
		if f != nil {
			_ = f.Close()
		}
	}
}

// State returns the current runner state.
func (r *Runner) State() State {
	return State(r.state.Load())
}

// Aborted reports whether Abort has been called.
func (r *Runner) Aborted() bool {
	return r.aborted.Load()
}

// Done returns a channel that is closed after OnExit has returned.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// Pid returns the child's process ID, or -1 before start.
func (r *Runner) Pid() int {
	if r.cmd == nil || r.cmd.Process == nil {
		return -1
	}
	return r.cmd.Process.Pid
}

// Argv returns the command that was started.
func (r *Runner) Argv() []string {
	return r.spec.Argv
}

// Started returns the time the process was started.
func (r *Runner) Started() time.Time {
	return r.started
}

// Status blocks until the runner has finished and returns the exit status.
// Calling it on the loop before OnExit has run deadlocks.
func (r *Runner) Status() ExitStatus {
	<-r.done
	return r.status
}

// Output blocks until the runner has finished and returns the collected
// text of a stream, or "" unless collection was requested. The same loop
// restriction as Status applies.
func (r *Runner) Output(stream Stream) string {
	<-r.done
	if b := r.collect[stream]; b != nil {
		return b.String()
	}
	return ""
}
