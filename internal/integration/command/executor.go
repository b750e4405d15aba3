// Package command runs command lines through a filter into a sink.
package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"syscall"

	"github.com/mattn/go-shellwords"

	"github.com/dshills/runpane/internal/integration/filter"
	"github.com/dshills/runpane/internal/integration/jobs"
	"github.com/dshills/runpane/internal/integration/process"
	"github.com/dshills/runpane/internal/logging"
)

// Styles of the lines the executor writes itself.
const (
	StyleMessage = "output-message"
	StyleError   = "output-error"
)

// ErrNoSink is returned for a request without a sink.
var ErrNoSink = errors.New("request has no sink")

// Config configures an Executor.
type Config struct {
	// Shell and ShellArgs run command lines when UseShell is set:
	// Shell ShellArgs... CommandLine.
	Shell     string
	ShellArgs []string
	UseShell  bool

	// Encoding, AbortSignal and StripCR are passed to every runner.
	Encoding    string
	AbortSignal syscall.Signal
	StripCR     bool

	// Env is added to the environment of every command.
	Env map[string]string

	MessageStyle string
	ErrorStyle   string
	StdoutStyle  string
	StderrStyle  string
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		Shell:        "/bin/sh",
		ShellArgs:    []string{"-c"},
		UseShell:     true,
		Encoding:     process.DefaultEncoding,
		AbortSignal:  process.DefaultAbortSignal,
		MessageStyle: StyleMessage,
		ErrorStyle:   StyleError,
		StdoutStyle:  filter.StyleStdout,
		StderrStyle:  filter.StyleStderr,
	}
}

// Request describes one command to run.
type Request struct {
	// CommandLine is run through the shell, or split into words when the
	// shell is disabled. Argv, when set, is used as is instead.
	CommandLine string
	Argv        []string

	// DisplayCommand replaces the command in the display line.
	DisplayCommand string

	WorkingDir string
	Env        map[string]string

	// JobName names the job in the registry. It defaults to the command.
	JobName string

	// Filter is used when set; otherwise FilterID selects one from the
	// executor's registry ("" is the default filter). Without a registry
	// lines are written unfiltered.
	Filter   filter.LineFilter
	FilterID string

	ActiveFile string
	ActiveDirs []string

	Input io.Reader

	Sink     filter.Sink
	Listener Listener

	// Collect keeps the full stdout and stderr text on the job.
	Collect bool
}

// Executor starts commands on a loop. Run must be called on the loop;
// Submit may be called from any other goroutine.
type Executor struct {
	config  Config
	loop    *process.Loop
	jobs    *jobs.Registry
	filters *filter.Registry
	log     *logging.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the executor logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Executor) {
		e.log = logging.OrNull(l)
	}
}

// WithFilters sets the registry filter ids are resolved in.
func WithFilters(r *filter.Registry) Option {
	return func(e *Executor) {
		e.filters = r
	}
}

// WithJobs sets the registry running jobs are tracked in.
func WithJobs(r *jobs.Registry) Option {
	return func(e *Executor) {
		e.jobs = r
	}
}

// NewExecutor creates an executor running commands on loop.
func NewExecutor(loop *process.Loop, config Config, opts ...Option) *Executor {
	def := DefaultConfig()
	if config.Shell == "" {
		config.Shell = def.Shell
		if config.ShellArgs == nil {
			config.ShellArgs = def.ShellArgs
		}
	}
	if config.MessageStyle == "" {
		config.MessageStyle = def.MessageStyle
	}
	if config.ErrorStyle == "" {
		config.ErrorStyle = def.ErrorStyle
	}
	if config.StdoutStyle == "" {
		config.StdoutStyle = def.StdoutStyle
	}
	if config.StderrStyle == "" {
		config.StderrStyle = def.StderrStyle
	}

	e := &Executor{
		config: config,
		loop:   loop,
		log:    logging.NullLogger,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.jobs == nil {
		e.jobs = jobs.NewRegistry()
	}
	e.log = e.log.WithComponent("command")
	return e
}

// Jobs returns the registry of running jobs.
func (e *Executor) Jobs() *jobs.Registry {
	return e.jobs
}

// Config returns the executor configuration.
func (e *Executor) Config() Config {
	return e.config
}

// Submit runs req on the loop and waits for it to start.
func (e *Executor) Submit(req Request) (*Job, error) {
	var job *Job
	var err error
	if !e.loop.Do(func() { job, err = e.Run(req) }) {
		return nil, process.ErrLoopClosed
	}
	return job, err
}

// Abort aborts job on the loop and waits for the abort to return.
func (e *Executor) Abort(job *Job) bool {
	return e.loop.Do(job.Abort)
}

// AbortAll aborts every running job on the loop and returns how many
// were aborted.
func (e *Executor) AbortAll() int {
	n := 0
	e.loop.Do(func() { n = e.jobs.AbortAll() })
	return n
}

// Run writes the display line and starts the command of req. It must be
// called on the loop.
//
// Errors building the argv and errors starting the process are returned
// as *process.SpawnError and also written to the sink.
func (e *Executor) Run(req Request) (*Job, error) {
	if req.Sink == nil {
		return nil, ErrNoSink
	}

	argv, display, argvErr := e.command(req)
	if req.DisplayCommand != "" {
		display = req.DisplayCommand
	}
	filter.WriteLine(req.Sink, DisplayLine(display, req.WorkingDir), e.config.MessageStyle)

	if argvErr != nil {
		err := &process.SpawnError{Kind: process.SpawnArgv, Argv: argv, Err: argvErr}
		filter.WriteLine(req.Sink, err.Error(), e.config.ErrorStyle)
		return nil, err
	}

	lf, err := e.lineFilter(req)
	if err != nil {
		filter.WriteLine(req.Sink, err.Error(), e.config.ErrorStyle)
		return nil, err
	}

	name := req.JobName
	if name == "" {
		name = display
	}
	job := &Job{
		Name:     name,
		Display:  display,
		exec:     e,
		req:      req,
		filter:   lf,
		listener: req.Listener,
		done:     make(chan struct{}),
	}
	if job.listener == nil {
		job.listener = NopListener{}
	}

	if lf != nil {
		lf.CmdStart(req.WorkingDir)
		if req.ActiveFile != "" {
			lf.SetActiveFile(req.ActiveFile)
		}
		lf.AddActiveDirs(req.ActiveDirs...)
	}

	spec := process.Spec{
		Argv:          argv,
		Dir:           req.WorkingDir,
		Env:           e.environment(req.Env),
		Stdin:         req.Input,
		Encoding:      e.config.Encoding,
		StripCR:       e.config.StripCR,
		AbortSignal:   e.config.AbortSignal,
		CollectStdout: req.Collect,
		CollectStderr: req.Collect,
	}
	runner, err := process.Spawn(e.loop, spec, process.Callbacks{
		OnLine: job.line,
		OnExit: job.exit,
	}, process.WithRunnerLogger(e.log))
	if err != nil {
		filter.WriteLine(req.Sink, err.Error(), e.config.ErrorStyle)
		job.closeFilter()
		return nil, err
	}
	job.runner = runner

	entry, err := e.jobs.Register(name, runner.Pid(), runner.Abort)
	if err != nil {
		job.untracked = true
		job.closeFilter()
		runner.Abort()
		filter.WriteLine(req.Sink, err.Error(), e.config.ErrorStyle)
		return nil, err
	}
	job.entry = entry
	job.ID = entry.ID

	e.log.Debug("started %s (pid %d)", name, runner.Pid())
	job.listener.JobStarted(job)
	return job, nil
}

func (e *Executor) lineFilter(req Request) (filter.LineFilter, error) {
	if req.Filter != nil {
		return req.Filter, nil
	}
	if e.filters == nil {
		return nil, nil
	}
	return e.filters.New(req.FilterID, req.Sink,
		filter.WithEngineLogger(e.log),
		filter.WithStreamStyles(e.config.StdoutStyle, e.config.StderrStyle))
}

// command returns the argv to spawn and the command shown to the user.
func (e *Executor) command(req Request) ([]string, string, error) {
	if len(req.Argv) > 0 {
		return req.Argv, strings.Join(req.Argv, " "), nil
	}

	line := strings.TrimSpace(req.CommandLine)
	if line == "" {
		return nil, "", process.ErrEmptyCommand
	}

	if e.config.UseShell {
		argv := make([]string, 0, len(e.config.ShellArgs)+2)
		argv = append(argv, e.config.Shell)
		argv = append(argv, e.config.ShellArgs...)
		argv = append(argv, req.CommandLine)
		return argv, req.CommandLine, nil
	}

	parser := shellwords.NewParser()
	parser.ParseEnv = false
	parser.ParseBacktick = false
	argv, err := parser.Parse(line)
	if err != nil {
		return nil, req.CommandLine, fmt.Errorf("parse command line: %w", err)
	}
	if len(argv) == 0 {
		return nil, req.CommandLine, process.ErrEmptyCommand
	}
	return argv, req.CommandLine, nil
}

// environment returns the extra KEY=VALUE entries for a command.
// Request values override configured ones; the order is deterministic.
func (e *Executor) environment(extra map[string]string) []string {
	envMap := make(map[string]string, len(e.config.Env)+len(extra))
	for k, v := range e.config.Env {
		envMap[k] = v
	}
	for k, v := range extra {
		envMap[k] = v
	}

	keys := make([]string, 0, len(envMap))
	for k := range envMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+envMap[k])
	}
	return env
}

// Wait blocks until job has finished or ctx is done.
func Wait(ctx context.Context, job *Job) (process.ExitStatus, error) {
	select {
	case <-job.Done():
		return job.status, nil
	case <-ctx.Done():
		return process.ExitStatus{}, ctx.Err()
	}
}
