// Package app wires the runpane components together: configuration,
// logging, the event loop, the filter registry, the command executor and
// the output sinks.
package app

import (
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/dshills/runpane/internal/config"
	"github.com/dshills/runpane/internal/config/watcher"
	"github.com/dshills/runpane/internal/integration/command"
	"github.com/dshills/runpane/internal/integration/filter"
	"github.com/dshills/runpane/internal/integration/filter/script"
	"github.com/dshills/runpane/internal/integration/jobs"
	"github.com/dshills/runpane/internal/integration/process"
	"github.com/dshills/runpane/internal/logging"
	"github.com/dshills/runpane/internal/output"
)

// Options configures the application.
type Options struct {
	// LogOutput receives log lines. Defaults to os.Stderr.
	LogOutput io.Writer

	// Logger replaces the logger built from the configuration.
	Logger *logging.Logger

	// Watch overrides filters.watch when set.
	Watch *bool

	// MaxJobs limits concurrent jobs. Zero means unlimited.
	MaxJobs int
}

// Application holds the wired components. All commands run on one loop.
type Application struct {
	mu sync.Mutex

	config   *config.Config
	log      *logging.Logger
	loop     *process.Loop
	jobs     *jobs.Registry
	filters  *filter.Registry
	loader   *config.FilterLoader
	executor *command.Executor
	styles   *output.Styles
	watcher  *watcher.Watcher

	filterFiles []string
	filterErr   error
	closed      bool
}

// New creates an application from cfg. Filter file problems are logged
// and kept in FilterError; they do not fail New.
func New(cfg *config.Config, opts Options) (*Application, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	log := opts.Logger
	if log == nil {
		out := opts.LogOutput
		if out == nil {
			out = os.Stderr
		}
		log = logging.New(logging.Config{
			Level:  cfg.LogLevel(),
			Output: out,
			Prefix: "runpane",
		})
	}
	for _, path := range cfg.ErrorPaths() {
		log.Warn("config %s: %v", path, cfg.Errors()[path])
	}

	app := &Application{
		config: cfg,
		log:    log,
	}

	styles, err := output.NewStyles(lipgloss.DefaultRenderer(), cfg.StyleSpecs())
	if err != nil {
		return nil, &InitError{Component: "styles", Err: err}
	}
	app.styles = styles

	cmdConfig, err := cfg.CommandConfig()
	if err != nil {
		return nil, &InitError{Component: "runner", Err: err}
	}

	app.filters = filter.NewRegistry(
		filter.WithRegistryLogger(log.WithComponent("filter")),
		filter.WithCompileOptions(cfg.CompileOptions(log.WithComponent("filter"))),
		filter.WithDefaultFilter(cfg.Filters.Default),
	)
	app.loader = config.NewFilterLoader(app.filters,
		config.WithFilterLogger(log.WithComponent("filters")),
		config.WithScriptOptions(script.Options{Logger: log.WithComponent("script")}),
	)
	app.filterFiles, app.filterErr = app.loader.Load(cfg.Filters.Paths)
	if !app.filters.Has(app.filters.DefaultID()) {
		log.Warn("default filter %q is not defined, using %q", app.filters.DefaultID(), filter.DefaultID)
		app.filters.SetDefault(filter.DefaultID)
	}

	var jobOpts []jobs.Option
	if opts.MaxJobs > 0 {
		jobOpts = append(jobOpts, jobs.WithMaxJobs(opts.MaxJobs))
	}
	app.jobs = jobs.NewRegistry(jobOpts...)
	app.jobs.OnRunningChanged(func(running bool) {
		log.Debug("running: %v", running)
	})

	app.loop = process.NewLoop(process.WithLoopLogger(log.WithComponent("loop")))
	app.executor = command.NewExecutor(app.loop, cmdConfig,
		command.WithLogger(log),
		command.WithFilters(app.filters),
		command.WithJobs(app.jobs),
	)

	watch := cfg.Filters.Watch
	if opts.Watch != nil {
		watch = *opts.Watch
	}
	if watch && len(cfg.Filters.Paths) > 0 {
		if err := app.startWatcher(); err != nil {
			app.loop.Close()
			return nil, &InitError{Component: "filter watcher", Err: err}
		}
	}

	return app, nil
}

// Config returns the configuration the application was built from.
func (app *Application) Config() *config.Config {
	return app.config
}

// Logger returns the application logger.
func (app *Application) Logger() *logging.Logger {
	return app.log
}

// Filters returns the filter registry.
func (app *Application) Filters() *filter.Registry {
	return app.filters
}

// FilterFiles returns the filter files loaded last.
func (app *Application) FilterFiles() []string {
	app.mu.Lock()
	defer app.mu.Unlock()
	return append([]string(nil), app.filterFiles...)
}

// FilterError returns the problems found loading filter files, or nil.
func (app *Application) FilterError() error {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.filterErr
}

// Executor returns the command executor.
func (app *Application) Executor() *command.Executor {
	return app.executor
}

// Jobs returns the registry of running jobs.
func (app *Application) Jobs() *jobs.Registry {
	return app.jobs
}

// Styles returns the style table.
func (app *Application) Styles() *output.Styles {
	return app.styles
}

// AbortAll aborts every running job.
func (app *Application) AbortAll() int {
	return app.executor.AbortAll()
}

// ReloadFilters reloads the filter files on the loop, so no command
// starts while the registry is being rebuilt.
func (app *Application) ReloadFilters() error {
	var files []string
	var err error
	if !app.loop.Do(func() { files, err = app.loader.Reload(app.config.Filters.Paths) }) {
		return ErrClosed
	}

	app.mu.Lock()
	app.filterFiles = files
	app.filterErr = err
	app.mu.Unlock()

	app.log.Info("reloaded %d filter files", len(files))
	return err
}

// Close aborts running jobs and stops the loop and the watcher.
func (app *Application) Close() {
	app.mu.Lock()
	if app.closed {
		app.mu.Unlock()
		return
	}
	app.closed = true
	w := app.watcher
	app.mu.Unlock()

	if w != nil {
		w.Stop()
	}
	if n := app.executor.AbortAll(); n > 0 {
		app.log.Info("aborted %d running jobs", n)
	}
	app.loop.Close()
	<-app.loop.Done()
}
