package app

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dshills/runpane/internal/integration/command"
	"github.com/dshills/runpane/internal/integration/filter"
	"github.com/dshills/runpane/internal/integration/process"
	"github.com/dshills/runpane/internal/output"
)

// Output formats for RunOptions.Format.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// RunOptions describes one command run from the command line.
type RunOptions struct {
	CommandLine string
	Argv        []string
	Dir         string
	Env         map[string]string
	Filter      string
	ActiveFile  string
	Input       io.Reader

	// Output receives the annotated lines.
	Output io.Writer

	// Format is FormatText (default) or FormatJSON.
	Format string

	// Color forces styled text output on or off; nil detects a terminal.
	Color *bool

	// Locations appends resolved locations to text lines.
	Locations bool
}

// Run runs one command to completion and returns its exit status. When
// ctx is cancelled the command is aborted and Run still waits for its
// final status.
func (app *Application) Run(ctx context.Context, opts RunOptions) (process.ExitStatus, error) {
	sink, err := app.sink(opts)
	if err != nil {
		return process.ExitStatus{}, err
	}

	job, err := app.executor.Submit(command.Request{
		CommandLine: opts.CommandLine,
		Argv:        opts.Argv,
		WorkingDir:  opts.Dir,
		Env:         opts.Env,
		FilterID:    opts.Filter,
		ActiveFile:  opts.ActiveFile,
		Input:       opts.Input,
		Sink:        sink,
	})
	if err != nil {
		return process.ExitStatus{}, err
	}

	status, err := command.Wait(ctx, job)
	if err != nil {
		app.log.Info("aborting %s: %v", job.Name, err)
		app.executor.Abort(job)
		<-job.Done()
		status = job.Status()
	}

	if serr := sinkErr(sink); serr != nil {
		return status, fmt.Errorf("writing output: %w", serr)
	}
	return status, nil
}

func (app *Application) sink(opts RunOptions) (filter.Sink, error) {
	switch opts.Format {
	case "", FormatText:
		var topts []output.TerminalOption
		if opts.Color != nil {
			topts = append(topts, output.WithColor(*opts.Color))
		}
		topts = append(topts, output.WithLocations(opts.Locations))
		return output.NewTerminal(opts.Output, app.styles, topts...), nil
	case FormatJSON:
		name := opts.CommandLine
		if len(opts.Argv) > 0 {
			name = strings.Join(opts.Argv, " ")
		}
		return output.NewJSONLines(opts.Output, name), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, opts.Format)
	}
}

func sinkErr(sink filter.Sink) error {
	if s, ok := sink.(interface{ Err() error }); ok {
		return s.Err()
	}
	return nil
}
