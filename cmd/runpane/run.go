package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/runpane/internal/app"
	"github.com/dshills/runpane/internal/integration/process"
)

type runFlags struct {
	filter     string
	dir        string
	json       bool
	color      string
	locations  bool
	noShell    bool
	activeFile string
	env        []string
	watch      bool
}

func newRunCmd(g *globalFlags) *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run [flags] -- command [args...]",
		Short: "Run a command through an output filter",
		Long: `Run a command and print its output annotated by a filter.

The arguments are joined into one command line and run through the
configured shell. With --no-shell they are used as the argv directly.
The exit code of runpane is the exit code of the command; a command
killed by a signal exits with 128 plus the signal number.

Examples:
  runpane run -f make -- make -j8
  runpane run -f go --json -- go vet ./...
  runpane run --no-shell -- ls -l "a file"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd, g, &f, args)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.filter, "filter", "f", "", "output filter id (default from settings)")
	flags.StringVarP(&f.dir, "dir", "C", "", "working directory (default current directory)")
	flags.BoolVar(&f.json, "json", false, "write JSON lines instead of text")
	flags.StringVar(&f.color, "color", "auto", "styled output: auto, always or never")
	flags.BoolVar(&f.locations, "locations", false, "append resolved locations to annotated lines")
	flags.BoolVar(&f.noShell, "no-shell", false, "run the arguments as argv without a shell")
	flags.StringVar(&f.activeFile, "file", "", "file that diagnostics without a file name refer to")
	flags.StringArrayVarP(&f.env, "env", "e", nil, "add KEY=VALUE to the command environment")
	flags.BoolVar(&f.watch, "watch", false, "reload filter files when they change")
	return cmd
}

func runCommand(cmd *cobra.Command, g *globalFlags, f *runFlags, args []string) error {
	color, err := parseColor(f.color)
	if err != nil {
		return err
	}
	env, err := parseEnv(f.env)
	if err != nil {
		return err
	}
	dir := f.dir
	if dir == "" {
		if dir, err = os.Getwd(); err != nil {
			return err
		}
	}

	opts := app.Options{}
	if cmd.Flags().Changed("watch") {
		opts.Watch = &f.watch
	}
	application, err := g.newApp(cmd, opts)
	if err != nil {
		return err
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run := app.RunOptions{
		Dir:        dir,
		Env:        env,
		Filter:     f.filter,
		ActiveFile: f.activeFile,
		Input:      cmd.InOrStdin(),
		Output:     cmd.OutOrStdout(),
		Color:      color,
		Locations:  f.locations,
	}
	if f.json {
		run.Format = app.FormatJSON
	}
	if f.noShell {
		run.Argv = args
	} else {
		run.CommandLine = strings.Join(args, " ")
	}

	status, err := application.Run(ctx, run)
	if err != nil {
		return err
	}
	if code := exitCode(status); code != 0 {
		return &exitError{code: code}
	}
	return nil
}

// exitCode maps a command status to the exit code runpane exits with.
func exitCode(st process.ExitStatus) int {
	switch st.Kind {
	case process.ExitNormal:
		return st.Code
	case process.ExitSignaled:
		return 128 + int(st.Signal)
	default:
		return 1
	}
}

func parseColor(s string) (*bool, error) {
	on, off := true, false
	switch strings.ToLower(s) {
	case "", "auto":
		return nil, nil
	case "always", "on", "yes":
		return &on, nil
	case "never", "off", "no":
		return &off, nil
	default:
		return nil, fmt.Errorf("invalid --color %q (want auto, always or never)", s)
	}
}

func parseEnv(vars []string) (map[string]string, error) {
	if len(vars) == 0 {
		return nil, nil
	}
	env := make(map[string]string, len(vars))
	for _, kv := range vars {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --env %q (want KEY=VALUE)", kv)
		}
		env[k] = v
	}
	return env, nil
}
