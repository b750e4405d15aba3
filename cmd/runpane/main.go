// Package main is the entry point for runpane.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/runpane/internal/app"
	"github.com/dshills/runpane/internal/config"
	"github.com/dshills/runpane/internal/logging"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// exitError carries the exit code of a finished command through cobra.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func main() {
	os.Exit(execute(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func execute(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetIn(stdin)
	root.SetArgs(args)

	err := root.Execute()
	var ee *exitError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &ee):
		return ee.code
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
}

// globalFlags are shared by every command.
type globalFlags struct {
	configPath string
	logLevel   string
	noEnv      bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var g globalFlags

	root := &cobra.Command{
		Use:   "runpane",
		Short: "Run commands and annotate their output",
		Long: `runpane runs a command, splits its output into lines and passes every
line through an output filter. Filters style diagnostics and attach the
file and line they refer to.

Settings are read from ~/.config/runpane/runpane.toml and RUNPANE_*
environment variables. Filter files named by filters.paths add to and
replace the builtin filters.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "settings file (default "+config.DefaultPath()+")")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn or error")
	root.PersistentFlags().BoolVar(&g.noEnv, "no-env", false, "ignore RUNPANE_* environment variables")

	root.AddCommand(
		newRunCmd(&g),
		newFiltersCmd(&g),
		newCheckCmd(&g),
		newVersionCmd(),
	)
	return root
}

func (g *globalFlags) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.Options{Path: g.configPath, NoEnv: g.noEnv})
	if err != nil {
		return nil, err
	}
	if g.logLevel != "" {
		if _, ok := logging.ParseLevel(g.logLevel); !ok {
			return nil, fmt.Errorf("unknown log level %q", g.logLevel)
		}
		cfg.Logging.Level = g.logLevel
	}
	return cfg, nil
}

func (g *globalFlags) newApp(cmd *cobra.Command, opts app.Options) (*app.Application, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}
	return startApp(cmd, cfg, opts)
}

func startApp(cmd *cobra.Command, cfg *config.Config, opts app.Options) (*app.Application, error) {
	if opts.LogOutput == nil {
		opts.LogOutput = cmd.ErrOrStderr()
	}
	return app.New(cfg, opts)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "runpane %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
