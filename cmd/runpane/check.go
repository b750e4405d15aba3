package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dshills/runpane/internal/config"
	"github.com/dshills/runpane/internal/integration/filter"
)

func newCheckCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate settings and filter files",
		Long: `Load the settings file and every filter file and report problems:
settings with the wrong type, filter files that do not parse, and
patterns that do not compile. Exits with status 1 when anything is wrong.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			application, err := startApp(cmd, cfg, noWatch())
			if err != nil {
				return err
			}
			defer application.Close()

			problems := report(cmd.OutOrStdout(), cfg, application.FilterFiles(), application.FilterError(), application.Filters())
			if problems > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%d problem(s) found\n", problems)
				return &exitError{code: 1}
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}

func report(w io.Writer, cfg *config.Config, files []string, filterErr error, registry *filter.Registry) int {
	problems := 0

	if cfg.Source != "" {
		fmt.Fprintf(w, "settings: %s\n", cfg.Source)
	} else {
		fmt.Fprintln(w, "settings: defaults")
	}
	errs := cfg.Errors()
	for _, path := range cfg.ErrorPaths() {
		fmt.Fprintf(w, "  %v\n", errs[path])
		problems++
	}
	if _, err := cfg.CommandConfig(); err != nil {
		fmt.Fprintf(w, "  %v\n", err)
		problems++
	}

	for _, f := range files {
		fmt.Fprintf(w, "filters: %s\n", f)
	}
	problems += countJoined(w, filterErr)

	for _, info := range registry.List() {
		set := registry.Set(info.ID)
		if set == nil {
			continue
		}
		for _, pe := range set.Dropped() {
			fmt.Fprintf(w, "  %s: %v\n", info.ID, pe)
			problems++
		}
	}
	return problems
}

// countJoined prints each error joined into err and returns how many there
// were.
func countJoined(w io.Writer, err error) int {
	if err == nil {
		return 0
	}
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		n := 0
		for _, e := range joined.Unwrap() {
			n += countJoined(w, e)
		}
		return n
	}
	fmt.Fprintf(w, "  %v\n", err)
	return 1
}
