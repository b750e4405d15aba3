package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/dshills/runpane/internal/app"
	"github.com/dshills/runpane/internal/config"
	"github.com/dshills/runpane/internal/integration/filter"
)

func newFiltersCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filters",
		Short: "List and inspect output filters",
	}
	cmd.AddCommand(newFiltersListCmd(g), newFiltersShowCmd(g))
	return cmd
}

func newFiltersListCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the available filters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, err := g.newApp(cmd, noWatch())
			if err != nil {
				return err
			}
			defer application.Close()

			registry := application.Filters()
			return writeFilterList(cmd.OutOrStdout(), registry.List(), registry.DefaultID())
		},
	}
}

func writeFilterList(w io.Writer, infos []filter.Info, defaultID string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tKIND\tSOURCE")
	for _, info := range infos {
		id := info.ID
		if id == defaultID {
			id += "*"
		}
		kind := fmt.Sprintf("%d patterns", info.Patterns)
		if info.Scripted {
			kind = "script"
		} else if info.Dropped > 0 {
			kind += fmt.Sprintf(", %d dropped", info.Dropped)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", id, info.Name, kind, info.Source)
	}
	return tw.Flush()
}

func newFiltersShowCmd(g *globalFlags) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Print the definition of a filter",
		Long: `Print the definition of a filter in filter-file form. The output can be
saved to a filter file and edited to override the filter.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := g.newApp(cmd, noWatch())
			if err != nil {
				return err
			}
			defer application.Close()

			def, ok := application.Filters().Definition(args[0])
			if !ok {
				return fmt.Errorf("unknown filter %q", args[0])
			}
			return writeDefinition(cmd.OutOrStdout(), format, def)
		},
	}
	cmd.Flags().StringVar(&format, "format", "toml", "output format: toml, yaml or json")
	return cmd
}

func writeDefinition(w io.Writer, format string, def filter.Definition) error {
	file := config.FilterFile{Filters: []filter.Definition{def}}

	var data []byte
	var err error
	switch strings.ToLower(format) {
	case "toml":
		data, err = toml.Marshal(file)
	case "yaml", "yml":
		data, err = yaml.Marshal(file)
	case "json":
		data, err = json.Marshal(file)
		if err == nil {
			data = pretty.Pretty(data)
			if isTerminal(w) {
				data = pretty.Color(data, nil)
			}
		}
	default:
		return fmt.Errorf("unknown format %q (want toml, yaml or json)", format)
	}
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// noWatch returns app options for commands that never run jobs.
func noWatch() app.Options {
	off := false
	return app.Options{Watch: &off}
}
