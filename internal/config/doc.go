// Package config loads runpane settings and filter files.
//
// Settings come from three layers, later ones overriding earlier ones:
//
//	┌──────────────────────────────┐
//	│  3. RUNPANE_* variables      │  ← Highest priority
//	├──────────────────────────────┤
//	│  2. runpane.toml             │  ← ~/.config/runpane/runpane.toml
//	├──────────────────────────────┤
//	│  1. Built-in defaults        │  ← Lowest priority
//	└──────────────────────────────┘
//
// The merged map is decoded into a typed Config. Values of the wrong type
// keep their default and are reported by Config.Errors rather than failing
// the load.
//
// A settings file looks like:
//
//	[runner]
//	shell = "/bin/bash"
//	shell_args = ["-c"]
//	abort_signal = "TERM"
//
//	[filters]
//	paths = ["filters"]
//	default = "make"
//	match_timeout = "200ms"
//
//	[styles]
//	output-error = "red bold"
//
// Filter files found under filters.paths are TOML, YAML or JSON files with
// a top-level filters list; see LoadFilters.
//
// # Sub-packages
//
//   - loader: file parsing, environment variables and map merging
//   - watcher: change notification for filter files
package config
