package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dshills/runpane/internal/config/loader"
	"github.com/dshills/runpane/internal/integration/command"
	"github.com/dshills/runpane/internal/integration/filter"
	"github.com/dshills/runpane/internal/integration/process"
	"github.com/dshills/runpane/internal/logging"
	"github.com/dshills/runpane/internal/output"
)

// FileName is the settings file looked up in the user config directory.
const FileName = "runpane.toml"

// includeDepth limits nested @include directives in the settings file.
const includeDepth = 8

// Config holds the decoded runpane settings.
type Config struct {
	Runner  RunnerConfig
	Filters FiltersConfig
	Logging LoggingConfig

	// Styles maps style names to style specs such as "red bold". They are
	// merged over output.DefaultStyleSpecs.
	Styles map[string]string

	// Source is the settings file that was read, or "" when none was.
	Source string

	errors map[string]error
}

// RunnerConfig is the [runner] section.
type RunnerConfig struct {
	Shell       string
	ShellArgs   []string
	UseShell    bool
	Encoding    string
	AbortSignal string
	StripCR     bool
}

// FiltersConfig is the [filters] section.
type FiltersConfig struct {
	// Paths are filter files or directories of filter files. Relative
	// paths are resolved against the settings file directory.
	Paths []string

	// Default is the filter used when a run names none.
	Default string

	// MatchTimeout bounds a single pattern evaluation. Zero means none.
	MatchTimeout time.Duration

	// Watch reloads filter files when they change.
	Watch bool
}

// LoggingConfig is the [logging] section.
type LoggingConfig struct {
	Level string
}

// Default returns the built-in settings.
func Default() *Config {
	c := &Config{}
	c.decode(defaultValues())
	return c
}

// defaultValues returns the default configuration values.
func defaultValues() map[string]any {
	return map[string]any{
		"runner": map[string]any{
			"shell":        "/bin/sh",
			"shell_args":   []any{"-c"},
			"use_shell":    true,
			"encoding":     process.DefaultEncoding,
			"abort_signal": "",
			"strip_cr":     false,
		},
		"filters": map[string]any{
			"paths":         []any{},
			"default":       filter.DefaultID,
			"match_timeout": "",
			"watch":         false,
		},
		"logging": map[string]any{
			"level": "warn",
		},
		"styles": map[string]any{},
	}
}

// Options configures Load.
type Options struct {
	// Path is the settings file. Empty means DefaultPath. A missing file
	// is not an error.
	Path string

	// FS reads the settings file. Defaults to the OS file system.
	FS loader.FileSystem

	// Env overrides settings from the environment. Defaults to
	// loader.NewEnvLoader(loader.EnvPrefix); set NoEnv to skip it.
	Env   loader.Loader
	NoEnv bool
}

// Load reads the defaults, the settings file and the environment, in that
// order, and decodes the result. Only read and parse failures are errors;
// bad values are recorded in Errors.
func Load(opts Options) (*Config, error) {
	path := opts.Path
	if path == "" {
		path = DefaultPath()
	}
	fsys := opts.FS
	if fsys == nil {
		fsys = loader.DefaultFS()
	}

	values := defaultValues()

	file, err := loader.NewFileLoaderWithFS(fsys, path).LoadWithIncludes(path, includeDepth)
	if err != nil {
		return nil, err
	}
	source := ""
	if file != nil {
		source = path
		values = loader.DeepMerge(values, file)
	}

	if !opts.NoEnv {
		env := opts.Env
		if env == nil {
			env = loader.NewEnvLoader(loader.EnvPrefix)
		}
		vars, err := env.Load()
		if err != nil {
			return nil, fmt.Errorf("loading environment: %w", err)
		}
		values = loader.DeepMerge(values, vars)
	}

	c := &Config{Source: source}
	c.decode(values)

	base := filepath.Dir(path)
	for i, p := range c.Filters.Paths {
		if !filepath.IsAbs(p) {
			c.Filters.Paths[i] = filepath.Join(base, p)
		}
	}
	return c, nil
}

// DefaultPath returns the settings file in the user config directory.
func DefaultPath() string {
	return filepath.Join(UserConfigDir(), FileName)
}

// UserConfigDir returns the runpane directory under $XDG_CONFIG_HOME or
// ~/.config.
func UserConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "runpane")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "runpane")
}

func (c *Config) decode(values map[string]any) {
	d := &decoder{values: values}

	c.Runner = RunnerConfig{
		Shell:       d.stringOr("runner.shell", "/bin/sh"),
		ShellArgs:   d.stringSliceOr("runner.shell_args", []string{"-c"}),
		UseShell:    d.boolOr("runner.use_shell", true),
		Encoding:    d.stringOr("runner.encoding", process.DefaultEncoding),
		AbortSignal: d.stringOr("runner.abort_signal", ""),
		StripCR:     d.boolOr("runner.strip_cr", false),
	}
	c.Filters = FiltersConfig{
		Paths:        d.stringSliceOr("filters.paths", nil),
		Default:      d.stringOr("filters.default", filter.DefaultID),
		MatchTimeout: d.durationOr("filters.match_timeout", 0),
		Watch:        d.boolOr("filters.watch", false),
	}
	c.Logging = LoggingConfig{
		Level: d.stringOr("logging.level", "warn"),
	}
	c.Styles = d.stringMap("styles")

	if _, ok := logging.ParseLevel(c.Logging.Level); !ok {
		d.record("logging.level", fmt.Errorf("unknown level %q", c.Logging.Level))
	}

	c.errors = d.errors
}

// Errors returns the settings that had unusable values, keyed by path.
// Those settings hold their defaults.
func (c *Config) Errors() map[string]error {
	if c.errors == nil {
		return nil
	}
	result := make(map[string]error, len(c.errors))
	for k, v := range c.errors {
		result[k] = v
	}
	return result
}

// ErrorPaths returns the keys of Errors in order.
func (c *Config) ErrorPaths() []string {
	paths := make([]string, 0, len(c.errors))
	for p := range c.errors {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// LogLevel returns the configured level, or warn when it is unknown.
func (c *Config) LogLevel() logging.Level {
	if level, ok := logging.ParseLevel(c.Logging.Level); ok {
		return level
	}
	return logging.LevelWarn
}

// CommandConfig converts the [runner] section for command.NewExecutor.
func (c *Config) CommandConfig() (command.Config, error) {
	cfg := command.DefaultConfig()
	cfg.Shell = c.Runner.Shell
	cfg.ShellArgs = append([]string(nil), c.Runner.ShellArgs...)
	cfg.UseShell = c.Runner.UseShell
	cfg.Encoding = c.Runner.Encoding
	cfg.StripCR = c.Runner.StripCR

	sig, err := process.ParseSignal(c.Runner.AbortSignal)
	if err != nil {
		return cfg, fmt.Errorf("runner.abort_signal: %w", err)
	}
	cfg.AbortSignal = sig
	return cfg, nil
}

// StyleSpecs returns output.DefaultStyleSpecs with Styles merged over it.
func (c *Config) StyleSpecs() map[string]string {
	specs := output.DefaultStyleSpecs()
	for name, spec := range c.Styles {
		specs[name] = spec
	}
	return specs
}

// CompileOptions returns the pattern compile options for filter files.
func (c *Config) CompileOptions(log *logging.Logger) filter.CompileOptions {
	return filter.CompileOptions{
		MatchTimeout: c.Filters.MatchTimeout,
		Logger:       log,
	}
}
