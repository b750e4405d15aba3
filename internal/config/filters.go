package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/pelletier/go-toml/v2"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/dshills/runpane/internal/config/loader"
	"github.com/dshills/runpane/internal/integration/filter"
	"github.com/dshills/runpane/internal/integration/filter/script"
	"github.com/dshills/runpane/internal/logging"
)

// FilterFile is the content of a filter file.
//
//	[[filters]]
//	id = "mytool"
//	name = "My tool"
//
//	[[filters.rules]]
//	pattern = '^(?<file>[^:]+):(?<line>\d+): error'
//	style = "output-error"
type FilterFile struct {
	Filters []filter.Definition `toml:"filters" yaml:"filters" json:"filters"`
}

// FilterLoader reads filter files into a filter.Registry.
type FilterLoader struct {
	fs       loader.FileSystem
	registry *filter.Registry
	script   script.Options
	log      *logging.Logger
}

// FilterLoaderOption configures a FilterLoader.
type FilterLoaderOption func(*FilterLoader)

// WithFilterFS sets the file system filter files and scripts are read from.
func WithFilterFS(fsys loader.FileSystem) FilterLoaderOption {
	return func(l *FilterLoader) {
		l.fs = fsys
	}
}

// WithScriptOptions sets the options scripted filters are created with.
func WithScriptOptions(opts script.Options) FilterLoaderOption {
	return func(l *FilterLoader) {
		l.script = opts
	}
}

// WithFilterLogger sets the loader logger.
func WithFilterLogger(log *logging.Logger) FilterLoaderOption {
	return func(l *FilterLoader) {
		l.log = logging.OrNull(log)
	}
}

// NewFilterLoader creates a loader registering into registry.
func NewFilterLoader(registry *filter.Registry, opts ...FilterLoaderOption) *FilterLoader {
	l := &FilterLoader{
		fs:       loader.DefaultFS(),
		registry: registry,
		log:      logging.NullLogger,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.script.Logger == nil {
		l.script.Logger = l.log
	}
	return l
}

// Files expands paths into the filter files they name, in load order.
// Directories contribute their .toml, .yaml, .yml and .json files sorted
// by name. Missing paths are skipped.
func (l *FilterLoader) Files(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := l.fs.Stat(p)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				l.log.Debug("filter path %s does not exist", p)
				continue
			}
			return nil, fmt.Errorf("filter path %s: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}

		entries, err := l.fs.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("filter path %s: %w", p, err)
		}
		var names []string
		for _, e := range entries {
			if !e.IsDir() && loader.FormatOf(e.Name()) != loader.FormatUnknown {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)
		for _, name := range names {
			files = append(files, filepath.Join(p, name))
		}
	}
	return files, nil
}

// Load registers the filters of every file under paths. A later filter
// with the same id replaces an earlier one. A bad file or definition is
// skipped; the returned error joins every problem found, and the loaded
// file list is returned regardless.
func (l *FilterLoader) Load(paths []string) ([]string, error) {
	files, err := l.Files(paths)
	if err != nil {
		return nil, err
	}

	var errs []error
	for _, path := range files {
		if err := l.LoadFile(path); err != nil {
			l.log.Warn("%v", err)
			errs = append(errs, err)
		}
	}
	return files, errors.Join(errs...)
}

// Reload resets the registry to its builtins and loads paths again.
func (l *FilterLoader) Reload(paths []string) ([]string, error) {
	l.registry.Reset()
	return l.Load(paths)
}

// LoadFile registers the filters of one file.
func (l *FilterLoader) LoadFile(path string) error {
	defs, err := ReadFilterFile(l.fs, path)
	if err != nil {
		return err
	}

	var errs []error
	for _, def := range defs {
		if err := l.register(path, def); err != nil {
			errs = append(errs, &FilterFileError{Path: path, Err: err})
		}
	}
	return errors.Join(errs...)
}

func (l *FilterLoader) register(path string, def filter.Definition) error {
	if def.Script == "" {
		set, err := l.registry.RegisterDefinition(def, path)
		if err != nil {
			return err
		}
		for _, pe := range set.Dropped() {
			l.log.Warn("%s: filter %s: %v", path, def.ID, pe)
		}
		return nil
	}

	if err := def.Validate(); err != nil {
		return err
	}
	scriptPath := def.Script
	if !filepath.IsAbs(scriptPath) {
		scriptPath = filepath.Join(filepath.Dir(path), scriptPath)
	}
	src, err := l.fs.ReadFile(scriptPath)
	if err != nil {
		return fmt.Errorf("filter %s: reading script: %w", def.ID, err)
	}
	prog, err := script.Compile(scriptPath, src)
	if err != nil {
		return fmt.Errorf("filter %s: %w", def.ID, err)
	}
	def.Script = scriptPath
	return l.registry.RegisterFactory(def, path, script.Factory(prog, l.script))
}

// ReadFilterFile decodes the definitions of a filter file without
// registering them.
func ReadFilterFile(fsys loader.FileSystem, path string) ([]filter.Definition, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &FilterFileError{Path: path, Err: err}
		}
		return nil, &FilterFileError{Path: path, Err: fmt.Errorf("reading: %w", err)}
	}

	var file FilterFile
	switch loader.FormatOf(path) {
	case loader.FormatTOML:
		err = toml.Unmarshal(data, &file)
	case loader.FormatYAML:
		err = yaml.Unmarshal(data, &file)
	case loader.FormatJSON:
		file, err = decodeJSONFilters(data)
	default:
		err = fmt.Errorf("unsupported file type %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, &FilterFileError{Path: path, Err: err}
	}
	return file.Filters, nil
}

func decodeJSONFilters(data []byte) (FilterFile, error) {
	var file FilterFile
	if !gjson.ValidBytes(data) {
		return file, errors.New("invalid JSON")
	}

	filters := gjson.GetBytes(data, "filters")
	if filters.Exists() && !filters.IsArray() {
		return file, errors.New("filters must be an array")
	}
	for _, f := range filters.Array() {
		def := filter.Definition{
			ID:     f.Get("id").String(),
			Name:   f.Get("name").String(),
			Script: f.Get("script").String(),
		}
		for _, r := range f.Get("rules").Array() {
			rd := filter.RuleDef{
				Pattern: r.Get("pattern").String(),
				Output:  r.Get("output").String(),
				Style:   r.Get("style").String(),
				Span:    int(r.Get("span").Int()),
			}
			for _, a := range r.Get("actions").Array() {
				rd.Actions = append(rd.Actions, filter.ActionDef{
					Type:   a.Get("type").String(),
					Target: a.Get("target").String(),
					Name:   a.Get("name").String(),
				})
			}
			def.Rules = append(def.Rules, rd)
		}
		file.Filters = append(file.Filters, def)
	}
	return file, nil
}
