package filter

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dshills/runpane/internal/logging"
)

// DefaultID is the id of the filter used when none is requested.
const DefaultID = "default"

// Factory creates a LineFilter that does not come from a FilterSet, such
// as a scripted filter.
type Factory func(sink Sink, log *logging.Logger) (LineFilter, error)

// Info describes a registered filter.
type Info struct {
	ID     string
	Name   string
	Source string

	// Patterns is the number of compiled patterns, 0 for scripted filters.
	Patterns int

	// Dropped is the number of rules that failed to compile.
	Dropped int

	Scripted bool
}

type entry struct {
	info    Info
	set     *FilterSet
	def     *Definition
	factory Factory
}

// Registry maps filter ids to filters. A later registration with the same
// id replaces the earlier one.
type Registry struct {
	entries   map[string]*entry
	defaultID string
	compile   CompileOptions
	log       *logging.Logger
	mu        sync.RWMutex
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithCompileOptions sets the options used for definitions.
func WithCompileOptions(opts CompileOptions) RegistryOption {
	return func(r *Registry) {
		r.compile = opts
	}
}

// WithRegistryLogger sets the registry logger. It is also passed to
// compiled sets, engines and factories.
func WithRegistryLogger(l *logging.Logger) RegistryOption {
	return func(r *Registry) {
		r.log = logging.OrNull(l)
	}
}

// WithDefaultFilter sets the id New uses for an empty id.
func WithDefaultFilter(id string) RegistryOption {
	return func(r *Registry) {
		if id != "" {
			r.defaultID = id
		}
	}
}

// NewRegistry creates a registry holding the builtin filters.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		entries:   make(map[string]*entry),
		defaultID: DefaultID,
		log:       logging.NullLogger,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.compile.Logger == nil {
		r.compile.Logger = r.log
	}

	r.registerBuiltins()
	return r
}

func (r *Registry) registerBuiltins() {
	for _, def := range Builtins() {
		if _, err := r.RegisterDefinition(def, "builtin"); err != nil {
			r.log.Error("builtin filter %s: %v", def.ID, err)
		}
	}
}

// Reset removes every filter and registers the builtins again. The
// default id is kept.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.entries = make(map[string]*entry)
	r.mu.Unlock()

	r.registerBuiltins()
}

// RegisterDefinition compiles and registers a regex definition. source
// names where it came from.
func (r *Registry) RegisterDefinition(def Definition, source string) (*FilterSet, error) {
	set, err := CompileDefinition(def, r.compile)
	if err != nil {
		return nil, err
	}

	d := def
	r.put(&entry{info: setInfo(set, source), set: set, def: &d})
	return set, nil
}

// RegisterSet registers an already compiled set.
func (r *Registry) RegisterSet(set *FilterSet, source string) {
	r.put(&entry{info: setInfo(set, source), set: set})
}

// RegisterFactory registers a filter built by f.
func (r *Registry) RegisterFactory(def Definition, source string, f Factory) error {
	if err := def.Validate(); err != nil {
		return err
	}
	if f == nil {
		return fmt.Errorf("%w: filter %q has no factory", ErrInvalidDefinition, def.ID)
	}

	d := def
	r.put(&entry{
		info: Info{
			ID:       def.ID,
			Name:     def.DisplayName(),
			Source:   source,
			Scripted: true,
		},
		def:     &d,
		factory: f,
	})
	return nil
}

func setInfo(set *FilterSet, source string) Info {
	return Info{
		ID:       set.ID,
		Name:     set.Name,
		Source:   source,
		Patterns: len(set.patterns),
		Dropped:  len(set.dropped),
	}
}

func (r *Registry) put(e *entry) {
	r.mu.Lock()
	prev, replaced := r.entries[e.info.ID]
	r.entries[e.info.ID] = e
	r.mu.Unlock()

	if replaced {
		r.log.Debug("filter %s from %s replaces %s", e.info.ID, e.info.Source, prev.info.Source)
	}
}

// Unregister removes a filter.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[id]
	return ok
}

// Set returns the compiled set of a regex filter, or nil.
func (r *Registry) Set(id string) *FilterSet {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.entries[id]; ok {
		return e.set
	}
	return nil
}

// Definition returns the definition a filter was registered from.
func (r *Registry) Definition(id string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.entries[id]; ok && e.def != nil {
		return *e.def, true
	}
	return Definition{}, false
}

// Info returns the description of a filter.
func (r *Registry) Info(id string) (Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.entries[id]; ok {
		return e.info, true
	}
	return Info{}, false
}

// List returns all registered filters ordered by id.
func (r *Registry) List() []Info {
	r.mu.RLock()
	result := make([]Info, 0, len(r.entries))
	for _, e := range r.entries {
		result = append(result, e.info)
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result
}

// DefaultID returns the id used for an empty id.
func (r *Registry) DefaultID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultID
}

// SetDefault changes the default filter.
func (r *Registry) SetDefault(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultID = id
}

// New creates a filter writing to sink. An empty id selects the default
// filter.
func (r *Registry) New(id string, sink Sink, opts ...EngineOption) (LineFilter, error) {
	r.mu.RLock()
	if id == "" {
		id = r.defaultID
	}
	e, ok := r.entries[id]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFilter, id)
	}
	if e.factory != nil {
		return e.factory(sink, r.log)
	}

	opts = append([]EngineOption{WithEngineLogger(r.log)}, opts...)
	return NewEngine(e.set, sink, opts...), nil
}
