package loader

import (
	"os"
	"strings"

	"github.com/tidwall/gjson"
)

// EnvPrefix is the prefix of runpane environment variables.
const EnvPrefix = "RUNPANE_"

// EnvLoader loads configuration from environment variables.
//
// Mapped variables go to their mapped path. Any other prefixed variable
// RUNPANE_SECTION_SOME_KEY goes to section.some_key. Values stay strings
// except JSON arrays and objects, which are decoded; typed conversion is
// left to the consumer of the map.
type EnvLoader struct {
	prefix  string            // Environment variable prefix (e.g., "RUNPANE_")
	mapping map[string]string // Env var -> config path
	environ func() []string
}

// NewEnvLoader creates a new environment variable loader.
// The prefix should include the trailing underscore (e.g., "RUNPANE_").
func NewEnvLoader(prefix string) *EnvLoader {
	return NewEnvLoaderWithMapping(prefix, defaultEnvMapping())
}

// NewEnvLoaderWithMapping creates a loader with custom environment variable mappings.
func NewEnvLoaderWithMapping(prefix string, mapping map[string]string) *EnvLoader {
	return &EnvLoader{
		prefix:  prefix,
		mapping: mapping,
		environ: os.Environ,
	}
}

// defaultEnvMapping returns the shorthand variables.
func defaultEnvMapping() map[string]string {
	return map[string]string{
		"RUNPANE_LOG_LEVEL":    "logging.level",
		"RUNPANE_SHELL":        "runner.shell",
		"RUNPANE_ENCODING":     "runner.encoding",
		"RUNPANE_FILTER":       "filters.default",
		"RUNPANE_FILTER_PATHS": "filters.paths",
	}
}

// Load reads environment variables and returns a configuration map.
// Empty values are kept; they are set, not unset.
func (l *EnvLoader) Load() (map[string]any, error) {
	config := make(map[string]any)

	for _, env := range l.environ() {
		name, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(name, l.prefix) {
			continue
		}

		path, mapped := l.mapping[name]
		if !mapped {
			path = l.envToPath(name)
		}
		if path == "" {
			continue
		}
		setByPath(config, path, parseValue(value))
	}

	return config, nil
}

// AddMapping adds a custom environment variable mapping.
func (l *EnvLoader) AddMapping(envVar, configPath string) {
	if l.mapping == nil {
		l.mapping = make(map[string]string)
	}
	l.mapping[envVar] = configPath
}

// RemoveMapping removes an environment variable mapping.
func (l *EnvLoader) RemoveMapping(envVar string) {
	delete(l.mapping, envVar)
}

// envToPath converts RUNPANE_RUNNER_ABORT_SIGNAL to runner.abort_signal.
// A variable with no key after the section yields "".
func (l *EnvLoader) envToPath(env string) string {
	name := strings.ToLower(strings.TrimPrefix(env, l.prefix))

	section, key, ok := strings.Cut(name, "_")
	if !ok || section == "" || key == "" {
		return ""
	}
	return section + "." + key
}

// parseValue decodes JSON arrays and objects and keeps everything else as
// a string.
func parseValue(s string) any {
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{") {
		if gjson.Valid(trimmed) {
			return gjson.Parse(trimmed).Value()
		}
	}
	return s
}

// setByPath sets a value in a nested map using a dot-separated path.
func setByPath(data map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	current := data

	for i := 0; i < len(parts)-1; i++ {
		part := parts[i]
		if next, ok := current[part].(map[string]any); ok {
			current = next
		} else {
			next := make(map[string]any)
			current[part] = next
			current = next
		}
	}

	current[parts[len(parts)-1]] = value
}
