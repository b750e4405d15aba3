package loader

import (
	"testing"
)

func envLoaderWith(vars ...string) *EnvLoader {
	l := NewEnvLoader(EnvPrefix)
	l.environ = func() []string { return vars }
	return l
}

func TestEnvLoader_Load(t *testing.T) {
	l := envLoaderWith(
		"RUNPANE_LOG_LEVEL=debug",
		"RUNPANE_SHELL=/bin/bash",
		"RUNPANE_FILTER=make",
		"RUNPANE_RUNNER_ABORT_SIGNAL=1",
		"HOME=/root",
	)
	config, err := l.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	tests := []struct {
		path string
		want any
	}{
		{"logging.level", "debug"},
		{"runner.shell", "/bin/bash"},
		{"filters.default", "make"},
		{"runner.abort_signal", "1"},
	}
	for _, tt := range tests {
		if val, ok := getByPath(config, tt.path); !ok || val != tt.want {
			t.Errorf("%s = %v (%T), want %v", tt.path, val, val, tt.want)
		}
	}
	if _, ok := config["home"]; ok {
		t.Error("unprefixed variables must be ignored")
	}
}

func TestEnvLoader_LoadJSON(t *testing.T) {
	l := envLoaderWith(`RUNPANE_FILTER_PATHS=["a.toml", "b.yaml"]`, `RUNPANE_RUNNER_SHELL_ARGS=[-c`)
	config, err := l.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	paths, _ := getByPath(config, "filters.paths")
	list, ok := paths.([]any)
	if !ok || len(list) != 2 || list[0] != "a.toml" || list[1] != "b.yaml" {
		t.Errorf("filters.paths = %#v", paths)
	}

	// Invalid JSON stays a string.
	if val, _ := getByPath(config, "runner.shell_args"); val != "[-c" {
		t.Errorf("runner.shell_args = %#v", val)
	}
}

func TestEnvLoader_envToPath(t *testing.T) {
	l := NewEnvLoader(EnvPrefix)

	tests := []struct {
		env  string
		want string
	}{
		{"RUNPANE_RUNNER_SHELL", "runner.shell"},
		{"RUNPANE_RUNNER_ABORT_SIGNAL", "runner.abort_signal"},
		{"RUNPANE_FILTERS_MATCH_TIMEOUT", "filters.match_timeout"},
		{"RUNPANE_VERBOSE", ""},
		{"RUNPANE_RUNNER_", ""},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			if got := l.envToPath(tt.env); got != tt.want {
				t.Errorf("envToPath(%q) = %q, want %q", tt.env, got, tt.want)
			}
		})
	}
}

func TestEnvLoader_AddRemoveMapping(t *testing.T) {
	l := envLoaderWith("RUNPANE_COLOR=never")

	l.AddMapping("RUNPANE_COLOR", "output.color")
	config, _ := l.Load()
	if val, _ := getByPath(config, "output.color"); val != "never" {
		t.Errorf("output.color = %v, want never", val)
	}

	l.RemoveMapping("RUNPANE_COLOR")
	config, _ = l.Load()
	if len(config) != 0 {
		t.Errorf("expected no values without a mapping, got %v", config)
	}
}

func TestEnvLoader_EmptyValue(t *testing.T) {
	l := envLoaderWith("RUNPANE_RUNNER_ENCODING=")
	config, _ := l.Load()
	if val, ok := getByPath(config, "runner.encoding"); !ok || val != "" {
		t.Errorf("runner.encoding = %#v, %v; want empty string", val, ok)
	}
}

func getByPath(data map[string]any, path string) (any, bool) {
	var current any = data
	for _, part := range splitPath(path) {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func splitPath(path string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			parts = append(parts, path[start:i])
			start = i + 1
		}
	}
	return append(parts, path[start:])
}
