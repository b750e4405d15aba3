package config

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/dshills/runpane/internal/config/loader"
	"github.com/dshills/runpane/internal/integration/filter"
)

const tomlFilters = `
[[filters]]
id = "lint"
name = "Lint"

[[filters.rules]]
pattern = '^W: (?<file>\S+):(?<line>\d+)'
style = "output-warning"

[[filters]]
id = "shared"

[[filters.rules]]
pattern = "shared"
style = "from-toml"
`

const yamlFilters = `
filters:
  - id: shared
    rules:
      - pattern: shared
        style: from-yaml
  - id: yamlonly
    rules:
      - pattern: "^boom"
        output: stderr
        style: output-error
`

const jsonFilters = `{
  "filters": [
    {
      "id": "jsondirs",
      "name": "JSON dirs",
      "rules": [
        {
          "pattern": "^cd (?<dir>\\S+)",
          "span": 1,
          "actions": [{"type": "push", "target": "directory", "name": "dir"}]
        },
        {"pattern": "^back", "actions": [{"type": "pop", "target": "directory"}]}
      ]
    }
  ]
}`

const scriptFilters = `
[[filters]]
id = "lua"
script = "scripts/consume.lua"
`

const consumeScript = `
function stdout_line(text)
  runpane.write_line("lua: " .. text, "lua")
  return true
end
`

func filterDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "10-a.toml"), tomlFilters)
	writeFile(t, filepath.Join(dir, "20-b.yaml"), yamlFilters)
	writeFile(t, filepath.Join(dir, "30-c.json"), jsonFilters)
	writeFile(t, filepath.Join(dir, "40-d.toml"), scriptFilters)
	writeFile(t, filepath.Join(dir, "scripts", "consume.lua"), consumeScript)
	writeFile(t, filepath.Join(dir, "README.txt"), "not a filter")
	return dir
}

func TestFilterLoader_Files(t *testing.T) {
	dir := filterDir(t)
	extra := filepath.Join(dir, "scripts", "consume.lua")

	l := NewFilterLoader(filter.NewRegistry())
	files, err := l.Files([]string{dir, filepath.Join(dir, "missing"), extra})
	if err != nil {
		t.Fatalf("Files failed: %v", err)
	}

	want := []string{
		filepath.Join(dir, "10-a.toml"),
		filepath.Join(dir, "20-b.yaml"),
		filepath.Join(dir, "30-c.json"),
		filepath.Join(dir, "40-d.toml"),
		extra,
	}
	if !reflect.DeepEqual(files, want) {
		t.Errorf("Files = %v, want %v", files, want)
	}
}

func TestFilterLoader_LoadAllFormats(t *testing.T) {
	dir := filterDir(t)
	reg := filter.NewRegistry()

	files, err := NewFilterLoader(reg).Load([]string{dir})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(files) != 4 {
		t.Errorf("expected 4 files, got %v", files)
	}

	for _, id := range []string{"lint", "shared", "yamlonly", "jsondirs", "lua"} {
		if !reg.Has(id) {
			t.Errorf("filter %s not registered", id)
		}
	}

	info, _ := reg.Info("shared")
	if info.Source != filepath.Join(dir, "20-b.yaml") {
		t.Errorf("later file should win, got source %s", info.Source)
	}

	def, _ := reg.Definition("jsondirs")
	if def.Name != "JSON dirs" || len(def.Rules) != 2 || def.Rules[0].Span != 1 {
		t.Fatalf("unexpected JSON definition %+v", def)
	}
	if a := def.Rules[0].Actions; len(a) != 1 || a[0].Type != "push" || a[0].Target != "directory" || a[0].Name != "dir" {
		t.Errorf("unexpected JSON actions %+v", a)
	}
	if def, _ := reg.Definition("yamlonly"); def.Rules[0].Output != "stderr" {
		t.Errorf("unexpected YAML output %q", def.Rules[0].Output)
	}

	info, _ = reg.Info("lua")
	if !info.Scripted {
		t.Error("expected lua filter to be scripted")
	}
	buf := filter.NewBuffer(10)
	f, err := reg.New("lua", buf)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if !f.StdoutLine("hello") {
		t.Error("script should consume the line")
	}
	if got := buf.Text(); got != "lua: hello" {
		t.Errorf("unexpected script output %q", got)
	}
}

func TestFilterLoader_LintAnnotates(t *testing.T) {
	reg := filter.NewRegistry()
	if _, err := NewFilterLoader(reg).Load([]string{filterDir(t)}); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	buf := filter.NewBuffer(10)
	f, err := reg.New("lint", buf, filter.WithExistsFunc(func(string) bool { return false }))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	f.CmdStart("/work")
	f.StdoutLine("W: main.c:12 unused")

	line := buf.Lines()[0]
	if line.Location == nil || line.Location.File != "main.c" || line.Location.Line != 11 {
		t.Errorf("unexpected location %+v", line.Location)
	}
	if line.Segments[0].Style != "output-warning" {
		t.Errorf("unexpected segments %+v", line.Segments)
	}
}

func TestFilterLoader_BadFilesAreSkipped(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.toml"), "[[filters]\nid = \n")
	writeFile(t, filepath.Join(dir, "b.yaml"), `
filters:
  - name: no id
  - id: both
    script: x.lua
    rules:
      - pattern: x
  - id: missing-script
    script: nowhere.lua
  - id: good
    rules:
      - pattern: "(unclosed"
      - pattern: fine
`)
	writeFile(t, filepath.Join(dir, "c.json"), `{"filters": {"id": "x"}}`)

	reg := filter.NewRegistry()
	files, err := NewFilterLoader(reg).Load([]string{dir})
	if err == nil {
		t.Fatal("expected errors")
	}
	if len(files) != 3 {
		t.Errorf("expected all files listed, got %v", files)
	}

	var ffe *FilterFileError
	if !errors.As(err, &ffe) {
		t.Errorf("expected FilterFileError, got %v", err)
	}
	if !errors.Is(err, filter.ErrInvalidDefinition) {
		t.Errorf("expected ErrInvalidDefinition among errors, got %v", err)
	}

	for _, id := range []string{"both", "missing-script"} {
		if reg.Has(id) {
			t.Errorf("filter %s should not be registered", id)
		}
	}
	info, ok := reg.Info("good")
	if !ok || info.Patterns != 1 || info.Dropped != 1 {
		t.Errorf("expected good filter with one dropped rule, got %+v", info)
	}
}

func TestFilterLoader_Reload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.toml")
	writeFile(t, path, "[[filters]]\nid = \"gcc\"\n[[filters.rules]]\npattern = \"x\"\n")

	reg := filter.NewRegistry()
	l := NewFilterLoader(reg)
	if _, err := l.Load([]string{dir}); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if info, _ := reg.Info("gcc"); info.Source != path {
		t.Fatalf("expected file to override builtin, got %q", info.Source)
	}

	writeFile(t, path, "[[filters]]\nid = \"other\"\n[[filters.rules]]\npattern = \"x\"\n")
	if _, err := l.Reload([]string{dir}); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if info, _ := reg.Info("gcc"); info.Source != "builtin" {
		t.Errorf("expected builtin restored, got %q", info.Source)
	}
	if !reg.Has("other") {
		t.Error("expected new filter loaded")
	}
}

func TestReadFilterFile_Unsupported(t *testing.T) {
	_, err := ReadFilterFile(loader.DefaultFS(), "/tmp/filters.ini")
	var ffe *FilterFileError
	if !errors.As(err, &ffe) {
		t.Errorf("expected FilterFileError, got %v", err)
	}
}
