//go:build unix

package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tidwall/gjson"

	"github.com/dshills/runpane/internal/config"
	"github.com/dshills/runpane/internal/integration/process"
)

func newTestApp(t *testing.T, cfg *config.Config) *Application {
	t.Helper()
	if cfg == nil {
		cfg = config.Default()
	}
	app, err := New(cfg, Options{LogOutput: io.Discard})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(app.Close)
	return app
}

func noColor() *bool {
	off := false
	return &off
}

func TestApplication_RunText(t *testing.T) {
	app := newTestApp(t, nil)
	dir := t.TempDir()

	var out bytes.Buffer
	status, err := app.Run(context.Background(), RunOptions{
		CommandLine: "echo 'main.c:3:4: error: bad'; exit 1",
		Dir:         dir,
		Filter:      "gcc",
		Output:      &out,
		Color:       noColor(),
		Locations:   true,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if status.Kind != process.ExitNormal || status.Code != 1 {
		t.Errorf("unexpected status %v", status)
	}

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %q", lines)
	}
	if !strings.HasPrefix(lines[0], "["+dir+"] echo") {
		t.Errorf("unexpected display line %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "main.c:3:4: error: bad") || !strings.HasSuffix(lines[1], "(main.c:3:4)") {
		t.Errorf("unexpected annotated line %q", lines[1])
	}
	if lines[2] != "*** Exited with status 1 ***" {
		t.Errorf("unexpected exit line %q", lines[2])
	}
}

func TestApplication_RunJSON(t *testing.T) {
	app := newTestApp(t, nil)

	var out bytes.Buffer
	_, err := app.Run(context.Background(), RunOptions{
		Argv:   []string{"sh", "-c", "echo 'x.go:7: oops'"},
		Dir:    t.TempDir(),
		Filter: "go",
		Output: &out,
		Format: FormatJSON,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	var found bool
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if !gjson.Valid(line) {
			t.Fatalf("invalid JSON line %q", line)
		}
		if gjson.Get(line, "job").String() != "sh -c echo 'x.go:7: oops'" {
			t.Errorf("unexpected job in %s", line)
		}
		if gjson.Get(line, "text").String() == "x.go:7: oops" {
			found = true
			if f := gjson.Get(line, "location.file").String(); f != "x.go" {
				t.Errorf("unexpected location file %q", f)
			}
			if l := gjson.Get(line, "location.line").Int(); l != 6 {
				t.Errorf("unexpected location line %d", l)
			}
		}
	}
	if !found {
		t.Errorf("annotated line missing from %s", out.String())
	}
}

func TestApplication_RunCancelled(t *testing.T) {
	app := newTestApp(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	var out bytes.Buffer
	start := time.Now()
	status, err := app.Run(ctx, RunOptions{
		CommandLine: "sleep 30",
		Dir:         t.TempDir(),
		Output:      &out,
		Color:       noColor(),
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if time.Since(start) > 10*time.Second {
		t.Error("cancel did not abort the command")
	}
	if status.Success() {
		t.Errorf("aborted command should not succeed: %v", status)
	}
	if !strings.Contains(out.String(), "*** Aborted ***") {
		t.Errorf("expected abort message, got %q", out.String())
	}
	if app.Jobs().Running() {
		t.Error("expected no running jobs")
	}
}

func TestApplication_SpawnError(t *testing.T) {
	cfg := config.Default()
	cfg.Runner.UseShell = false
	app := newTestApp(t, cfg)

	var out bytes.Buffer
	_, err := app.Run(context.Background(), RunOptions{
		CommandLine: "echo 'unterminated",
		Dir:         t.TempDir(),
		Output:      &out,
		Color:       noColor(),
	})
	if !process.IsSpawnKind(err, process.SpawnArgv) {
		t.Errorf("expected argv spawn error, got %v", err)
	}
}

func TestApplication_UnknownFormat(t *testing.T) {
	app := newTestApp(t, nil)
	_, err := app.Run(context.Background(), RunOptions{CommandLine: "true", Format: "xml", Output: io.Discard})
	if !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("expected ErrUnknownFormat, got %v", err)
	}
}

func TestApplication_FilterFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mine.toml")
	write := func(id string) {
		content := "[[filters]]\nid = \"" + id + "\"\n[[filters.rules]]\npattern = \"^!\"\nstyle = \"output-error\"\n"
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("first")

	cfg := config.Default()
	cfg.Filters.Paths = []string{dir}
	cfg.Filters.Default = "first"
	app := newTestApp(t, cfg)

	if app.FilterError() != nil {
		t.Fatalf("unexpected filter error %v", app.FilterError())
	}
	if files := app.FilterFiles(); len(files) != 1 || files[0] != path {
		t.Errorf("unexpected filter files %v", files)
	}
	if app.Filters().DefaultID() != "first" {
		t.Errorf("unexpected default %q", app.Filters().DefaultID())
	}

	write("second")
	if err := app.ReloadFilters(); err != nil {
		t.Fatalf("ReloadFilters failed: %v", err)
	}
	if app.Filters().Has("first") || !app.Filters().Has("second") {
		t.Error("reload should replace the file filters")
	}
}

func TestApplication_MissingDefaultFilter(t *testing.T) {
	cfg := config.Default()
	cfg.Filters.Default = "nope"
	app := newTestApp(t, cfg)

	if got := app.Filters().DefaultID(); got != "default" {
		t.Errorf("expected fallback to the builtin default, got %q", got)
	}
}

func TestApplication_WatchReloads(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Filters.Paths = []string{dir}
	watch := true

	app, err := New(cfg, Options{LogOutput: io.Discard, Watch: &watch})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer app.Close()

	content := "[[filters]]\nid = \"watched\"\n[[filters.rules]]\npattern = \"x\"\n"
	if err := os.WriteFile(filepath.Join(dir, "w.toml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for !app.Filters().Has("watched") && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if !app.Filters().Has("watched") {
		t.Error("new filter file was not loaded")
	}
}

func TestApplication_CloseIdempotent(t *testing.T) {
	app, err := New(config.Default(), Options{LogOutput: io.Discard})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	app.Close()
	app.Close()

	if err := app.ReloadFilters(); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after Close, got %v", err)
	}
}
