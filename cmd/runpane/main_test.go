package main

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/dshills/runpane/internal/integration/process"
)

// runCLI runs runpane with an isolated settings file.
func runCLI(t *testing.T, settings string, args ...string) (int, string, string) {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	path := filepath.Join(dir, "runpane.toml")
	if settings != "" {
		if err := os.WriteFile(path, []byte(settings), 0o644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}

	var stdout, stderr bytes.Buffer
	full := append([]string{"--config", path, "--no-env"}, args...)
	code := execute(full, strings.NewReader(""), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestVersion(t *testing.T) {
	code, out, _ := runCLI(t, "", "version")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.HasPrefix(out, "runpane dev") {
		t.Errorf("unexpected version output %q", out)
	}
}

func TestFiltersList(t *testing.T) {
	code, out, stderr := runCLI(t, "", "filters", "list")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, stderr)
	}
	if !strings.Contains(out, "gcc") {
		t.Errorf("expected gcc in list, got:\n%s", out)
	}
	if !strings.Contains(out, "builtin") {
		t.Errorf("expected builtin source in list, got:\n%s", out)
	}
}

func TestFiltersShow(t *testing.T) {
	for _, format := range []string{"toml", "yaml", "json"} {
		t.Run(format, func(t *testing.T) {
			code, out, stderr := runCLI(t, "", "filters", "show", "gcc", "--format", format)
			if code != 0 {
				t.Fatalf("expected exit 0, got %d: %s", code, stderr)
			}
			if !strings.Contains(out, "gcc") || !strings.Contains(out, "pattern") {
				t.Errorf("unexpected definition output:\n%s", out)
			}
		})
	}

	code, _, stderr := runCLI(t, "", "filters", "show", "nope")
	if code != 1 || !strings.Contains(stderr, "unknown filter") {
		t.Errorf("expected unknown filter error, got %d %q", code, stderr)
	}
}

func TestCheck(t *testing.T) {
	code, out, _ := runCLI(t, "", "check")
	if code != 0 || !strings.Contains(out, "ok") {
		t.Errorf("expected clean check, got %d:\n%s", code, out)
	}

	code, out, _ = runCLI(t, "[runner]\nuse_shell = \"maybe\"\n", "check")
	if code != 1 {
		t.Errorf("expected exit 1, got %d:\n%s", code, out)
	}
	if !strings.Contains(out, "runner.use_shell") {
		t.Errorf("expected bad setting reported, got:\n%s", out)
	}
}

func TestRun_ExitCode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	code, out, stderr := runCLI(t, "", "run", "-f", "gcc", "--", "echo main.c:3:4: error: boom; exit 3")
	if code != 3 {
		t.Fatalf("expected exit 3, got %d: %s", code, stderr)
	}
	if !strings.Contains(out, "main.c:3:4: error: boom") {
		t.Errorf("expected command output, got:\n%s", out)
	}
	if !strings.Contains(out, "*** Exited with status 3 ***") {
		t.Errorf("expected exit message, got:\n%s", out)
	}
}

func TestRun_BadFlags(t *testing.T) {
	code, _, stderr := runCLI(t, "", "run", "--color", "sometimes", "--", "true")
	if code != 1 || !strings.Contains(stderr, "--color") {
		t.Errorf("expected --color error, got %d %q", code, stderr)
	}

	code, _, stderr = runCLI(t, "", "run", "-e", "NOVALUE", "--", "true")
	if code != 1 || !strings.Contains(stderr, "--env") {
		t.Errorf("expected --env error, got %d %q", code, stderr)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		status process.ExitStatus
		want   int
	}{
		{process.ExitStatus{Kind: process.ExitNormal, Code: 0}, 0},
		{process.ExitStatus{Kind: process.ExitNormal, Code: 2}, 2},
		{process.ExitStatus{Kind: process.ExitSignaled, Signal: 9}, 137},
		{process.ExitStatus{Kind: process.ExitAbnormal}, 1},
	}
	for _, tt := range tests {
		if got := exitCode(tt.status); got != tt.want {
			t.Errorf("exitCode(%v) = %d, want %d", tt.status, got, tt.want)
		}
	}
}

func TestParseEnv(t *testing.T) {
	env, err := parseEnv([]string{"A=1", "B=x=y", "C="})
	if err != nil {
		t.Fatalf("parseEnv failed: %v", err)
	}
	if env["A"] != "1" || env["B"] != "x=y" || env["C"] != "" {
		t.Errorf("unexpected env %v", env)
	}
}
