package command

import (
	"syscall"
	"testing"

	"github.com/dshills/runpane/internal/integration/process"
)

func TestExitMessage(t *testing.T) {
	tests := []struct {
		name string
		st   process.ExitStatus
		want string
		ok   bool
	}{
		{"done", process.ExitStatus{Kind: process.ExitNormal}, "*** Done ***", true},
		{"status", process.ExitStatus{Kind: process.ExitNormal, Code: 2}, "*** Exited with status 2 ***", false},
		{"shell signal", process.ExitStatus{Kind: process.ExitNormal, Code: 128 + int(syscall.SIGSEGV)}, "*** Aborted. Segmentation fault ***", false},
		{"shell hangup", process.ExitStatus{Kind: process.ExitNormal, Code: 129}, "*** Aborted ***", false},
		{"segv", process.ExitStatus{Kind: process.ExitSignaled, Signal: syscall.SIGSEGV}, "*** Aborted. Segmentation fault ***", false},
		{"killed", process.ExitStatus{Kind: process.ExitSignaled, Signal: syscall.SIGKILL}, "*** Aborted ***", false},
		{"core", process.ExitStatus{Kind: process.ExitSignaled, Signal: syscall.SIGSEGV, CoreDumped: true}, "*** Dumped core ***", false},
		{"abnormal", process.ExitStatus{Kind: process.ExitAbnormal}, "*** ??? ***", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExitMessage(tt.st)
			if got != tt.want || ok != tt.ok {
				t.Errorf("ExitMessage() = %q, %v; want %q, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestDisplayLine(t *testing.T) {
	if got := DisplayLine("make", "/src"); got != "[/src] make" {
		t.Errorf("unexpected display line %q", got)
	}
	if got := DisplayLine("make", ""); got != "make" {
		t.Errorf("unexpected display line %q", got)
	}
}
