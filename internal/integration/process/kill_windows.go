//go:build windows

package process

import (
	"os"
	"syscall"

	"golang.org/x/sys/windows"
)

// DefaultAbortSignal is ignored on Windows; Abort terminates the process.
const DefaultAbortSignal = syscall.SIGKILL

func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{CreationFlags: windows.CREATE_NEW_PROCESS_GROUP}
}

// killProcessTree terminates the child. Windows has no process group
// signal, so descendants that detached from the child are not reached.
func killProcessTree(p *os.Process, _ syscall.Signal) error {
	if p == nil {
		return nil
	}
	return p.Kill()
}

// ParseSignal accepts any name on Windows and returns DefaultAbortSignal.
func ParseSignal(string) (syscall.Signal, error) {
	return DefaultAbortSignal, nil
}
