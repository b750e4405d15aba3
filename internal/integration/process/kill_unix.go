//go:build unix

package process

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

// DefaultAbortSignal is sent to the process group on Abort.
const DefaultAbortSignal = unix.SIGHUP

// sysProcAttr puts the child in its own process group so that Abort reaches
// every descendant of a shell-wrapped command.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

// killProcessTree signals the process group led by p.
func killProcessTree(p *os.Process, sig syscall.Signal) error {
	if p == nil {
		return nil
	}
	if sig == 0 {
		sig = DefaultAbortSignal
	}

	err := unix.Kill(-p.Pid, sig)
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}

// ParseSignal converts a signal name such as "SIGTERM", "term" or "9".
func ParseSignal(name string) (syscall.Signal, error) {
	if name == "" {
		return DefaultAbortSignal, nil
	}

	if n, err := strconv.Atoi(name); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("invalid signal number %d", n)
		}
		return syscall.Signal(n), nil
	}

	upper := strings.ToUpper(name)
	if !strings.HasPrefix(upper, "SIG") {
		upper = "SIG" + upper
	}
	if sig := unix.SignalNum(upper); sig != 0 {
		return sig, nil
	}
	return 0, fmt.Errorf("unknown signal %q", name)
}
