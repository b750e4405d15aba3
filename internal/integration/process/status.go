package process

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// ExitKind classifies how a child process ended.
type ExitKind int

const (
	// ExitNormal means the process exited with a status code.
	ExitNormal ExitKind = iota
	// ExitSignaled means the process was terminated by a signal.
	ExitSignaled
	// ExitAbnormal covers every other outcome, including failed waits.
	ExitAbnormal
)

// String returns a human-readable kind name.
func (k ExitKind) String() string {
	switch k {
	case ExitNormal:
		return "exited"
	case ExitSignaled:
		return "signaled"
	case ExitAbnormal:
		return "abnormal"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// ExitStatus describes how a child process ended.
type ExitStatus struct {
	Kind ExitKind

	// Code is the exit code for ExitNormal, -1 otherwise.
	Code int

	// Signal is the terminating signal for ExitSignaled.
	Signal syscall.Signal

	// CoreDumped is set when the signal produced a core dump.
	CoreDumped bool

	// Err holds a wait error that was not a plain non-zero exit.
	Err error
}

// Success reports whether the process exited with code 0.
func (s ExitStatus) Success() bool {
	return s.Kind == ExitNormal && s.Code == 0
}

// String returns a short description such as "exited 2" or "signaled hangup".
func (s ExitStatus) String() string {
	switch s.Kind {
	case ExitNormal:
		return fmt.Sprintf("exited %d", s.Code)
	case ExitSignaled:
		if s.CoreDumped {
			return fmt.Sprintf("signaled %v (core dumped)", s.Signal)
		}
		return fmt.Sprintf("signaled %v", s.Signal)
	default:
		if s.Err != nil {
			return fmt.Sprintf("abnormal: %v", s.Err)
		}
		return "abnormal"
	}
}

// exitStatusOf classifies the result of exec.Cmd.Wait.
func exitStatusOf(ps *os.ProcessState, waitErr error) ExitStatus {
	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		if ps == nil {
			return ExitStatus{Kind: ExitAbnormal, Code: -1, Err: waitErr}
		}
	} else {
		waitErr = nil
	}

	if ps == nil {
		return ExitStatus{Kind: ExitAbnormal, Code: -1}
	}

	ws, ok := ps.Sys().(syscall.WaitStatus)
	if !ok {
		return ExitStatus{Kind: ExitNormal, Code: ps.ExitCode(), Err: waitErr}
	}

	switch {
	case ws.Exited():
		return ExitStatus{Kind: ExitNormal, Code: ws.ExitStatus(), Err: waitErr}
	case ws.Signaled():
		return ExitStatus{
			Kind:       ExitSignaled,
			Code:       -1,
			Signal:     ws.Signal(),
			CoreDumped: ws.CoreDump(),
			Err:        waitErr,
		}
	default:
		return ExitStatus{Kind: ExitAbnormal, Code: -1, Err: waitErr}
	}
}
