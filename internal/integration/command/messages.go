package command

import (
	"fmt"
	"syscall"

	"github.com/dshills/runpane/internal/integration/process"
)

// ExitMessage returns the line written when nothing else handled a
// command's exit, and whether it reports success.
func ExitMessage(st process.ExitStatus) (string, bool) {
	switch {
	case st.Kind == process.ExitNormal && st.Code == 0:
		return "*** Done ***", true
	case st.Kind == process.ExitNormal && st.Code > 128:
		// Shells report a signaled child as 128+signal.
		return signalMessage(syscall.Signal(st.Code - 128)), false
	case st.Kind == process.ExitNormal:
		return fmt.Sprintf("*** Exited with status %d ***", st.Code), false
	case st.CoreDumped:
		return "*** Dumped core ***", false
	case st.Kind == process.ExitSignaled:
		return signalMessage(st.Signal), false
	default:
		return "*** ??? ***", false
	}
}

func signalMessage(sig syscall.Signal) string {
	if sig == syscall.SIGSEGV {
		return "*** Aborted. Segmentation fault ***"
	}
	return "*** Aborted ***"
}

// DisplayLine returns the line written before a command starts.
func DisplayLine(command, dir string) string {
	if dir == "" {
		return command
	}
	return fmt.Sprintf("[%s] %s", dir, command)
}
