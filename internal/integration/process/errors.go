package process

import (
	"errors"
	"fmt"
	"strings"
)

// SpawnErrorKind distinguishes why a command could not be started.
type SpawnErrorKind int

const (
	// SpawnArgv means the argument vector could not be built.
	SpawnArgv SpawnErrorKind = iota
	// SpawnOS means the operating system refused to start the process.
	SpawnOS
)

// String returns a short name for the kind.
func (k SpawnErrorKind) String() string {
	switch k {
	case SpawnArgv:
		return "argv"
	case SpawnOS:
		return "os"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// SpawnError is returned synchronously when a command cannot be started.
type SpawnError struct {
	Kind SpawnErrorKind
	Argv []string
	Err  error
}

func (e *SpawnError) Error() string {
	if len(e.Argv) == 0 {
		return fmt.Sprintf("spawn (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("spawn %s (%s): %v", strings.Join(e.Argv, " "), e.Kind, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// IsSpawnKind reports whether err is a SpawnError of the given kind.
func IsSpawnKind(err error, kind SpawnErrorKind) bool {
	var se *SpawnError
	return errors.As(err, &se) && se.Kind == kind
}

// Sentinel errors.
var (
	// ErrEmptyCommand is returned when there is nothing to run.
	ErrEmptyCommand = errors.New("empty command")

	// ErrLoopClosed is returned when work is submitted to a closed loop.
	ErrLoopClosed = errors.New("loop is closed")
)
