package app

import (
	"errors"
	"fmt"
)

// Application errors.
var (
	// ErrClosed indicates the application was closed.
	ErrClosed = errors.New("application closed")

	// ErrUnknownFormat indicates an output format other than text or json.
	ErrUnknownFormat = errors.New("unknown output format")
)

// InitError reports a component that failed to start.
type InitError struct {
	Component string
	Err       error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("initializing %s: %v", e.Component, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}
