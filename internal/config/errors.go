package config

import (
	"errors"
	"fmt"
)

// Errors returned by configuration operations.
var (
	// ErrSettingNotFound indicates the setting path doesn't exist.
	ErrSettingNotFound = errors.New("setting not found")

	// ErrInvalidPath indicates an invalid setting path format.
	ErrInvalidPath = errors.New("invalid setting path")
)

// TypeError indicates a setting holds a value of the wrong type.
type TypeError struct {
	Path     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *TypeError) Error() string {
	return fmt.Sprintf("type mismatch for %s: expected %s, got %s", e.Path, e.Expected, e.Actual)
}

// FilterFileError reports a filter file that could not be loaded.
type FilterFileError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *FilterFileError) Error() string {
	return fmt.Sprintf("filter file %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *FilterFileError) Unwrap() error {
	return e.Err
}
