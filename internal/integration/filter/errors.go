package filter

import "errors"

// Sentinel errors.
var (
	// ErrEmptyPattern is returned for a rule without a regular expression.
	ErrEmptyPattern = errors.New("empty pattern")

	// ErrUnknownFilter is returned when a filter id is not registered.
	ErrUnknownFilter = errors.New("unknown filter")

	// ErrInvalidDefinition is returned for a filter definition that cannot
	// be installed.
	ErrInvalidDefinition = errors.New("invalid filter definition")
)
