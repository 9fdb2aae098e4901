package errors

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrStoreUnavailable marks a lexical store outage. Callers must not
	// interpret it as "zero matches".
	ErrStoreUnavailable = errors.New("lexical store unavailable")
)
