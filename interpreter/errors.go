package interpreter

import "errors"

// Sentinel errors for session lifecycle preconditions. Operations invoked
// before Start or after Stop are programming errors and fail fast.
var (
	ErrNotStarted     = errors.New("interpreter not started")
	ErrAlreadyStarted = errors.New("interpreter already started")
	ErrNilFactory     = errors.New("engine factory is nil")
)
