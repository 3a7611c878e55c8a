package taskqueue

import "errors"

// Sentinel errors for queue lifecycle preconditions.
var (
	ErrAlreadyStarted = errors.New("task queue already started")
	ErrNotStarted     = errors.New("task queue not started")
)
