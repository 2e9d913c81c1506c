package scheduler

import "errors"

var (
	// ErrInvalidConfig is returned when scheduler timing settings fail validation.
	ErrInvalidConfig = errors.New("invalid scheduler config")

	// ErrSelfSignFailed is returned when self-signed issuance fails for a
	// local reason. This is the only error that stops the renewal loop.
	ErrSelfSignFailed = errors.New("self-signed issuance failed")

	// ErrCycleInProgress is returned when a forced renewal is requested while
	// a cycle for the same domain is already running.
	ErrCycleInProgress = errors.New("renewal cycle already in progress")
)
