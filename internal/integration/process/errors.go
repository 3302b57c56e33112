package process

import (
	"errors"
	"fmt"
)

// Sentinel errors for process package.
var (
	// ErrProcessNotStarted is returned when operations require a started process.
	ErrProcessNotStarted = errors.New("process not started")

	// ErrProcessAlreadyStarted is returned when trying to start an already running process.
	ErrProcessAlreadyStarted = errors.New("process already started")

	// ErrSupervisorShutdown is returned when the supervisor is shutting down.
	ErrSupervisorShutdown = errors.New("supervisor is shutting down")

	// ErrPathNotSet is returned when an executable or script path is empty.
	ErrPathNotSet = errors.New("path not set")

	// ErrPathNotFound is returned when a path does not resolve.
	ErrPathNotFound = errors.New("path not found")
)

// PathError reports a worker path that failed lazy validation.
type PathError struct {
	Field string // "executable" or "script"
	Path  string
	Err   error
}

func (e *PathError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s path: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("%s path %q: %v", e.Field, e.Path, e.Err)
}

func (e *PathError) Unwrap() error {
	return e.Err
}
