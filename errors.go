package fleet

import (
	"errors"
	"fmt"
)

// Common errors returned by fleet operations
var (
	// ErrConfiguration indicates a service configuration could not be loaded or normalized
	ErrConfiguration = errors.New("fleet: invalid configuration")

	// ErrInvalidAction indicates an action other than start, stop or reload
	ErrInvalidAction = errors.New("fleet: invalid action")

	// ErrProcessControl indicates the process-control primitive reported a failure
	ErrProcessControl = errors.New("fleet: process control failed")

	// ErrFilesystem indicates a required directory could not be created or read
	ErrFilesystem = errors.New("fleet: filesystem")

	// ErrUnsupported indicates the operation is not available on this platform
	ErrUnsupported = errors.New("fleet: unsupported platform")
)

// OpError represents an error from a fleet operation
type OpError struct {
	// Op is the action that failed
	Op Action
	// Path is the file involved in the operation
	Path string
	// Err is the underlying error
	Err error
}

// Error returns a formatted error message
func (e *OpError) Error() string {
	return fmt.Sprintf("fleet %s %q: %v", e.Op.String(), e.Path, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *OpError) Unwrap() error {
	return e.Err
}

// MultiError collects the per-file failures of a PID-file reconciliation sweep,
// which visits every file before reporting
type MultiError struct {
	// Errors holds one entry per PID file that could not be stopped or removed
	Errors []error
}

// Error reports a single failure as is, or counts them and quotes the first
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}
	return fmt.Sprintf("%d PID files failed to reconcile, first: %v", len(m.Errors), m.Errors[0])
}

// Add records a failed PID file; nil is ignored
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// Unwrap lets errors.Is match a sentinel from any of the failed files
func (m *MultiError) Unwrap() []error {
	return m.Errors
}

// Err returns nil for a clean sweep, otherwise m
func (m *MultiError) Err() error {
	if len(m.Errors) == 0 {
		return nil
	}
	return m
}
