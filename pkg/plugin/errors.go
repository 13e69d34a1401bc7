package plugin

import (
	"errors"
	"fmt"
)

// ErrInstanceNotFound is returned when no plugin instance exists for a
// (name, tenant) pair.
var ErrInstanceNotFound = errors.New("plugin instance not found")

// ErrInstanceExists is returned when creating an instance that already exists.
var ErrInstanceExists = errors.New("plugin instance already exists")

// AuthenticationError rejects a webhook delivery whose signature or origin
// could not be verified. No state is mutated before it is raised.
type AuthenticationError struct {
	Reason string
}

func (e *AuthenticationError) Error() string {
	return "webhook authentication failed: " + e.Reason
}

// IsAuthenticationError reports whether err is (or wraps) an AuthenticationError.
func IsAuthenticationError(err error) bool {
	var target *AuthenticationError

	return errors.As(err, &target)
}

// ExecutionError reports a failed interaction with the remote platform: a
// non-success HTTP status or an application-level error payload. It carries
// the upstream status and message verbatim for diagnostics.
type ExecutionError struct {
	Status  int
	Message string
}

func (e *ExecutionError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("plugin execution failed (status %d): %s", e.Status, e.Message)
	}

	return "plugin execution failed: " + e.Message
}

// IsExecutionError reports whether err is (or wraps) an ExecutionError.
func IsExecutionError(err error) bool {
	var target *ExecutionError

	return errors.As(err, &target)
}

// InternalError marks a programming defect, such as a handler producing
// output that violates its own declared schema. It is never a caller fault.
type InternalError struct {
	Message string
	Err     error
}

func (e *InternalError) Error() string {
	if e.Err != nil {
		return "internal error: " + e.Message + ": " + e.Err.Error()
	}

	return "internal error: " + e.Message
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

// IsInternalError reports whether err is (or wraps) an InternalError.
func IsInternalError(err error) bool {
	var target *InternalError

	return errors.As(err, &target)
}
