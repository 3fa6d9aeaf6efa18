package instmgr

import (
	"errors"
	"fmt"
)

// Common errors returned by supervisor operations
var (
	// ErrKeyNotFound indicates a configuration key is absent; callers apply
	// a documented default instead of propagating this upward
	ErrKeyNotFound = errors.New("instmgr: config key not found")

	// ErrDefaultPortsClaimed indicates another instance already resolved to
	// the builtin default port set during this run
	ErrDefaultPortsClaimed = errors.New("instmgr: default ports already claimed")

	// ErrPIDFileMalformed indicates a pid file that does not contain a single
	// integer process id
	ErrPIDFileMalformed = errors.New("instmgr: malformed pid file")
)

// InstanceError represents a failure in one instance's lifecycle pass.
// Failures are isolated per instance; an InstanceError never aborts the
// processing of other instances in the same run.
type InstanceError struct {
	// Instance is the instance name derived from the config file base name
	Instance string
	// Action is the lifecycle action that failed
	Action Action
	// Err is the underlying error
	Err error
}

// Error returns a formatted error message
func (e *InstanceError) Error() string {
	return fmt.Sprintf("instmgr %s %q: %v", e.Action.String(), e.Instance, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *InstanceError) Unwrap() error {
	return e.Err
}

// ConflictError reports that an instance resolved to the builtin default
// ports after another instance in the same run had already claimed them.
type ConflictError struct {
	// Instance is the rejected instance
	Instance string
	// ClaimedBy is the instance that claimed the default ports first
	ClaimedBy string
}

// Error returns a formatted error message
func (e *ConflictError) Error() string {
	return fmt.Sprintf("instmgr: instance %q cannot use the default ports, already claimed by %q", e.Instance, e.ClaimedBy)
}

// Unwrap returns ErrDefaultPortsClaimed so callers can test with errors.Is
func (e *ConflictError) Unwrap() error {
	return ErrDefaultPortsClaimed
}

// MultiError collects the per-instance failures of one run over the
// configuration directory, so one broken instance never hides the outcome
// of the others
type MultiError struct {
	// Errors holds one entry per failed instance, in discovery order
	Errors []error
}

// Error summarizes the collected failures
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}
	return fmt.Sprintf("%d instances failed", len(m.Errors))
}

// Unwrap exposes the collected failures to errors.Is and errors.As
func (m *MultiError) Unwrap() []error {
	return m.Errors
}

// Add records a per-instance failure; nil errors are ignored
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// Err returns nil when every instance succeeded, otherwise the MultiError
func (m *MultiError) Err() error {
	if len(m.Errors) == 0 {
		return nil
	}
	return m
}
