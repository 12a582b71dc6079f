package engine

import (
	"errors"
	"fmt"
)

// ErrorClass represents the classification of an error for exit status and
// batch propagation decisions.
type ErrorClass string

const (
	// ErrorClassUsage indicates malformed or missing command-line arguments.
	// Raised before any item is processed.
	ErrorClassUsage ErrorClass = "usage"

	// ErrorClassPrecondition indicates the process cannot start a batch at all:
	// missing privilege, not a cluster host, or an unreadable cluster store.
	ErrorClassPrecondition ErrorClass = "precondition"

	// ErrorClassExecution indicates a dispatched command returned a
	// non-success status or could not be delivered to its target.
	ErrorClassExecution ErrorClass = "execution"

	// ErrorClassTimeout indicates a post-condition was not reached within a
	// bounded wait.
	ErrorClassTimeout ErrorClass = "timeout"
)

// Reserved process exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 64
)

// ErrItemsFailed is returned by Summary.Err when at least one item failed.
var ErrItemsFailed = errors.New("one or more items failed")

// UsageError reports a command-line argument that failed validation.
type UsageError struct {
	// Param is the schema name of the offending parameter, empty when the
	// failure is not tied to one parameter (e.g. too many arguments).
	Param string

	// Value is the raw token that was rejected, if any.
	Value string

	// Reason is a short description of what is wrong.
	Reason string
}

func (e *UsageError) Error() string {
	switch {
	case e.Param != "" && e.Value != "":
		return fmt.Sprintf("invalid value %q for %s: %s", e.Value, e.Param, e.Reason)
	case e.Param != "":
		return fmt.Sprintf("%s: %s", e.Param, e.Reason)
	default:
		return e.Reason
	}
}

// Class returns ErrorClassUsage.
func (e *UsageError) Class() ErrorClass { return ErrorClassUsage }

// PreconditionError reports an environment check that failed before a batch
// could start.
type PreconditionError struct {
	// Check names the failed precondition (e.g. "root", "cluster").
	Check string

	// Message is the human-readable explanation.
	Message string

	// Err is the underlying error, if any.
	Err error
}

func (e *PreconditionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("precondition %s failed: %s: %v", e.Check, e.Message, e.Err)
	}
	return fmt.Sprintf("precondition %s failed: %s", e.Check, e.Message)
}

// Unwrap returns the underlying error.
func (e *PreconditionError) Unwrap() error { return e.Err }

// Class returns ErrorClassPrecondition.
func (e *PreconditionError) Class() ErrorClass { return ErrorClassPrecondition }

// ExecutionFailure reports a command that ran (or tried to run) on a target
// and did not succeed.
type ExecutionFailure struct {
	// Command is the rendered command line.
	Command string

	// Target names where the command ran ("local" or a node address).
	Target string

	// ExitCode is the command's exit status, -1 if it never completed.
	ExitCode int

	// Stderr is the captured standard error, trimmed.
	Stderr string

	// Err is the underlying transport or process error.
	Err error
}

func (e *ExecutionFailure) Error() string {
	msg := fmt.Sprintf("%s on %s", e.Command, e.Target)
	if e.ExitCode >= 0 {
		msg = fmt.Sprintf("%s exited with code %d", msg, e.ExitCode)
	} else if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *ExecutionFailure) Unwrap() error { return e.Err }

// Class returns ErrorClassExecution.
func (e *ExecutionFailure) Class() ErrorClass { return ErrorClassExecution }

// TimeoutFailure reports a bounded wait that expired.
type TimeoutFailure struct {
	// Condition describes what was awaited.
	Condition string

	// Waited is how long the wait lasted.
	Waited string

	// Last is the last observed state, if any.
	Last string
}

func (e *TimeoutFailure) Error() string {
	if e.Last != "" {
		return fmt.Sprintf("timed out after %s waiting for %s (last state: %s)", e.Waited, e.Condition, e.Last)
	}
	return fmt.Sprintf("timed out after %s waiting for %s", e.Waited, e.Condition)
}

// Class returns ErrorClassTimeout.
func (e *TimeoutFailure) Class() ErrorClass { return ErrorClassTimeout }

// classified is implemented by every error type in this file.
type classified interface {
	error
	Class() ErrorClass
}

// ClassOf returns the class of the first classified error in err's chain.
func ClassOf(err error) (ErrorClass, bool) {
	var c classified
	if errors.As(err, &c) {
		return c.Class(), true
	}
	return "", false
}

// IsUsage returns true if err is or wraps a UsageError.
func IsUsage(err error) bool {
	var e *UsageError
	return errors.As(err, &e)
}

// IsPrecondition returns true if err is or wraps a PreconditionError.
func IsPrecondition(err error) bool {
	var e *PreconditionError
	return errors.As(err, &e)
}

// IsExecution returns true if err is or wraps an ExecutionFailure.
func IsExecution(err error) bool {
	var e *ExecutionFailure
	return errors.As(err, &e)
}

// IsTimeout returns true if err is or wraps a TimeoutFailure.
func IsTimeout(err error) bool {
	var e *TimeoutFailure
	return errors.As(err, &e)
}

// ExitCode maps an error returned by a command to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if IsUsage(err) {
		return ExitUsage
	}
	return ExitFailure
}
