package engine

import (
	"errors"
	"fmt"
	"strings"
)

// Error represents a rejected operation on the runtime.
//
// Errors include:
//   - Invalid connection: tempo mismatch, scope mismatch or an input that is
//     already connected
//   - Cycle detected: the graph of native applications would no longer be
//     acyclic
//   - Unresolved reference: an activation needs a value from a scope that
//     has no live activation
//   - Reentrant mutation: a structural edit or pump while the scheduler is
//     draining (raised as a panic)
//
// Error includes structured fields for diagnostics.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Details contains additional context.
	Details map[string]string
}

// ErrorCode categorizes runtime errors.
type ErrorCode string

const (
	// ErrCodeInvalidConnection indicates a connection that can never be made.
	ErrCodeInvalidConnection ErrorCode = "INVALID_CONNECTION"

	// ErrCodeCycleDetected indicates a connection would close a cycle.
	ErrCodeCycleDetected ErrorCode = "CYCLE_DETECTED"

	// ErrCodeUnresolvedReference indicates a missing containing activation.
	ErrCodeUnresolvedReference ErrorCode = "UNRESOLVED_REFERENCE"

	// ErrCodeReentrantMutation indicates an edit or pump while draining.
	ErrCodeReentrantMutation ErrorCode = "REENTRANT_MUTATION"

	// ErrCodeInvalidDefinition indicates a malformed signature or native.
	ErrCodeInvalidDefinition ErrorCode = "INVALID_DEFINITION"

	// ErrCodeUnknownPort indicates a port name not present in a signature.
	ErrCodeUnknownPort ErrorCode = "UNKNOWN_PORT"

	// ErrCodeDestroyedActivation indicates use of a destroyed activation.
	ErrCodeDestroyedActivation ErrorCode = "DESTROYED_ACTIVATION"
)

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func hasCode(err error, code ErrorCode) bool {
	var re *Error
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsInvalidConnection returns true if the error rejects a connection.
// Uses errors.As to handle wrapped errors.
func IsInvalidConnection(err error) bool { return hasCode(err, ErrCodeInvalidConnection) }

// IsCycleError returns true if the error is a cycle detection error.
func IsCycleError(err error) bool { return hasCode(err, ErrCodeCycleDetected) }

// IsUnresolvedReference returns true if a scope lookup failed.
func IsUnresolvedReference(err error) bool { return hasCode(err, ErrCodeUnresolvedReference) }

// IsReentrantMutation returns true for edits attempted while draining.
func IsReentrantMutation(err error) bool { return hasCode(err, ErrCodeReentrantMutation) }

// IsInvalidDefinition returns true for malformed definitions.
func IsInvalidDefinition(err error) bool { return hasCode(err, ErrCodeInvalidDefinition) }

// IsUnknownPort returns true for unknown port names.
func IsUnknownPort(err error) bool { return hasCode(err, ErrCodeUnknownPort) }

// IsDestroyedActivation returns true for operations on destroyed activations.
func IsDestroyedActivation(err error) bool { return hasCode(err, ErrCodeDestroyedActivation) }

func newInvalidConnection(reason string, out *OutPort, in *InPort) *Error {
	details := map[string]string{"reason": reason}
	if out != nil {
		details["from"] = out.String()
	}
	if in != nil {
		details["to"] = in.String()
	}
	return &Error{
		Code:    ErrCodeInvalidConnection,
		Message: reason,
		Details: details,
	}
}

// newCycleError reports the applications on the cycle, first one repeated
// at the end.
func newCycleError(path []string) *Error {
	return &Error{
		Code:    ErrCodeCycleDetected,
		Message: "connection would create a cycle: " + strings.Join(path, " -> "),
		Details: map[string]string{"cycle": strings.Join(path, ",")},
	}
}

func newUnresolvedReference(ref, reason string) *Error {
	return &Error{
		Code:    ErrCodeUnresolvedReference,
		Message: fmt.Sprintf("cannot resolve %s: %s", ref, reason),
		Details: map[string]string{"reference": ref, "reason": reason},
	}
}

func newReentrantMutation(op string) *Error {
	return &Error{
		Code:    ErrCodeReentrantMutation,
		Message: fmt.Sprintf("%s called while the scheduler is draining", op),
		Details: map[string]string{"operation": op},
	}
}

func newInvalidDefinition(format string, args ...any) *Error {
	return &Error{
		Code:    ErrCodeInvalidDefinition,
		Message: fmt.Sprintf(format, args...),
	}
}

func newUnknownPort(owner, port string) *Error {
	return &Error{
		Code:    ErrCodeUnknownPort,
		Message: fmt.Sprintf("%s has no port %q", owner, port),
		Details: map[string]string{"owner": owner, "port": port},
	}
}

func newDestroyedActivation(id int64) *Error {
	return &Error{
		Code:    ErrCodeDestroyedActivation,
		Message: fmt.Sprintf("activation %d has been destroyed", id),
		Details: map[string]string{"activation": fmt.Sprintf("%d", id)},
	}
}
