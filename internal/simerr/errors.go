// Package simerr classifies simulation failures by error code so that the
// run boundary can report them uniformly.
package simerr

import (
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/onnwee/particle-dynamics/internal/vec3"
)

// ErrorCode represents a structured error code
type ErrorCode string

const (
	// SingularGeometry: a zero vector was normalized
	SingularGeometry ErrorCode = "SINGULAR_GEOMETRY"
	// ExternalPotential: the external potential failed or returned a malformed force
	ExternalPotential ErrorCode = "EXTERNAL_POTENTIAL"
	// ConcurrencyFailure: a worker goroutine panicked or could not be joined
	ConcurrencyFailure ErrorCode = "CONCURRENCY_FAILURE"
	// InvalidState: particle state violates the equal-length invariant
	InvalidState ErrorCode = "INVALID_STATE"
	// Unknown is returned by CodeOf for unclassified errors
	Unknown ErrorCode = "UNKNOWN"
)

// Coded is implemented by errors that carry their own code.
type Coded interface {
	error
	Code() ErrorCode
}

// Error is a coded simulation error.
type Error struct {
	code    ErrorCode
	Message string
	Details map[string]interface{}
	cause   error
}

// New creates a new coded error
func New(code ErrorCode, message string) *Error {
	return &Error{code: code, Message: message}
}

// Wrap creates a coded error around cause.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{code: code, Message: message, cause: cause}
}

// Recovered converts a value obtained from recover() into a ConcurrencyFailure.
func Recovered(where string, r interface{}) *Error {
	e := New(ConcurrencyFailure, fmt.Sprintf("panic in %s: %v", where, r))
	e.Details = map[string]interface{}{"stack": string(debug.Stack())}
	if err, ok := r.(error); ok {
		e.cause = err
	}
	return e
}

// WithDetails adds details to the error
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	e.Details = details
	return e
}

// Code returns the error code
func (e *Error) Code() ErrorCode { return e.code }

// Error implements the error interface
func (e *Error) Error() string {
	if e.cause != nil {
		return string(e.code) + ": " + e.Message + ": " + e.cause.Error()
	}
	return string(e.code) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// CodeOf returns the code of the outermost coded error in err's chain.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var c Coded
	if errors.As(err, &c) {
		return c.Code()
	}
	if errors.Is(err, vec3.ErrZeroVector) {
		return SingularGeometry
	}
	return Unknown
}
