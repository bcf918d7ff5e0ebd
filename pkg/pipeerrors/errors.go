// Package pipeerrors defines coded domain errors for the pipeline.
//
// Services wrap low-level failures with a Code so transport and callers can
// branch on the class of failure without string matching. Codes map to HTTP
// statuses at the transport boundary only.
package pipeerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a pipeline error.
type Code string

const (
	// Transport-facing codes.
	CodeBadRequest Code = "bad_request"
	CodeNotFound   Code = "not_found"
	CodeConflict   Code = "conflict"
	CodeInternal   Code = "internal"

	// Pipeline taxonomy. ValidationFailed is recoverable and routes into
	// remediation; the rest are terminal for the operation that raised them.
	CodeValidationFailed     Code = "validation_failed"
	CodeRemediationExhausted Code = "remediation_exhausted"
	CodeBudgetRejected       Code = "budget_rejected"
	CodeIDCollision          Code = "id_collision"
	CodeReferentialViolation Code = "referential_violation"
	CodeProviderError        Code = "provider_error"
	CodeGovernorPaused       Code = "governor_paused"
)

// Error carries a code, a human-readable message, and an optional cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error with no underlying cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error. A nil err returns
// nil so call sites can wrap unconditionally.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	for errors.As(err, &e) {
		if e.Code == code {
			return true
		}
		err = e.cause
		e = nil
	}
	return false
}

// CodeOf returns the outermost code in the chain, or CodeInternal when the
// error carries none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code to its HTTP status for the transport layer.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeValidationFailed:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeIDCollision, CodeReferentialViolation:
		return http.StatusConflict
	case CodeBudgetRejected, CodeGovernorPaused:
		return http.StatusPaymentRequired
	case CodeRemediationExhausted:
		return http.StatusUnprocessableEntity
	case CodeProviderError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
