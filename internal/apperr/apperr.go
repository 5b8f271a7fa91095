// Package apperr defines the domain error taxonomy. Services return these
// typed errors; the API layer maps codes to HTTP statuses and a uniform
// JSON error body.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a stable, user-visible error code.
type Code string

const (
	CodeValidation              Code = "VALIDATION_ERROR"
	CodeAuthentication          Code = "AUTHENTICATION_ERROR"
	CodeAccessDenied            Code = "ACCESS_DENIED"
	CodeNotFound                Code = "NOT_FOUND"
	CodeInvalidStateTransition  Code = "INVALID_STATE_TRANSITION"
	CodeDependencyNotSatisfied  Code = "DEPENDENCY_NOT_SATISFIED"
	CodeIncompleteRequiredSteps Code = "INCOMPLETE_REQUIRED_STEPS"
	CodeWorkflowInUse           Code = "WORKFLOW_IN_USE"
	CodeConflict                Code = "CONFLICT"
	CodeInternal                Code = "INTERNAL_ERROR"
)

// Error carries a code and a human-readable message. Internal errors wrap
// the cause but the cause is never serialized to clients.
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

// New builds an error with an explicit code.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Validation signals malformed or missing input.
func Validation(format string, args ...any) *Error {
	return New(CodeValidation, format, args...)
}

// Authentication signals a missing or invalid token.
func Authentication(format string, args ...any) *Error {
	return New(CodeAuthentication, format, args...)
}

// AccessDenied signals a valid token but wrong owner or role.
func AccessDenied(format string, args ...any) *Error {
	return New(CodeAccessDenied, format, args...)
}

// NotFound signals an absent resource.
func NotFound(format string, args ...any) *Error {
	return New(CodeNotFound, format, args...)
}

// InvalidTransition signals an operation that is not legal for the current
// status.
func InvalidTransition(format string, args ...any) *Error {
	return New(CodeInvalidStateTransition, format, args...)
}

// DependencyNotSatisfied signals a step start blocked by incomplete
// dependency steps.
func DependencyNotSatisfied(format string, args ...any) *Error {
	return New(CodeDependencyNotSatisfied, format, args...)
}

// IncompleteRequiredSteps signals a completion attempt with required steps
// still outstanding.
func IncompleteRequiredSteps(outstanding int) *Error {
	return New(CodeIncompleteRequiredSteps, "cannot complete execution: %d required step(s) not completed", outstanding)
}

// Conflict signals a uniqueness or concurrent-edit clash.
func Conflict(format string, args ...any) *Error {
	return New(CodeConflict, format, args...)
}

// Internal wraps an unexpected failure. The message shown to clients is
// generic; the cause stays in the logs.
func Internal(cause error) *Error {
	return &Error{Code: CodeInternal, Message: "internal error", cause: cause}
}

// CodeOf extracts the code from err, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// MessageOf extracts the client-safe message from err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

// HTTPStatus maps an error code to the HTTP status the API responds with.
func HTTPStatus(code Code) int {
	switch code {
	case CodeValidation, CodeInvalidStateTransition,
		CodeDependencyNotSatisfied, CodeIncompleteRequiredSteps:
		return http.StatusBadRequest
	case CodeAuthentication:
		return http.StatusUnauthorized
	case CodeAccessDenied:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeWorkflowInUse, CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
