package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every error surfaced by the workflow
type ErrorKind string

// Error kinds
const (
	KindInvalidCredential ErrorKind = "INVALID_CREDENTIAL"
	KindSessionUnverified ErrorKind = "SESSION_UNVERIFIED"
	KindForbidden         ErrorKind = "FORBIDDEN"
	KindNotFound          ErrorKind = "NOT_FOUND"
	KindInvalidTransition ErrorKind = "INVALID_TRANSITION"
	KindValidation        ErrorKind = "VALIDATION_ERROR"
	KindConflict          ErrorKind = "CONFLICT"
	KindUnavailable       ErrorKind = "UNAVAILABLE"
)

// WorkflowError is a typed, caller-recoverable error
type WorkflowError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *WorkflowError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// Is matches any WorkflowError of the same kind
func (e *WorkflowError) Is(target error) bool {
	t, ok := target.(*WorkflowError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinels for errors.Is
var (
	ErrInvalidCredential = &WorkflowError{Kind: KindInvalidCredential, Message: "invalid credential"}
	ErrSessionUnverified = &WorkflowError{Kind: KindSessionUnverified, Message: "session unverified"}
	ErrForbidden         = &WorkflowError{Kind: KindForbidden, Message: "forbidden"}
	ErrNotFound          = &WorkflowError{Kind: KindNotFound, Message: "not found"}
	ErrInvalidTransition = &WorkflowError{Kind: KindInvalidTransition, Message: "invalid transition"}
	ErrValidation        = &WorkflowError{Kind: KindValidation, Message: "validation error"}
	ErrConflict          = &WorkflowError{Kind: KindConflict, Message: "conflict"}
	ErrUnavailable       = &WorkflowError{Kind: KindUnavailable, Message: "store unavailable"}
)

// NewError builds a WorkflowError of the given kind
func NewError(kind ErrorKind, format string, args ...interface{}) *WorkflowError {
	return &WorkflowError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Unavailable wraps an infrastructure failure
func Unavailable(message string, err error) *WorkflowError {
	return &WorkflowError{Kind: KindUnavailable, Message: message, Err: err}
}

// KindOf returns the kind of err, or "" when err is not a WorkflowError
func KindOf(err error) ErrorKind {
	var we *WorkflowError
	if errors.As(err, &we) {
		return we.Kind
	}
	return ""
}

// ErrorResponse is the JSON body written for failed requests
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}

// HealthCheckResponse is returned by /health
type HealthCheckResponse struct {
	Alive    bool   `json:"alive"`
	Database string `json:"database,omitempty"`
}
