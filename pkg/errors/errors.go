package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")

	// Workflow transition rejections. Each is a definitive refusal of the
	// requested transition; nothing is retried internally.
	ErrNotCurrentApprover = New("NOT_CURRENT_APPROVER", http.StatusForbidden, "acting role is not the current approver")
	ErrAlreadyCompleted   = New("ALREADY_COMPLETED", http.StatusConflict, "request workflow already completed")
	ErrCommentsRequired   = New("COMMENTS_REQUIRED", http.StatusBadRequest, "comments are required")
	ErrInvalidReference   = New("INVALID_REFERENCE_FORMAT", http.StatusBadRequest, "reference number must be 8 alphanumeric characters")
	ErrDuplicateReference = New("DUPLICATE_REFERENCE", http.StatusConflict, "reference number already in use")
	ErrInvalidFlow        = New("INVALID_WORKFLOW_SELECTION", http.StatusBadRequest, "workflow selection is empty or out of range")
	ErrNotInRecreation    = New("NOT_IN_RECREATION_STATE", http.StatusConflict, "request is not awaiting resubmission")
	ErrStaleState         = New("STALE_STATE", http.StatusConflict, "request changed concurrently, reload and retry")
	ErrStoreUnavailable   = New("STORE_UNAVAILABLE", http.StatusServiceUnavailable, "persistence layer unavailable")
	ErrLetterNotReady     = New("LETTER_NOT_READY", http.StatusConflict, "approval letter is only available once the workflow completes")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
