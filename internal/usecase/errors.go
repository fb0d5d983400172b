package usecase

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	ErrorInvalidInput  ErrorCode = "INVALID_INPUT"
	ErrorNotFound      ErrorCode = "NOT_FOUND"
	ErrorAlreadyExists ErrorCode = "ALREADY_EXISTS"
	ErrorNotOngoing    ErrorCode = "NOT_ONGOING"
	ErrorConflict      ErrorCode = "CONFLICT"
	ErrorUpstream      ErrorCode = "UPSTREAM_ERROR"
	// ErrorPublish means the events were persisted but fanning them out
	// failed. Running the command again would not re-publish them.
	ErrorPublish  ErrorCode = "PUBLISH_ERROR"
	ErrorInternal ErrorCode = "INTERNAL_ERROR"
)

type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

// Retryable reports whether reloading the conversation and running the
// command again may succeed. Errors that are not a *Error are treated as
// transient.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var ucErr *Error
	if !errors.As(err, &ucErr) {
		return true
	}
	switch ucErr.Code {
	case ErrorConflict, ErrorUpstream, ErrorInternal:
		return true
	default:
		return false
	}
}

// CodeOf returns the usecase error code of err, or ErrorInternal.
func CodeOf(err error) ErrorCode {
	var ucErr *Error
	if errors.As(err, &ucErr) {
		return ucErr.Code
	}
	return ErrorInternal
}
