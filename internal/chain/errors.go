package chain

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes node interaction failures.
type ErrorCode string

const (
	// CodeTransient marks failures worth retrying: mempool congestion,
	// node temporarily busy, connection resets.
	CodeTransient ErrorCode = "TRANSIENT"

	// CodeRejected marks a terminal rejection: the node judged the payload
	// malformed. Retrying cannot help; it indicates a harness defect.
	CodeRejected ErrorCode = "REJECTED"
)

// Error is a classified node interaction failure.
type Error struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int // 0 when the failure happened below HTTP
	Err        error
}

func (e *Error) Error() string {
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("%s: %s (http %d)", e.Code, e.Message, e.HTTPStatus)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewTransient wraps a retryable failure.
func NewTransient(message string, err error) *Error {
	return &Error{Code: CodeTransient, Message: message, Err: err}
}

// NewRejected wraps a terminal rejection.
func NewRejected(message string, err error) *Error {
	return &Error{Code: CodeRejected, Message: message, Err: err}
}

// IsTransient reports whether the error is a retryable node failure.
// Uses errors.As to handle wrapped errors.
func IsTransient(err error) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Code == CodeTransient
}

// IsRejected reports whether the node terminally rejected the submission.
func IsRejected(err error) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Code == CodeRejected
}
