package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode classifies enrollment failures for the boundary layer.
type ErrorCode string

const (
	CodeNotFound            ErrorCode = "not_found"
	CodeDuplicateEnrollment ErrorCode = "duplicate_enrollment"
	CodeInvalidInput        ErrorCode = "invalid_input"
	CodeAlreadyCompleted    ErrorCode = "already_completed"
	CodeUnauthorized        ErrorCode = "unauthorized"
)

// Sentinels for errors.Is; any *Error with the same code matches.
var (
	ErrNotFound            = &Error{Code: CodeNotFound}
	ErrDuplicateEnrollment = &Error{Code: CodeDuplicateEnrollment}
	ErrInvalidInput        = &Error{Code: CodeInvalidInput}
	ErrAlreadyCompleted    = &Error{Code: CodeAlreadyCompleted}
	ErrUnauthorized        = &Error{Code: CodeUnauthorized}
)

type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	op := strings.TrimSpace(e.Op)
	msg := strings.TrimSpace(e.Message)
	switch {
	case op != "" && msg != "":
		return fmt.Sprintf("%s: %s (%s)", op, msg, e.Code)
	case op != "":
		return fmt.Sprintf("%s (%s)", op, e.Code)
	case msg != "":
		return fmt.Sprintf("%s (%s)", msg, e.Code)
	default:
		return string(e.Code)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

func NewError(code ErrorCode, op, message string, cause error) error {
	return &Error{
		Code:    code,
		Op:      strings.TrimSpace(op),
		Message: strings.TrimSpace(message),
		Cause:   cause,
	}
}

func NotFound(op, format string, args ...interface{}) error {
	return NewError(CodeNotFound, op, fmt.Sprintf(format, args...), nil)
}

func InvalidInput(op, format string, args ...interface{}) error {
	return NewError(CodeInvalidInput, op, fmt.Sprintf(format, args...), nil)
}

func Duplicate(op, format string, args ...interface{}) error {
	return NewError(CodeDuplicateEnrollment, op, fmt.Sprintf(format, args...), nil)
}

func AlreadyCompleted(op, format string, args ...interface{}) error {
	return NewError(CodeAlreadyCompleted, op, fmt.Sprintf(format, args...), nil)
}

func Unauthorized(op, format string, args ...interface{}) error {
	return NewError(CodeUnauthorized, op, fmt.Sprintf(format, args...), nil)
}

// CodeOf extracts the error code when err carries one.
func CodeOf(err error) ErrorCode {
	var de *Error
	if !errors.As(err, &de) {
		return ""
	}
	return de.Code
}
