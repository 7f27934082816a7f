package apierr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/yungbote/enrollment-backend/internal/domain"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// FromDomain maps a coded domain error onto an HTTP status. Unknown errors become 500.
func FromDomain(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	switch domain.CodeOf(err) {
	case domain.CodeNotFound:
		return New(http.StatusNotFound, string(domain.CodeNotFound), err)
	case domain.CodeDuplicateEnrollment:
		return New(http.StatusConflict, string(domain.CodeDuplicateEnrollment), err)
	case domain.CodeInvalidInput:
		return New(http.StatusBadRequest, string(domain.CodeInvalidInput), err)
	case domain.CodeAlreadyCompleted:
		return New(http.StatusConflict, string(domain.CodeAlreadyCompleted), err)
	case domain.CodeUnauthorized:
		return New(http.StatusForbidden, string(domain.CodeUnauthorized), err)
	}
	return New(http.StatusInternalServerError, "internal_error", err)
}
