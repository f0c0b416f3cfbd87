// Package apperror defines the error taxonomy shared by the services and the
// HTTP error handler.
package apperror

import (
	"errors"
	"net/http"
)

// Kind classifies an error for callers and for status translation.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindAuthentication
	KindNotFound
	KindForbidden
	KindExternal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindAuthentication:
		return "authentication"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindExternal:
		return "external"
	default:
		return "internal"
	}
}

// Status returns the default HTTP status for the kind.
func (k Kind) Status() int {
	switch k {
	case KindValidation, KindConflict:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

const msgInternal = "Internal Server Error"

// Error is a classified error with a caller-facing message. Err holds the
// underlying cause and is never shown to callers.
type Error struct {
	Kind    Kind
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the explicit status if one was set, otherwise the
// kind's default.
func (e *Error) HTTPStatus() int {
	if e.Status != 0 {
		return e.Status
	}
	return e.Kind.Status()
}

// WithStatus overrides the HTTP status, for endpoints that report a kind
// with a non-default code.
func (e *Error) WithStatus(status int) *Error {
	e.Status = status
	return e
}

func newError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

func Validation(message string) *Error { return newError(KindValidation, message, nil) }

func Conflict(message string) *Error { return newError(KindConflict, message, nil) }

func Authentication(message string) *Error { return newError(KindAuthentication, message, nil) }

func AuthenticationWrap(message string, cause error) *Error {
	return newError(KindAuthentication, message, cause)
}

func NotFound(message string) *Error { return newError(KindNotFound, message, nil) }

func Forbidden(message string) *Error { return newError(KindForbidden, message, nil) }

func External(message string, cause error) *Error { return newError(KindExternal, message, cause) }

func Internal(message string, cause error) *Error {
	if message == "" {
		message = msgInternal
	}
	return newError(KindInternal, message, cause)
}

// As extracts the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf reports the kind of err. Unclassified errors are KindInternal.
func KindOf(err error) Kind {
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
