// Package apperr defines the error categories shared by services and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalid       = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrUpstream      = errors.New("upstream failure")
)

// Error carries a category plus caller-facing message and optional details.
// Status is the upstream HTTP status when the error came from a remote call.
type Error struct {
	Kind    error
	Message string
	Details string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Invalid reports a validation failure with a caller-facing message.
func Invalid(msg string) *Error {
	return &Error{Kind: ErrInvalid, Message: msg}
}

// NotFound reports a missing resource.
func NotFound(msg string) *Error {
	return &Error{Kind: ErrNotFound, Message: msg}
}

// Conflict reports a revision mismatch.
func Conflict(msg string) *Error {
	return &Error{Kind: ErrConflict, Message: msg}
}

// Forbidden reports an authenticated caller lacking permission.
func Forbidden(msg string) *Error {
	return &Error{Kind: ErrForbidden, Message: msg}
}

// Unauthorized reports missing or invalid credentials.
func Unauthorized(msg string) *Error {
	return &Error{Kind: ErrUnauthorized, Message: msg}
}

// Upstream reports a failed dependency call. status may be zero for
// transport-level failures.
func Upstream(msg string, status int, err error) *Error {
	e := &Error{Kind: ErrUpstream, Message: msg, Status: status, Err: err}
	if err != nil {
		e.Details = err.Error()
	}
	return e
}

// HTTPStatus maps an error to the status code returned to API callers.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict), errors.Is(err, ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the caller-safe message for err. Internal errors collapse
// to a generic string.
func Message(err error) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	switch HTTPStatus(err) {
	case http.StatusInternalServerError:
		return "internal error"
	default:
		for _, k := range []error{ErrInvalid, ErrUnauthorized, ErrForbidden, ErrNotFound, ErrAlreadyExists, ErrConflict, ErrUpstream} {
			if errors.Is(err, k) {
				return k.Error()
			}
		}
		return err.Error()
	}
}

// Details returns upstream details attached to err, if any.
func Details(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Details
	}
	return ""
}
