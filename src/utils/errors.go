package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind is the stable, machine readable category of an Error.
type ErrorKind string

const (
	KindValidation       ErrorKind = "validation"
	KindAuthorization    ErrorKind = "authorization"
	KindNotFound         ErrorKind = "not_found"
	KindConflict         ErrorKind = "conflict"
	KindInsufficientLots ErrorKind = "insufficient_lots"
	KindConstraint       ErrorKind = "constraint"
)

// Error is the error type returned by every service operation.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// Is matches any *Error of the same kind, so errors.Is(err, &Error{Kind: k}) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// StatusCode maps the kind onto an HTTP status.
func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindInsufficientLots, KindConstraint:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func NewError(kind ErrorKind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func ValidationError(format string, args ...interface{}) error {
	return NewError(KindValidation, format, args...)
}

func AuthorizationError(format string, args ...interface{}) error {
	return NewError(KindAuthorization, format, args...)
}

func NotFoundError(format string, args ...interface{}) error {
	return NewError(KindNotFound, format, args...)
}

func ConflictError(format string, args ...interface{}) error {
	return NewError(KindConflict, format, args...)
}

func InsufficientLotsError(format string, args ...interface{}) error {
	return NewError(KindInsufficientLots, format, args...)
}

func ConstraintError(format string, args ...interface{}) error {
	return NewError(KindConstraint, format, args...)
}

// KindOf returns the kind of err, or "" when err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// WriteError sends err as a JSON body. Errors that are not *Error become a 500
// without leaking their message.
func WriteError(w http.ResponseWriter, err error) {
	var appErr *Error
	if !errors.As(err, &appErr) {
		appErr = &Error{Message: "Internal Server Error"}
	}

	body, _ := json.Marshal(map[string]interface{}{"error": appErr})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode())
	_, _ = w.Write(body)
}
