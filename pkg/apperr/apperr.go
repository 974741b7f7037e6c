// Package apperr defines the error taxonomy shared by services and handlers.
// Services return *Error values; handlers translate the Kind into an HTTP
// status and surface only Message to the caller.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error by how the caller should react to it.
type Kind string

const (
	KindValidation         Kind = "VALIDATION_ERROR"
	KindSlotConflict       Kind = "SLOT_CONFLICT"
	KindUnauthorized       Kind = "UNAUTHORIZED"
	KindForbidden          Kind = "FORBIDDEN"
	KindNotFound           Kind = "NOT_FOUND"
	KindConflict           Kind = "CONFLICT"
	KindInvalidCredentials Kind = "INVALID_CREDENTIALS"
	KindNotValidated       Kind = "NOT_VALIDATED"
	KindInvalidToken       Kind = "INVALID_OR_EXPIRED_TOKEN"
	KindInternal           Kind = "INTERNAL"
)

// InternalMessage is the only text a caller ever sees for KindInternal.
const InternalMessage = "Server error."

type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error with the same Kind, so sentinel values can be used
// with errors.Is regardless of message or cause.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Internal wraps an unexpected store or transport failure.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: InternalMessage, Cause: err}
}

// Sentinels for errors.Is checks.
var (
	ErrValidation         = New(KindValidation, "validation failed")
	ErrSlotConflict       = New(KindSlotConflict, "slot conflict")
	ErrUnauthorized       = New(KindUnauthorized, "unauthorized")
	ErrForbidden          = New(KindForbidden, "forbidden")
	ErrNotFound           = New(KindNotFound, "not found")
	ErrConflict           = New(KindConflict, "conflict")
	ErrInvalidCredentials = New(KindInvalidCredentials, "invalid credentials")
	ErrNotValidated       = New(KindNotValidated, "not validated")
	ErrInvalidToken       = New(KindInvalidToken, "invalid or expired token")
	ErrInternal           = New(KindInternal, InternalMessage)
)

// KindOf returns the Kind carried by err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// PublicMessage returns the text safe to show to a caller.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message
	}
	return InternalMessage
}

// HTTPStatus maps a Kind to its response status.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation, KindSlotConflict, KindInvalidToken:
		return http.StatusBadRequest
	case KindUnauthorized, KindInvalidCredentials:
		return http.StatusUnauthorized
	case KindForbidden, KindNotValidated:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
