package domain

import (
	"errors" // Error wrapping and matching
)

// Kind classifies an error for transport mapping.
type Kind string

// Error kinds. Each maps to exactly one HTTP status in the api package.
const (
	KindValidation  Kind = "validation"
	KindAuth        Kind = "auth"
	KindAuthz       Kind = "authz"
	KindNotFound    Kind = "not_found"
	KindConflict    Kind = "conflict"
	KindPersistence Kind = "persistence"
)

// Sentinels usable with errors.Is.
var (
	ErrValidation  = &Error{Kind: KindValidation}
	ErrAuth        = &Error{Kind: KindAuth}
	ErrAuthz       = &Error{Kind: KindAuthz}
	ErrNotFound    = &Error{Kind: KindNotFound}
	ErrConflict    = &Error{Kind: KindConflict}
	ErrPersistence = &Error{Kind: KindPersistence}
)

// Error is the application error carried from services to handlers.
// Message is safe to show to clients; Err is for logs only.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Message + ": " + e.Err.Error()
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// NewValidation builds a ValidationError
func NewValidation(msg string) error {
	return &Error{Kind: KindValidation, Message: msg}
}

// NewAuth builds an AuthError
func NewAuth(msg string) error {
	return &Error{Kind: KindAuth, Message: msg}
}

// NewAuthz builds an AuthzError
func NewAuthz(msg string) error {
	return &Error{Kind: KindAuthz, Message: msg}
}

// NewNotFound builds a NotFoundError
func NewNotFound(msg string) error {
	return &Error{Kind: KindNotFound, Message: msg}
}

// NewConflict builds a ConflictError
func NewConflict(msg string) error {
	return &Error{Kind: KindConflict, Message: msg}
}

// NewPersistence wraps a store failure. The cause stays out of Message.
func NewPersistence(msg string, cause error) error {
	return &Error{Kind: KindPersistence, Message: msg, Err: cause}
}

// KindOf returns the kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// PublicMessage returns the client-safe message of err.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "internal server error"
}
