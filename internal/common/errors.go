// Package common defines shared constants, error kinds and the typed error
// returned by the session layer. Callers should use errors.Is to match kinds.
package common

import "errors"

var (
	// Error kinds. Every failure surfaced by the session layer matches exactly one.
	ErrorValidation   = errors.New("validation error")
	ErrorConflict     = errors.New("conflict")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorNotFound     = errors.New("not found")
	ErrorInternal     = errors.New("internal error")

	// Token verification details, carried as causes of ErrorUnauthorized.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenReused marks a refresh token that was already rotated out.
	ErrTokenReused = errors.New("token reused")
)

var kinds = []error{ErrorValidation, ErrorConflict, ErrorUnauthorized, ErrorNotFound, ErrorInternal}

// Error is a failure with an abstract kind and a caller-safe message.
// Err keeps the internal cause for logging and is never shown to callers.
type Error struct {
	Op   string
	Kind error
	Msg  string
	Err  error
}

// E builds an Error without an internal cause.
func E(op string, kind error, msg string) *Error {
	return &Error{Op: op, Kind: kind, Msg: msg}
}

// Wrap builds an Error around an internal cause.
func Wrap(op string, kind error, msg string, cause error) *Error {
	return &Error{Op: op, Kind: kind, Msg: msg, Err: cause}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Op + ": " + e.Msg + ": " + e.Err.Error()
	}
	return e.Op + ": " + e.Msg
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// KindOf reports the kind of err. Errors that match no kind are internal.
func KindOf(err error) error {
	var e *Error
	if errors.As(err, &e) && e.Kind != nil {
		return e.Kind
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return ErrorInternal
}

// MessageOf returns the caller-safe message of err. Internal failures never
// expose their details.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != ErrorInternal && e.Msg != "" {
		return e.Msg
	}
	if k := KindOf(err); k != ErrorInternal {
		return k.Error()
	}
	return "Something went wrong"
}
