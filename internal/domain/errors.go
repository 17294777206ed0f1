package domain

import (
	"errors"
	"fmt"
)

// ─── Error Kinds ────────────────────────────────────────────────────────────
// Domain errors are pure and carry no infrastructure dependency. Every
// failure the core returns wraps exactly one of these kinds; test with
// errors.Is.

var (
	ErrValidation        = errors.New("validation error")
	ErrBanking           = errors.New("banking error")
	ErrPooling           = errors.New("pooling error")
	ErrNotFound          = errors.New("not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrConflict          = errors.New("conflict")
)

// Error is a domain failure of a given kind with a human-readable message.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

// Unwrap exposes the kind to errors.Is.
func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Validationf returns an ErrValidation error.
func Validationf(format string, args ...any) error { return newError(ErrValidation, format, args...) }

// Bankingf returns an ErrBanking error.
func Bankingf(format string, args ...any) error { return newError(ErrBanking, format, args...) }

// Poolingf returns an ErrPooling error.
func Poolingf(format string, args ...any) error { return newError(ErrPooling, format, args...) }

// NotFoundf returns an ErrNotFound error.
func NotFoundf(format string, args ...any) error { return newError(ErrNotFound, format, args...) }

// InsufficientFundsf returns an ErrInsufficientFunds error.
func InsufficientFundsf(format string, args ...any) error {
	return newError(ErrInsufficientFunds, format, args...)
}

// Conflictf returns an ErrConflict error.
func Conflictf(format string, args ...any) error { return newError(ErrConflict, format, args...) }

// KindOf returns the kind name of err ("validation", "banking", ...) or
// "internal" when err carries no domain kind.
func KindOf(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrBanking):
		return "banking"
	case errors.Is(err, ErrPooling):
		return "pooling"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "internal"
	}
}
