package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the classification of an error at the session-manager boundary.
// The command layer only ever sees one of these three kinds.
type Kind int

const (
	// KindTransient - portal/network unavailable; retryable with backoff.
	KindTransient Kind = iota
	// KindAuth - credentials rejected by the portal; terminal, the user must log in again.
	KindAuth
	// KindValidation - malformed user input; reported immediately, never retried.
	KindValidation
)

// Common error types for the bot backend
var (
	// Authentication errors
	ErrAuth           = errors.New("credentials rejected")
	ErrNotLoggedIn    = errors.New("not logged in")
	ErrSessionExpired = errors.New("session expired")

	// Portal errors
	ErrTransient = errors.New("portal unavailable")

	// Input errors
	ErrValidation = errors.New("invalid input")

	// Account errors
	ErrAccountNotFound = errors.New("account not found")
	ErrNoActiveAccount = errors.New("no active account")

	// General errors
	ErrNotFound = errors.New("not found")
	ErrInternal = errors.New("internal error")
)

// Classify maps an error chain onto one of the three kinds. Anything not
// explicitly recognised defaults to transient; the retry cap in the session
// manager keeps that default from looping forever.
func Classify(err error) Kind {
	switch {
	case errors.Is(err, ErrAuth), errors.Is(err, ErrNotLoggedIn), errors.Is(err, ErrSessionExpired):
		return KindAuth
	case errors.Is(err, ErrValidation), errors.Is(err, ErrAccountNotFound), errors.Is(err, ErrNoActiveAccount):
		return KindValidation
	default:
		return KindTransient
	}
}

// FromStatusCode classifies a non-2xx portal HTTP status into a sentinel.
func FromStatusCode(status int) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrAuth
	case status >= 400 && status < 500:
		return ErrValidation
	default:
		return ErrTransient
	}
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
