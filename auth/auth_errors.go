package auth

import (
	"errors"
	"fmt"
)

// Login-flow error kinds. HTTP handlers match on these with errors.Is to pick
// a response status.
var (
	ErrAuthorizationDenied = errors.New("authorization denied")
	ErrMissingCode         = errors.New("authorization code missing")
	ErrIdentityFetch       = errors.New("identity fetch failed")
	ErrUserResolution      = errors.New("user record resolution failed")
	ErrSessionAbsent       = errors.New("no authenticated session")
)

// AuthError pairs an error kind with a human-readable description — for
// provider denials, the provider-supplied text.
type AuthError struct {
	Kind        error
	Description string
	cause       error
}

func newAuthError(kind error, description string, cause error) *AuthError {
	return &AuthError{Kind: kind, Description: description, cause: cause}
}

func (e *AuthError) Error() string {
	switch {
	case e.Description != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Description)
	case e.cause != nil:
		return fmt.Sprintf("%s: %s", e.Kind, e.cause)
	default:
		return e.Kind.Error()
	}
}

func (e *AuthError) Unwrap() []error {
	errs := []error{e.Kind}
	if e.cause != nil {
		errs = append(errs, e.cause)
	}
	return errs
}
