// Package errors holds the failure taxonomy shared by the session
// store, login drivers, extractor and orchestrator. Callers classify
// failures with errors.Is against these sentinels; the orchestrator's
// retry policy depends on the distinction between an authentication
// failure (never retried) and an extraction failure (retried once with
// a fresh session).
package errors

import (
	"errors"
	"fmt"
)

var (
	// Authentication errors
	ErrAuthentication     = errors.New("authentication failed")
	ErrCredentialNotFound = errors.New("credential not found")

	// Extraction errors
	ErrExtraction = errors.New("extraction failed")
	ErrTimeout    = errors.New("operation timed out")

	// Session errors
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionInvalid    = errors.New("session invalid")
	ErrSessionDependency = errors.New("root session unavailable")

	// Orchestration errors
	ErrPlatformUnavailable = errors.New("platform unavailable")
)

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

// IsAuthentication reports whether err represents a bad or expired
// credential. These are surfaced to the caller to prompt re-auth.
func IsAuthentication(err error) bool {
	return errors.Is(err, ErrAuthentication) || errors.Is(err, ErrCredentialNotFound)
}

// IsExtraction reports whether err represents a markup or content
// mismatch, which may also be the first sign of an expired session.
func IsExtraction(err error) bool {
	return errors.Is(err, ErrExtraction)
}

// IsTimeout reports whether err represents a network or render overrun.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsSessionDependency reports whether err means the Clever root session
// required by a dependent platform could not be established.
func IsSessionDependency(err error) bool {
	return errors.Is(err, ErrSessionDependency)
}
