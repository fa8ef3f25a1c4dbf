// Package errors provides centralized error definitions for pam.
package errors

import "errors"

// Authenticator state errors.
var (
	// ErrNotAuthenticated indicates a session operation was invoked before
	// a successful authentication.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrConversation indicates the conversation implementation failed to
	// answer a prompt from the authentication service.
	ErrConversation = errors.New("conversation failed")

	// ErrUserResolution indicates the session user could not be resolved
	// on the host. This is an environment inconsistency, not a normal
	// authentication failure, and is not retried.
	ErrUserResolution = errors.New("cannot resolve session user")
)

// Backend errors.
var (
	// ErrBackendNotRegistered indicates the requested backend name has no
	// registered start function.
	ErrBackendNotRegistered = errors.New("backend not registered")

	// ErrConfigInvalid indicates a backend configuration is invalid.
	ErrConfigInvalid = errors.New("invalid backend configuration")
)
