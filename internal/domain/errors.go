package domain

import "errors"

// Remote storage errors
var (
	// ErrRemoteUnavailable indicates a network or service failure.
	// Always recoverable by falling back to local state.
	ErrRemoteUnavailable = errors.New("remote storage unavailable")

	// ErrNotFound indicates the requested resource does not exist
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists indicates the resource already exists
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrPermissionDenied indicates the caller lacks the required capability
	ErrPermissionDenied = errors.New("permission denied")
)

// Folder store errors
var (
	// ErrVirtualTarget indicates an attempted mutation on a placeholder
	// entry that has no remote counterpart. User-correctable, not retried.
	ErrVirtualTarget = errors.New("target is a virtual placeholder")

	// ErrInvalidName indicates an empty or otherwise unusable entry name
	ErrInvalidName = errors.New("invalid entry name")
)

// Authorization errors
var (
	// ErrAuthenticationFailed indicates bad credentials
	ErrAuthenticationFailed = errors.New("authentication failed")
)

// Config errors
var (
	// ErrConfigNotFound indicates config file not found
	ErrConfigNotFound = errors.New("config file not found")

	// ErrConfigInvalid indicates config file is malformed
	ErrConfigInvalid = errors.New("invalid config")
)
