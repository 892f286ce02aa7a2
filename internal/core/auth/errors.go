package auth

import "errors"

// Authentication errors. All map to UNAUTHENTICATED; the messages never
// reveal whether a well-formed key was close to the configured one.
var (
	ErrMissingKey       = errors.New("API key required in x-api-key metadata")
	ErrInvalidKeyFormat = errors.New("invalid API key format")
	ErrInvalidKey       = errors.New("invalid API key")
)
