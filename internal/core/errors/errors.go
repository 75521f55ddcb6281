// Package errors provides centralized error definitions for the application.
// Errors are organized by domain to avoid duplication and provide consistent naming.
//
// Naming conventions:
//   - Exported errors (Err*): Use for errors that callers need to check with errors.Is
//   - All sentinel errors should be defined as variables, not inline errors.New calls
//   - Use fmt.Errorf with %w to wrap sentinel errors with context
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Credential vault errors.
var (
	// ErrUnsupportedKeyVersion indicates the ciphertext was produced by a key version that is not provisioned.
	ErrUnsupportedKeyVersion = errors.New("unsupported key version")

	// ErrAuthenticationFailure indicates the ciphertext failed authentication (tampered or corrupted).
	ErrAuthenticationFailure = errors.New("ciphertext authentication failed")

	// ErrInvalidKey indicates key material could not be used.
	ErrInvalidKey = errors.New("invalid key material")
)

// Remote source errors.
var (
	// ErrSessionUnauthorized indicates the stored session is no longer authorized.
	ErrSessionUnauthorized = errors.New("session is not authorized")

	// ErrChannelNotFound indicates a channel could not be found.
	ErrChannelNotFound = errors.New("channel not found")

	// ErrNotAChannel indicates the entity is not a channel type.
	ErrNotAChannel = errors.New("entity is not a channel")

	// ErrUnsupportedSessionFormat indicates the decrypted session could not be recognised.
	ErrUnsupportedSessionFormat = errors.New("unsupported session format")

	// ErrMediaUnavailable indicates the message media has no downloadable content.
	ErrMediaUnavailable = errors.New("media unavailable")
)

// Rate limiting errors.
var (
	// ErrRateLimited indicates rate limiting was triggered.
	ErrRateLimited = errors.New("rate limited")
)

// Object storage errors.
var (
	// ErrUploadFailed indicates the object storage rejected an upload.
	ErrUploadFailed = errors.New("upload failed")
)

// Validation errors.
var (
	// ErrInvalidInput indicates invalid input was provided.
	ErrInvalidInput = errors.New("invalid input")
)

// RateLimitError is returned by remote sources when the caller must wait before retrying.
type RateLimitError struct {
	Wait time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: retry after %s", e.Wait)
}

// Unwrap makes errors.Is(err, ErrRateLimited) hold for every RateLimitError.
func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// AsRateLimit extracts the suggested wait from err.
func AsRateLimit(err error) (time.Duration, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.Wait, true
	}

	return 0, false
}

// Is is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is a convenience wrapper around errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
