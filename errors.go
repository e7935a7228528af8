package aura

import (
	"errors"
	"fmt"
)

// Common error variables
var (
	// ErrClosed is returned when attempting to use a session whose connection
	// is not open. Call Start to (re)establish the connection.
	ErrClosed = errors.New("aura: session is closed")

	// ErrInvalidConfig is returned when required configuration fields are missing.
	ErrInvalidConfig = errors.New("aura: invalid configuration")

	// ErrAlreadyStarted is returned by Start when the session is already
	// connecting or connected.
	ErrAlreadyStarted = errors.New("aura: session already started")

	// ErrConnectTimeout is returned when the relay does not complete the
	// connection handshake within the configured dial timeout.
	ErrConnectTimeout = errors.New("aura: connect timeout")

	// ErrAuthFailed is returned when the credential exchange fails or the
	// relay rejects the presented credential. Auth failures are never retried
	// automatically; the application should obtain a fresh identity assertion.
	ErrAuthFailed = errors.New("aura: authentication failed")

	// ErrPermissionDenied is returned by audio sources when microphone access
	// is refused. It is fatal for the audio pipeline only; an established
	// session keeps working in text mode.
	ErrPermissionDenied = errors.New("aura: microphone permission denied")
)

// ConfigError represents a configuration validation error.
// It provides detailed information about which configuration field is invalid.
type ConfigError struct {
	Field   string // The configuration field that is invalid
	Value   string // The invalid value (if safe to log)
	Message string // Detailed error message
}

func (e *ConfigError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("aura: invalid config field %q (value: %q): %s", e.Field, e.Value, e.Message)
	}
	return fmt.Sprintf("aura: invalid config field %q: %s", e.Field, e.Message)
}

// Is implements error matching for ConfigError.
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// AuthError represents a failed credential exchange or a credential the relay
// refused to accept.
type AuthError struct {
	Status  int    // HTTP status from the identity endpoint, if any
	Message string // Human-readable description
	Cause   error  // The underlying error, if any
}

func (e *AuthError) Error() string {
	switch {
	case e.Status != 0:
		return fmt.Sprintf("aura: %s (status %d)", e.Message, e.Status)
	case e.Cause != nil:
		return fmt.Sprintf("aura: %s: %v", e.Message, e.Cause)
	}
	return "aura: " + e.Message
}

// Unwrap returns the underlying error for error unwrapping.
func (e *AuthError) Unwrap() error { return e.Cause }

// Is implements error matching for AuthError.
func (e *AuthError) Is(target error) bool {
	return target == ErrAuthFailed
}

// TransportError represents an underlying connection failure, carrying the
// close code observed (or CloseAbnormal when the transport gave no code).
type TransportError struct {
	Code   CloseCode // Close code, CloseAbnormal if unknown
	Reason string    // Close reason, if any
	Cause  error     // The underlying error
}

func (e *TransportError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("aura: transport closed (code %d): %s", e.Code, e.Reason)
	}
	return fmt.Sprintf("aura: transport closed (code %d): %v", e.Code, e.Cause)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error { return e.Cause }

// Helper functions for creating specific errors

// NewConfigError creates a new configuration error.
func NewConfigError(field, value, message string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// NewAuthError creates a new authentication error.
func NewAuthError(status int, message string, cause error) *AuthError {
	return &AuthError{
		Status:  status,
		Message: message,
		Cause:   cause,
	}
}

// NewTransportError creates a new transport error.
func NewTransportError(code CloseCode, reason string, cause error) *TransportError {
	return &TransportError{
		Code:   code,
		Reason: reason,
		Cause:  cause,
	}
}
