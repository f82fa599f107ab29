package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage describes a missing key in Redis.
	RedisNotFoundMessage = "redis key not found"
)

// Sentinel errors for the two fatal pipeline outcomes. Every other failure
// inside the pipeline degrades into a best-effort answer instead of an error.
var (
	// ErrMissingField reports a query without the required identifying
	// fields; the caller must re-submit corrected input.
	ErrMissingField = errors.New("missing required field")

	// ErrTranscription reports a failed voice-to-text conversion; the caller
	// should retry or switch to typed input.
	ErrTranscription = errors.New("speech transcription failed")
)

// Error wraps an underlying error with an HTTP status and safe message.
type Error struct {
	Err     error
	Status  int
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new Error with the provided information.
func New(err error, status int, message string) *Error {
	return &Error{
		Err:     err,
		Status:  status,
		Message: message,
	}
}

// MissingField builds an ErrMissingField for the named input field.
func MissingField(name string) error {
	return fmt.Errorf("%w: %s", ErrMissingField, name)
}

// Transcription wraps a speech-to-text failure as ErrTranscription.
func Transcription(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrTranscription, err)
}

// Is reports whether the target matches the underlying error or the Error itself.
func (e *Error) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// As allows casting to Error or the wrapped error in a chain.
func (e *Error) As(target any) bool {
	if errors.As(e.Err, target) {
		return true
	}
	if t, ok := target.(**Error); ok {
		*t = e
		return true
	}
	return false
}

// StatusOf extracts the HTTP status from an error chain, defaulting to 500.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return http.StatusInternalServerError
}
