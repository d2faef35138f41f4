package errors

import (
	"fmt"
	"maps"
)

// AppError is the error type every execkit package returns.
type AppError struct {
	// Code says what kind of failure this is.
	Code ErrorCode `json:"code"`
	// Message is for people.
	Message string `json:"message"`
	// Details locate the failure: stage, stream, program, exit code.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the lower-level error, if any.
	Cause error `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause == nil {
		return string(e.Code) + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
}

func (e *AppError) Unwrap() error { return e.Cause }

// Is matches a bare code, so callers can write
//
//	errors.Is(err, &errors.AppError{Code: errors.ErrCodeNonZeroExit})
//
// A target with a message only matches itself.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Message == "" && t.Code == e.Code
}

// WithCause records cause and returns e.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetails copies details into e, overwriting existing keys, and returns e.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any, len(details))
	}
	maps.Copy(e.Details, details)
	return e
}

// WithDetail sets one detail and returns e.
func (e *AppError) WithDetail(key string, value any) *AppError {
	return e.WithDetails(map[string]any{key: value})
}
