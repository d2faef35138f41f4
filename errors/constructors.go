package errors

import "fmt"

// New returns an error with code and message and nothing else.
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// detailed builds an error with details given as key, value pairs.
func detailed(code ErrorCode, cause error, message string, kv ...any) *AppError {
	e := &AppError{Code: code, Message: message, Cause: cause}
	for i := 1; i < len(kv); i += 2 {
		e.WithDetail(kv[i-1].(string), kv[i])
	}
	return e
}

// SpawnFailed reports a program that could not be started.
func SpawnFailed(program string, cause error) *AppError {
	return detailed(ErrCodeSpawnFailed, cause, "failed to start "+program, "program", program)
}

// IOFailed reports a pipe or file failure on one stream.
func IOFailed(stream string, cause error) *AppError {
	return detailed(ErrCodeIOFailed, cause, "i/o failure on "+stream, "stream", stream)
}

// DecodeFailed reports bytes that are not valid text in encoding.
func DecodeFailed(encoding string, cause error) *AppError {
	return detailed(ErrCodeDecodeFailed, cause, "output is not valid "+encoding, "encoding", encoding)
}

// NonZeroExit reports a process that exited with a code other than 0.
func NonZeroExit(program string, code int) *AppError {
	return detailed(ErrCodeNonZeroExit, nil, fmt.Sprintf("%s exited with code %d", program, code),
		"program", program, "exit_code", code)
}

// SignalTerminated reports a process killed by a signal.
func SignalTerminated(program, signal string) *AppError {
	return detailed(ErrCodeSignalTerminated, nil, fmt.Sprintf("%s terminated by signal %s", program, signal),
		"program", program, "signal", signal)
}

// InvalidInput rejects a field of a request. An empty field adds no detail.
func InvalidInput(field, reason string) *AppError {
	e := New(ErrCodeInvalidInput, "Invalid input: "+reason)
	if field != "" {
		e.WithDetail("field", field)
	}
	return e
}

// Validation reports failed validation with a prepared message.
func Validation(message string) *AppError {
	return New(ErrCodeInvalidInput, message)
}

// MissingField reports a required field left empty.
func MissingField(field string) *AppError {
	return detailed(ErrCodeMissingField, nil, "Missing required field: "+field, "field", field)
}

// LimitExceeded reports a limiter that had no free slot.
func LimitExceeded(name string, limit int) *AppError {
	return detailed(ErrCodeLimitExceeded, nil, fmt.Sprintf("%s: all %d slots in use", name, limit),
		"limiter", name, "limit", limit)
}

// Internal reports a broken invariant or an unexpected condition.
func Internal(message string, cause error) *AppError {
	return detailed(ErrCodeInternal, cause, message)
}
