package errors

// ErrorCode is a machine-readable failure kind.
type ErrorCode string

// How a process ended.
const (
	// ErrCodeSpawnFailed: the program could not be resolved or executed.
	ErrCodeSpawnFailed ErrorCode = "SPAWN_FAILED"
	// ErrCodeNonZeroExit: the process exited with a nonzero status.
	ErrCodeNonZeroExit ErrorCode = "NON_ZERO_EXIT"
	// ErrCodeSignalTerminated: the process was killed by a signal.
	ErrCodeSignalTerminated ErrorCode = "SIGNAL_TERMINATED"
)

// Streams.
const (
	// ErrCodeIOFailed: a pipe or file could not be created, read or written.
	ErrCodeIOFailed ErrorCode = "IO_FAILED"
	// ErrCodeDecodeFailed: captured bytes are not valid in the requested encoding.
	ErrCodeDecodeFailed ErrorCode = "DECODE_FAILED"
)

// Requests.
const (
	ErrCodeInvalidInput  ErrorCode = "INVALID_INPUT"
	ErrCodeMissingField  ErrorCode = "MISSING_FIELD"
	ErrCodeLimitExceeded ErrorCode = "LIMIT_EXCEEDED"
)

// ErrCodeInternal is a broken invariant or an unexpected condition.
const ErrCodeInternal ErrorCode = "INTERNAL_ERROR"

// IsProcessOutcome reports whether code describes how a process ended
// rather than a fault in the orchestrator.
func IsProcessOutcome(code ErrorCode) bool {
	switch code {
	case ErrCodeNonZeroExit, ErrCodeSignalTerminated:
		return true
	}
	return false
}
