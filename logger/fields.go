package logger

import "time"

// Field keys shared by every component that logs about processes.
const (
	FieldComponent      = "component"
	FieldPipelineID     = "pipeline_id"
	FieldHandleID       = "handle_id"
	FieldStage          = "stage"
	FieldPID            = "pid"
	FieldProgram        = "program"
	FieldStream         = "stream"
	FieldExitCode       = "exit_code"
	FieldSignal         = "signal"
	FieldClassification = "classification"
	FieldOperation      = "operation"
	FieldError          = "error"
	FieldDuration       = "duration_ms"
)

// Fields pairs up keys and values:
//
//	log.Info("stage exited", logger.Fields(logger.FieldStage, 2, logger.FieldExitCode, 1))
//
// Non-string keys and a trailing key without a value are dropped.
func Fields(kv ...any) map[string]any {
	out := make(map[string]any, len(kv)/2)
	for i := 1; i < len(kv); i += 2 {
		if k, ok := kv[i-1].(string); ok {
			out[k] = kv[i]
		}
	}
	return out
}

// ErrorFields describes a failed operation.
func ErrorFields(op string, err error) map[string]any {
	return MergeWithError(map[string]any{FieldOperation: op}, err)
}

// DurationFields describes a timed operation in whole milliseconds.
func DurationFields(op string, d time.Duration) map[string]any {
	return Fields(FieldOperation, op, FieldDuration, d.Milliseconds())
}

// MergeWithError sets the error field on fields, allocating it when nil.
func MergeWithError(fields map[string]any, err error) map[string]any {
	if fields == nil {
		fields = make(map[string]any, 1)
	}
	fields[FieldError] = err.Error()
	return fields
}
