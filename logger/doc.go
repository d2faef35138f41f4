// Package logger is the zerolog-backed structured logger used across execkit.
//
// Entries are JSON or a compact console line. Process code logs through a
// component logger and attaches the Field* keys (pipeline id, stage, pid,
// program) so that one pipeline's entries can be followed across stages:
//
//	log := logger.Get("process").WithFields(logger.Fields(logger.FieldPipelineID, id))
//	log.Info("stage exited", logger.Fields(logger.FieldStage, 1, logger.FieldExitCode, 0))
//
// Level, format and output come from the "logging" block of the config file.
package logger
