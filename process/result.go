package process

import (
	"fmt"
	"strings"
	"time"

	"github.com/kbukum/execkit/errors"
)

// Classification is the overall outcome of a command or pipeline.
type Classification int

const (
	Success Classification = iota
	NonZeroExit
	SignalTerminated
	SpawnFailed
	DecodeFailed
	IOFailed
)

func (c Classification) String() string {
	switch c {
	case Success:
		return "success"
	case NonZeroExit:
		return "non_zero_exit"
	case SignalTerminated:
		return "signal_terminated"
	case SpawnFailed:
		return "spawn_failed"
	case DecodeFailed:
		return "decode_failed"
	case IOFailed:
		return "io_failed"
	default:
		return fmt.Sprintf("Classification(%d)", int(c))
	}
}

// Result holds the output and status of a completed command or pipeline.
// It is not modified after it is returned.
type Result struct {
	// ID is the pipeline id.
	ID string
	// Program is the terminal stage's program.
	Program string
	// Stdout is the terminal stage's captured standard output. Empty in
	// streaming mode, where lines are handed to the caller instead.
	Stdout []byte
	// Stderr is the terminal stage's captured standard error.
	Stderr []byte
	// StageStderr holds captured standard error by stage index, for every
	// stage whose stderr was a pipe.
	StageStderr map[int][]byte
	// Status is the terminal stage's exit status.
	Status Status
	// StageStatuses holds every stage's status in pipeline order.
	StageStatuses []Status
	// Classification summarizes the outcome.
	Classification Classification
	// Lines is the number of lines yielded in streaming mode.
	Lines int
	// Duration is the wall time from the first spawn to the last exit.
	Duration time.Duration
	// Err is the collection error, if any. Output gathered before it is kept.
	Err error

	decoder *Decoder
}

// Success reports whether the command completed with exit code zero and no collection error.
func (r *Result) Success() bool { return r.Classification == Success }

// Outcome returns the classification name, satisfying provider.Outcome.
func (r *Result) Outcome() string {
	if r == nil {
		return ""
	}
	return r.Classification.String()
}

// ExitCode returns the terminal stage's exit code, -1 if it was killed.
func (r *Result) ExitCode() int { return r.Status.Code }

// Text decodes Stdout. A decode error never alters the captured bytes.
func (r *Result) Text() (string, error) {
	return r.dec().Decode(r.Stdout)
}

// OutputLines decodes Stdout and splits it into lines without terminators.
func (r *Result) OutputLines() ([]string, error) {
	text, err := r.Text()
	if err != nil {
		return nil, err
	}
	return splitLines(text), nil
}

// ErrorText decodes Stderr.
func (r *Result) ErrorText() (string, error) {
	return r.dec().Decode(r.Stderr)
}

// Check returns nil on success and an *errors.AppError describing the outcome otherwise.
func (r *Result) Check() error {
	switch r.Classification {
	case Success:
		return nil
	case NonZeroExit:
		appErr := errors.NonZeroExit(r.Program, r.Status.Code)
		if stderr := strings.TrimSpace(string(r.Stderr)); stderr != "" {
			appErr.WithDetail("stderr", stderr)
		}
		return appErr
	case SignalTerminated:
		return errors.SignalTerminated(r.Program, r.Status.Signal.String())
	default:
		if r.Err != nil {
			return r.Err
		}
		return errors.Internal(fmt.Sprintf("%s: %s", r.Program, r.Classification), nil)
	}
}

func (r *Result) dec() *Decoder {
	if r.decoder == nil {
		return utf8Decoder
	}
	return r.decoder
}

// classify derives the pipeline outcome from the terminal stage. A failed
// intermediate stage only shows up in StageStatuses.
func classify(terminal Status, err error) Classification {
	if err != nil {
		if appErr, ok := errors.AsAppError(err); ok {
			switch appErr.Code {
			case errors.ErrCodeDecodeFailed:
				return DecodeFailed
			case errors.ErrCodeSpawnFailed:
				return SpawnFailed
			}
		}
		return IOFailed
	}
	return terminal.Classify()
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	text = strings.TrimSuffix(text, "\n")
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
