package process

import (
	"fmt"
	"os"
	"syscall"
)

// Status is how a process ended.
type Status struct {
	// Code is the exit code, or -1 when the process was killed by a signal.
	Code int
	// Signal is the terminating signal when Signaled is set.
	Signal syscall.Signal
	// Signaled reports termination by signal.
	Signaled bool
}

// Success reports a zero exit code.
func (s Status) Success() bool { return !s.Signaled && s.Code == 0 }

// Classify maps the status to a result classification.
func (s Status) Classify() Classification {
	switch {
	case s.Signaled:
		return SignalTerminated
	case s.Code != 0:
		return NonZeroExit
	default:
		return Success
	}
}

func (s Status) String() string {
	if s.Signaled {
		return fmt.Sprintf("signal: %s", s.Signal)
	}
	return fmt.Sprintf("exit status %d", s.Code)
}

func statusFromState(ps *os.ProcessState) Status {
	if ps == nil {
		return Status{Code: -1}
	}
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return Status{Code: -1, Signal: ws.Signal(), Signaled: true}
	}
	return Status{Code: ps.ExitCode()}
}
