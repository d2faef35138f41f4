package process

import (
	"fmt"
	"io"
	"os"
)

// SinkKind identifies where one standard stream of a child reads or writes.
type SinkKind int

const (
	// SinkDefault resolves per stream: inherit for stdout and stderr,
	// discard for stdin. Pipeline stages get their chained ends instead.
	SinkDefault SinkKind = iota
	// SinkDiscard attaches the stream to the null device.
	SinkDiscard
	// SinkInherit shares the orchestrator's own stream.
	SinkInherit
	// SinkPipe creates an OS pipe whose far end the orchestrator keeps.
	SinkPipe
	// SinkFile redirects to or from a file.
	SinkFile
	// SinkReader feeds stdin from an io.Reader.
	SinkReader
	// sinkChain binds a stream to one end of a pipeline's internal pipe.
	sinkChain
)

func (k SinkKind) String() string {
	switch k {
	case SinkDefault:
		return "default"
	case SinkDiscard:
		return "discard"
	case SinkInherit:
		return "inherit"
	case SinkPipe:
		return "pipe"
	case SinkFile:
		return "file"
	case SinkReader:
		return "reader"
	case sinkChain:
		return "upstream"
	default:
		return fmt.Sprintf("SinkKind(%d)", int(k))
	}
}

// Sink describes one standard stream of a Command. The zero value is SinkDefault.
type Sink struct {
	kind   SinkKind
	shared *SharedFile
	path   string
	mode   FileMode
	reader io.Reader
	chain  *os.File
}

// Discard drops output, or gives the child an empty stdin.
func Discard() Sink { return Sink{kind: SinkDiscard} }

// Inherit passes the orchestrator's corresponding stream to the child. When
// stdin is inherited from a terminal the child stays in the orchestrator's
// process group so it can read interactively; signals and cancellation then
// reach the child but not processes it forks.
func Inherit() Sink { return Sink{kind: SinkInherit} }

// Pipe connects the stream to a fresh pipe. The orchestrator's end is
// available from Handle.Stdin, Handle.Stdout or Handle.Stderr.
func Pipe() Sink { return Sink{kind: SinkPipe} }

// ToFile writes the stream into sf. Two streams given the same sf share one cursor.
func ToFile(sf *SharedFile) Sink { return Sink{kind: SinkFile, shared: sf, mode: sf.Mode()} }

// FromFile reads stdin from sf.
func FromFile(sf *SharedFile) Sink { return Sink{kind: SinkFile, shared: sf, mode: sf.Mode()} }

// File opens path at spawn time. Streams of one Command naming the same
// path get the same open file.
func File(path string, mode FileMode) Sink { return Sink{kind: SinkFile, path: path, mode: mode} }

// FromReader copies r into the child's stdin.
func FromReader(r io.Reader) Sink { return Sink{kind: SinkReader, reader: r} }

func chained(f *os.File) Sink { return Sink{kind: sinkChain, chain: f} }

// Kind returns the sink kind.
func (s Sink) Kind() SinkKind { return s.kind }

// IsDefault reports whether the sink was left unset.
func (s Sink) IsDefault() bool { return s.kind == SinkDefault }

func (s Sink) String() string {
	switch s.kind {
	case SinkFile:
		path := s.path
		if s.shared != nil {
			path = s.shared.Path()
		}
		return fmt.Sprintf("file(%s, %s)", path, s.mode)
	default:
		return s.kind.String()
	}
}

// checkInput reports why s cannot serve as stdin, or "" if it can.
func (s Sink) checkInput() string {
	switch s.kind {
	case SinkFile:
		if s.mode != FileRead {
			return "stdin file must be opened for reading"
		}
	case SinkReader:
		if s.reader == nil {
			return "reader must not be nil"
		}
	case sinkChain:
		if s.chain == nil {
			return "upstream pipe is missing"
		}
	}
	if s.kind == SinkFile && s.shared == nil && s.path == "" {
		return "file path is required"
	}
	return ""
}

// checkOutput reports why s cannot serve as stdout or stderr, or "" if it can.
func (s Sink) checkOutput() string {
	switch s.kind {
	case SinkReader:
		return "a reader can only feed stdin"
	case SinkFile:
		if !s.mode.writable() {
			return "output file must be opened for create or append"
		}
		if s.shared == nil && s.path == "" {
			return "file path is required"
		}
	case sinkChain:
		if s.chain == nil {
			return "downstream pipe is missing"
		}
	}
	return ""
}
