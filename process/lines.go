package process

import (
	"bufio"
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kbukum/execkit/errors"
	"github.com/kbukum/execkit/pipeline"
)

// Line is one line of streamed output.
type Line struct {
	// Number is the 1-based line number.
	Number int
	// Text is the decoded line without its terminator.
	Text string
	// Raw is the line as read, without its terminator. For charsets that do
	// not encode '\n' as one byte, such as UTF-16, it is the line after
	// conversion to UTF-8.
	Raw []byte
	// Err is a DECODE_FAILED error when Raw is not valid in the configured
	// charset. Text is empty then; the stream itself stays usable.
	Err error
}

var _ pipeline.Iterator[Line] = (*LineStream)(nil)

// LineStream yields the terminal stage's stdout one line at a time while the
// pipeline runs. Next blocks only until the next line is available. Piped
// stderr is captured in the background and attached to the Result.
//
// A LineStream has one consumer. Close must be called; closing before the
// end of the stream abandons the pipeline.
type LineStream struct {
	p       *Pipeline
	src     io.ReadCloser
	r       *bufio.Reader
	dec     *Decoder
	partial []byte
	n       int

	stderr  errgroup.Group
	stderrs map[int]*bytes.Buffer

	exhausted bool
	closed    bool
	err       error

	ctx     context.Context
	stop    func() bool
	release []func()
	once    sync.Once
	res     *Result
}

// Lines starts streaming p. An unclaimed stdin pipe on the first stage is
// closed, as in Collect. Cancelling ctx abandons the pipeline, and the
// Result then carries an IO_FAILED error.
func Lines(ctx context.Context, p *Pipeline) *LineStream {
	s := &LineStream{
		p:       p,
		dec:     p.decoder,
		stderrs: make(map[int]*bytes.Buffer),
		ctx:     ctx,
	}
	if s.dec == nil {
		s.dec = utf8Decoder
	}
	p.stages[0].closeStdin()
	if r := p.Terminal().Stdout(); r != nil {
		s.src = r
		s.r = bufio.NewReader(s.dec.reader(r))
	}
	for i, h := range p.stages {
		if r := h.Stderr(); r != nil {
			buf := new(bytes.Buffer)
			s.stderrs[i] = buf
			s.stderr.Go(func() error { return drainInto(buf, r, "stderr", i) })
		}
	}
	s.stop = context.AfterFunc(ctx, p.Abandon)
	return s
}

// Stream wraps Lines in a pipeline for use with pipeline operators. Closing
// the pipeline's iterator closes the stream.
func Stream(ctx context.Context, p *Pipeline) *pipeline.Pipeline[Line] {
	return pipeline.From[Line](Lines(ctx, p))
}

type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

// Next returns the next line. At end of output it returns ok=false.
// A read failure is returned as an IO_FAILED error and ends the stream.
// If ctx ends while Next is blocked, ctx.Err() is returned and a later call
// resumes where the read left off.
func (s *LineStream) Next(ctx context.Context) (Line, bool, error) {
	if s.err != nil {
		return Line{}, false, s.err
	}
	if s.exhausted || s.closed {
		return Line{}, false, nil
	}
	if s.r == nil {
		s.exhausted = true
		return Line{}, false, nil
	}
	if err := ctx.Err(); err != nil {
		return Line{}, false, err
	}

	if d, ok := s.src.(readDeadliner); ok {
		fired := make(chan struct{})
		stop := context.AfterFunc(ctx, func() {
			_ = d.SetReadDeadline(time.Now())
			close(fired)
		})
		defer func() {
			if !stop() {
				<-fired
				_ = d.SetReadDeadline(time.Time{})
			}
		}()
	}

	raw, err := s.r.ReadBytes('\n')
	if len(s.partial) > 0 {
		raw = append(s.partial, raw...)
		s.partial = nil
	}
	switch {
	case err == nil:
	case stderrors.Is(err, io.EOF):
		s.exhausted = true
		if len(raw) == 0 {
			return Line{}, false, nil
		}
	case stderrors.Is(err, os.ErrDeadlineExceeded) && ctx.Err() != nil:
		if s.dec.wide {
			// the converting reader keeps the error, so the stream cannot resume
			s.err = ctx.Err()
			s.p.Abandon()
			return Line{}, false, s.err
		}
		s.partial = raw
		return Line{}, false, ctx.Err()
	default:
		s.err = errors.IOFailed("stdout", err).WithDetail("stage", len(s.p.stages)-1)
		return Line{}, false, s.err
	}

	s.n++
	raw = trimEOL(raw)
	line := Line{Number: s.n, Raw: raw}
	text, derr := s.dec.decodeLine(raw)
	if derr != nil {
		line.Err = errors.Wrap(derr).WithDetail("line", s.n)
	} else {
		line.Text = text
	}
	return line, true, nil
}

// Close releases the stream. After the last line it reaps the pipeline;
// before that it abandons the pipeline and reaps it in the background.
func (s *LineStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.exhausted || s.err != nil {
		s.once.Do(s.finish)
		return nil
	}
	if s.src != nil {
		_ = s.src.Close()
	}
	s.p.Abandon()
	go s.once.Do(s.finish)
	return nil
}

// Result waits for every stage and returns the assembled result. It is an
// error to call it before the stream has ended or been closed.
func (s *LineStream) Result() (*Result, error) {
	if !s.exhausted && !s.closed && s.err == nil {
		return nil, errors.Internal("line stream has not ended", nil)
	}
	s.once.Do(s.finish)
	return s.res, s.res.Err
}

func (s *LineStream) finish() {
	if s.src != nil {
		_ = s.src.Close()
	}
	err := s.err
	if stderrErr := s.stderr.Wait(); err == nil {
		err = stderrErr
	}
	statuses, waitErr := s.p.Wait()
	if err == nil {
		err = waitErr
	}
	if !s.stop() && err == nil {
		err = interrupted(s.ctx)
	}
	s.res = s.p.result(nil, s.stderrs, statuses, err)
	s.res.Lines = s.n
	for _, fn := range s.release {
		fn()
	}
}

func trimEOL(b []byte) []byte {
	b = bytes.TrimSuffix(b, []byte{'\n'})
	return bytes.TrimSuffix(b, []byte{'\r'})
}
