package process

import (
	"bytes"
	"context"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kbukum/execkit/errors"
	"github.com/kbukum/execkit/observability"
)

// Collect materializes a pipeline's output. It reads the terminal stage's
// stdout and every piped stderr to EOF while the processes run, then waits
// for all stages, so a full pipe can never stall a child.
//
// An unclaimed stdin pipe on the first stage is closed before reading, so the
// child sees EOF. Claim it with p.Stage(0).Stdin() beforehand to feed it.
//
// A non-success exit is not an error here: inspect Result.Classification or
// call Result.Check. The returned error is the collection error, also stored
// in Result.Err, and is returned alongside the partial result.
// Cancelling ctx abandons the pipeline and is reported as IO_FAILED.
func Collect(ctx context.Context, p *Pipeline) (*Result, error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanProcessCollect)
	defer span.End()
	observability.SetSpanAttribute(ctx, observability.AttrPipelineID, p.id)

	p.stages[0].closeStdin()
	stop := context.AfterFunc(ctx, p.Abandon)

	var stdout bytes.Buffer
	stderrs := make(map[int]*bytes.Buffer)
	var g errgroup.Group
	if r := p.Terminal().Stdout(); r != nil {
		g.Go(func() error { return drainInto(&stdout, r, "stdout", len(p.stages)-1) })
	}
	for i, h := range p.stages {
		if r := h.Stderr(); r != nil {
			buf := new(bytes.Buffer)
			stderrs[i] = buf
			g.Go(func() error { return drainInto(buf, r, "stderr", i) })
		}
	}

	readErr := g.Wait()
	statuses, waitErr := p.Wait()
	if readErr == nil {
		readErr = waitErr
	}
	if !stop() && readErr == nil {
		readErr = interrupted(ctx)
	}

	res := p.result(stdout.Bytes(), stderrs, statuses, readErr)
	observability.SetSpanAttribute(ctx, observability.AttrClassification, res.Classification.String())
	if res.Err != nil {
		observability.SetSpanError(ctx, res.Err)
	}
	return res, res.Err
}

// interrupted is the collection error for a pipeline abandoned because ctx ended.
func interrupted(ctx context.Context) error {
	return errors.IOFailed("stdout", context.Cause(ctx)).WithDetail("reason", "collection interrupted")
}

// drainInto copies r into buf until EOF. The reader is always closed.
func drainInto(buf *bytes.Buffer, r io.ReadCloser, stream string, stage int) error {
	defer r.Close()
	if _, err := io.Copy(buf, r); err != nil {
		return errors.IOFailed(stream, err).WithDetail("stage", stage)
	}
	return nil
}

// result assembles the immutable Result once every stage has been waited.
func (p *Pipeline) result(stdout []byte, stderrs map[int]*bytes.Buffer, statuses []Status, err error) *Result {
	last := len(p.stages) - 1
	res := &Result{
		ID:            p.id,
		Program:       p.stages[last].program,
		Stdout:        stdout,
		StageStatuses: statuses,
		Duration:      time.Since(p.started),
		Err:           err,
		decoder:       p.decoder,
	}
	if len(stderrs) > 0 {
		res.StageStderr = make(map[int][]byte, len(stderrs))
		for i, buf := range stderrs {
			res.StageStderr[i] = buf.Bytes()
		}
		res.Stderr = res.StageStderr[last]
	}
	if len(statuses) == len(p.stages) {
		res.Status = statuses[last]
	}
	res.Classification = classify(res.Status, err)
	return res
}
