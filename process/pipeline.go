package process

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/execkit/errors"
	"github.com/kbukum/execkit/logger"
)

// Pipeline is an ordered chain of running processes in which each stage's
// stdout feeds the next stage's stdin. Only the first stage's stdin and the
// last stage's stdout are visible outside the chain.
type Pipeline struct {
	id      string
	stages  []*Handle
	decoder *Decoder
	log     *logger.Logger
	started time.Time

	mu     sync.Mutex
	waited bool
}

// Build spawns stages in order and connects them. On failure every stage
// already started is abandoned and reaped before Build returns.
func Build(ctx context.Context, stages ...Command) (*Pipeline, error) {
	return defaultExecutor().Build(ctx, stages...)
}

// ID returns the pipeline id.
func (p *Pipeline) ID() string { return p.id }

// Stages returns the handles in pipeline order.
func (p *Pipeline) Stages() []*Handle {
	out := make([]*Handle, len(p.stages))
	copy(out, p.stages)
	return out
}

// Len returns the number of stages.
func (p *Pipeline) Len() int { return len(p.stages) }

// Stage returns the handle at index i.
func (p *Pipeline) Stage(i int) *Handle { return p.stages[i] }

// Terminal returns the last stage.
func (p *Pipeline) Terminal() *Handle { return p.stages[len(p.stages)-1] }

// Wait waits for every stage and returns their statuses in order. Unclaimed
// pipes of all stages are drained first, so no stage can stall another. The
// error is the first collection error reported by any stage.
func (p *Pipeline) Wait() ([]Status, error) {
	p.mu.Lock()
	if p.waited {
		p.mu.Unlock()
		return nil, ErrAlreadyWaited
	}
	p.waited = true
	p.mu.Unlock()

	finishers := make([]func() (Status, error), len(p.stages))
	var firstErr error
	for i, h := range p.stages {
		finish, err := h.startWait()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			// waited elsewhere; its exit is still observable
			finish = func() (Status, error) {
				<-h.done
				return h.status, nil
			}
		}
		finishers[i] = finish
	}

	statuses := make([]Status, len(p.stages))
	for i, finish := range finishers {
		st, err := finish()
		statuses[i] = st
		if err != nil && firstErr == nil {
			firstErr = errors.Wrap(err).WithDetail("stage", i)
		}
	}

	log := p.log.WithFields(logger.Fields(logger.FieldDuration, time.Since(p.started).Milliseconds()))
	for i, st := range statuses[:len(statuses)-1] {
		if !st.Success() {
			log.Debug("intermediate stage did not succeed", logger.Fields(
				logger.FieldStage, i,
				logger.FieldProgram, p.stages[i].program,
				logger.FieldExitCode, st.Code,
			))
		}
	}
	return statuses, firstErr
}

// Abandon abandons every stage, last first.
func (p *Pipeline) Abandon() {
	for i := len(p.stages) - 1; i >= 0; i-- {
		p.stages[i].Abandon()
	}
}

// build is Executor.Build after validation.
func (e spawnEnv) build(ctx context.Context, dec *Decoder, stages []Command) (*Pipeline, error) {
	if err := validateStages(stages); err != nil {
		return nil, err
	}

	p := &Pipeline{
		id:      uuid.NewString(),
		decoder: dec,
		started: time.Now(),
	}
	e.pipelineID = p.id
	p.log = e.log.WithFields(logger.Fields(logger.FieldPipelineID, p.id))

	last := len(stages) - 1
	var upstream *os.File
	for i, cmd := range stages {
		if upstream != nil {
			cmd.Stdin = chained(upstream)
			upstream = nil
		}
		var next *os.File
		if i < last {
			r, w, err := os.Pipe()
			if err != nil {
				closeChained(cmd)
				p.unwind()
				return nil, errors.IOFailed("pipe", err).WithDetail("stage", i)
			}
			cmd.Stdout = chained(w)
			next = r
		}

		e.stage = i
		h, err := e.spawn(ctx, cmd)
		if err != nil {
			if next != nil {
				_ = next.Close()
			}
			p.unwind()
			p.log.Debug("pipeline build failed", logger.Fields(
				logger.FieldStage, i,
				logger.FieldProgram, cmd.Program,
				logger.FieldError, err.Error(),
			))
			return nil, errors.Wrap(err).WithDetail("stage", i).WithDetail("program", cmd.Program)
		}
		p.stages = append(p.stages, h)
		upstream = next
	}

	p.log.Debug("pipeline started", logger.Fields("stages", len(p.stages)))
	return p, nil
}

// unwind abandons and reaps the stages started so far.
func (p *Pipeline) unwind() {
	p.Abandon()
	for _, h := range p.stages {
		<-h.done
	}
}
