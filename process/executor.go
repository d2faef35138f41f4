package process

import (
	"context"

	"github.com/kbukum/execkit/logger"
	"github.com/kbukum/execkit/observability"
	"github.com/kbukum/execkit/resilience"
)

// Executor spawns commands and pipelines with shared settings. Handles it
// spawns are tracked in its Registry until reaped; Close abandons whatever is
// still running.
type Executor struct {
	cfg      Config
	log      *logger.Logger
	registry *Registry
	metrics  *observability.ProcessMetrics
	decoder  *Decoder
	limit    *resilience.Bulkhead
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the executor's logger.
func WithLogger(l *logger.Logger) Option {
	return func(e *Executor) { e.log = l }
}

// WithRegistry shares a registry between executors.
func WithRegistry(r *Registry) Option {
	return func(e *Executor) { e.registry = r }
}

// WithMetrics records spawns and exits on m.
func WithMetrics(m *observability.ProcessMetrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// NewExecutor creates an executor. Zero config fields get defaults.
func NewExecutor(cfg Config, opts ...Option) (*Executor, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dec, err := NewDecoder(cfg.Encoding)
	if err != nil {
		return nil, err
	}
	e := &Executor{cfg: cfg, decoder: dec, registry: NewRegistry()}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logger.Get("process")
	}
	if cfg.MaxConcurrent > 0 {
		e.limit = resilience.NewBulkhead(resilience.BulkheadConfig{
			Name:          cfg.Name,
			MaxConcurrent: cfg.MaxConcurrent,
			MaxWait:       cfg.QueueWait,
			OnReject: func(name string) {
				e.log.Warn("concurrency limit reached", logger.Fields(logger.FieldComponent, name))
			},
		})
	}
	return e, nil
}

// defaultExecutor backs the package-level functions. It has no registry.
func defaultExecutor() *Executor {
	return &Executor{
		cfg:     Config{Name: "process", GracePeriod: DefaultGracePeriod, Encoding: DefaultEncoding},
		log:     logger.Get("process"),
		decoder: utf8Decoder,
	}
}

// acquire takes a concurrency slot when MaxConcurrent is set.
func (e *Executor) acquire(ctx context.Context) (func(), error) {
	if e.limit == nil {
		return func() {}, nil
	}
	return e.limit.Acquire(ctx)
}

// Config returns the effective configuration.
func (e *Executor) Config() Config { return e.cfg }

// Registry returns the registry tracking this executor's live handles.
func (e *Executor) Registry() *Registry { return e.registry }

func (e *Executor) env() spawnEnv {
	return spawnEnv{
		log:      e.log,
		grace:    e.cfg.GracePeriod,
		registry: e.registry,
		metrics:  e.metrics,
	}
}

// Spawn starts one command. See the package-level Spawn.
func (e *Executor) Spawn(ctx context.Context, cmd Command) (*Handle, error) {
	spanCtx, span := observability.StartSpan(ctx, observability.SpanProcessSpawn)
	defer span.End()
	observability.SetSpanAttribute(spanCtx, observability.AttrProgram, cmd.Program)

	h, err := e.env().spawn(ctx, cmd)
	if err != nil {
		observability.SetSpanError(spanCtx, err)
		return nil, err
	}
	observability.SetSpanAttribute(spanCtx, observability.AttrPID, h.pid)
	return h, nil
}

// Build spawns and connects a pipeline. See the package-level Build.
func (e *Executor) Build(ctx context.Context, stages ...Command) (*Pipeline, error) {
	spanCtx, span := observability.StartSpan(ctx, observability.SpanProcessBuild)
	defer span.End()
	observability.SetSpanAttribute(spanCtx, observability.AttrStages, len(stages))

	p, err := e.env().build(ctx, e.decoder, stages)
	if err != nil {
		observability.SetSpanError(spanCtx, err)
		return nil, err
	}
	observability.SetSpanAttribute(spanCtx, observability.AttrPipelineID, p.id)
	return p, nil
}

// Run executes one command and collects its output. Stdout and stderr left
// at SinkDefault are captured. Unlike Collect, a non-success outcome is
// returned as an error together with the result.
func (e *Executor) Run(ctx context.Context, cmd Command) (*Result, error) {
	return e.RunPipeline(ctx, cmd)
}

// RunPipeline builds stages, collects the output and checks the outcome.
// The terminal stage's stdout and stderr are captured when left at SinkDefault.
func (e *Executor) RunPipeline(ctx context.Context, stages ...Command) (*Result, error) {
	release, err := e.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}
	p, err := e.Build(ctx, captureTerminal(stages)...)
	if err != nil {
		return nil, err
	}
	res, err := Collect(ctx, p)
	if err != nil {
		return res, err
	}
	e.logOutcome(res)
	return res, res.Check()
}

// RunLines builds stages and streams the terminal stage's stdout.
// The concurrency slot is held until the stream is closed.
func (e *Executor) RunLines(ctx context.Context, stages ...Command) (*LineStream, error) {
	release, err := e.acquire(ctx)
	if err != nil {
		return nil, err
	}
	cancel := context.CancelFunc(func() {})
	if e.cfg.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
	}
	p, err := e.Build(ctx, captureTerminal(stages)...)
	if err != nil {
		cancel()
		release()
		return nil, err
	}
	s := Lines(ctx, p)
	s.release = append(s.release, cancel, release)
	return s, nil
}

// Close abandons every live handle and waits up to StopTimeout for them to be reaped.
func (e *Executor) Close(ctx context.Context) error {
	if e.registry == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, e.cfg.StopTimeout)
	defer cancel()
	if err := e.registry.Shutdown(ctx); err != nil {
		e.log.WithError(err).Warn("executor closed with live processes")
		return err
	}
	return nil
}

func (e *Executor) logOutcome(res *Result) {
	fields := logger.Fields(
		logger.FieldPipelineID, res.ID,
		logger.FieldProgram, res.Program,
		logger.FieldClassification, res.Classification.String(),
		logger.FieldExitCode, res.Status.Code,
		logger.FieldDuration, res.Duration.Milliseconds(),
	)
	if res.Success() {
		e.log.Debug("command finished", fields)
		return
	}
	e.log.Info("command failed", fields)
}

// captureTerminal returns a copy of stages with the terminal stage's default
// stdout and stderr turned into pipes.
func captureTerminal(stages []Command) []Command {
	if len(stages) == 0 {
		return stages
	}
	out := make([]Command, len(stages))
	copy(out, stages)
	last := &out[len(out)-1]
	if last.Stdout.IsDefault() {
		last.Stdout = Pipe()
	}
	if last.Stderr.IsDefault() {
		last.Stderr = Pipe()
	}
	return out
}

// Run executes cmd with default settings. See Executor.Run.
func Run(ctx context.Context, cmd Command) (*Result, error) {
	return defaultExecutor().Run(ctx, cmd)
}

// RunPipeline runs stages with default settings. See Executor.RunPipeline.
func RunPipeline(ctx context.Context, stages ...Command) (*Result, error) {
	return defaultExecutor().RunPipeline(ctx, stages...)
}
