package process

import (
	"context"
	"os/exec"
	"strconv"

	"github.com/kbukum/execkit/observability"
	"github.com/kbukum/execkit/provider"
)

// compile-time assertions
var (
	_ provider.RequestResponse[Command, *Result] = (*Adapter)(nil)
	_ provider.Closeable                         = (*Adapter)(nil)
	_ provider.Stream[Command, Line]             = (*lineProvider)(nil)
	_ provider.Iterator[Line]                    = (*LineStream)(nil)
	_ observability.HealthChecker                = (*Adapter)(nil)
	_ observability.HealthChecker                = ProgramCheck("")
)

// Adapter wraps subprocess execution as a provider.RequestResponse.
type Adapter struct {
	exec *Executor
}

// NewAdapter creates a new process adapter backed by its own Executor.
func NewAdapter(cfg Config, opts ...Option) (*Adapter, error) {
	e, err := NewExecutor(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &Adapter{exec: e}, nil
}

// Executor returns the underlying executor.
func (a *Adapter) Executor() *Executor { return a.exec }

// Name returns the adapter name (implements provider.Provider).
func (a *Adapter) Name() string {
	return a.exec.cfg.Name
}

// IsAvailable reports whether the adapter still accepts work (implements provider.Provider).
func (a *Adapter) IsAvailable(_ context.Context) bool {
	return !a.exec.registry.Closed()
}

// Execute runs a command (implements provider.RequestResponse[Command, *Result]).
func (a *Adapter) Execute(ctx context.Context, cmd Command) (*Result, error) {
	return a.exec.Run(ctx, cmd)
}

// Stream runs a command and yields its stdout line by line.
func (a *Adapter) Stream(ctx context.Context, cmd Command) (provider.Iterator[Line], error) {
	s, err := a.exec.RunLines(ctx, cmd)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Lines returns a streaming view of the adapter: Execute yields the
// command's stdout line by line.
func (a *Adapter) Lines() provider.Stream[Command, Line] {
	return &lineProvider{a: a}
}

// Close stops every process the adapter still runs.
func (a *Adapter) Close(ctx context.Context) error {
	return a.exec.Close(ctx)
}

// CheckHealth reports the adapter down once closed, and lists the number of
// live processes.
func (a *Adapter) CheckHealth(_ context.Context) observability.Health {
	h := observability.Health{
		Name:    a.Name(),
		Status:  observability.HealthStatusUp,
		Details: map[string]string{"live": strconv.Itoa(a.exec.registry.Len())},
	}
	if a.exec.registry.Closed() {
		h.Status = observability.HealthStatusDown
		h.Message = "executor closed"
	}
	return h
}

type lineProvider struct {
	a *Adapter
}

func (l *lineProvider) Name() string                         { return l.a.Name() + ".lines" }
func (l *lineProvider) IsAvailable(ctx context.Context) bool { return l.a.IsAvailable(ctx) }

func (l *lineProvider) Execute(ctx context.Context, cmd Command) (provider.Iterator[Line], error) {
	return l.a.Stream(ctx, cmd)
}

// ProgramCheck is a health check that passes when the named program
// resolves on PATH.
type ProgramCheck string

// CheckHealth implements observability.HealthChecker.
func (p ProgramCheck) CheckHealth(_ context.Context) observability.Health {
	h := observability.Health{Name: string(p), Status: observability.HealthStatusUp}
	path, err := exec.LookPath(string(p))
	if err != nil {
		h.Status = observability.HealthStatusDown
		h.Message = err.Error()
		return h
	}
	h.Details = map[string]string{"path": path}
	return h
}

// SubprocessProvider exposes a program as a typed provider: buildCmd turns
// an input into a Command and parseOut turns a successful Result into the
// output.
type SubprocessProvider[I, O any] struct {
	provider.RequestResponse[I, O]
	available func(context.Context) bool
}

// NewSubprocessProvider creates a RequestResponse provider backed by
// subprocess execution. A nil executor uses the package defaults.
func NewSubprocessProvider[I, O any](
	name string,
	executor *Executor,
	buildCmd func(I) Command,
	parseOut func(*Result) (O, error),
) *SubprocessProvider[I, O] {
	if executor == nil {
		executor = defaultExecutor()
	}
	return &SubprocessProvider[I, O]{
		RequestResponse: provider.Adapt(
			provider.RequestResponse[Command, *Result](&Adapter{exec: executor}),
			name,
			func(_ context.Context, in I) (Command, error) { return buildCmd(in), nil },
			parseOut,
		),
	}
}

// WithAvailabilityCheck sets the check IsAvailable runs.
func (p *SubprocessProvider[I, O]) WithAvailabilityCheck(fn func(context.Context) bool) *SubprocessProvider[I, O] {
	p.available = fn
	return p
}

// ProgramAvailable returns an availability check that looks program up in PATH.
func ProgramAvailable(program string) func(context.Context) bool {
	return func(context.Context) bool {
		_, err := exec.LookPath(program)
		return err == nil
	}
}

// IsAvailable runs the availability check, if one is set.
func (p *SubprocessProvider[I, O]) IsAvailable(ctx context.Context) bool {
	if p.available != nil {
		return p.available(ctx)
	}
	return p.RequestResponse.IsAvailable(ctx)
}
