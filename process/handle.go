package process

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"

	"github.com/kbukum/execkit/errors"
	"github.com/kbukum/execkit/logger"
	"github.com/kbukum/execkit/observability"
)

// DefaultGracePeriod is the wait between SIGTERM and SIGKILL when nothing else is configured.
const DefaultGracePeriod = 5 * time.Second

// ErrAlreadyWaited is returned by a second Wait on the same handle or pipeline.
var ErrAlreadyWaited = errors.New(errors.ErrCodeInternal, "process already waited")

// Handle is one spawned process and the orchestrator ends of its pipes.
//
// Exactly one goroutine, started by Spawn, calls exec.Cmd.Wait. Handle.Wait
// and Abandon only observe its result.
type Handle struct {
	id      string
	program string
	stage   int
	pid     int
	grace   time.Duration
	group   bool
	cmd     *exec.Cmd
	log     *logger.Logger
	started time.Time

	mu        sync.Mutex
	stdin     *os.File
	stdout    *os.File
	stderr    *os.File
	waited    bool
	abandoned bool

	done     chan struct{}
	status   Status
	waitErr  error
	duration time.Duration
}

// Spawn starts cmd and returns without waiting for it. The process runs in
// its own process group; cancelling ctx sends SIGTERM to the group and
// SIGKILL after the grace period.
func Spawn(ctx context.Context, cmd Command) (*Handle, error) {
	return defaultExecutor().Spawn(ctx, cmd)
}

// ID returns the handle's unique id.
func (h *Handle) ID() string { return h.id }

// PID returns the OS process id.
func (h *Handle) PID() int { return h.pid }

// Program returns the program name as given in the Command.
func (h *Handle) Program() string { return h.program }

// Stage returns the handle's position in its pipeline, 0 for a lone command.
func (h *Handle) Stage() int { return h.stage }

// Exited returns a channel closed once the process has been reaped.
func (h *Handle) Exited() <-chan struct{} { return h.done }

// Stdin claims the write end of a SinkPipe stdin. It returns nil if stdin is
// not a pipe or was already claimed. The caller must close it.
func (h *Handle) Stdin() io.WriteCloser {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stdin == nil {
		return nil
	}
	f := h.stdin
	h.stdin = nil
	return f
}

// Stdout claims the read end of a SinkPipe stdout. It returns nil if stdout
// is not a pipe or was already claimed. The caller must read it to EOF or close it.
func (h *Handle) Stdout() io.ReadCloser {
	f := h.claimRead(&h.stdout)
	if f == nil {
		return nil
	}
	return f
}

// Stderr claims the read end of a SinkPipe stderr, like Stdout.
func (h *Handle) Stderr() io.ReadCloser {
	f := h.claimRead(&h.stderr)
	if f == nil {
		return nil
	}
	return f
}

// closeStdin closes an unclaimed stdin pipe so the child sees EOF.
func (h *Handle) closeStdin() {
	h.mu.Lock()
	f := h.stdin
	h.stdin = nil
	h.mu.Unlock()
	if f != nil {
		_ = f.Close()
	}
}

func (h *Handle) claimRead(slot **os.File) *os.File {
	h.mu.Lock()
	defer h.mu.Unlock()
	f := *slot
	*slot = nil
	return f
}

// Wait blocks until the process exits. Pipe ends nobody claimed are drained
// and discarded meanwhile, and an unclaimed stdin pipe is closed so the
// child sees EOF. A second call returns ErrAlreadyWaited.
func (h *Handle) Wait() (Status, error) {
	finish, err := h.startWait()
	if err != nil {
		return Status{}, err
	}
	return finish()
}

// startWait takes the unclaimed ends and begins draining them. The returned
// func blocks until exit. Pipelines start every stage before finishing any.
func (h *Handle) startWait() (func() (Status, error), error) {
	h.mu.Lock()
	if h.waited {
		h.mu.Unlock()
		return nil, ErrAlreadyWaited
	}
	h.waited = true
	stdin := h.stdin
	var drains []*os.File
	for _, f := range []*os.File{h.stdout, h.stderr} {
		if f != nil {
			drains = append(drains, f)
		}
	}
	h.stdin, h.stdout, h.stderr = nil, nil, nil
	h.mu.Unlock()

	if stdin != nil {
		_ = stdin.Close()
	}
	var wg sync.WaitGroup
	for _, f := range drains {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = io.Copy(io.Discard, f)
		}()
	}

	return func() (Status, error) {
		<-h.done
		// A grandchild may still hold the write end; the output is discarded anyway.
		for _, f := range drains {
			_ = f.Close()
		}
		wg.Wait()
		return h.status, h.waitErr
	}, nil
}

// Abandon releases a handle the caller will not wait for: unclaimed pipe ends
// are closed, the process group gets SIGTERM and then SIGKILL after the grace
// period, and the process is reaped in the background. It may also be called
// while another goroutine is blocked in Wait. Calling it again, or after the
// process has exited, does nothing.
func (h *Handle) Abandon() {
	h.mu.Lock()
	if h.abandoned {
		h.mu.Unlock()
		return
	}
	h.abandoned = true
	owned := []*os.File{h.stdin, h.stdout, h.stderr}
	h.stdin, h.stdout, h.stderr = nil, nil, nil
	h.mu.Unlock()

	for _, f := range owned {
		if f != nil {
			_ = f.Close()
		}
	}
	h.terminate()
}

// Signal sends sig to the process group, or to the process alone when it
// shares the orchestrator's group.
func (h *Handle) Signal(sig syscall.Signal) error {
	select {
	case <-h.done:
		return os.ErrProcessDone
	default:
	}
	return syscall.Kill(signalTarget(h.pid, h.group), sig)
}

func signalTarget(pid int, group bool) int {
	if group {
		return -pid
	}
	return pid
}

var stdinIsTerminal = func() bool { return isatty.IsTerminal(os.Stdin.Fd()) }

// ownsGroup reports whether a child with this stdin gets its own process
// group. A child reading the orchestrator's terminal stays in the foreground
// group, where a terminal read does not stop it with SIGTTIN.
func ownsGroup(stdin Sink) bool {
	return stdin.kind != SinkInherit || !stdinIsTerminal()
}

func (h *Handle) terminate() {
	if err := h.Signal(syscall.SIGTERM); err != nil {
		return
	}
	h.log.Debug("process abandoned", logger.Fields("grace", h.grace.String()))
	go func() {
		t := time.NewTimer(h.grace)
		defer t.Stop()
		select {
		case <-h.done:
		case <-t.C:
			h.log.Warn("process ignored SIGTERM, killing")
			_ = h.Signal(syscall.SIGKILL)
		}
	}()
}

// spawnEnv carries what an executor contributes to one spawn.
type spawnEnv struct {
	log        *logger.Logger
	grace      time.Duration
	registry   *Registry
	metrics    *observability.ProcessMetrics
	pipelineID string
	stage      int
}

func (e spawnEnv) spawn(ctx context.Context, cmd Command) (*Handle, error) {
	// Chained pipe ends belong to this spawn whatever happens.
	defer closeChained(cmd)

	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	if e.registry != nil && e.registry.Closed() {
		return nil, errors.Internal("registry is shut down", nil).WithDetail("program", cmd.Program)
	}

	path, err := exec.LookPath(cmd.Program)
	if err != nil {
		e.metrics.RecordSpawnFailure(ctx, cmd.Program)
		return nil, errors.SpawnFailed(cmd.Program, err)
	}

	grace := cmd.GracePeriod
	if grace == 0 {
		grace = e.grace
	}
	if grace == 0 {
		grace = DefaultGracePeriod
	}

	c := exec.CommandContext(ctx, path, cmd.Args...) //nolint:gosec // dynamic args are the purpose of this package
	c.Args[0] = cmd.Program
	c.Dir = cmd.Dir
	c.Env = mergeEnv(cmd.Env)
	group := ownsGroup(cmd.Stdin)
	configureSysProcAttr(c, group)
	// Don't let exec.CommandContext kill with SIGKILL immediately
	c.Cancel = func() error {
		return syscall.Kill(signalTarget(c.Process.Pid, group), syscall.SIGTERM)
	}
	c.WaitDelay = grace

	h := &Handle{
		id:      uuid.NewString(),
		program: cmd.Program,
		stage:   e.stage,
		grace:   grace,
		group:   group,
		cmd:     c,
		done:    make(chan struct{}),
	}

	var w wiring
	if h.stdin, err = w.input(ctx, c, cmd.Stdin); err == nil {
		if h.stdout, err = w.output(ctx, &c.Stdout, "stdout", cmd.Stdout, os.Stdout); err == nil {
			h.stderr, err = w.output(ctx, &c.Stderr, "stderr", cmd.Stderr, os.Stderr)
		}
	}
	if err != nil {
		w.abort()
		e.metrics.RecordSpawnFailure(ctx, cmd.Program)
		if appErr, ok := errors.AsAppError(err); ok {
			return nil, appErr.WithDetail("program", cmd.Program)
		}
		return nil, errors.IOFailed("spawn", err).WithDetail("program", cmd.Program)
	}

	if err := c.Start(); err != nil {
		w.abort()
		e.metrics.RecordSpawnFailure(ctx, cmd.Program)
		return nil, errors.SpawnFailed(cmd.Program, err)
	}
	w.started()

	h.pid = c.Process.Pid
	h.started = time.Now()
	fields := logger.Fields(
		logger.FieldHandleID, h.id,
		logger.FieldProgram, h.program,
		logger.FieldPID, h.pid,
		logger.FieldStage, h.stage,
	)
	if e.pipelineID != "" {
		fields[logger.FieldPipelineID] = e.pipelineID
	}
	h.log = e.log.WithFields(fields)

	if !e.admit(ctx, h) {
		go h.reap(ctx, e)
		return nil, errors.Internal("registry is shut down", nil).WithDetail("program", cmd.Program)
	}
	h.log.Debug("process spawned")

	go h.reap(ctx, e)
	return h, nil
}

// admit counts h as live and registers it. A handle the registry refuses is
// abandoned; its reap still records the exit that balances the count.
func (e spawnEnv) admit(ctx context.Context, h *Handle) bool {
	e.metrics.RecordSpawn(ctx, h.program)
	if e.registry != nil && !e.registry.add(h) {
		h.Abandon()
		return false
	}
	return true
}

// reap is the only caller of cmd.Wait for this process.
func (h *Handle) reap(ctx context.Context, e spawnEnv) {
	err := h.cmd.Wait()
	h.duration = time.Since(h.started)
	h.status = statusFromState(h.cmd.ProcessState)

	var exitErr *exec.ExitError
	switch {
	case err == nil, stderrors.As(err, &exitErr):
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		// exited on its own after cancellation; the status says how
	default:
		h.waitErr = errors.IOFailed("stdin", err).WithDetail("program", h.program)
	}

	class := h.status.Classify()
	if h.waitErr != nil {
		class = IOFailed
	}
	h.log.Debug("process exited", logger.Fields(
		logger.FieldExitCode, h.status.Code,
		logger.FieldClassification, class.String(),
		logger.FieldDuration, h.duration.Milliseconds(),
	))
	e.metrics.RecordExit(context.WithoutCancel(ctx), h.program, class.String(), h.duration)
	if e.registry != nil {
		e.registry.remove(h)
	}
	close(h.done)
}

func closeChained(cmd Command) {
	for _, s := range []Sink{cmd.Stdin, cmd.Stdout, cmd.Stderr} {
		if s.kind == sinkChain && s.chain != nil {
			_ = s.chain.Close()
		}
	}
}

// wiring tracks descriptors allocated while preparing one spawn.
type wiring struct {
	childEnds  []*os.File // closed once the child holds its copies
	parentEnds []*os.File // kept by the handle unless spawn fails
	refs       []*SharedFile
	lazy       map[string]*SharedFile
}

func (w *wiring) file(ctx context.Context, s Sink) (*os.File, error) {
	sf := s.shared
	if sf == nil {
		sf = w.lazy[s.path]
		if sf == nil {
			opened, err := OpenFile(ctx, s.path, s.mode)
			if err != nil {
				return nil, err
			}
			if w.lazy == nil {
				w.lazy = make(map[string]*SharedFile)
			}
			w.lazy[s.path] = opened
			// the open's own reference, dropped with the others after start
			w.refs = append(w.refs, opened)
			sf = opened
		}
	}
	f, err := sf.acquire()
	if err != nil {
		return nil, err
	}
	w.refs = append(w.refs, sf)
	return f, nil
}

func (w *wiring) input(ctx context.Context, c *exec.Cmd, s Sink) (*os.File, error) {
	switch s.kind {
	case SinkInherit:
		c.Stdin = os.Stdin
	case SinkPipe:
		r, pw, err := os.Pipe()
		if err != nil {
			return nil, errors.IOFailed("stdin", err)
		}
		w.childEnds = append(w.childEnds, r)
		w.parentEnds = append(w.parentEnds, pw)
		c.Stdin = r
		return pw, nil
	case SinkFile:
		f, err := w.file(ctx, s)
		if err != nil {
			return nil, err
		}
		c.Stdin = f
	case SinkReader:
		c.Stdin = s.reader
	case sinkChain:
		c.Stdin = s.chain
	}
	// SinkDefault and SinkDiscard leave Stdin nil: the child reads the null device.
	return nil, nil
}

func (w *wiring) output(ctx context.Context, dst *io.Writer, stream string, s Sink, std *os.File) (*os.File, error) {
	switch s.kind {
	case SinkDefault, SinkInherit:
		*dst = std
	case SinkPipe:
		pr, pw, err := os.Pipe()
		if err != nil {
			return nil, errors.IOFailed(stream, err)
		}
		w.childEnds = append(w.childEnds, pw)
		w.parentEnds = append(w.parentEnds, pr)
		*dst = pw
		return pr, nil
	case SinkFile:
		f, err := w.file(ctx, s)
		if err != nil {
			return nil, err
		}
		*dst = f
	case sinkChain:
		*dst = s.chain
	}
	// SinkDiscard leaves the writer nil: the child writes to the null device.
	return nil, nil
}

func (w *wiring) started() {
	for _, f := range w.childEnds {
		_ = f.Close()
	}
	for _, sf := range w.refs {
		_ = sf.release()
	}
}

func (w *wiring) abort() {
	w.started()
	for _, f := range w.parentEnds {
		_ = f.Close()
	}
}
