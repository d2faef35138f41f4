package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/kbukum/execkit/errors"
	"github.com/kbukum/execkit/logger"
	"github.com/kbukum/execkit/observability"
	"github.com/kbukum/execkit/pipeline"
	"github.com/kbukum/execkit/process"
	"github.com/kbukum/execkit/textmatch"
	"github.com/kbukum/execkit/version"
)

const (
	exitFailure = 1
	exitUsage   = 2
	exitSpawn   = 127
)

type options struct {
	configPath string
	stream     bool
	match      []string
	ignoreCase bool
	take       int
	out        string
	appendOut  bool
	stderr     bool
	health     bool
	version    bool
}

// streaming reports whether output is consumed line by line.
func (o *options) streaming() bool {
	return o.stream || len(o.match) > 0 || o.take > 0
}

func parseFlags(args []string, stderr io.Writer) (*options, []string, error) {
	o := &options{}
	fs := pflag.NewFlagSet("execkit", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SetInterspersed(false)
	fs.StringVarP(&o.configPath, "config", "c", "", "config file (default ./execkit.yml)")
	fs.BoolVar(&o.stream, "stream", false, "print the terminal stage's output line by line as it arrives")
	fs.StringArrayVarP(&o.match, "match", "m", nil, "print only lines matching `PATTERN` (repeatable, implies --stream)")
	fs.BoolVarP(&o.ignoreCase, "ignore-case", "i", false, "match patterns case-insensitively")
	fs.IntVar(&o.take, "take", 0, "stop after `N` printed lines (implies --stream)")
	fs.StringVarP(&o.out, "out", "o", "", "write the terminal stage's stdout and stderr to `FILE`")
	fs.BoolVar(&o.appendOut, "append", false, "append to --out instead of truncating it")
	fs.BoolVar(&o.stderr, "stderr", false, "capture every stage's stderr and print it when the pipeline fails")
	fs.BoolVar(&o.health, "health", false, "check that every program resolves on PATH and exit")
	fs.BoolVar(&o.version, "version", false, "print version and exit")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: execkit [flags] -- program [args...] [| program [args...]]...")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	if o.take < 0 {
		return nil, nil, errors.InvalidInput("take", "must not be negative")
	}
	if o.out != "" && o.streaming() {
		return nil, nil, errors.InvalidInput("out", "cannot be combined with --stream, --match or --take")
	}
	return o, fs.Args(), nil
}

// splitStages turns "a x | b y" into one Command per stage.
func splitStages(args []string) ([]process.Command, error) {
	if len(args) == 0 {
		return nil, errors.InvalidInput("command", "no program given")
	}
	var (
		stages []process.Command
		cur    []string
	)
	flush := func() error {
		if len(cur) == 0 {
			return errors.InvalidInput("command", fmt.Sprintf("stage %d is empty", len(stages)))
		}
		stages = append(stages, process.Command{Program: cur[0], Args: cur[1:]})
		cur = nil
		return nil
	}
	for _, a := range args {
		if a != "|" {
			cur = append(cur, a)
			continue
		}
		if err := flush(); err != nil {
			return nil, err
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return stages, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	o, rest, err := parseFlags(args, stderr)
	if err != nil {
		if stderrors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "execkit: %v\n", err)
		return exitUsage
	}
	if o.version {
		fmt.Fprintln(stdout, "execkit", version.Get())
		return 0
	}
	stages, err := splitStages(rest)
	if err != nil {
		fmt.Fprintf(stderr, "execkit: %v\n", err)
		return exitUsage
	}
	cfg, err := loadConfig(o.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "execkit: config: %v\n", err)
		return exitUsage
	}

	log := logger.NewWithWriter(stderr, &cfg.Logging, cfg.Name)
	logger.SetGlobalLogger(log)
	logger.Register("process", log.WithComponent("process"))

	if o.health {
		return checkHealth(ctx, cfg, stages, stdout)
	}

	tel, err := startTelemetry(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Error("telemetry setup failed")
		return exitFailure
	}
	defer tel.shutdown(context.WithoutCancel(ctx))

	exec, err := process.NewExecutor(cfg.Process,
		process.WithLogger(logger.Get("process")),
		process.WithMetrics(tel.process),
	)
	if err != nil {
		fmt.Fprintf(stderr, "execkit: %v\n", err)
		return exitUsage
	}
	defer exec.Close(context.WithoutCancel(ctx))

	op := observability.NewOperation(cfg.Name, "run", uuid.NewString(), tel.metrics)
	ctx = op.Start(ctx, observability.SpanProcessRun)

	if o.stderr {
		pipeStageStderr(stages)
	}
	var (
		res   *process.Result
		early bool
	)
	if o.streaming() {
		res, early, err = streamLines(ctx, exec, stages, o, stdout, log)
		if res != nil {
			if o.stderr && !early {
				printStageStderr(stderr, stages, res)
			}
			_, _ = stderr.Write(res.Stderr)
		}
	} else {
		res, err = collect(ctx, exec, stages, o, stdout, stderr)
	}

	status := "error"
	if res != nil {
		status = res.Classification.String()
	}
	if early {
		status, err = process.Success.String(), nil
	}
	op.End(ctx, status, err)

	if early {
		return 0
	}
	if err != nil && !errors.IsCode(err, errors.ErrCodeNonZeroExit) {
		fmt.Fprintf(stderr, "execkit: %v\n", err)
	}
	return exitCode(res, err)
}

// collect runs the pipeline to completion and copies its captured output.
func collect(ctx context.Context, exec *process.Executor, stages []process.Command, o *options, stdout, stderr io.Writer) (*process.Result, error) {
	last := len(stages) - 1
	if o.out != "" {
		mode := process.FileCreate
		if o.appendOut {
			mode = process.FileAppend
		}
		sf, err := process.OpenFile(ctx, o.out, mode, process.WithLock())
		if err != nil {
			return nil, err
		}
		defer sf.Close()
		stages[last].Stdout = process.ToFile(sf)
		stages[last].Stderr = process.ToFile(sf)
	}

	res, err := exec.RunPipeline(ctx, stages...)
	if res == nil {
		return nil, err
	}
	_, _ = stdout.Write(res.Stdout)
	if o.stderr {
		printStageStderr(stderr, stages, res)
	}
	_, _ = stderr.Write(res.Stderr)
	return res, err
}

// pipeStageStderr captures the stderr of every stage but the last.
func pipeStageStderr(stages []process.Command) {
	for i := range stages[:len(stages)-1] {
		stages[i].Stderr = process.Pipe()
	}
}

// printStageStderr prints what earlier stages wrote to stderr when the
// pipeline failed.
func printStageStderr(w io.Writer, stages []process.Command, res *process.Result) {
	if res.Success() {
		return
	}
	for i := range stages[:len(stages)-1] {
		if b := res.StageStderr[i]; len(b) > 0 {
			fmt.Fprintf(w, "[%d %s] %s", i, stages[i].Program, b)
		}
	}
}

// streamLines prints terminal output as it arrives. early is set when --take
// stopped the stream before the pipeline finished on its own.
func streamLines(ctx context.Context, exec *process.Executor, stages []process.Command, o *options, stdout io.Writer, log *logger.Logger) (*process.Result, bool, error) {
	var set *textmatch.Set
	if len(o.match) > 0 {
		var err error
		if set, err = textmatch.Compile(o.match, o.ignoreCase); err != nil {
			return nil, false, err
		}
	}

	s, err := exec.RunLines(ctx, stages...)
	if err != nil {
		return nil, false, err
	}
	lines := pipeline.Filter(pipeline.From[process.Line](s), func(l process.Line) bool {
		if l.Err != nil {
			log.Warn("skipping undecodable line", logger.MergeWithError(logger.Fields("line", l.Number), l.Err))
			return false
		}
		return set == nil || set.Match(l.Text)
	})
	if o.take > 0 {
		lines = pipeline.Take(lines, o.take)
	}

	printed := 0
	err = pipeline.ForEach(ctx, lines, func(_ context.Context, l process.Line) error {
		printed++
		_, err := fmt.Fprintln(stdout, l.Text)
		return err
	})
	_ = s.Close()
	res, resErr := s.Result()
	if err == nil {
		err = resErr
	}
	if err == nil && res != nil {
		err = res.Check()
	}
	early := o.take > 0 && printed == o.take && res != nil && !res.Success()
	return res, early, err
}

func exitCode(res *process.Result, err error) int {
	if res == nil {
		switch {
		case err == nil:
			return 0
		case errors.IsCode(err, errors.ErrCodeSpawnFailed):
			return exitSpawn
		case errors.IsCode(err, errors.ErrCodeInvalidInput):
			return exitUsage
		default:
			return exitFailure
		}
	}
	switch res.Classification {
	case process.Success:
		return 0
	case process.NonZeroExit:
		return res.Status.Code
	case process.SignalTerminated:
		if res.Status.Signaled {
			return 128 + int(res.Status.Signal)
		}
		return exitFailure
	case process.SpawnFailed:
		return exitSpawn
	default:
		return exitFailure
	}
}

func checkHealth(ctx context.Context, cfg *cliConfig, stages []process.Command, stdout io.Writer) int {
	sh := observability.NewServiceHealth(cfg.Name, version.Get().Short())
	seen := make(map[string]bool)
	for _, st := range stages {
		if seen[st.Program] {
			continue
		}
		seen[st.Program] = true
		sh.Check(ctx, process.ProgramCheck(st.Program))
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(sh)
	if sh.IsUp() {
		return 0
	}
	return exitFailure
}

type telemetry struct {
	metrics  *observability.Metrics
	process  *observability.ProcessMetrics
	shutdown func(context.Context)
}

// startTelemetry installs OTLP trace and metric exporters when enabled.
func startTelemetry(ctx context.Context, cfg *cliConfig, log *logger.Logger) (*telemetry, error) {
	t := &telemetry{shutdown: func(context.Context) {}}
	if !cfg.Telemetry.Enabled {
		return t, nil
	}
	v := version.Get().Short()
	tp, err := observability.InitTracer(ctx, cfg.tracerConfig(v))
	if err != nil {
		return nil, err
	}
	mp, err := observability.InitMeter(ctx, cfg.meterConfig(v))
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}
	meter := mp.Meter("github.com/kbukum/execkit/cmd/execkit")
	if t.metrics, err = observability.NewMetrics(meter); err != nil {
		return nil, err
	}
	if t.process, err = observability.NewProcessMetrics(meter); err != nil {
		return nil, err
	}
	t.shutdown = func(ctx context.Context) {
		if err := tp.Shutdown(ctx); err != nil {
			log.WithError(err).Warn("tracer shutdown failed")
		}
		if err := mp.Shutdown(ctx); err != nil {
			log.WithError(err).Warn("meter shutdown failed")
		}
	}
	return t, nil
}
