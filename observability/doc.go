// Package observability wires OpenTelemetry tracing and metrics, plus health
// reports, into process orchestration.
//
// InitTracer and InitMeter install OTLP/HTTP exporters globally; spans and
// instruments created before that go to the no-op providers.
//
//	tp, err := observability.InitTracer(ctx, observability.DefaultTracerConfig("execkit"))
//	defer tp.Shutdown(ctx)
//
//	pm, err := observability.NewProcessMetrics(observability.Meter("execkit"))
//	exec, err := process.NewExecutor(cfg, process.WithMetrics(pm))
//
// An Operation spans a whole CLI run:
//
//	op := observability.NewOperation("execkit", "run", runID, metrics)
//	ctx = op.Start(ctx, observability.SpanProcessRun)
//	defer op.End(ctx, res.Classification.String(), err)
//
// ServiceHealth collects HealthChecker reports and takes the worst status.
package observability
