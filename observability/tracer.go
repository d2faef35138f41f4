package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/execkit/logger"
)

const instrumentationName = "github.com/kbukum/execkit"

// Span names.
const (
	SpanProcessSpawn   = "process.spawn"
	SpanProcessBuild   = "process.build"
	SpanProcessCollect = "process.collect"
	SpanProcessRun     = "process.run"
)

// Attribute keys.
const (
	AttrServiceName    = "service.name"
	AttrOperationName  = "operation.name"
	AttrRunID          = "run.id"
	AttrPipelineID     = "pipeline.id"
	AttrStages         = "pipeline.stages"
	AttrProgram        = "process.program"
	AttrPID            = "process.pid"
	AttrExitCode       = "process.exit_code"
	AttrClassification = "process.classification"
	AttrDurationMs     = "duration_ms"
	AttrStatus         = "status"
	AttrErrorMessage   = "error.message"
)

// TracerConfig configures span export.
type TracerConfig struct {
	ExportConfig `mapstructure:",squash"`
	// SampleRate is the fraction of root spans kept, 0 to 1. Child spans
	// follow their parent's decision.
	SampleRate float64 `mapstructure:"sample_rate" validate:"gte=0,lte=1"`
}

// DefaultTracerConfig exports every span to a local insecure collector.
func DefaultTracerConfig(serviceName string) TracerConfig {
	return TracerConfig{ExportConfig: defaultExport(serviceName), SampleRate: 1}
}

func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// InitTracer installs a batching OTLP/HTTP tracer provider and the W3C
// propagators globally. Shut the provider down before exit to flush spans.
func InitTracer(ctx context.Context, cfg TracerConfig) (*sdktrace.TracerProvider, error) {
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("trace exporter: %w", err)
	}
	res, err := cfg.resource()
	if err != nil {
		return nil, fmt.Errorf("trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler(cfg.SampleRate))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	logger.Get("telemetry").Info("tracing enabled", logger.Fields("endpoint", cfg.Endpoint, "sample_rate", cfg.SampleRate))
	return tp, nil
}

// StartSpan starts a span on the global provider.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name, opts...)
}

// SpanFromContext returns the span carried by ctx, or a no-op span.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

func keyValue(key string, value any) (attribute.KeyValue, bool) {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v), true
	case int:
		return attribute.Int(key, v), true
	case int64:
		return attribute.Int64(key, v), true
	case float64:
		return attribute.Float64(key, v), true
	case bool:
		return attribute.Bool(key, v), true
	case []string:
		return attribute.StringSlice(key, v), true
	case fmt.Stringer:
		return attribute.String(key, v.String()), true
	default:
		return attribute.KeyValue{}, false
	}
}

// SetSpanAttribute sets key on the recording span in ctx. Values of
// unsupported types are dropped.
func SetSpanAttribute(ctx context.Context, key string, value any) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	if kv, ok := keyValue(key, value); ok {
		span.SetAttributes(kv)
	}
}

// SetSpanError records err on the span in ctx and marks the span failed.
func SetSpanError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
