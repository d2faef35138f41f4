package observability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/execkit/logger"
)

// MeterConfig configures metric export.
type MeterConfig struct {
	ExportConfig `mapstructure:",squash"`
	// Interval between exports. Zero keeps the SDK default.
	Interval time.Duration `mapstructure:"interval"`
}

// DefaultMeterConfig exports to a local insecure collector every 15 seconds.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{ExportConfig: defaultExport(serviceName), Interval: 15 * time.Second}
}

// InitMeter installs a periodically exporting OTLP/HTTP meter provider
// globally. Shut it down before exit to flush the last interval.
func InitMeter(ctx context.Context, cfg MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("metric exporter: %w", err)
	}
	res, err := cfg.resource()
	if err != nil {
		return nil, fmt.Errorf("metric resource: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if cfg.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.Interval))
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	logger.Get("telemetry").Info("metrics enabled", logger.Fields("endpoint", cfg.Endpoint, "interval", cfg.Interval.String()))
	return mp, nil
}

// Meter returns a meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metrics counts and times generic operations: CLI runs and provider calls.
type Metrics struct {
	total    metric.Int64Counter
	duration metric.Float64Histogram
	errors   metric.Int64Counter
}

// NewMetrics registers operation.total, operation.duration and error.total on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	total, err1 := meter.Int64Counter("operation.total",
		metric.WithDescription("Operations run, by status"))
	duration, err2 := meter.Float64Histogram("operation.duration",
		metric.WithDescription("Operation run time"), metric.WithUnit("s"))
	errs, err3 := meter.Int64Counter("error.total",
		metric.WithDescription("Failed operations, by status and component"))
	if err := errors.Join(err1, err2, err3); err != nil {
		return nil, fmt.Errorf("operation instruments: %w", err)
	}
	return &Metrics{total: total, duration: duration, errors: errs}, nil
}

// RecordOperation counts one operation and records how long it took.
func (m *Metrics) RecordOperation(ctx context.Context, service, operation, status string, d time.Duration) {
	svc, op := attribute.String("service", service), attribute.String("operation", operation)
	m.total.Add(ctx, 1, metric.WithAttributes(svc, op, attribute.String("status", status)))
	m.duration.Record(ctx, d.Seconds(), metric.WithAttributes(svc, op))
}

// RecordError counts a failure of component, labelled with its status.
func (m *Metrics) RecordError(ctx context.Context, errType, component string) {
	m.errors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", errType),
		attribute.String("component", component),
	))
}
