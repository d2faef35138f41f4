package observability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ProcessMetrics follows child processes from spawn to reap. A nil
// *ProcessMetrics records nothing.
type ProcessMetrics struct {
	spawned  metric.Int64Counter
	exited   metric.Int64Counter
	duration metric.Float64Histogram
	active   metric.Int64UpDownCounter
}

// NewProcessMetrics registers the process.* instruments on meter.
func NewProcessMetrics(meter metric.Meter) (*ProcessMetrics, error) {
	spawned, err1 := meter.Int64Counter("process.spawned",
		metric.WithDescription("Processes started"))
	exited, err2 := meter.Int64Counter("process.exited",
		metric.WithDescription("Processes finished, by classification"))
	duration, err3 := meter.Float64Histogram("process.duration",
		metric.WithDescription("Process run time"), metric.WithUnit("s"))
	active, err4 := meter.Int64UpDownCounter("process.active",
		metric.WithDescription("Processes currently running"))
	if err := errors.Join(err1, err2, err3, err4); err != nil {
		return nil, fmt.Errorf("process instruments: %w", err)
	}
	return &ProcessMetrics{spawned: spawned, exited: exited, duration: duration, active: active}, nil
}

// RecordSpawn counts a started process.
func (m *ProcessMetrics) RecordSpawn(ctx context.Context, program string) {
	if m == nil {
		return
	}
	m.spawned.Add(ctx, 1, metric.WithAttributes(attribute.String("program", program)))
	m.active.Add(ctx, 1)
}

// RecordSpawnFailure counts a process that never started as exited with
// classification spawn_failed.
func (m *ProcessMetrics) RecordSpawnFailure(ctx context.Context, program string) {
	if m == nil {
		return
	}
	m.exited.Add(ctx, 1, metric.WithAttributes(
		attribute.String("program", program),
		attribute.String("classification", "spawn_failed"),
	))
}

// RecordExit records a reaped process.
func (m *ProcessMetrics) RecordExit(ctx context.Context, program, classification string, d time.Duration) {
	if m == nil {
		return
	}
	prog := attribute.String("program", program)
	m.active.Add(ctx, -1)
	m.exited.Add(ctx, 1, metric.WithAttributes(prog, attribute.String("classification", classification)))
	m.duration.Record(ctx, d.Seconds(), metric.WithAttributes(prog))
}
