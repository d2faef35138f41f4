package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Operation tracks one top-level run, such as a CLI invocation, from start
// to outcome: a span while it runs and operation metrics when it ends.
type Operation struct {
	Service string
	Name    string
	RunID   string
	Started time.Time

	metrics *Metrics
	span    trace.Span
}

// NewOperation starts the clock. A nil metrics records no metrics.
func NewOperation(service, name, runID string, metrics *Metrics) *Operation {
	return &Operation{Service: service, Name: name, RunID: runID, Started: time.Now(), metrics: metrics}
}

type operationKey struct{}

// OperationFromContext returns the operation started in ctx, or nil.
func OperationFromContext(ctx context.Context) *Operation {
	op, _ := ctx.Value(operationKey{}).(*Operation)
	return op
}

// Start opens the operation's span. The returned context carries both the
// span and the operation.
func (op *Operation) Start(ctx context.Context, spanName string) context.Context {
	ctx, op.span = StartSpan(ctx, spanName, trace.WithAttributes(
		attribute.String(AttrServiceName, op.Service),
		attribute.String(AttrOperationName, op.Name),
		attribute.String(AttrRunID, op.RunID),
	))
	return context.WithValue(ctx, operationKey{}, op)
}

// End closes the span with status and err, then records the operation and,
// when err is set, an error.
func (op *Operation) End(ctx context.Context, status string, err error) {
	elapsed := op.Elapsed()
	if op.span != nil {
		if err != nil {
			op.span.RecordError(err)
			op.span.SetAttributes(attribute.String(AttrErrorMessage, err.Error()))
		}
		op.span.SetAttributes(
			attribute.String(AttrStatus, status),
			attribute.Int64(AttrDurationMs, elapsed.Milliseconds()),
		)
		op.span.End()
	}
	if op.metrics == nil {
		return
	}
	op.metrics.RecordOperation(ctx, op.Service, op.Name, status, elapsed)
	if err != nil {
		op.metrics.RecordError(ctx, status, op.Name)
	}
}

// Elapsed is the time since NewOperation.
func (op *Operation) Elapsed() time.Duration { return time.Since(op.Started) }
