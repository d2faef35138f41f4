package provider

import (
	"context"
	"time"

	"github.com/kbukum/execkit/logger"
	"github.com/kbukum/execkit/observability"
)

// Middleware wraps a RequestResponse provider.
type Middleware[I, O any] func(RequestResponse[I, O]) RequestResponse[I, O]

// Chain composes middlewares. The first one is outermost:
// Chain(a, b, c)(p) is a(b(c(p))).
func Chain[I, O any](middlewares ...Middleware[I, O]) Middleware[I, O] {
	return func(inner RequestResponse[I, O]) RequestResponse[I, O] {
		for i := len(middlewares) - 1; i >= 0; i-- {
			inner = middlewares[i](inner)
		}
		return inner
	}
}

// Outcome is implemented by outputs that classify how a call ended.
// *process.Result reports its classification, e.g. "non_zero_exit".
type Outcome interface {
	Outcome() string
}

// outcome returns the status middlewares report for a call. The output is
// consulted first because a process result comes back together with its
// error.
func outcome[O any](out O, err error) string {
	if o, ok := any(out).(Outcome); ok {
		if s := o.Outcome(); s != "" {
			return s
		}
	}
	if err != nil {
		return "error"
	}
	return "ok"
}

// intercepted keeps the inner provider's Name and IsAvailable and replaces Execute.
type intercepted[I, O any] struct {
	RequestResponse[I, O]
	exec func(ctx context.Context, input I) (O, error)
}

func (w *intercepted[I, O]) Execute(ctx context.Context, input I) (O, error) {
	return w.exec(ctx, input)
}

// WithLogging logs every call with its duration and outcome. Failures are
// logged at error level, successes at debug level.
func WithLogging[I, O any](log *logger.Logger) Middleware[I, O] {
	return func(inner RequestResponse[I, O]) RequestResponse[I, O] {
		return &intercepted[I, O]{RequestResponse: inner, exec: func(ctx context.Context, input I) (O, error) {
			start := time.Now()
			out, err := inner.Execute(ctx, input)

			fields := logger.DurationFields(inner.Name(), time.Since(start))
			fields[logger.FieldClassification] = outcome(out, err)
			if err != nil {
				log.WithContext(ctx).Error("provider execute failed", logger.MergeWithError(fields, err))
			} else {
				log.WithContext(ctx).Debug("provider execute ok", fields)
			}
			return out, err
		}}
	}
}

// WithTracing wraps every call in a span named "{serviceName}.{providerName}".
func WithTracing[I, O any](serviceName string) Middleware[I, O] {
	return func(inner RequestResponse[I, O]) RequestResponse[I, O] {
		return &intercepted[I, O]{RequestResponse: inner, exec: func(ctx context.Context, input I) (O, error) {
			ctx, span := observability.StartSpan(ctx, serviceName+"."+inner.Name())
			defer span.End()
			observability.SetSpanAttribute(ctx, observability.AttrServiceName, serviceName)
			observability.SetSpanAttribute(ctx, observability.AttrOperationName, inner.Name())

			out, err := inner.Execute(ctx, input)
			observability.SetSpanAttribute(ctx, observability.AttrClassification, outcome(out, err))
			if err != nil {
				observability.SetSpanError(ctx, err)
			}
			return out, err
		}}
	}
}

// WithMetrics records operation.total and operation.duration for every call,
// labelled with its outcome, and error.total for failures.
func WithMetrics[I, O any](metrics *observability.Metrics) Middleware[I, O] {
	return func(inner RequestResponse[I, O]) RequestResponse[I, O] {
		return &intercepted[I, O]{RequestResponse: inner, exec: func(ctx context.Context, input I) (O, error) {
			start := time.Now()
			out, err := inner.Execute(ctx, input)

			status := outcome(out, err)
			if err != nil {
				metrics.RecordError(ctx, status, inner.Name())
			}
			metrics.RecordOperation(ctx, inner.Name(), "execute", status, time.Since(start))
			return out, err
		}}
	}
}
