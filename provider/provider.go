package provider

import "context"

// Provider is anything that can run work on behalf of a caller.
type Provider interface {
	// Name identifies the provider in logs, spans and metrics.
	Name() string
	// IsAvailable reports whether Execute can be called right now.
	IsAvailable(ctx context.Context) bool
}

// RequestResponse runs one input to one output, such as a command run to
// completion with its output captured.
type RequestResponse[I, O any] interface {
	Provider
	Execute(ctx context.Context, input I) (O, error)
}

// Stream runs one input to a sequence of outputs, such as a pipeline whose
// stdout is read line by line.
type Stream[I, O any] interface {
	Provider
	Execute(ctx context.Context, input I) (Iterator[O], error)
}

// Iterator is pull-based access to a stream of values. It has the same
// shape as pipeline.Iterator, so either can be passed where the other is
// expected.
type Iterator[T any] interface {
	// Next returns the next value, or ok=false once the stream is exhausted.
	Next(ctx context.Context) (value T, ok bool, err error)
	// Close releases the stream. It must be called even after exhaustion.
	Close() error
}

// Closeable is implemented by providers that own running processes or
// other resources.
type Closeable interface {
	Close(ctx context.Context) error
}

// CloseIfCloseable closes p when it implements Closeable.
func CloseIfCloseable(ctx context.Context, p Provider) error {
	if c, ok := p.(Closeable); ok {
		return c.Close(ctx)
	}
	return nil
}
