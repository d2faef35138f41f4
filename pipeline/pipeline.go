package pipeline

import (
	"context"
	"iter"
)

// Iterator is pull-based access to a stream of values. provider.Iterator has
// the same method set.
type Iterator[T any] interface {
	// Next returns (zero, false, nil) once exhausted. An error ends the stream.
	Next(ctx context.Context) (T, bool, error)
	Close() error
}

// Pipeline is a lazy chain of stages. Nothing is pulled until a terminal
// (Collect, ForEach, All) or Iter opens it.
type Pipeline[T any] struct {
	open func(ctx context.Context) Iterator[T]
}

// From wraps an existing iterator. The resulting pipeline can be opened once.
func From[T any](it Iterator[T]) *Pipeline[T] {
	return &Pipeline[T]{open: func(context.Context) Iterator[T] { return it }}
}

// FromSlice yields the items in order. Each open starts over.
func FromSlice[T any](items []T) *Pipeline[T] {
	return &Pipeline[T]{open: func(context.Context) Iterator[T] {
		rest := items
		return &funcIter[T]{next: func(context.Context) (T, bool, error) {
			var v T
			if len(rest) == 0 {
				return v, false, nil
			}
			v, rest = rest[0], rest[1:]
			return v, true, nil
		}}
	}}
}

// FromFunc opens a fresh iterator from open every time the pipeline runs.
func FromFunc[T any](open func(ctx context.Context) Iterator[T]) *Pipeline[T] {
	return &Pipeline[T]{open: open}
}

// Iter opens the pipeline. The caller closes the returned iterator.
func (p *Pipeline[T]) Iter(ctx context.Context) Iterator[T] {
	return p.open(ctx)
}

// ForEach calls fn for every value. The first error from the stream or from
// fn stops the pipeline and is returned.
func ForEach[T any](ctx context.Context, p *Pipeline[T], fn func(context.Context, T) error) error {
	it := p.open(ctx)
	defer it.Close()
	for {
		v, ok, err := it.Next(ctx)
		if err != nil || !ok {
			return err
		}
		if err := fn(ctx, v); err != nil {
			return err
		}
	}
}

// Collect gathers every value. On error the values read so far are
// returned with it.
func Collect[T any](ctx context.Context, p *Pipeline[T]) ([]T, error) {
	var out []T
	err := ForEach(ctx, p, func(_ context.Context, v T) error {
		out = append(out, v)
		return nil
	})
	return out, err
}

// All adapts the pipeline to a range-over-func loop. A stream error is
// yielded once as the final pair; breaking out of the loop closes the
// pipeline.
//
//	for line, err := range pipeline.All(ctx, lines) {
//		if err != nil { ... }
//	}
func All[T any](ctx context.Context, p *Pipeline[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		it := p.open(ctx)
		defer it.Close()
		for {
			v, ok, err := it.Next(ctx)
			if err != nil {
				yield(v, err)
				return
			}
			if !ok || !yield(v, nil) {
				return
			}
		}
	}
}

// funcIter is an Iterator made of closures. A nil close is a no-op.
type funcIter[T any] struct {
	next  func(ctx context.Context) (T, bool, error)
	close func() error
}

func (it *funcIter[T]) Next(ctx context.Context) (T, bool, error) { return it.next(ctx) }

func (it *funcIter[T]) Close() error {
	if it.close == nil {
		return nil
	}
	return it.close()
}
