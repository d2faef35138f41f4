package pipeline

import "context"

// stage builds a pipeline that reads from p. step is called once per open
// with the upstream iterator and returns the pull function for that run, so
// per-run state lives in its closure. Closing the stage closes upstream.
func stage[I, O any](p *Pipeline[I], step func(src Iterator[I]) func(context.Context) (O, bool, error)) *Pipeline[O] {
	return &Pipeline[O]{open: func(ctx context.Context) Iterator[O] {
		src := p.open(ctx)
		return &funcIter[O]{next: step(src), close: src.Close}
	}}
}

// Map transforms each value. An error from fn ends the stream.
func Map[I, O any](p *Pipeline[I], fn func(context.Context, I) (O, error)) *Pipeline[O] {
	return stage(p, func(src Iterator[I]) func(context.Context) (O, bool, error) {
		return func(ctx context.Context) (O, bool, error) {
			var zero O
			v, ok, err := src.Next(ctx)
			if err != nil || !ok {
				return zero, false, err
			}
			out, err := fn(ctx, v)
			if err != nil {
				return zero, false, err
			}
			return out, true, nil
		}
	})
}

// Filter drops values for which keep returns false.
func Filter[T any](p *Pipeline[T], keep func(T) bool) *Pipeline[T] {
	return stage(p, func(src Iterator[T]) func(context.Context) (T, bool, error) {
		return func(ctx context.Context) (T, bool, error) {
			for {
				v, ok, err := src.Next(ctx)
				if err != nil || !ok || keep(v) {
					return v, ok && err == nil, err
				}
			}
		}
	})
}

// Tap runs fn on each value and passes it on unchanged. An error from fn
// ends the stream.
func Tap[T any](p *Pipeline[T], fn func(context.Context, T) error) *Pipeline[T] {
	return Map(p, func(ctx context.Context, v T) (T, error) {
		return v, fn(ctx, v)
	})
}

// Take yields at most n values. Upstream is not pulled after the n-th value,
// so an endless producer is stopped by closing the pipeline.
func Take[T any](p *Pipeline[T], n int) *Pipeline[T] {
	return stage(p, func(src Iterator[T]) func(context.Context) (T, bool, error) {
		left := n
		return func(ctx context.Context) (T, bool, error) {
			if left <= 0 {
				var zero T
				return zero, false, nil
			}
			v, ok, err := src.Next(ctx)
			if ok && err == nil {
				left--
			}
			return v, ok && err == nil, err
		}
	})
}

// Reduce folds every value into acc and yields the result once the source
// is exhausted.
func Reduce[T, R any](p *Pipeline[T], init R, fn func(R, T) R) *Pipeline[R] {
	return stage(p, func(src Iterator[T]) func(context.Context) (R, bool, error) {
		acc, done := init, false
		return func(ctx context.Context) (R, bool, error) {
			var zero R
			for !done {
				v, ok, err := src.Next(ctx)
				if err != nil {
					return zero, false, err
				}
				if !ok {
					done = true
					return acc, true, nil
				}
				acc = fn(acc, v)
			}
			return zero, false, nil
		}
	})
}
