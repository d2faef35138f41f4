package provider

import "context"

// Adapt exposes a provider of backend types [BI, BO] as a provider of domain
// types [I, O]. mapIn builds the backend input; mapOut interprets the
// backend output. A backend error is returned as is and mapOut is skipped.
//
// process.SubprocessProvider is built this way on top of process.Adapter.
func Adapt[I, O, BI, BO any](
	inner RequestResponse[BI, BO],
	name string,
	mapIn func(ctx context.Context, input I) (BI, error),
	mapOut func(output BO) (O, error),
) RequestResponse[I, O] {
	return &adapted[I, O, BI, BO]{inner: inner, name: name, mapIn: mapIn, mapOut: mapOut}
}

type adapted[I, O, BI, BO any] struct {
	inner  RequestResponse[BI, BO]
	name   string
	mapIn  func(context.Context, I) (BI, error)
	mapOut func(BO) (O, error)
}

func (a *adapted[I, O, BI, BO]) Name() string { return a.name }

func (a *adapted[I, O, BI, BO]) IsAvailable(ctx context.Context) bool {
	return a.inner.IsAvailable(ctx)
}

func (a *adapted[I, O, BI, BO]) Execute(ctx context.Context, input I) (O, error) {
	var zero O
	in, err := a.mapIn(ctx, input)
	if err != nil {
		return zero, err
	}
	out, err := a.inner.Execute(ctx, in)
	if err != nil {
		return zero, err
	}
	return a.mapOut(out)
}
