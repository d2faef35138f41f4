// Package provider defines the generic contracts process execution is
// exposed through, so callers can depend on an interface instead of the
// process package.
//
// A RequestResponse runs one input to one output (a command run to
// completion). A Stream runs one input to an Iterator of outputs (a
// pipeline read line by line). Providers that own running processes also
// implement Closeable.
//
// Cross-cutting behavior is added with Middleware:
//
//	runner := provider.Chain(
//	    provider.WithLogging[process.Command, *process.Result](log),
//	    provider.WithMetrics[process.Command, *process.Result](metrics),
//	    provider.WithTracing[process.Command, *process.Result]("execkit"),
//	)(adapter)
//
// Outputs implementing Outcome, such as *process.Result, are reported by
// their classification rather than a plain ok or error.
package provider
