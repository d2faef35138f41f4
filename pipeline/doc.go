// Package pipeline composes pull-based iterators.
//
// A Pipeline is lazy. Values move only when a terminal pulls them (Collect,
// ForEach, or a range loop over All), and each stage pulls from the one
// before it on demand. A slow consumer therefore never makes a producer
// buffer without bound, which is how a process line stream can be filtered
// while the child is still running.
//
// Operators: Map, Filter, Tap, Take and Reduce. Take stops pulling after n
// values; closing the pipeline then releases the source.
//
//	lines := process.Stream(ctx, p)
//	usb := pipeline.Filter(lines, func(l process.Line) bool { return set.Match(l.Text) })
//	first, err := pipeline.Collect(ctx, pipeline.Take(usb, 5))
package pipeline
