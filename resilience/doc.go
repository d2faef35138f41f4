// Package resilience bounds how much work runs at once.
//
// A Bulkhead caps the number of concurrent callers. The process executor
// uses one to limit how many commands and pipelines run simultaneously:
//
//	b := resilience.NewBulkhead(resilience.BulkheadConfig{Name: "process", MaxConcurrent: 4})
//	release, err := b.Acquire(ctx)
//	if err != nil {
//	    return err // LIMIT_EXCEEDED, or ctx.Err()
//	}
//	defer release()
package resilience
