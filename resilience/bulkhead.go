package resilience

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/kbukum/execkit/errors"
)

// BulkheadConfig configures a bulkhead.
type BulkheadConfig struct {
	// Name identifies this bulkhead in errors and callbacks.
	Name string
	// MaxConcurrent is the maximum number of concurrent holders.
	MaxConcurrent int
	// MaxWait is how long to wait for a slot. 0 means fail immediately.
	MaxWait time.Duration
	// OnReject is called when an acquire fails for lack of a slot.
	OnReject func(name string)
}

// Bulkhead limits concurrent access to a resource.
type Bulkhead struct {
	config BulkheadConfig
	sem    *semaphore.Weighted
	inUse  atomic.Int64
}

// NewBulkhead creates a new bulkhead. MaxConcurrent below 1 is raised to 1.
func NewBulkhead(config BulkheadConfig) *Bulkhead {
	if config.MaxConcurrent < 1 {
		config.MaxConcurrent = 1
	}
	return &Bulkhead{
		config: config,
		sem:    semaphore.NewWeighted(int64(config.MaxConcurrent)),
	}
}

// Acquire takes a slot and returns the function that gives it back. The
// release function may be called more than once.
// It fails with LIMIT_EXCEEDED when no slot frees up within MaxWait, or with
// ctx.Err() when ctx ends first.
func (b *Bulkhead) Acquire(ctx context.Context) (release func(), err error) {
	if !b.sem.TryAcquire(1) {
		if err := b.wait(ctx); err != nil {
			if b.config.OnReject != nil && errors.IsCode(err, errors.ErrCodeLimitExceeded) {
				b.config.OnReject(b.config.Name)
			}
			return nil, err
		}
	}
	b.inUse.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() {
			b.inUse.Add(-1)
			b.sem.Release(1)
		})
	}, nil
}

func (b *Bulkhead) wait(ctx context.Context) error {
	if b.config.MaxWait <= 0 {
		return errors.LimitExceeded(b.config.Name, b.config.MaxConcurrent)
	}
	waitCtx, cancel := context.WithTimeout(ctx, b.config.MaxWait)
	defer cancel()
	if err := b.sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.LimitExceeded(b.config.Name, b.config.MaxConcurrent).
			WithDetail("waited_ms", b.config.MaxWait.Milliseconds())
	}
	return nil
}

// Execute runs fn while holding a slot.
func (b *Bulkhead) Execute(ctx context.Context, fn func() error) error {
	release, err := b.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}

// ExecuteWithResult runs a function that returns a value while holding a slot.
func ExecuteWithResult[T any](b *Bulkhead, ctx context.Context, fn func() (T, error)) (T, error) {
	var result T
	err := b.Execute(ctx, func() error {
		var fnErr error
		result, fnErr = fn()
		return fnErr
	})
	return result, err
}

// InUse returns the number of slots currently held.
func (b *Bulkhead) InUse() int { return int(b.inUse.Load()) }

// Available returns the number of free slots.
func (b *Bulkhead) Available() int { return b.config.MaxConcurrent - b.InUse() }

// MaxConcurrent returns the slot count.
func (b *Bulkhead) MaxConcurrent() int { return b.config.MaxConcurrent }
