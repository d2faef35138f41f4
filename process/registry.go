package process

import (
	"context"
	"sync"

	"github.com/kbukum/execkit/errors"
)

// Registry tracks live handles so an owner can tear them all down at once.
// Handles register when spawned and unregister when reaped. A Registry is
// owned by whoever creates it; there is no package-level instance.
type Registry struct {
	mu      sync.Mutex
	handles map[string]*Handle
	closed  bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handles: make(map[string]*Handle)}
}

func (r *Registry) add(h *Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.handles[h.id] = h
	return true
}

func (r *Registry) remove(h *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handles, h.id)
}

// Len returns the number of live handles. A nil registry has none.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

// Handles returns a snapshot of the live handles.
func (r *Registry) Handles() []*Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Handle, 0, len(r.handles))
	for _, h := range r.handles {
		out = append(out, h)
	}
	return out
}

// Closed reports whether Shutdown has been called.
func (r *Registry) Closed() bool {
	if r == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Shutdown refuses new handles, abandons every live one and waits for them
// to be reaped. If ctx ends first the remaining handles keep being reaped in
// the background and an INTERNAL error reports how many were left.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	live := r.Handles()
	for _, h := range live {
		h.Abandon()
	}
	for _, h := range live {
		select {
		case <-h.done:
		case <-ctx.Done():
			return errors.Internal("shutdown interrupted", ctx.Err()).
				WithDetail("remaining", r.Len())
		}
	}
	return nil
}
