package engine

import (
	"errors"
	"fmt"
	"sync"
)

// ErrUnavailable is returned by Resolver.Get while no engine factory can be
// located. Callers treat it as "skip linting", not as a hard failure.
var ErrUnavailable = errors.New("lint engine unavailable")

// Resolver lazily locates the configured engine factory. Resolution is
// retried on every Get until it succeeds; a miss is never cached as a
// permanent failure. The miss signal is raised at most once per generation,
// and Reset starts a new generation (the reconfiguration retry path).
type Resolver struct {
	mu       sync.Mutex
	registry *Registry
	name     string
	resolved Factory
	signaled bool
	onMiss   func(name string)
}

// NewResolver creates a resolver for the named engine. onMiss, if non-nil,
// is invoked once per generation when the engine cannot be located.
func NewResolver(registry *Registry, name string, onMiss func(name string)) *Resolver {
	return &Resolver{registry: registry, name: name, onMiss: onMiss}
}

// Get returns the resolved factory, attempting resolution if needed.
func (r *Resolver) Get() (Factory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.resolved != nil {
		return r.resolved, nil
	}
	if f, ok := r.registry.Lookup(r.name); ok {
		r.resolved = f
		return f, nil
	}
	if !r.signaled {
		r.signaled = true
		if r.onMiss != nil {
			r.onMiss(r.name)
		}
	}
	return nil, fmt.Errorf("engine %q: %w", r.name, ErrUnavailable)
}

// Reset discards the cached factory and re-arms the miss signal.
// Name switches the engine the resolver looks for.
func (r *Resolver) Reset(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if name != "" {
		r.name = name
	}
	r.resolved = nil
	r.signaled = false
}
