// Package source provides object sources and memory queries for
// snapshot lists: an in-process registry, YAML/JSON manifests, and Go heap
// profiles.
package source

import (
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/keilerkonzept/objtop/snapshot"
)

// RegistryObject is what a Registry can hold.
type RegistryObject interface {
	snapshot.Object
	comparable
}

// Registry tracks live objects of one kind in registration order. It is
// safe for concurrent use.
type Registry[T RegistryObject] struct {
	mu    sync.RWMutex
	live  map[T]struct{}
	order []T
}

// NewRegistry returns an empty registry.
func NewRegistry[T RegistryObject]() *Registry[T] {
	return &Registry[T]{live: make(map[T]struct{})}
}

// Register adds obj. Registering an object twice is a no-op.
func (r *Registry[T]) Register(obj T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.live[obj]; ok {
		return
	}
	r.live[obj] = struct{}{}
	r.order = append(r.order, obj)
}

// Destroy removes obj and reports whether it was registered.
func (r *Registry[T]) Destroy(obj T) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.live[obj]; !ok {
		return false
	}
	delete(r.live, obj)
	for i, o := range r.order {
		if o == obj {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Alive reports whether obj is still registered.
func (r *Registry[T]) Alive(obj T) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.live[obj]
	return ok
}

// Len returns the number of live objects.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// FindAll returns every live object in registration order.
func (r *Registry[T]) FindAll() ([]T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]T, len(r.order))
	copy(out, r.order)
	return out, nil
}

// Sizer wraps fn so that objects destroyed after a scan are reported as
// snapshot.ErrObjectUnavailable instead of being measured.
func (r *Registry[T]) Sizer(fn func(T) int64) snapshot.Sizer[T] {
	return snapshot.SizerFunc[T](func(obj T) (int64, error) {
		if !r.Alive(obj) {
			return 0, errors.Wrapf(snapshot.ErrObjectUnavailable, "%s was destroyed", obj.Name())
		}
		return fn(obj), nil
	})
}
