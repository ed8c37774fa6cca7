// Package syncx provides extended synchronization primitives
package syncx

import "sync"

// RWGuard wraps RWMutex around a value that is replaced whole.
// Readers always get a copy; T should be a value type or immutable.
type RWGuard[T any] struct {
	mu    sync.RWMutex
	value T
}

// NewGuard creates a guarded value.
func NewGuard[T any](initial T) *RWGuard[T] {
	return &RWGuard[T]{value: initial}
}

// Get returns a copy of the value.
func (g *RWGuard[T]) Get() T {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.value
}

// Set replaces the value.
func (g *RWGuard[T]) Set(v T) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.value = v
}

// Write executes fn while holding the write lock.
func (g *RWGuard[T]) Write(fn func(*T)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn(&g.value)
}

// TrySet replaces the value with v only if allow reports true for the
// current value. It returns the value seen and whether it was replaced.
func (g *RWGuard[T]) TrySet(allow func(T) bool, v T) (T, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	old := g.value
	if !allow(old) {
		return old, false
	}
	g.value = v
	return old, true
}

// View runs fn under the read lock and returns its result.
func View[T, R any](g *RWGuard[T], fn func(T) R) R {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return fn(g.value)
}
