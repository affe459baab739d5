// Package syncx holds small synchronization helpers shared by the surfaces.
package syncx

import "sync"

// Guard protects a value with an RWMutex and only exposes it inside scoped
// callbacks, so the lock cannot leak past the access.
type Guard[T any] struct {
	mu    sync.RWMutex
	value T
}

func NewGuard[T any](initial T) *Guard[T] {
	return &Guard[T]{value: initial}
}

// Load returns a copy of the value. Reference fields are shared.
func (g *Guard[T]) Load() T {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.value
}

// Update mutates the value under the write lock.
func (g *Guard[T]) Update(fn func(*T)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn(&g.value)
}

// View computes a result from the value under the read lock.
func View[T, R any](g *Guard[T], fn func(T) R) R {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return fn(g.value)
}
