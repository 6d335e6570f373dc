package services

import (
	"fmt"
	"sync"
)

// ReentrancyGuard holds named locks for in-flight zaps
type ReentrancyGuard struct {
	mu    sync.Mutex
	locks map[string]struct{}
}

// NewReentrancyGuard creates a new guard instance.
func NewReentrancyGuard() *ReentrancyGuard {
	return &ReentrancyGuard{locks: make(map[string]struct{})}
}

// Lock acquires a named lock or returns ErrReentrancy if already held.
func (g *ReentrancyGuard) Lock(key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.locks[key]; exists {
		return fmt.Errorf("%w: %s is already executing", ErrReentrancy, key)
	}

	g.locks[key] = struct{}{}
	return nil
}

// Unlock releases a named lock.
func (g *ReentrancyGuard) Unlock(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.locks, key)
}

// Held reports whether key is locked
func (g *ReentrancyGuard) Held(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.locks[key]
	return ok
}

// With runs fn while holding key
func (g *ReentrancyGuard) With(key string, fn func() error) error {
	if err := g.Lock(key); err != nil {
		return err
	}
	defer g.Unlock(key)
	return fn()
}
