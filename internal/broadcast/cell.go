// Package broadcast provides replaying, multicast state cells.
//
// A Cell holds the most recently emitted value. Every new subscriber is
// handed that value synchronously before it can observe any later emission,
// so late consumers never miss current state.
package broadcast

import (
	"sync"

	"github.com/joeblew999/plat-geoserve/internal/metrics"
)

// Cell is a current-value broadcast slot. The zero value of T is the
// absent sentinel.
type Cell[T any] struct {
	name string

	// emitMu serializes emission and replay so every subscriber sees one
	// total order of values.
	emitMu sync.Mutex

	mu    sync.RWMutex
	value T
	set   bool
	next  uint64
	subs  []subscriber[T]
}

type subscriber[T any] struct {
	id uint64
	fn func(T)
}

// NewCell creates an empty cell. name labels the cell in metrics and logs.
func NewCell[T any](name string) *Cell[T] {
	return &Cell[T]{name: name}
}

// Name returns the cell label.
func (c *Cell[T]) Name() string {
	return c.name
}

// Emit stores v and calls every current subscriber with it, in
// subscription order, before returning. Subscribers must not emit on the
// same cell, or subscribe to it, from inside their callback.
func (c *Cell[T]) Emit(v T) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	c.value = v
	c.set = true
	subs := make([]subscriber[T], len(c.subs))
	copy(subs, c.subs)
	c.mu.Unlock()

	metrics.CellEmissionsTotal.WithLabelValues(c.name).Inc()
	for _, s := range subs {
		s.fn(v)
	}
}

// Clear emits the absent sentinel.
func (c *Cell[T]) Clear() {
	var zero T
	c.Emit(zero)
}

// Value returns the current value and whether anything was ever emitted.
func (c *Cell[T]) Value() (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value, c.set
}

// Subscribe registers fn and immediately calls it with the current value
// (or the absent sentinel). The returned func removes the subscription.
func (c *Cell[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	c.next++
	id := c.next
	c.subs = append(c.subs, subscriber[T]{id: id, fn: fn})
	current := c.value
	c.mu.Unlock()

	fn(current)

	var once sync.Once
	return func() {
		once.Do(func() { c.remove(id) })
	}
}

func (c *Cell[T]) remove(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, s := range c.subs {
		if s.id == id {
			c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
			return
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (c *Cell[T]) Subscribers() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subs)
}
