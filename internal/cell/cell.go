// Copyright 2026 Bob Vawter (bob@vawter.org)
// SPDX-License-Identifier: Apache-2.0

// Package cell defines the one-shot resolution primitive that backs the
// public gate types.
package cell

import "sync"

// An Outcome is the value delivered by a [Cell].
type Outcome[T any] struct {
	Value T
	Err   error
}

// A Cell delivers exactly one Outcome to the delivery function passed
// to [New], no matter how many producers race to set it. All methods
// are safe for concurrent use.
type Cell[T any] struct {
	mu struct {
		sync.Mutex
		deliver func(Outcome[T]) // Consumed by the winning TrySet.
		hooks   []func()         // Run once, after delivery, then cleared.
	}
}

// New returns a Cell that forwards its single Outcome to the given
// function. The delivery function must not be nil.
func New[T any](deliver func(Outcome[T])) *Cell[T] {
	ret := &Cell[T]{}
	ret.mu.deliver = deliver
	return ret
}

// TrySet attempts to resolve the Cell. The first call to win the
// mutual-exclusion race runs any registered hooks and then forwards its
// Outcome to the delivery function; all other calls are silent no-ops
// that return false.
//
// Hooks run before delivery so that associated resources (timers,
// subscriptions) are already released by the time a waiter on the
// delivery side observes the outcome. User-provided code is never
// invoked while the internal mutex is held.
func (c *Cell[T]) TrySet(o Outcome[T]) bool {
	c.mu.Lock()
	deliver := c.mu.deliver
	if deliver == nil {
		c.mu.Unlock()
		return false
	}
	c.mu.deliver = nil
	hooks := c.mu.hooks
	c.mu.hooks = nil
	c.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
	deliver(o)
	return true
}

// OnResolve registers a callback that runs exactly once when the Cell
// resolves, before the Outcome is forwarded. If the Cell has already
// resolved, the callback runs immediately in the calling goroutine.
func (c *Cell[T]) OnResolve(fn func()) {
	c.mu.Lock()
	if c.mu.deliver == nil {
		c.mu.Unlock()
		fn()
		return
	}
	c.mu.hooks = append(c.mu.hooks, fn)
	c.mu.Unlock()
}

// Resolved reports whether the Cell has delivered its Outcome.
func (c *Cell[T]) Resolved() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mu.deliver == nil
}
