// Copyright 2026 Bob Vawter (bob@vawter.org)
// SPDX-License-Identifier: Apache-2.0

package bridge

import "vawter.tech/bridge/internal/cell"

// A Gate converts arbitrary callback completion into a single outcome,
// delivered exactly once.
//
// Both [Gate.Resume] and [Gate.ResumeErr] may be called from any
// goroutine, any number of times, concurrently with each other. The
// first call to win the internal mutual-exclusion race forwards its
// payload to the delivery function; every later or losing call is a
// silent no-op. Redundant calls are part of the contract and never
// raise an error, so callback sources that fire more than once (or
// that race against a timer) cannot corrupt the waiting caller.
type Gate[T any] struct {
	cell *cell.Cell[T]
}

// NewGate returns a Gate that forwards its single resolution to the
// given function. Exactly one of the value or the error is meaningful,
// discriminated by the error being non-nil.
//
// Most callers obtain a Gate through [RunWithTimeout] rather than
// constructing one directly.
func NewGate[T any](deliver func(T, error)) *Gate[T] {
	return &Gate[T]{
		cell: cell.New(func(o cell.Outcome[T]) {
			deliver(o.Value, o.Err)
		}),
	}
}

// Resume resolves the Gate with a value. It returns true if this call
// won the resolution race and the value was delivered.
func (g *Gate[T]) Resume(v T) bool {
	return g.cell.TrySet(cell.Outcome[T]{Value: v})
}

// ResumeErr resolves the Gate with an error. It returns true if this
// call won the resolution race and the error was delivered.
func (g *Gate[T]) ResumeErr(err error) bool {
	return g.cell.TrySet(cell.Outcome[T]{Err: err})
}

// OnResolve registers a callback that runs exactly once, synchronously
// with the winning Resume or ResumeErr call, before the payload is
// forwarded. It is typically used to cancel an associated timer or tear
// down a subscription. If the Gate has already resolved, the callback
// runs immediately.
func (g *Gate[T]) OnResolve(fn func()) {
	g.cell.OnResolve(fn)
}

// Resolved reports whether the Gate has delivered its outcome.
func (g *Gate[T]) Resolved() bool {
	return g.cell.Resolved()
}

// ResumeOnReceive resolves the gate with the first value received from
// the channel. If the channel is closed without a value, the gate is
// resolved with [ErrFinishedWithoutValue]. The watching goroutine exits
// as soon as the gate resolves through any path.
func ResumeOnReceive[T any](gate *Gate[T], ch <-chan T) {
	if gate.Resolved() {
		return
	}
	resolved := make(chan struct{})
	gate.OnResolve(func() { close(resolved) })
	go func() {
		select {
		case v, ok := <-ch:
			if ok {
				gate.Resume(v)
			} else {
				gate.ResumeErr(ErrFinishedWithoutValue)
			}
		case <-resolved:
		}
	}()
}
