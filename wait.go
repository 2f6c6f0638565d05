// Copyright 2026 Bob Vawter (bob@vawter.org)
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"sync"
	"time"
)

// WaitForOutput subscribes to the source and resolves with its first
// emitted value. Exactly one of four outcomes occurs:
//   - the first value, if one arrives in time;
//   - [ErrFinishedWithoutValue], if the source terminates normally
//     before emitting;
//   - the source's own failure, propagated unwrapped;
//   - [ErrTimeout], if the deadline elapses first.
//
// Subscription teardown happens exactly once, on whichever outcome
// wins, even when a value is delivered synchronously from within
// Subscribe before the subscription handle exists. No further values
// are consumed after the first; the wait is an implicit take-first.
//
// Pass [NoTimeout] to wait indefinitely, or use
// [WaitForOutputIndefinitely].
func WaitForOutput[T any](
	ctx context.Context, src Source[T], timeout time.Duration, opts ...Option,
) (T, error) {
	return RunWithTimeout(ctx, timeout, func(gate *Gate[T]) {
		latch := &teardown{}
		gate.OnResolve(latch.Close)
		sub := src.Subscribe(
			func(v T) {
				gate.Resume(v)
			},
			func(err error) {
				if err == nil {
					err = ErrFinishedWithoutValue
				}
				gate.ResumeErr(err)
			})
		latch.Set(sub)
	}, opts...)
}

// WaitForOutputIndefinitely is [WaitForOutput] without the timeout arm:
// only the first value, [ErrFinishedWithoutValue], or the source's own
// failure can resolve it.
func WaitForOutputIndefinitely[T any](
	ctx context.Context, src Source[T], opts ...Option,
) (T, error) {
	return WaitForOutput(ctx, src, NoTimeout, opts...)
}

// A teardown cancels a subscription exactly once, regardless of the
// order in which the handle arrives and the close request fires. The
// close request may come from a gate's on-resolve hook before Subscribe
// has returned the handle.
type teardown struct {
	mu struct {
		sync.Mutex
		sub      Subscription
		closed   bool
		canceled bool
	}
}

// Set installs the subscription handle, canceling it immediately if the
// latch was already closed.
func (t *teardown) Set(sub Subscription) {
	t.mu.Lock()
	t.mu.sub = sub
	fire := t.mu.closed && !t.mu.canceled
	if fire {
		t.mu.canceled = true
	}
	t.mu.Unlock()

	// Cancel outside the mutex; the handle may call back into user code.
	if fire {
		sub.Cancel()
	}
}

// Close requests cancellation. If the handle has not been installed
// yet, cancellation is deferred until Set runs.
func (t *teardown) Close() {
	t.mu.Lock()
	t.mu.closed = true
	sub := t.mu.sub
	fire := sub != nil && !t.mu.canceled
	if fire {
		t.mu.canceled = true
	}
	t.mu.Unlock()

	if fire {
		sub.Cancel()
	}
}
