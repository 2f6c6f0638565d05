// Copyright 2026 Bob Vawter (bob@vawter.org)
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"time"
)

// NoTimeout disables the deadline arm of [RunWithTimeout] and the
// waiting helpers built on it. Any negative duration is treated the
// same way.
const NoTimeout = time.Duration(-1)

// An Option adjusts the behavior of [RunWithTimeout] and the waiting
// helpers built on it.
type Option func(*config)

type config struct {
	onTimeout func()
	sched     Scheduler
}

// WithOnTimeout registers a callback that runs exactly once if the wait
// resolves via its timeout arm. It is not invoked for any other
// resolution path.
func WithOnTimeout(fn func()) Option {
	return func(c *config) { c.onTimeout = fn }
}

// WithScheduler substitutes the timer scheduler used to arm the
// deadline. The default is [SystemScheduler].
func WithScheduler(s Scheduler) Option {
	return func(c *config) { c.sched = s }
}

func (c *config) sanitize() {
	if c.sched == nil {
		c.sched = SystemScheduler
	}
}

func (c *config) timedOut() {
	if c.onTimeout != nil {
		c.onTimeout()
	}
}

// RunWithTimeout suspends the caller until the Gate passed to the body
// is resolved, then returns that resolution. The body should start
// whatever asynchronous work will eventually call [Gate.Resume] or
// [Gate.ResumeErr]; it may also resolve the gate synchronously before
// returning.
//
// The timeout arms a one-shot timer racing against the body's
// resolution. Whichever fires first wins; the loser's action is a
// silent no-op. When the gate resolves through any path the timer is
// stopped so that no stale wakeup remains pending.
//
// Edge cases:
//   - timeout == 0 resolves immediately with [ErrTimeout]. The body is
//     never invoked; the [WithOnTimeout] callback still runs once.
//   - timeout < 0 (see [NoTimeout]) arms no timer at all; the wait is
//     bounded only by the body and the context.
//
// Cancellation of ctx resolves the gate with [context.Cause]. The only
// error introduced by this function itself is ErrTimeout; all other
// values and errors pass through from the body unchanged.
func RunWithTimeout[T any](
	ctx context.Context, timeout time.Duration, body func(*Gate[T]), opts ...Option,
) (T, error) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	cfg.sanitize()

	if timeout == 0 {
		cfg.timedOut()
		var zero T
		return zero, ErrTimeout
	}

	// The marker gives the timeout arm a unique identity so that the
	// delivery path can distinguish it from a body that happens to
	// resume with ErrTimeout, and can run the on-timeout observer
	// before the waiter unblocks.
	armErr := &timeoutArm{}

	// Cap of one: the cell guarantees a single delivery, so the send
	// below can never block.
	results := make(chan cellResult[T], 1)
	gate := NewGate(func(v T, err error) {
		if err == armErr {
			err = ErrTimeout
			cfg.timedOut()
		}
		results <- cellResult[T]{value: v, err: err}
	})

	if timeout > 0 {
		timer := cfg.sched.ScheduleOnce(timeout, func() {
			// Losing the race against the body is a no-op here; the
			// gate arbitrates.
			gate.ResumeErr(armErr)
		})
		gate.OnResolve(func() { timer.Stop() })
	}

	if ctx != nil && ctx.Done() != nil {
		resolved := make(chan struct{})
		gate.OnResolve(func() { close(resolved) })
		go func() {
			select {
			case <-ctx.Done():
				gate.ResumeErr(context.Cause(ctx))
			case <-resolved:
			}
		}()
	}

	body(gate)

	r := <-results
	return r.value, r.err
}

type cellResult[T any] struct {
	value T
	err   error
}

// timeoutArm marks a resolution produced by the deadline timer. Each
// RunWithTimeout call allocates its own marker; identity comparison
// keeps it distinct from any error supplied by the body.
type timeoutArm struct{}

func (*timeoutArm) Error() string { return ErrTimeout.Error() }
