// Copyright 2026 Bob Vawter (bob@vawter.org)
// SPDX-License-Identifier: Apache-2.0

// Package serial consumes a multi-emission event source while running
// an asynchronous handler for at most one event at a time.
//
// Events that arrive while a handler invocation is in flight are
// coalesced into a single-slot buffer that retains only the most recent
// one. Rapid bursts therefore collapse to "first event handled
// immediately, then only the last event pending during the busy window"
// — a debounce tied to handler duration rather than to wall-clock
// quiescence.
package serial

import (
	"context"
	"slices"
	"sync"

	"vawter.tech/bridge"
	"vawter.tech/bridge/internal/safe"
)

// An Option adjusts the behavior of [Attach].
type Option[T any] func(*Sink[T])

// WithErrorHandler substitutes the disposition of errors and panics
// swallowed from value-handler invocations. The default records them
// for retrieval via [Sink.Errs].
func WithErrorHandler[T any](fn func(error)) Option[T] {
	return func(s *Sink[T]) { s.errHandler = fn }
}

// event is the tagged union held by the single-slot pending buffer.
type event[T any] struct {
	value    T
	err      error // Terminal error; meaningful only when terminal is set.
	terminal bool
}

// A Sink serializes handler execution for one attached source. Handler
// invocations never overlap; the busy/pending state is owned by a
// single mutex so that the event-delivery path (any goroutine) and the
// handler goroutine cannot race on it.
//
// A Sink is also a [bridge.Subscription]: Cancel detaches from the
// source and cancels the handler context.
type Sink[T any] struct {
	onValue    func(context.Context, T) error
	onComplete func(context.Context, error) error
	errHandler func(error)
	ctx        context.Context
	cancelCtx  context.CancelFunc
	done       chan struct{}

	mu struct {
		sync.Mutex
		busy     bool
		pending  *event[T] // At most one; overwritten, never queued behind.
		upstream bridge.Subscription
		detached bool // The upstream subscription has been canceled.
		canceled bool // Cancel has been called.
		finished bool // The terminal transition has run.
		finErr   error
		errs     []error
	}
}

var _ bridge.Subscription = (*Sink[int])(nil)

// Attach subscribes the handlers to the source and returns the
// serializing Sink. The value handler runs for at most one event at a
// time; its errors and panics are swallowed so that one failing event
// cannot break the pipeline (see [WithErrorHandler]). The completion
// handler runs once, for the source's terminal notification, and its
// error becomes the Sink's own terminal status, reported by
// [Sink.Wait].
//
// Handlers receive a context derived from ctx that is canceled when the
// Sink is canceled.
func Attach[T any](
	ctx context.Context,
	src bridge.Source[T],
	onValue func(context.Context, T) error,
	onComplete func(context.Context, error) error,
	opts ...Option[T],
) *Sink[T] {
	ctx, cancel := context.WithCancel(ctx)
	s := &Sink[T]{
		onValue:    onValue,
		onComplete: onComplete,
		ctx:        ctx,
		cancelCtx:  cancel,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.errHandler == nil {
		s.errHandler = s.recordErr
	}

	sub := src.Subscribe(
		func(v T) {
			s.deliver(event[T]{value: v})
		},
		func(err error) {
			s.deliver(event[T]{err: err, terminal: true})
		})
	s.setUpstream(sub)
	return s
}

// deliver is the event-arrival path. It owns the busy/pending state
// transition: an idle sink claims the busy flag and starts the handler
// goroutine in the same critical section, so there is no window for a
// lost update between check-busy and set-busy.
func (s *Sink[T]) deliver(ev event[T]) {
	s.mu.Lock()
	if s.mu.finished || s.mu.canceled {
		s.mu.Unlock()
		return
	}
	if s.mu.busy {
		// Overwrite whatever was buffered, except that a buffered
		// terminal notification is never displaced by a later value.
		if s.mu.pending == nil || !s.mu.pending.terminal || ev.terminal {
			s.mu.pending = &ev
		}
		s.mu.Unlock()
		return
	}
	s.mu.busy = true
	s.mu.Unlock()

	go s.run(ev)
}

// run executes handler invocations until the buffer is drained or a
// terminal event is processed. It is the only goroutine touching the
// handlers while busy is set.
func (s *Sink[T]) run(ev event[T]) {
	for {
		if ev.terminal {
			err := safe.RunE(func() error {
				return s.onComplete(s.ctx, ev.err)
			})
			s.finish(err)
			return
		}
		if err := safe.RunE(func() error {
			return s.onValue(s.ctx, ev.value)
		}); err != nil {
			// Swallowed: a failing event must not break the pipeline.
			s.errHandler(err)
		}

		s.mu.Lock()
		if s.mu.canceled {
			s.mu.Unlock()
			s.finish(context.Cause(s.ctx))
			return
		}
		if next := s.mu.pending; next != nil {
			s.mu.pending = nil
			ev = *next
			s.mu.Unlock()
			continue
		}
		s.mu.busy = false
		s.mu.Unlock()
		return
	}
}

// finish is the one-shot terminal transition.
func (s *Sink[T]) finish(err error) {
	s.mu.Lock()
	if s.mu.finished {
		s.mu.Unlock()
		return
	}
	s.mu.finished = true
	s.mu.busy = false
	s.mu.pending = nil
	s.mu.finErr = err
	sub := s.detachLocked()
	s.mu.Unlock()

	if sub != nil {
		sub.Cancel()
	}
	s.cancelCtx()
	close(s.done)
}

// Cancel implements [bridge.Subscription]. It detaches from the source,
// cancels the handler context, and drops any buffered event. An
// in-flight handler invocation is allowed to finish; the Sink reaches
// its terminal state once it does. Cancel after the terminal event is a
// no-op.
func (s *Sink[T]) Cancel() {
	s.mu.Lock()
	if s.mu.finished || s.mu.canceled {
		s.mu.Unlock()
		return
	}
	s.mu.canceled = true
	s.mu.pending = nil
	busy := s.mu.busy
	sub := s.detachLocked()
	s.mu.Unlock()

	if sub != nil {
		sub.Cancel()
	}
	s.cancelCtx()
	if !busy {
		s.finish(context.Cause(s.ctx))
	}
}

// Done returns a channel that closes when the Sink has reached its
// terminal state: the completion handler has returned, or cancellation
// has drained the in-flight handler.
func (s *Sink[T]) Done() <-chan struct{} { return s.done }

// Wait blocks until the Sink reaches its terminal state and returns the
// completion handler's error, or the cancellation cause if the Sink was
// canceled before the source terminated.
func (s *Sink[T]) Wait() error {
	return s.WaitCtx(context.Background())
}

// WaitCtx is an interruptable version of [Wait].
func (s *Sink[T]) WaitCtx(ctx context.Context) error {
	select {
	case <-s.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mu.finErr
}

// Errs returns a clone of the errors swallowed from value-handler
// invocations so far. It is empty when [WithErrorHandler] substituted
// another disposition.
func (s *Sink[T]) Errs() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.mu.errs)
}

func (s *Sink[T]) recordErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mu.errs = append(s.mu.errs, err)
}

// setUpstream installs the subscription handle, canceling it
// immediately when the terminal transition ran synchronously during
// Subscribe, before the handle existed.
func (s *Sink[T]) setUpstream(sub bridge.Subscription) {
	s.mu.Lock()
	s.mu.upstream = sub
	fire := (s.mu.finished || s.mu.canceled) && !s.mu.detached
	if fire {
		s.mu.detached = true
	}
	s.mu.Unlock()

	if fire {
		sub.Cancel()
	}
}

// detachLocked consumes the upstream handle at most once.
func (s *Sink[T]) detachLocked() bridge.Subscription {
	if s.mu.detached || s.mu.upstream == nil {
		return nil
	}
	s.mu.detached = true
	sub := s.mu.upstream
	s.mu.upstream = nil
	return sub
}
