// Copyright 2026 Bob Vawter (bob@vawter.org)
// SPDX-License-Identifier: Apache-2.0

package bridge

import "sync"

// A Source is a multi-emission producer of values: it delivers zero or
// more values via the onValue callback and then, at most once, a
// terminal notification via onComplete. A nil completion error means
// the source finished normally; a non-nil error reports an upstream
// failure. Callbacks may be invoked from any goroutine, including
// synchronously from within Subscribe.
type Source[T any] interface {
	Subscribe(onValue func(T), onComplete func(error)) Subscription
}

// A Subscription represents an active attachment to a [Source]. Cancel
// stops further delivery. The waiting helpers in this package call
// Cancel at most once per subscription; implementations are not
// required to tolerate redundant calls.
type Subscription interface {
	Cancel()
}

// SubscriptionFunc adapts a plain function to the [Subscription]
// interface.
type SubscriptionFunc func()

// Cancel implements [Subscription].
func (f SubscriptionFunc) Cancel() { f() }

// SourceFunc adapts a subscribe function to the [Source] interface.
type SourceFunc[T any] func(onValue func(T), onComplete func(error)) Subscription

// Subscribe implements [Source].
func (f SourceFunc[T]) Subscribe(onValue func(T), onComplete func(error)) Subscription {
	return f(onValue, onComplete)
}

// FromChannel adapts a receive channel to the [Source] interface. Each
// subscription drains the channel independently; when the channel is
// closed the subscriber is completed normally. Note that concurrent
// subscriptions to the same channel will partition its values, not
// multicast them.
func FromChannel[T any](ch <-chan T) Source[T] {
	return SourceFunc[T](func(onValue func(T), onComplete func(error)) Subscription {
		quit := make(chan struct{})
		go func() {
			for {
				select {
				case v, ok := <-ch:
					if !ok {
						onComplete(nil)
						return
					}
					onValue(v)
				case <-quit:
					return
				}
			}
		}()
		var once sync.Once
		return SubscriptionFunc(func() {
			once.Do(func() { close(quit) })
		})
	})
}

// A Relay is a minimal push [Source] for bridging imperative callback
// code into the waiting helpers. Values sent with [Relay.Emit] are
// multicast to all current subscribers; [Relay.Finish] and
// [Relay.Fail] terminate the relay, after which further emissions are
// dropped and new subscribers are completed immediately.
//
// A Relay is not a reactive-streams implementation: there is no
// buffering or replay of values emitted before a subscription existed.
// All methods are safe for concurrent use.
type Relay[T any] struct {
	mu struct {
		sync.Mutex
		subs   map[uint64]*relaySub[T]
		nextID uint64
		done   bool
		err    error
	}
}

type relaySub[T any] struct {
	onValue    func(T)
	onComplete func(error)
}

// NewRelay returns an empty, active Relay.
func NewRelay[T any]() *Relay[T] {
	ret := &Relay[T]{}
	ret.mu.subs = make(map[uint64]*relaySub[T])
	return ret
}

// Emit multicasts a value to all current subscribers. It is a no-op
// after the relay has terminated.
func (r *Relay[T]) Emit(v T) {
	for _, sub := range r.snapshot() {
		sub.onValue(v)
	}
}

// Finish terminates the relay normally. Subscribers receive a nil
// completion. Only the first of Finish or Fail has any effect.
func (r *Relay[T]) Finish() { r.terminate(nil) }

// Fail terminates the relay with an upstream failure. Only the first of
// Finish or Fail has any effect.
func (r *Relay[T]) Fail(err error) { r.terminate(err) }

// Subscribe implements [Source]. Subscribing to a terminated relay
// invokes onComplete immediately with the terminal error, if any.
func (r *Relay[T]) Subscribe(onValue func(T), onComplete func(error)) Subscription {
	r.mu.Lock()
	if r.mu.done {
		err := r.mu.err
		r.mu.Unlock()
		onComplete(err)
		return SubscriptionFunc(func() {})
	}
	id := r.mu.nextID
	r.mu.nextID++
	r.mu.subs[id] = &relaySub[T]{onValue: onValue, onComplete: onComplete}
	r.mu.Unlock()

	return SubscriptionFunc(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.mu.subs, id)
	})
}

// snapshot copies the subscriber list so that user callbacks are never
// invoked while the mutex is held. A delivery already in flight when a
// subscriber cancels may still arrive; downstream gates treat such late
// deliveries as no-ops.
func (r *Relay[T]) snapshot() []*relaySub[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.mu.done {
		return nil
	}
	ret := make([]*relaySub[T], 0, len(r.mu.subs))
	for _, sub := range r.mu.subs {
		ret = append(ret, sub)
	}
	return ret
}

// terminate is a one-shot transition into the terminal state.
func (r *Relay[T]) terminate(err error) {
	r.mu.Lock()
	if r.mu.done {
		r.mu.Unlock()
		return
	}
	r.mu.done = true
	r.mu.err = err
	subs := make([]*relaySub[T], 0, len(r.mu.subs))
	for _, sub := range r.mu.subs {
		subs = append(subs, sub)
	}
	r.mu.subs = nil
	r.mu.Unlock()

	for _, sub := range subs {
		sub.onComplete(err)
	}
}
