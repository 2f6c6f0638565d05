// Copyright 2026 Bob Vawter (bob@vawter.org)
// SPDX-License-Identifier: Apache-2.0

// Package waittest contains test doubles for exercising code built on
// the bridge package: scripted sources, a cancellation recorder, and a
// manually advanced timer scheduler.
package waittest

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"vawter.tech/bridge"
)

// A Script is a [bridge.Source] that replays a fixed sequence of
// emissions to each subscriber from a dedicated goroutine. A canceled
// subscription stops its replay.
type Script[T any] struct {
	Values []T           // Emitted in order.
	Err    error         // Terminal failure, delivered after Values.
	Finish bool          // Complete normally after Values.
	Delay  time.Duration // Optional pause before each emission.
}

// Subscribe implements [bridge.Source].
func (s *Script[T]) Subscribe(onValue func(T), onComplete func(error)) bridge.Subscription {
	quit := make(chan struct{})
	go func() {
		for _, v := range s.Values {
			if !s.pause(quit) {
				return
			}
			onValue(v)
		}
		if s.Err != nil {
			if !s.pause(quit) {
				return
			}
			onComplete(s.Err)
		} else if s.Finish {
			if !s.pause(quit) {
				return
			}
			onComplete(nil)
		}
	}()
	var once sync.Once
	return bridge.SubscriptionFunc(func() {
		once.Do(func() { close(quit) })
	})
}

func (s *Script[T]) pause(quit <-chan struct{}) bool {
	if s.Delay <= 0 {
		select {
		case <-quit:
			return false
		default:
			return true
		}
	}
	select {
	case <-time.After(s.Delay):
		return true
	case <-quit:
		return false
	}
}

// A CancelCounter wraps a [bridge.Source] and counts, per
// subscription, how many times Cancel was invoked. Use [CheckBalanced]
// to assert the exactly-once teardown contract.
type CancelCounter[T any] struct {
	Source bridge.Source[T]

	mu struct {
		sync.Mutex
		cancels []int
	}
}

// Subscribe implements [bridge.Source].
func (c *CancelCounter[T]) Subscribe(onValue func(T), onComplete func(error)) bridge.Subscription {
	c.mu.Lock()
	idx := len(c.mu.cancels)
	c.mu.cancels = append(c.mu.cancels, 0)
	c.mu.Unlock()

	sub := c.Source.Subscribe(onValue, onComplete)
	return bridge.SubscriptionFunc(func() {
		c.mu.Lock()
		c.mu.cancels[idx]++
		c.mu.Unlock()
		sub.Cancel()
	})
}

// Subscriptions returns the number of subscriptions made so far.
func (c *CancelCounter[T]) Subscriptions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.mu.cancels)
}

// Cancels returns the cancel count for the given subscription, in
// subscription order.
func (c *CancelCounter[T]) Cancels(idx int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mu.cancels[idx]
}

// TestingT is the subset of [testing.TB] needed by [CheckBalanced].
type TestingT interface {
	Errorf(string, ...any)
}

// CheckBalanced records a test error unless every subscription made
// through the counter was canceled exactly once.
func CheckBalanced[T any](t TestingT, c *CancelCounter[T]) {
	if x, ok := t.(interface{ Helper() }); ok {
		x.Helper()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.mu.cancels) == 0 {
		t.Errorf("no subscriptions were made")
		return
	}
	for idx, count := range c.mu.cancels {
		if count != 1 {
			t.Errorf("subscription %d canceled %d times, want exactly 1", idx, count)
		}
	}
}

// A ManualScheduler is a [bridge.Scheduler] whose clock only moves when
// the test calls [ManualScheduler.Advance], making timeout races
// deterministic.
type ManualScheduler struct {
	mu struct {
		sync.Mutex
		now     time.Duration
		nextID  uint64
		pending map[uint64]*manualTimer
	}
}

type manualTimer struct {
	due time.Duration
	fn  func()
}

// NewManualScheduler returns a scheduler with no pending timers.
func NewManualScheduler() *ManualScheduler {
	ret := &ManualScheduler{}
	ret.mu.pending = make(map[uint64]*manualTimer)
	return ret
}

// ScheduleOnce implements [bridge.Scheduler].
func (s *ManualScheduler) ScheduleOnce(d time.Duration, fn func()) bridge.CancelTimer {
	s.mu.Lock()
	id := s.mu.nextID
	s.mu.nextID++
	s.mu.pending[id] = &manualTimer{due: s.mu.now + d, fn: fn}
	s.mu.Unlock()

	return manualCancel{s: s, id: id}
}

// Advance moves the fake clock forward, firing any timers that come
// due. Callbacks run synchronously, in due order, without the internal
// mutex held.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	s.mu.now += d
	var fire []*manualTimer
	for id, t := range s.mu.pending {
		if t.due <= s.mu.now {
			fire = append(fire, t)
			delete(s.mu.pending, id)
		}
	}
	s.mu.Unlock()

	slices.SortFunc(fire, func(a, b *manualTimer) int {
		return cmp.Compare(a.due, b.due)
	})
	for _, t := range fire {
		t.fn()
	}
}

// Pending returns the number of timers that are armed but have not
// fired. A leaked timer after gate resolution shows up here.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.mu.pending)
}

type manualCancel struct {
	s  *ManualScheduler
	id uint64
}

func (c manualCancel) Stop() bool {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	_, ok := c.s.mu.pending[c.id]
	delete(c.s.mu.pending, c.id)
	return ok
}
