// Copyright 2026 Bob Vawter (bob@vawter.org)
// SPDX-License-Identifier: Apache-2.0

package bridge_test

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"vawter.tech/bridge"
	"vawter.tech/bridge/waittest"
)

func TestCollectPreservesOrder(t *testing.T) {
	r := require.New(t)

	// A resolves well after B; the output must follow input order.
	sources := []bridge.Source[string]{
		&waittest.Script[string]{Values: []string{"a"}, Delay: 200 * time.Millisecond},
		&waittest.Script[string]{Values: []string{"b"}, Delay: 50 * time.Millisecond},
	}
	got, err := bridge.WaitForOutputs(t.Context(), sources, 5*time.Second)
	r.NoError(err)
	r.Equal([]string{"a", "b"}, got)
}

func TestCollectSharedTimeout(t *testing.T) {
	r := require.New(t)

	sources := []bridge.Source[int]{
		&waittest.Script[int]{Values: []int{1}, Delay: 200 * time.Millisecond},
		&waittest.Script[int]{Values: []int{2}, Delay: 200 * time.Millisecond},
	}
	_, err := bridge.WaitForOutputs(t.Context(), sources, 20*time.Millisecond)
	r.ErrorIs(err, bridge.ErrTimeout)
}

func TestCollectFailureCancelsSiblings(t *testing.T) {
	r := require.New(t)

	boom := errors.New("boom")
	slow := bridge.NewRelay[int]() // Never emits; must be canceled.
	counted := &waittest.CancelCounter[int]{Source: slow}
	sources := []bridge.Source[int]{
		counted,
		&waittest.Script[int]{Err: boom, Delay: 10 * time.Millisecond},
	}

	start := time.Now()
	_, err := bridge.WaitForOutputs(t.Context(), sources, time.Minute)
	r.ErrorIs(err, boom)
	// The sibling wait was canceled, not left to run out the budget.
	r.Less(time.Since(start), 10*time.Second)
	waittest.CheckBalanced(t, counted)
}

func TestCollectNeverFails(t *testing.T) {
	r := require.New(t)

	boom := errors.New("boom")
	sources := []bridge.Source[int]{
		&waittest.Script[int]{Values: []int{7}, Finish: true},
		&waittest.Script[int]{Err: boom},
		&waittest.Script[int]{Finish: true},
	}
	got := bridge.WaitForAvailableOutputs(t.Context(), sources, time.Second)
	r.Len(got, 3)
	r.NotNil(got[0])
	r.Equal(7, *got[0])
	// Failure and empty completion degrade to absent slots.
	r.Nil(got[1])
	r.Nil(got[2])
}

func TestCollectNeverFailsTimeout(t *testing.T) {
	r := require.New(t)

	sources := []bridge.Source[int]{
		&waittest.Script[int]{Values: []int{1}, Delay: 200 * time.Millisecond},
		&waittest.Script[int]{Values: []int{2}, Delay: 200 * time.Millisecond},
	}
	got := bridge.WaitForAvailableOutputs(t.Context(), sources, 20*time.Millisecond)
	r.Equal([]*int{nil, nil}, got)
}

func TestCollectEmpty(t *testing.T) {
	a := assert.New(t)

	got, err := bridge.WaitForOutputs[int](t.Context(), nil, time.Second)
	a.NoError(err)
	a.Empty(got)
	a.Empty(bridge.WaitForAvailableOutputs[int](t.Context(), nil, time.Second))
}

func TestCollectMaxConcurrency(t *testing.T) {
	r := require.New(t)

	var inFlight, peak atomic.Int32
	observe := func(onValue func(int), onComplete func(error)) bridge.Subscription {
		cur := inFlight.Add(1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		go func() {
			time.Sleep(10 * time.Millisecond)
			// Drop out of the in-flight count before resolving, since
			// resolution is what frees the next launch slot.
			inFlight.Add(-1)
			onValue(1)
		}()
		return bridge.SubscriptionFunc(func() {})
	}

	sources := make([]bridge.Source[int], 8)
	for i := range sources {
		sources[i] = bridge.SourceFunc[int](observe)
	}
	got, err := bridge.WaitForOutputs(t.Context(), sources, time.Minute,
		bridge.WithMaxConcurrency(2))
	r.NoError(err)
	r.Len(got, 8)
	r.LessOrEqual(peak.Load(), int32(2))
}

func TestCollectMaxRatePaces(t *testing.T) {
	r := require.New(t)

	sources := []bridge.Source[int]{
		&waittest.Script[int]{Values: []int{1}},
		&waittest.Script[int]{Values: []int{2}},
		&waittest.Script[int]{Values: []int{3}},
	}
	// One initial token, then 100/s: three launches need >= 20ms.
	start := time.Now()
	got, err := bridge.WaitForOutputs(t.Context(), sources, time.Minute,
		bridge.WithMaxRate(100, 1))
	r.NoError(err)
	r.Equal([]int{1, 2, 3}, got)
	r.GreaterOrEqual(time.Since(start), 15*time.Millisecond)
}

func TestCollectOptionPanics(t *testing.T) {
	a := assert.New(t)
	a.Panics(func() { bridge.WithMaxConcurrency(0) })
}
