// Copyright 2026 Bob Vawter (bob@vawter.org)
// SPDX-License-Identifier: Apache-2.0

package bridge_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"vawter.tech/bridge"
	"vawter.tech/bridge/waittest"
)

func TestResumeBeatsTimeout(t *testing.T) {
	r := require.New(t)

	sched := waittest.NewManualScheduler()
	var timedOut atomic.Bool

	v, err := bridge.RunWithTimeout(t.Context(), 100*time.Millisecond,
		func(g *bridge.Gate[int]) {
			go func() {
				sched.Advance(50 * time.Millisecond)
				g.Resume(1)
				// A later timer fire must be a no-op.
				sched.Advance(100 * time.Millisecond)
			}()
		},
		bridge.WithScheduler(sched),
		bridge.WithOnTimeout(func() { timedOut.Store(true) }))

	r.NoError(err)
	r.Equal(1, v)
	r.False(timedOut.Load())
	// The winning resume stops the timer; no stale wakeup remains.
	r.Zero(sched.Pending())
}

func TestTimeoutBeatsResume(t *testing.T) {
	r := require.New(t)

	sched := waittest.NewManualScheduler()
	var timedOut atomic.Bool
	lateResume := make(chan bool, 1)

	_, err := bridge.RunWithTimeout(t.Context(), 100*time.Millisecond,
		func(g *bridge.Gate[int]) {
			go func() {
				sched.Advance(150 * time.Millisecond)
				// The race is already decided; this must be dropped.
				lateResume <- g.Resume(2)
			}()
		},
		bridge.WithScheduler(sched),
		bridge.WithOnTimeout(func() { timedOut.Store(true) }))

	r.ErrorIs(err, bridge.ErrTimeout)
	r.True(timedOut.Load())
	select {
	case won := <-lateResume:
		r.False(won)
	case <-time.After(time.Second):
		r.Fail("timed out waiting for the late resume")
	}
}

func TestZeroTimeout(t *testing.T) {
	a := assert.New(t)

	var bodyRan atomic.Bool
	var timedOut atomic.Int32

	v, err := bridge.RunWithTimeout(t.Context(), 0,
		func(g *bridge.Gate[int]) {
			bodyRan.Store(true)
			g.Resume(1)
		},
		bridge.WithOnTimeout(func() { timedOut.Add(1) }))

	a.ErrorIs(err, bridge.ErrTimeout)
	a.Zero(v)
	// The body's asynchronous side is never started.
	a.False(bodyRan.Load())
	// The timeout observer still fires exactly once.
	a.Equal(int32(1), timedOut.Load())
}

func TestNoTimeoutSentinel(t *testing.T) {
	r := require.New(t)

	sched := waittest.NewManualScheduler()
	v, err := bridge.RunWithTimeout(t.Context(), bridge.NoTimeout,
		func(g *bridge.Gate[string]) {
			go func() {
				// An arbitrarily long wait never times out.
				sched.Advance(24 * time.Hour)
				g.Resume("done")
			}()
		},
		bridge.WithScheduler(sched))

	r.NoError(err)
	r.Equal("done", v)
	// No timer was ever armed.
	r.Zero(sched.Pending())
}

func TestBodyError(t *testing.T) {
	r := require.New(t)

	boom := errors.New("boom")
	_, err := bridge.RunWithTimeout(t.Context(), time.Second,
		func(g *bridge.Gate[int]) {
			g.ResumeErr(boom)
		})

	// Errors from the body pass through unchanged.
	r.ErrorIs(err, boom)
	r.NotErrorIs(err, bridge.ErrTimeout)
}

func TestSynchronousResume(t *testing.T) {
	r := require.New(t)

	v, err := bridge.RunWithTimeout(t.Context(), time.Second,
		func(g *bridge.Gate[int]) {
			g.Resume(7)
		})
	r.NoError(err)
	r.Equal(7, v)
}

func TestContextCancellation(t *testing.T) {
	r := require.New(t)

	ctx, cancel := context.WithCancel(t.Context())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := bridge.RunWithTimeout(ctx, bridge.NoTimeout,
		func(*bridge.Gate[int]) {})
	r.ErrorIs(err, context.Canceled)
}

func TestRealTimerRace(t *testing.T) {
	r := require.New(t)

	// Same race as above, but against the system scheduler.
	v, err := bridge.RunWithTimeout(t.Context(), time.Second,
		func(g *bridge.Gate[int]) {
			go func() {
				time.Sleep(10 * time.Millisecond)
				g.Resume(3)
			}()
		})
	r.NoError(err)
	r.Equal(3, v)

	_, err = bridge.RunWithTimeout(t.Context(), 10*time.Millisecond,
		func(*bridge.Gate[int]) {})
	r.ErrorIs(err, bridge.ErrTimeout)
}
