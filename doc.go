// Copyright 2026 Bob Vawter (bob@vawter.org)
// SPDX-License-Identifier: Apache-2.0

// Package bridge lets callback-driven, multi-emission event sources
// interoperate safely with single-shot, suspend-and-resume call sites.
//
// Callback APIs and Go's blocking call style fail in predictable ways
// when glued together by hand: a callback that fires twice resumes a
// waiter twice, a timeout races against late value delivery, and a
// subscription is torn down zero times or two. This package packages
// the three mechanisms that eliminate those hazards.
//
// # Gates
//
// A [Gate] converts arbitrary callback completion into exactly one
// outcome. [Gate.Resume] and [Gate.ResumeErr] are safe to call from any
// goroutine, any number of times; the first call wins and every other
// call is a silent no-op:
//
//	v, err := bridge.RunWithTimeout(ctx, time.Second, func(g *bridge.Gate[string]) {
//	    legacyAPI.FetchAsync(func(s string, err error) {
//	        if err != nil {
//	            g.ResumeErr(err)
//	        } else {
//	            g.Resume(s)
//	        }
//	    })
//	})
//
// [RunWithTimeout] suspends the caller until the gate resolves. A
// positive timeout arms a one-shot timer that races the callback;
// whichever fires first wins and the gate cancels the loser. A zero
// timeout resolves immediately with [ErrTimeout] without invoking the
// body; [NoTimeout] waits unboundedly.
//
// # Waiting for a first output
//
// [WaitForOutput] subscribes to a [Source], resolves with its first
// emitted value, and tears the subscription down exactly once no matter
// which of its four outcomes (value, [ErrFinishedWithoutValue], source
// failure, [ErrTimeout]) wins the race.
//
// [WaitForOutputs] fans out over a collection of sources under a shared
// deadline budget, preserving input order in the results. Its sibling
// [WaitForAvailableOutputs] never fails, degrading per-source failures
// to nil slots instead. The [WithMaxConcurrency] and [WithMaxRate]
// options bound the fan-out.
//
// # Serialized dispatch
//
// The [vawter.tech/bridge/serial] sub-package attaches an asynchronous
// handler to a source while guaranteeing that at most one handler
// invocation is in flight; events arriving during the busy window are
// coalesced so that only the most recent is processed next.
//
// # Timers
//
// Deadlines are armed through the [Scheduler] interface, defaulting to
// [SystemScheduler] over [time.AfterFunc]. Tests can substitute the
// manually advanced scheduler from the [vawter.tech/bridge/waittest]
// sub-package to make timeout races deterministic.
//
// # Testing
//
// The [vawter.tech/bridge/waittest] sub-package also provides scripted
// sources and a cancellation recorder for asserting the exactly-once
// teardown contract.
package bridge
