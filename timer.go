// Copyright 2026 Bob Vawter (bob@vawter.org)
// SPDX-License-Identifier: Apache-2.0

package bridge

import "time"

// A Scheduler arms one-shot, cancelable timers. The default
// implementation is backed by [time.AfterFunc]; tests may substitute a
// fake via [WithScheduler].
type Scheduler interface {
	// ScheduleOnce arranges for fn to be invoked once after the given
	// duration, unless the returned timer is stopped first.
	ScheduleOnce(d time.Duration, fn func()) CancelTimer
}

// A CancelTimer is the handle for one pending deadline. After Stop
// returns, or after the timer has fired, the timer will never fire
// again.
type CancelTimer interface {
	// Stop cancels the pending timer. It reports whether the call
	// prevented the timer from firing.
	Stop() bool
}

// SystemScheduler schedules timers on the process-wide runtime timer
// heap.
var SystemScheduler Scheduler = systemScheduler{}

type systemScheduler struct{}

func (systemScheduler) ScheduleOnce(d time.Duration, fn func()) CancelTimer {
	return time.AfterFunc(d, fn)
}
