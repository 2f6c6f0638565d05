// Copyright 2026 Bob Vawter (bob@vawter.org)
// SPDX-License-Identifier: Apache-2.0

package bridge

import "errors"

var (
	// ErrTimeout is the resolution of a wait whose deadline elapsed
	// before any other outcome arrived.
	ErrTimeout = errors.New("timed out waiting for output")

	// ErrFinishedWithoutValue is the resolution of a wait whose source
	// completed normally without ever emitting a value.
	ErrFinishedWithoutValue = errors.New("source finished without emitting a value")

	// ErrNoOutcome reports an internal consistency failure: a fanned-out
	// wait returned without producing either a value or an error. It
	// should be unreachable.
	ErrNoOutcome = errors.New("wait produced no outcome")
)
