// Copyright 2026 Bob Vawter (bob@vawter.org)
// SPDX-License-Identifier: Apache-2.0

// Package safe invokes user-provided handlers without letting a panic
// escape into the event-delivery or dispatch machinery.
package safe

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

const captureDepth = 32

// A RecoveredError associates a recovered panic value with the stack at
// the point of the panic.
type RecoveredError struct {
	Err   error
	Stack []uintptr
}

// Error implements error.
func (e *RecoveredError) Error() string {
	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "recovered: %v\n", e.Err)
	frames := runtime.CallersFrames(e.Stack)
	for {
		frame, more := frames.Next()
		_, _ = fmt.Fprintf(&sb, "%s ( %s:%d )\n", frame.Function, frame.File, frame.Line)
		if !more {
			return sb.String()
		}
	}
}

// Unwrap returns the enclosed error.
func (e *RecoveredError) Unwrap() error { return e.Err }

// recovered converts a recover() value into a RecoveredError, joined
// with any error the handler had already returned.
func recovered(r any, prior error) error {
	var err error
	switch t := r.(type) {
	case error:
		err = errors.Join(prior, t)
	default:
		err = errors.Join(prior, fmt.Errorf("panic: %v", t))
	}
	stack := make([]uintptr, captureDepth)
	stack = stack[:runtime.Callers(3, stack)]
	return &RecoveredError{
		Err:   err,
		Stack: stack,
	}
}

// Run executes the handler. A panic is captured and returned as a
// RecoveredError.
func Run(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recovered(r, nil)
		}
	}()
	fn()
	return
}

// RunE executes the handler. A panic is captured and joined with any
// error the handler had already produced.
func RunE(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recovered(r, err)
		}
	}()
	err = fn()
	return
}
