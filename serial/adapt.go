// Copyright 2026 Bob Vawter (bob@vawter.org)
// SPDX-License-Identifier: Apache-2.0

package serial

import "context"

// Handler is the set of function signatures accepted by [Fn].
type Handler[T any] interface {
	func(T) | func(T) error |
		func(context.Context, T) | func(context.Context, T) error
}

// Fn adapts various handler signatures to the canonical form accepted
// by [Attach]. Instantiating with T = error adapts completion-handler
// signatures the same way.
func Fn[T any, H Handler[T]](fn H) func(context.Context, T) error {
	a := any(fn)
	switch t := a.(type) {
	case func(T):
		return func(_ context.Context, v T) error {
			t(v)
			return nil
		}
	case func(T) error:
		return func(_ context.Context, v T) error {
			return t(v)
		}
	case func(context.Context, T):
		return func(ctx context.Context, v T) error {
			t(ctx, v)
			return nil
		}
	}
	return a.(func(context.Context, T) error)
}
