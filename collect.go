// Copyright 2026 Bob Vawter (bob@vawter.org)
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// A CollectOption adjusts the behavior of the fan-out collectors.
type CollectOption func(*collectConfig)

type collectConfig struct {
	maxConcurrency int
	limiter        *rate.Limiter
	waitOpts       []Option
}

// WithMaxConcurrency bounds the number of per-source waits running at
// once. The deadline budget is shared across the whole batch, so a
// small limit over many slow sources will surface as timeouts.
func WithMaxConcurrency(limit int) CollectOption {
	if limit <= 0 {
		panic(errors.New("limit must be greater than zero"))
	}
	return func(c *collectConfig) { c.maxConcurrency = limit }
}

// WithMaxRate paces the launch of per-source waits using a token
// bucket, to avoid stampeding a shared backend when fanning out over
// many sources.
func WithMaxRate(r float64, b int) CollectOption {
	l := rate.NewLimiter(rate.Limit(r), b)
	return func(c *collectConfig) { c.limiter = l }
}

// WithWaitOptions forwards [Option] values to each per-source wait.
func WithWaitOptions(opts ...Option) CollectOption {
	return func(c *collectConfig) { c.waitOpts = opts }
}

// WaitForOutputs runs one [WaitForOutput] concurrently per source and
// collects the first value from each. The result order matches the
// input order, independent of completion order. All waits share a
// single deadline budget measured from fan-out start; pass [NoTimeout]
// for an unbounded batch.
//
// The first wait to resolve with an error cancels the remaining waits
// and that error becomes the aggregate result, annotated with the
// source's index but otherwise unwrapped. When the shared budget
// elapses, every outstanding wait resolves with [ErrTimeout]. For a
// variant that degrades per-source failures to absent slots instead,
// see [WaitForAvailableOutputs].
func WaitForOutputs[T any](
	ctx context.Context, sources []Source[T], timeout time.Duration, opts ...CollectOption,
) ([]T, error) {
	cfg := applyCollectOpts(opts)
	ctx, cancel := collectContext(ctx, timeout)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	if cfg.maxConcurrency > 0 {
		g.SetLimit(cfg.maxConcurrency)
	}

	ret := make([]T, len(sources))
	filled := make([]bool, len(sources))
	for i, src := range sources {
		g.Go(func() error {
			if err := cfg.pace(ctx); err != nil {
				// Report the shared-budget expiry, not the limiter's
				// own wrapper.
				if cause := context.Cause(ctx); cause != nil {
					err = cause
				}
				return fmt.Errorf("source %d: %w", i, err)
			}
			v, err := WaitForOutputIndefinitely(ctx, src, cfg.waitOpts...)
			if err != nil {
				return fmt.Errorf("source %d: %w", i, err)
			}
			ret[i] = v
			filled[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Unreachable: every goroutine either fills its slot or errors.
	for i := range filled {
		if !filled[i] {
			return nil, fmt.Errorf("source %d: %w", i, ErrNoOutcome)
		}
	}
	return ret, nil
}

// WaitForAvailableOutputs is the never-fails sibling of
// [WaitForOutputs]. Each slot in the result holds the first value from
// the corresponding source, or nil when that source timed out, finished
// empty, or failed. Per-source failures never abort the batch and no
// error channel exists at all.
func WaitForAvailableOutputs[T any](
	ctx context.Context, sources []Source[T], timeout time.Duration, opts ...CollectOption,
) []*T {
	cfg := applyCollectOpts(opts)
	ctx, cancel := collectContext(ctx, timeout)
	defer cancel()

	g := &errgroup.Group{}
	if cfg.maxConcurrency > 0 {
		g.SetLimit(cfg.maxConcurrency)
	}

	ret := make([]*T, len(sources))
	for i, src := range sources {
		g.Go(func() error {
			if err := cfg.pace(ctx); err != nil {
				return nil
			}
			if v, err := WaitForOutputIndefinitely(ctx, src, cfg.waitOpts...); err == nil {
				ret[i] = &v
			}
			return nil
		})
	}
	// The goroutines never return an error.
	_ = g.Wait()
	return ret
}

func applyCollectOpts(opts []CollectOption) *collectConfig {
	cfg := &collectConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// collectContext establishes the shared deadline budget. The cause is
// fixed to ErrTimeout so that per-source waits resolve with the same
// error a standalone timed wait would.
func collectContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout < 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeoutCause(ctx, timeout, ErrTimeout)
}

func (c *collectConfig) pace(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}
