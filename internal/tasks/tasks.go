// Package tasks runs storage and metadata I/O off the calling goroutine
// while keeping the caller's view synchronous: every call blocks until the
// work completes or its deadline elapses. Timed-out work is cancelled
// through its context; a worker that ignores cancellation and finishes late
// is logged rather than silently leaked.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is wrapped into the error returned when a bounded wait elapses.
var ErrTimeout = errors.New("operation timed out")

// Runner carries the logging hook shared by all bounded waits. A nil Runner
// or a Runner with a nil Warnf is usable; late completions then go unlogged.
type Runner struct {
	warnf func(format string, args ...interface{})
}

func NewRunner(warnf func(format string, args ...interface{})) *Runner {
	return &Runner{warnf: warnf}
}

func (r *Runner) logf(format string, args ...interface{}) {
	if r == nil || r.warnf == nil {
		return
	}
	r.warnf(format, args...)
}

type outcome[T any] struct {
	val T
	err error
}

// Await runs fn on its own goroutine and blocks the caller until fn returns
// or the deadline elapses, whichever comes first. On timeout the context
// handed to fn is cancelled and the eventual late completion is logged.
func Await[T any](ctx context.Context, r *Runner, name string, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)

	ch := make(chan outcome[T], 1)
	started := time.Now()
	go func() {
		val, err := fn(runCtx)
		ch <- outcome[T]{val: val, err: err}
	}()

	select {
	case out := <-ch:
		cancel()
		return out.val, out.err
	case <-runCtx.Done():
		// The worker holds runCtx and is expected to unwind; observe it in
		// the background so a stubborn one is at least accounted for.
		go func() {
			out := <-ch
			r.logf("abandoned task %q finished after %s (err=%v)", name, time.Since(started), out.err)
			cancel()
		}()
		var zero T
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return zero, fmt.Errorf("%s after %s: %w", name, timeout, ErrTimeout)
		}
		return zero, fmt.Errorf("%s: %w", name, runCtx.Err())
	}
}

// AwaitErr is Await for operations with no result value.
func AwaitErr(ctx context.Context, r *Runner, name string, timeout time.Duration, fn func(context.Context) error) error {
	_, err := Await(ctx, r, name, timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
