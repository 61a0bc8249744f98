// Copyright 2023 The CubeFS Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

package kvstore

import "context"

// Future is the task-handle type named in the REDESIGN FLAGS: an explicit
// result-of-T-or-error, never a raw channel smuggling an error through a
// success path. Every Store method that crosses I/O returns one.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// NewFuture starts fn in its own goroutine and returns a handle to its
// eventual result. fn must not block forever without observing ctx.
func NewFuture[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.val, f.err = fn(ctx)
	}()
	return f
}

// Resolved returns a Future already holding val, err — used by in-memory
// implementations (memstore) that never actually suspend.
func Resolved[T any](val T, err error) *Future[T] {
	f := &Future[T]{done: make(chan struct{}), val: val, err: err}
	close(f.done)
	return f
}

// Get blocks until the future resolves or ctx is done. If ctx is done first
// it returns ctx.Err() (context.Canceled or context.DeadlineExceeded) and the future's own goroutine, if
// still running, is abandoned — no side effects from the cancelled wait
// become observable to the caller (§5: "No side effects from cancelled
// reads are observable").
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
