package eventloop

import (
	"context"
	"fmt"
	"sync"
)

// Promise holds the eventual result of an asynchronous step. Callbacks
// registered on it run on loop workers once it settles.
type Promise[T any] struct {
	loop *Loop

	mu        sync.Mutex
	done      chan struct{}
	settled   bool
	val       T
	err       error
	callbacks []func(T, error)
}

func newPromise[T any](l *Loop) *Promise[T] {
	return &Promise[T]{loop: l, done: make(chan struct{})}
}

// Resolved returns a promise already settled with v.
func Resolved[T any](l *Loop, v T) *Promise[T] {
	p := newPromise[T](l)
	p.settle(v, nil)
	return p
}

// Rejected returns a promise already settled with err.
func Rejected[T any](l *Loop, err error) *Promise[T] {
	p := newPromise[T](l)
	var zero T
	p.settle(zero, err)
	return p
}

// Go runs fn on its own goroutine, off the loop. fn may block.
func Go[T any](l *Loop, ctx context.Context, fn func(context.Context) (T, error)) *Promise[T] {
	if err := ctx.Err(); err != nil {
		return Rejected[T](l, err)
	}
	p := newPromise[T](l)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				p.settle(zero, fmt.Errorf("eventloop: panic in io step: %v", r))
			}
		}()
		v, err := fn(ctx)
		p.settle(v, err)
	}()
	return p
}

// Run executes fn on a loop worker. fn must not block.
func Run[T any](l *Loop, fn func() (T, error)) *Promise[T] {
	p := newPromise[T](l)
	err := l.Submit(func() {
		defer recoverInto(p)
		v, err := fn()
		p.settle(v, err)
	})
	if err != nil {
		var zero T
		p.settle(zero, err)
	}
	return p
}

// Then chains a dependent asynchronous step. fn runs on a loop worker and
// only when p succeeded; a failure of p skips fn and propagates.
func Then[T, U any](p *Promise[T], fn func(T) *Promise[U]) *Promise[U] {
	next := newPromise[U](p.loop)
	p.onSettle(func(v T, err error) {
		if err != nil {
			var zero U
			next.settle(zero, err)
			return
		}
		defer recoverInto(next)
		inner := fn(v)
		inner.onSettle(next.settle)
	})
	return next
}

// Map transforms the value of p on a loop worker.
func Map[T, U any](p *Promise[T], fn func(T) (U, error)) *Promise[U] {
	next := newPromise[U](p.loop)
	p.onSettle(func(v T, err error) {
		if err != nil {
			var zero U
			next.settle(zero, err)
			return
		}
		defer recoverInto(next)
		u, err := fn(v)
		next.settle(u, err)
	})
	return next
}

// Await blocks the caller (not a loop worker) until p settles or ctx ends.
func (p *Promise[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		return p.val, p.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done is closed once the promise settles.
func (p *Promise[T]) Done() <-chan struct{} {
	return p.done
}

func (p *Promise[T]) settle(v T, err error) {
	p.mu.Lock()
	if p.settled {
		p.mu.Unlock()
		return
	}
	p.val, p.err, p.settled = v, err, true
	callbacks := p.callbacks
	p.callbacks = nil
	close(p.done)
	p.mu.Unlock()

	for _, cb := range callbacks {
		p.dispatch(cb)
	}
}

func (p *Promise[T]) onSettle(cb func(T, error)) {
	p.mu.Lock()
	if !p.settled {
		p.callbacks = append(p.callbacks, cb)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	p.dispatch(cb)
}

// dispatch hands cb to the loop. When the loop refuses, cb runs inline with
// the refusal so that dependents are rejected instead of left pending.
func (p *Promise[T]) dispatch(cb func(T, error)) {
	v, err := p.val, p.err
	if submitErr := p.loop.Submit(func() { cb(v, err) }); submitErr != nil {
		var zero T
		cb(zero, submitErr)
	}
}

func recoverInto[T any](p *Promise[T]) {
	if r := recover(); r != nil {
		var zero T
		p.settle(zero, fmt.Errorf("eventloop: panic in continuation: %v", r))
	}
}
