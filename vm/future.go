package vm

import (
	"context"
	"fmt"
	"sync"

	"github.com/electronicarts/ea-async/bytecode"
)

// Future is a single-assignment asynchronous result. It completes at most
// once, with a value or an error. Callbacks run on the goroutine that
// completes it, or immediately if it is already complete.
type Future struct {
	value     Value
	err       error
	done      chan struct{}
	class     string
	callbacks []func(Value, error)
	mu        sync.Mutex
	completed bool
}

// NewFuture returns a pending future of class Future.
func NewFuture() *Future {
	return NewFutureOf(bytecode.ClassFuture)
}

// NewFutureOf returns a pending future of a Future subclass, e.g. Task.
func NewFutureOf(class string) *Future {
	return &Future{class: class, done: make(chan struct{})}
}

// Completed returns a future already completed with v.
func Completed(v Value) *Future {
	f := NewFuture()
	f.Complete(v)
	return f
}

// Failed returns a future already failed with err.
func Failed(err error) *Future {
	f := NewFuture()
	f.Fail(err)
	return f
}

// Class returns the runtime class of the future.
func (f *Future) Class() string {
	return f.class
}

// Complete completes the future with v. It reports false if the future
// was already complete.
func (f *Future) Complete(v Value) bool {
	return f.settle(v, nil)
}

// Fail completes the future with err. It reports false if the future
// was already complete.
func (f *Future) Fail(err error) bool {
	if err == nil {
		err = NewException(bytecode.ClassError, "failed with nil error")
	}
	return f.settle(nil, err)
}

func (f *Future) settle(v Value, err error) bool {
	f.mu.Lock()
	if f.completed {
		f.mu.Unlock()
		return false
	}
	f.completed = true
	f.value, f.err = v, err
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	for _, cb := range callbacks {
		cb(v, err)
	}
	return true
}

// IsDone reports whether the future is complete.
func (f *Future) IsDone() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completed
}

// Result returns the outcome without blocking; ok is false while pending.
func (f *Future) Result() (v Value, ok bool, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.completed, f.err
}

// Join blocks until the future completes or ctx is done.
func (f *Future) Join(ctx context.Context) (Value, error) {
	select {
	case <-f.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	v, _, err := f.Result()
	return v, err
}

// Done returns a channel closed on completion.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// OnComplete registers fn to run once the future completes.
func (f *Future) OnComplete(fn func(Value, error)) {
	f.mu.Lock()
	if !f.completed {
		f.callbacks = append(f.callbacks, fn)
		f.mu.Unlock()
		return
	}
	v, err := f.value, f.err
	f.mu.Unlock()
	fn(v, err)
}

func (f *Future) String() string {
	v, ok, err := f.Result()
	switch {
	case !ok:
		return f.class + "(pending)"
	case err != nil:
		return fmt.Sprintf("%s(failed: %v)", f.class, err)
	default:
		return fmt.Sprintf("%s(%s)", f.class, Format(v))
	}
}
