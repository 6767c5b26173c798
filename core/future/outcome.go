package future

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrCancelled is the failure of an outcome cancelled before completion.
	ErrCancelled = errors.New("outcome cancelled")

	// ErrInterrupted marks a wait abandoned because its context ended before
	// the outcome settled. Use errors.Is(err, ErrInterrupted) to recognize it.
	ErrInterrupted = errors.New("wait interrupted")
)

// InterruptedError reports a wait abandoned mid-flight. The outcome itself
// may still settle later; the error carries the context's verdict as cause.
type InterruptedError struct {
	Cause error
}

func (e *InterruptedError) Error() string {
	return fmt.Sprintf("wait interrupted: %v", e.Cause)
}

func (e *InterruptedError) Unwrap() error {
	return e.Cause
}

func (e *InterruptedError) Is(target error) bool {
	return target == ErrInterrupted
}

// Outcome is the single-assignment result of a non-blocking call. The first
// Complete, Fail or Cancel settles it; later settles are no-ops. A settled
// outcome never changes.
type Outcome struct {
	mu    sync.Mutex
	done  chan struct{}
	value any
	err   error
}

// New returns an unsettled outcome.
func New() *Outcome {
	return &Outcome{done: make(chan struct{})}
}

// Go runs fn on its own goroutine and settles the returned outcome with its
// result.
func Go(fn func() (any, error)) *Outcome {
	o := New()

	go func() {
		v, err := fn()
		if err != nil {
			o.Fail(err)
			return
		}
		o.Complete(v)
	}()

	return o
}

// Done returns a channel closed when the outcome settles.
func (o *Outcome) Done() <-chan struct{} {
	return o.done
}

// Settled reports whether the outcome already has a result.
func (o *Outcome) Settled() bool {
	select {
	case <-o.done:
		return true
	default:
		return false
	}
}

// Complete settles the outcome with a value and reports whether this call
// settled it.
func (o *Outcome) Complete(v any) bool {
	return o.settle(v, nil)
}

// Fail settles the outcome with a failure and reports whether this call
// settled it.
func (o *Outcome) Fail(err error) bool {
	if err == nil {
		err = errors.New("outcome failed without an error")
	}

	return o.settle(nil, err)
}

// Cancel settles the outcome with ErrCancelled and reports whether this
// call settled it.
func (o *Outcome) Cancel() bool {
	return o.settle(nil, ErrCancelled)
}

func (o *Outcome) settle(v any, err error) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	select {
	case <-o.done:
		return false
	default:
	}

	o.value = v
	o.err = err
	close(o.done)

	return true
}

// Wait blocks until the outcome settles or ctx ends. A context end is
// reported as *InterruptedError; a cancelled outcome surfaces ErrCancelled.
// Reading the result does not consume it, Wait may be called repeatedly.
func (o *Outcome) Wait(ctx context.Context) (any, error) {
	select {
	case <-ctx.Done():
		return nil, &InterruptedError{Cause: ctx.Err()}
	case <-o.done:
		return o.value, o.err
	}
}
