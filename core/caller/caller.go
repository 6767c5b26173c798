package caller

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/strataline/dispatch/core/contract"
)

var (
	// ErrFrameActive is returned when a calling context is entered while
	// another frame is still active on the same context chain.
	ErrFrameActive = errors.New("calling context already entered")

	// ErrNotEntered is returned when a frame is released more than once.
	ErrNotEntered = errors.New("calling context not entered")
)

// Frame records which contract operation initiated a delegated call.
// Capability factories read it to parameterize what they build.
type Frame struct {
	enclosing *contract.Contract
	inv       *contract.Invocation
	released  atomic.Bool
}

// Enclosing returns the contract that declared the delegation operation.
func (f *Frame) Enclosing() *contract.Contract {
	return f.enclosing
}

// Invocation returns the delegation invocation, including any arguments the
// caller passed to scope the delegate.
func (f *Frame) Invocation() *contract.Invocation {
	return f.inv
}

type ctxKey struct{}

// Enter records (enclosing, inv) as the active calling frame of ctx and
// returns a derived context carrying it. Entering while a frame is already
// active fails: the previous delegation did not release, which is a bug in
// the dispatch flow, and proceeding would silently misattribute the caller.
//
// The returned release func must be called exactly once, when the delegated
// facade has been built. After release the frame is dead: lookups through
// any context that carried it come back empty, so a capability holding a
// stale context cannot read another call's frame.
func Enter(ctx context.Context, enclosing *contract.Contract, inv *contract.Invocation) (context.Context, func() error, error) {
	if _, ok := FromContext(ctx); ok {
		return ctx, nil, ErrFrameActive
	}

	f := &Frame{enclosing: enclosing, inv: inv}
	release := func() error {
		if f.released.Swap(true) {
			return ErrNotEntered
		}
		return nil
	}

	return context.WithValue(ctx, ctxKey{}, f), release, nil
}

// FromContext returns the active calling frame of ctx. Released frames are
// never returned.
func FromContext(ctx context.Context) (*Frame, bool) {
	f, ok := ctx.Value(ctxKey{}).(*Frame)
	if !ok || f.released.Load() {
		return nil, false
	}

	return f, true
}
