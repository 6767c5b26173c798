package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/strataline/dispatch/core/caller"
	"github.com/strataline/dispatch/core/invoker"
)

// Factory hands out a fixed invoker and records every build: the targets
// it was asked for and the calling frames active at build time.
type Factory struct {
	shape invoker.Shape
	inv   invoker.Invoker

	mu      sync.Mutex
	targets []invoker.Target
	frames  []string
}

func NewFactory(shape invoker.Shape, inv invoker.Invoker) *Factory {
	return &Factory{shape: shape, inv: inv}
}

func (f *Factory) Shape() invoker.Shape {
	return f.shape
}

func (f *Factory) For(ctx context.Context, t invoker.Target) (invoker.Invoker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.targets = append(f.targets, t)
	if frame, ok := caller.FromContext(ctx); ok {
		f.frames = append(f.frames, fmt.Sprintf("%s.%s",
			frame.Enclosing().Name(), frame.Invocation().Operation().Name))
	}

	return f.inv, nil
}

// Targets returns every target the factory built for, in order.
func (f *Factory) Targets() []invoker.Target {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]invoker.Target(nil), f.targets...)
}

// Frames returns the calling frames seen during builds, rendered
// "Contract.Operation".
func (f *Factory) Frames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.frames...)
}
