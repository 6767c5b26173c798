package invoker

import (
	"context"

	"github.com/strataline/dispatch/core/contract"
)

// Shape tells the dispatcher what a factory needs before it can build an
// invoker for a delegation target.
type Shape int

const (
	// ShapeBare factories build from the context alone.
	ShapeBare Shape = iota

	// ShapePerTarget factories build per target contract.
	ShapePerTarget

	// ShapePerPair factories build per sync/async contract pair; the
	// dispatcher resolves the async counterpart before calling For.
	ShapePerPair
)

func (s Shape) String() string {
	switch s {
	case ShapeBare:
		return "bare"
	case ShapePerTarget:
		return "per-target"
	case ShapePerPair:
		return "per-pair"
	default:
		return "unknown"
	}
}

// Target names what an invoker is being built for. Async is filled for
// ShapePerPair factories only.
type Target struct {
	Contract *contract.Contract
	Async    *contract.Contract
}

// Factory builds invokers for delegation targets.
type Factory interface {
	Shape() Shape
	For(ctx context.Context, target Target) (Invoker, error)
}

// Single wraps a fixed invoker into a factory that hands it out for every
// target.
func Single(inv Invoker) Factory {
	return singleFactory{inv: inv}
}

type singleFactory struct {
	inv Invoker
}

func (f singleFactory) Shape() Shape {
	return ShapeBare
}

func (f singleFactory) For(context.Context, Target) (Invoker, error) {
	return f.inv, nil
}
