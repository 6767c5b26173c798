// Package invoker defines how invocations leave the process. The
// dispatcher stays transport-agnostic: everything wire-specific lives
// behind the Invoker interface, and factories build invokers for
// delegation targets as facades are spawned.
package invoker

import (
	"context"

	"github.com/strataline/dispatch/core/contract"
)

// Invoker performs invocations against a capability. Synchronous
// operations return the business value directly; asynchronous ones return
// a *future.Outcome that settles later.
type Invoker interface {
	Invoke(ctx context.Context, inv *contract.Invocation) (any, error)
}

// Func adapts a function to Invoker.
type Func func(ctx context.Context, inv *contract.Invocation) (any, error)

func (f Func) Invoke(ctx context.Context, inv *contract.Invocation) (any, error) {
	return f(ctx, inv)
}
