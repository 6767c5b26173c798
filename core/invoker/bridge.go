package invoker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/strataline/dispatch/core/config"
	"github.com/strataline/dispatch/core/contract"
	"github.com/strataline/dispatch/core/future"
	"github.com/strataline/dispatch/core/syncasync"
)

// ErrNotOutcome reports an asynchronous invocation whose invoker returned
// something other than a *future.Outcome.
var ErrNotOutcome = errors.New("asynchronous invoker returned no outcome")

// Bridge adapts synchronous operations onto an asynchronous transport.
// A synchronous call is rewritten against its async counterpart, handed to
// the next invoker, and the outcome is awaited under the operation's
// deadline. Operations without a counterpart, and asynchronous operations,
// pass through untouched.
type Bridge struct {
	next     Invoker
	table    *syncasync.Table
	def      time.Duration
	timeouts map[string]time.Duration
}

// BridgeOption configures a Bridge.
type BridgeOption func(b *Bridge)

// WithDefaultTimeout replaces the default deadline synchronous waits run
// under.
func WithDefaultTimeout(d time.Duration) BridgeOption {
	return func(b *Bridge) {
		b.def = d
	}
}

// WithTimeout sets the deadline for one operation, keyed "Contract.Name".
func WithTimeout(op string, d time.Duration) BridgeOption {
	return func(b *Bridge) {
		b.timeouts[op] = d
	}
}

// WithTimeouts merges per-operation deadlines, keyed "Contract.Name".
func WithTimeouts(timeouts map[string]time.Duration) BridgeOption {
	return func(b *Bridge) {
		for op, d := range timeouts {
			b.timeouts[op] = d
		}
	}
}

// NewBridge wraps next so synchronous operations ride their asynchronous
// counterparts from table.
func NewBridge(next Invoker, table *syncasync.Table, opts ...BridgeOption) *Bridge {
	b := &Bridge{
		next:     next,
		table:    table,
		def:      config.DefaultTimeout.Std(),
		timeouts: make(map[string]time.Duration),
	}
	for _, opt := range opts {
		opt(b)
	}

	return b
}

func (b *Bridge) Invoke(ctx context.Context, inv *contract.Invocation) (any, error) {
	op := inv.Operation()
	if op.Async {
		return b.next.Invoke(ctx, inv)
	}

	counter, ok := b.table.Counterpart(op)
	if !ok {
		return b.next.Invoke(ctx, inv)
	}

	async, err := contract.NewInvocation(counter, inv.Args()...)
	if err != nil {
		return nil, err
	}

	res, err := b.next.Invoke(ctx, async)
	if err != nil {
		return nil, err
	}

	out, ok := res.(*future.Outcome)
	if !ok {
		return nil, fmt.Errorf("%w: %s returned %T", ErrNotOutcome, counter, res)
	}

	waitCtx, cancel := context.WithTimeout(ctx, b.timeout(op))
	defer cancel()

	return out.Wait(waitCtx)
}

func (b *Bridge) timeout(op *contract.Operation) time.Duration {
	if d, ok := b.timeouts[op.String()]; ok {
		return d
	}

	return b.def
}
