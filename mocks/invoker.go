// Package mocks carries test doubles for assembling dispatch clients
// without a live transport.
package mocks

import (
	"context"
	"sync"

	"github.com/strataline/dispatch/core/contract"
	"github.com/strataline/dispatch/core/future"
)

// Invoker answers invocations from a script and records everything it
// sees. Results and failures are keyed "Contract.Operation"; asynchronous
// operations receive their scripted result as a settled outcome.
type Invoker struct {
	mu      sync.Mutex
	calls   []*contract.Invocation
	results map[string]any
	errs    map[string]error
	pending map[string]bool
}

func NewInvoker() *Invoker {
	return &Invoker{
		results: make(map[string]any),
		errs:    make(map[string]error),
		pending: make(map[string]bool),
	}
}

// SetResult scripts the value an operation returns.
func (m *Invoker) SetResult(op string, v any) *Invoker {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.results[op] = v
	return m
}

// SetError scripts the failure an operation returns. Asynchronous
// operations fail through their outcome.
func (m *Invoker) SetError(op string, err error) *Invoker {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.errs[op] = err
	return m
}

// SetPending makes an asynchronous operation return an outcome that never
// settles.
func (m *Invoker) SetPending(op string) *Invoker {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pending[op] = true
	return m
}

// Invocations returns everything invoked so far, in order.
func (m *Invoker) Invocations() []*contract.Invocation {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]*contract.Invocation(nil), m.calls...)
}

// Invoked reports how many times an operation was invoked.
func (m *Invoker) Invoked(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, call := range m.calls {
		if call.Operation().String() == op {
			n++
		}
	}

	return n
}

func (m *Invoker) Invoke(_ context.Context, inv *contract.Invocation) (any, error) {
	m.mu.Lock()
	m.calls = append(m.calls, inv)
	op := inv.Operation()
	err, failed := m.errs[op.String()]
	v := m.results[op.String()]
	pending := m.pending[op.String()]
	m.mu.Unlock()

	if op.Async {
		if pending {
			return future.New(), nil
		}

		out := future.New()
		if failed {
			out.Fail(err)
		} else {
			out.Complete(v)
		}
		return out, nil
	}

	if failed {
		return nil, err
	}

	return v, nil
}
