package contract

import (
	"reflect"
	"sync"
)

// Contract is the descriptor table of one contract struct type. It is built
// by Describe and read-only afterwards, safe for concurrent use.
type Contract struct {
	typ    reflect.Type
	name   string
	ops    []*Operation
	byName map[string]*Operation
	byWire map[string]*Operation
}

// Type returns the underlying contract struct type.
func (c *Contract) Type() reflect.Type {
	return c.typ
}

// Name returns the contract name, the struct type name unless overridden.
func (c *Contract) Name() string {
	return c.name
}

// Operations returns the operation table in declaration order. The returned
// slice is shared; callers must not modify it.
func (c *Contract) Operations() []*Operation {
	return c.ops
}

// Operation looks an operation up by its field name.
func (c *Contract) Operation(name string) (*Operation, bool) {
	op, ok := c.byName[name]
	return op, ok
}

// ByWireName looks an operation up by its wire name.
func (c *Contract) ByWireName(wire string) (*Operation, bool) {
	op, ok := c.byWire[wire]
	return op, ok
}

func (c *Contract) String() string {
	return c.name
}

// Registry maps contract struct types to their descriptors. Describe
// registers every contract it visits, including delegation targets, so the
// dispatcher can look targets up without re-deriving them per call.
type Registry struct {
	mu     sync.RWMutex
	byType map[reflect.Type]*Contract
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byType: make(map[reflect.Type]*Contract)}
}

// Lookup returns the descriptor registered for the struct type t.
func (r *Registry) Lookup(t reflect.Type) (*Contract, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.byType[t]
	return c, ok
}

// Contracts returns the registered descriptors in no particular order.
func (r *Registry) Contracts() []*Contract {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Contract, 0, len(r.byType))
	for _, c := range r.byType {
		out = append(out, c)
	}

	return out
}

func (r *Registry) add(c *Contract) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byType[c.typ] = c
}

func (r *Registry) remove(t reflect.Type) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.byType, t)
}
