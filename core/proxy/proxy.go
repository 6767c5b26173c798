// Package proxy builds callable facades for described contracts. A facade
// is an instance of the contract struct whose func fields record the call
// as an invocation and hand it to a handler; identity operations are
// answered by the proxy itself and never reach the handler.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"reflect"
	"sync"

	"github.com/strataline/dispatch/core/contract"
	"github.com/strataline/dispatch/core/future"
)

var (
	ErrNilContract = errors.New("proxy requires a contract")
	ErrNilHandler  = errors.New("proxy requires a handler")
)

// Handler receives the invocations a facade produces.
type Handler interface {
	Handle(ctx context.Context, inv *contract.Invocation) (any, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, inv *contract.Invocation) (any, error)

func (f HandlerFunc) Handle(ctx context.Context, inv *contract.Invocation) (any, error) {
	return f(ctx, inv)
}

// Hasher lets a handler supply the hash its facades report.
type Hasher interface {
	Hash() uint64
}

var (
	facadesMu sync.RWMutex
	facades   = make(map[uintptr]*Proxy)
)

// Proxy ties one facade instance to its contract and handler.
type Proxy struct {
	contract *contract.Contract
	handler  Handler
	facade   reflect.Value
}

// New builds a facade for c whose operations dispatch through h.
func New(c *contract.Contract, h Handler) (*Proxy, error) {
	if c == nil {
		return nil, ErrNilContract
	}
	if h == nil {
		return nil, ErrNilHandler
	}

	p := &Proxy{contract: c, handler: h, facade: reflect.New(c.Type())}

	elem := p.facade.Elem()
	for _, op := range c.Operations() {
		field := elem.Field(op.FieldIndex())
		if op.Kind == contract.KindIdentity {
			field.Set(p.bindIdentity(op, field.Type()))
		} else {
			field.Set(p.bind(op, field.Type()))
		}
	}

	facadesMu.Lock()
	facades[p.facade.Pointer()] = p
	facadesMu.Unlock()

	return p, nil
}

// Of returns the proxy behind a facade pointer, if the facade is live.
func Of(facade any) (*Proxy, bool) {
	if facade == nil {
		return nil, false
	}

	v := reflect.ValueOf(facade)
	if v.Kind() != reflect.Ptr {
		return nil, false
	}

	facadesMu.RLock()
	defer facadesMu.RUnlock()

	p, ok := facades[v.Pointer()]
	return p, ok
}

// Facade returns the facade as a pointer to the contract struct.
func (p *Proxy) Facade() any {
	return p.facade.Interface()
}

// Contract returns the contract the facade implements.
func (p *Proxy) Contract() *contract.Contract {
	return p.contract
}

// Handler returns the handler invocations are dispatched to.
func (p *Proxy) Handler() Handler {
	return p.handler
}

// Release forgets the facade. Identity lookups through Of stop working;
// dispatch through already-held references keeps functioning.
func (p *Proxy) Release() {
	facadesMu.Lock()
	delete(facades, p.facade.Pointer())
	facadesMu.Unlock()
}

func (p *Proxy) String() string {
	return fmt.Sprintf("%s -> %v", p.contract.Name(), p.handler)
}

// Hash is stable across facades of the same handler, matching Equal.
func (p *Proxy) Hash() uint64 {
	if hs, ok := p.handler.(Hasher); ok {
		return hs.Hash()
	}

	h := fnv.New64a()
	fmt.Fprintf(h, "%s:%s", p.contract.Name(), handlerFingerprint(p.handler))

	return h.Sum64()
}

// Equal reports whether other is a facade (or proxy) over the same contract
// type and the same handler.
func (p *Proxy) Equal(other any) bool {
	q, ok := other.(*Proxy)
	if !ok {
		if q, ok = Of(other); !ok {
			return false
		}
	}

	if q == p {
		return true
	}
	if q.contract.Type() != p.contract.Type() {
		return false
	}

	return handlersEqual(p.handler, q.handler)
}

func handlersEqual(a, b Handler) bool {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() || !va.Type().Comparable() {
		return false
	}

	return a == b
}

func handlerFingerprint(h Handler) string {
	v := reflect.ValueOf(h)
	switch v.Kind() {
	case reflect.Ptr, reflect.Func, reflect.Map, reflect.Chan, reflect.UnsafePointer:
		return fmt.Sprintf("%s@%x", v.Type(), v.Pointer())
	default:
		return fmt.Sprintf("%s@%v", v.Type(), h)
	}
}

func (p *Proxy) bindIdentity(op *contract.Operation, fn reflect.Type) reflect.Value {
	switch op.Name {
	case "String":
		return reflect.MakeFunc(fn, func([]reflect.Value) []reflect.Value {
			return []reflect.Value{reflect.ValueOf(p.String())}
		})
	case "Equal":
		return reflect.MakeFunc(fn, func(args []reflect.Value) []reflect.Value {
			return []reflect.Value{reflect.ValueOf(p.Equal(args[0].Interface()))}
		})
	default:
		return reflect.MakeFunc(fn, func([]reflect.Value) []reflect.Value {
			return []reflect.Value{reflect.ValueOf(p.Hash())}
		})
	}
}

// bind produces the func value for one dispatched operation: capture the
// arguments as an invocation, run the handler, map the outcome back onto
// the field's return list.
func (p *Proxy) bind(op *contract.Operation, fn reflect.Type) reflect.Value {
	return reflect.MakeFunc(fn, func(args []reflect.Value) []reflect.Value {
		ctx := context.Background()
		if op.HasContext {
			if c, ok := args[0].Interface().(context.Context); ok && c != nil {
				ctx = c
			}
			args = args[1:]
		}

		business := make([]any, len(args))
		for i, a := range args {
			business[i] = a.Interface()
		}

		inv, err := contract.NewInvocation(op, business...)

		var result any
		if err == nil {
			result, err = p.handler.Handle(ctx, inv)
		}

		return p.results(op, fn, result, err)
	})
}

func (p *Proxy) results(op *contract.Operation, fn reflect.Type, result any, err error) []reflect.Value {
	if err != nil && op.Async {
		// Failures of an asynchronous operation travel inside the outcome.
		o := future.New()
		o.Fail(err)
		result, err = o, nil
	}
	if err != nil && !op.ReturnsErr {
		panic(fmt.Sprintf("proxy: %s failed with no error return: %v", op, err))
	}

	out := make([]reflect.Value, fn.NumOut())

	if op.Returns != nil {
		slot := reflect.New(fn.Out(0)).Elem()
		if err == nil && result != nil {
			rv := reflect.ValueOf(result)
			if !rv.Type().AssignableTo(slot.Type()) {
				panic(fmt.Sprintf("proxy: %s returned %T, want %s", op, result, slot.Type()))
			}
			slot.Set(rv)
		}
		out[0] = slot
	}

	if op.ReturnsErr {
		last := fn.NumOut() - 1
		if err != nil {
			out[last] = reflect.ValueOf(&err).Elem()
		} else {
			out[last] = reflect.Zero(fn.Out(last))
		}
	}

	return out
}
