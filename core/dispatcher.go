package core

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"reflect"
	"sync"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/strataline/dispatch/core/caller"
	"github.com/strataline/dispatch/core/contract"
	"github.com/strataline/dispatch/core/future"
	"github.com/strataline/dispatch/core/invoker"
	"github.com/strataline/dispatch/core/proxy"
	"github.com/strataline/dispatch/core/resolve"
	"github.com/strataline/dispatch/core/syncasync"
	"github.com/strataline/dispatch/core/telemetry"
)

// runtime is the machinery every dispatcher of one client shares: the
// registry of described contracts, the component container, the sync/async
// pairing table, the factory selector, and the ambient handlers.
type runtime struct {
	registry   *contract.Registry
	container  *resolve.Container
	table      *syncasync.Table
	factoryFor func(t reflect.Type) (invoker.Factory, error)
	presence   PresencePolicy
	tracing    *telemetry.TracingHandler
	log        *logrus.Entry
}

// buildInvoker picks the factory for target and applies it, resolving the
// asynchronous side of the contract first when the factory builds per pair.
func (rt *runtime) buildInvoker(ctx context.Context, target *contract.Contract) (invoker.Invoker, error) {
	factory, err := rt.factoryFor(target.Type())
	if err != nil {
		return nil, err
	}

	t := invoker.Target{Contract: target}
	if factory.Shape() == invoker.ShapePerPair {
		async, err := rt.asyncCounterpart(target)
		if err != nil {
			return nil, err
		}
		t.Async = async
	}

	return factory.For(ctx, t)
}

func (rt *runtime) asyncCounterpart(target *contract.Contract) (*contract.Contract, error) {
	if rt.table.IsAsyncType(target.Type()) {
		return target, nil
	}

	if at, ok := rt.table.AsyncType(target.Type()); ok {
		if ac, ok := rt.registry.Lookup(at); ok {
			return ac, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrNoAsyncCounterpart, target.Name())
}

// Dispatcher routes the invocations of one contract. Identity operations
// are answered locally, provided values come from the container, delegations
// spawn facades over narrower contracts, and calls go out through the
// invoker. Errors leaving any route are screened by the operation's declared
// failure set.
type Dispatcher struct {
	rt  *runtime
	c   *contract.Contract
	inv invoker.Invoker

	mu       sync.Mutex
	children map[string]*proxy.Proxy
}

func newDispatcher(rt *runtime, c *contract.Contract, inv invoker.Invoker) *Dispatcher {
	return &Dispatcher{rt: rt, c: c, inv: inv, children: make(map[string]*proxy.Proxy)}
}

func (d *Dispatcher) String() string {
	return fmt.Sprintf("dispatch(%s)", d.c.Name())
}

// Hash implements proxy.Hasher.
func (d *Dispatcher) Hash() uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s@%p", d.c.Name(), d)
	return h.Sum64()
}

// Equal reports whether other is a facade (or dispatcher) carried by this
// same dispatcher.
func (d *Dispatcher) Equal(other any) bool {
	if other == nil {
		return false
	}

	if p, ok := proxy.Of(other); ok {
		h, ok := p.Handler().(*Dispatcher)
		if !ok {
			return false
		}
		other = h
	}

	o, ok := other.(*Dispatcher)
	return ok && o == d
}

// Handle implements proxy.Handler.
func (d *Dispatcher) Handle(ctx context.Context, inv *contract.Invocation) (any, error) {
	op := inv.Operation()

	ctx, end := d.span(ctx, inv)

	var v any
	var err error
	switch op.Kind {
	case contract.KindIdentity:
		v, err = d.identity(inv)
	case contract.KindProvides:
		v, err = d.provide(ctx, op)
	case contract.KindDelegate:
		v, err = d.delegate(ctx, inv)
	default:
		v, err = d.perform(ctx, inv)
	}

	end(err)

	if err != nil {
		entry := d.rt.log.WithFields(logrus.Fields{
			"operation":  op.String(),
			"invocation": inv.ID(),
		}).WithError(err)

		// Undeclared failures are the ones worth flagging; declared kinds
		// and cancellation are normal traffic.
		var failure *Failure
		if errors.As(err, &failure) {
			entry.Warn("invocation failed")
		} else {
			entry.Debug("invocation failed")
		}
	}

	return v, err
}

func (d *Dispatcher) span(ctx context.Context, inv *contract.Invocation) (context.Context, func(error)) {
	if d.rt.tracing == nil || !d.rt.tracing.TracingIsInit() {
		return ctx, func(error) {}
	}

	op := inv.Operation()
	traceCtx, sp := d.rt.tracing.StartNewSpan(d.rt.tracing.ContextFrom(ctx), op.String(),
		trace.WithAttributes(
			telemetry.ContractName(d.c.Name()),
			telemetry.OperationName(op.Name),
			telemetry.OperationKind(op.Kind.String()),
			telemetry.InvocationID(inv.ID()),
		))

	return traceCtx.Context(), func(err error) {
		if err != nil {
			sp.RecordError(err)
			sp.SetStatus(codes.Error, err.Error())
		}
		sp.End()
	}
}

// identity answers the universal operations when they are invoked by name.
// Facade method calls never land here: the proxy short-circuits them.
func (d *Dispatcher) identity(inv *contract.Invocation) (any, error) {
	op := inv.Operation()
	switch op.Name {
	case "String":
		return d.String(), nil
	case "Hash":
		return d.Hash(), nil
	case "Equal":
		return d.Equal(inv.Arg(0)), nil
	}

	return nil, &Failure{Op: op.String(), Err: errors.New("unhandled identity operation")}
}

func (d *Dispatcher) provide(ctx context.Context, op *contract.Operation) (any, error) {
	v, err := d.rt.container.Resolve(ctx, resolve.Key{Type: op.Returns, Qualifier: op.Qualifier})
	if err != nil {
		return nil, translate(op, err)
	}

	return v, nil
}

func (d *Dispatcher) delegate(ctx context.Context, inv *contract.Invocation) (any, error) {
	op := inv.Operation()

	if op.Optional {
		present, err := d.rt.presence(op)
		if err != nil {
			return nil, translate(op, err)
		}
		if !present {
			return reflect.Zero(op.Returns).Interface(), nil
		}
	}

	child, err := d.child(ctx, inv)
	if err != nil {
		return nil, translate(op, err)
	}

	if op.Optional {
		return someFacade(op.Returns, child.Facade()), nil
	}

	return child.Facade(), nil
}

// someFacade builds the present optional value around a facade.
func someFacade(optionalType reflect.Type, facade any) any {
	v := reflect.New(optionalType).Elem()
	v.FieldByName("Value").Set(reflect.ValueOf(facade))
	v.FieldByName("Present").SetBool(true)
	return v.Interface()
}

// child returns the facade proxy for a delegation, building it on first
// use. Facades are cached per operation and argument tuple, so repeated
// delegations with equal arguments hand back the identical facade.
func (d *Dispatcher) child(ctx context.Context, inv *contract.Invocation) (*proxy.Proxy, error) {
	key := delegateKey(inv)

	d.mu.Lock()
	cached, ok := d.children[key]
	d.mu.Unlock()
	if ok {
		return cached, nil
	}

	p, err := d.buildChild(ctx, inv)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	if cached, ok := d.children[key]; ok {
		d.mu.Unlock()
		p.Release()
		return cached, nil
	}
	d.children[key] = p
	d.mu.Unlock()

	return p, nil
}

func delegateKey(inv *contract.Invocation) string {
	op := inv.Operation()
	if len(inv.Args()) == 0 {
		return op.Name
	}

	return fmt.Sprintf("%s(%v)", op.Name, inv.Args())
}

// buildChild constructs the delegated facade. The calling frame is active
// only while the capability is built: factories read it to scope what they
// return, and it is released before the facade sees its first invocation.
func (d *Dispatcher) buildChild(ctx context.Context, inv *contract.Invocation) (*proxy.Proxy, error) {
	op := inv.Operation()

	target, ok := d.rt.registry.Lookup(op.Target)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownContract, op.Target)
	}

	scoped, release, err := caller.Enter(ctx, d.c, inv)
	if err != nil {
		return nil, err
	}
	defer func() { _ = release() }()

	next, err := d.rt.buildInvoker(scoped, target)
	if err != nil {
		return nil, err
	}

	return proxy.New(target, newDispatcher(d.rt, target, next))
}

// perform sends the invocation out through the invoker. Synchronous results
// are screened here; asynchronous outcomes are screened when awaited.
func (d *Dispatcher) perform(ctx context.Context, inv *contract.Invocation) (any, error) {
	op := inv.Operation()
	if d.inv == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoInvoker, op)
	}

	v, err := d.inv.Invoke(ctx, inv)
	if err != nil {
		return nil, translate(op, err)
	}

	if op.Async {
		out, ok := v.(*future.Outcome)
		if !ok {
			return nil, &Failure{Op: op.String(), Err: fmt.Errorf("invoker returned %T, want outcome", v)}
		}
		return out, nil
	}

	return v, nil
}

// release drops every cached child facade, recursively.
func (d *Dispatcher) release() {
	d.mu.Lock()
	children := d.children
	d.children = make(map[string]*proxy.Proxy)
	d.mu.Unlock()

	for _, p := range children {
		if child, ok := p.Handler().(*Dispatcher); ok {
			child.release()
		}
		p.Release()
	}
}
