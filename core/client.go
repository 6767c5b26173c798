package core

import (
	"context"
	"fmt"
	"reflect"

	"go.opentelemetry.io/otel"

	"github.com/strataline/dispatch/core/config"
	"github.com/strataline/dispatch/core/contract"
	"github.com/strataline/dispatch/core/invoker"
	"github.com/strataline/dispatch/core/invoker/rest"
	"github.com/strataline/dispatch/core/logger"
	"github.com/strataline/dispatch/core/proxy"
	"github.com/strataline/dispatch/core/resolve"
	"github.com/strataline/dispatch/core/syncasync"
	"github.com/strataline/dispatch/core/telemetry"
)

// Option configures a Client under assembly.
type Option func(opts *clientOptions) error

type contractPair struct {
	syncPrototype  any
	asyncPrototype any
}

type binding struct {
	qualifier string
	value     any
}

type clientOptions struct {
	invoker   invoker.Invoker
	factory   invoker.Factory
	mux       *invoker.Mux
	container *resolve.Container
	bindings  []binding
	pairs     []contractPair
	kinds     contract.Kinds
	presence  PresencePolicy
	cfg       *config.Config
	service   string
	bridge    bool
	name      string
}

// WithInvoker routes every network-bound operation through inv.
func WithInvoker(inv invoker.Invoker) Option {
	return func(o *clientOptions) error {
		o.invoker = inv
		return nil
	}
}

// WithFactory builds the invoker per contract through f.
func WithFactory(f invoker.Factory) Option {
	return func(o *clientOptions) error {
		o.factory = f
		return nil
	}
}

// WithMux selects the invoker factory per contract type through m.
func WithMux(m *invoker.Mux) Option {
	return func(o *clientOptions) error {
		o.mux = m
		return nil
	}
}

// WithContainer supplies the component container provided values resolve
// from. Without it the client starts an empty one.
func WithContainer(c *resolve.Container) Option {
	return func(o *clientOptions) error {
		o.container = c
		return nil
	}
}

// WithValue binds value under its dynamic type and qualifier in the
// client's container.
func WithValue(qualifier string, value any) Option {
	return func(o *clientOptions) error {
		o.bindings = append(o.bindings, binding{qualifier: qualifier, value: value})
		return nil
	}
}

// WithPair registers a synchronous contract and its asynchronous twin.
// Signatures are checked eagerly: assembly fails on the first mismatch.
func WithPair(syncPrototype, asyncPrototype any) Option {
	return func(o *clientOptions) error {
		o.pairs = append(o.pairs, contractPair{syncPrototype: syncPrototype, asyncPrototype: asyncPrototype})
		return nil
	}
}

// WithErrorKinds extends the failure vocabulary throws tags may name.
func WithErrorKinds(kinds contract.Kinds) Option {
	return func(o *clientOptions) error {
		o.kinds = kinds
		return nil
	}
}

// WithPresencePolicy gates optional delegation targets through p.
func WithPresencePolicy(p PresencePolicy) Option {
	return func(o *clientOptions) error {
		o.presence = p
		return nil
	}
}

// WithConfig attaches the client settings: the negotiated API version
// gates optional targets, and the config itself is bound in the container.
func WithConfig(cfg *config.Config) Option {
	return func(o *clientOptions) error {
		o.cfg = cfg
		return nil
	}
}

// WithTracing installs the global trace provider under serviceName and
// turns span emission on for every dispatched invocation.
func WithTracing(serviceName string) Option {
	return func(o *clientOptions) error {
		o.service = serviceName
		return nil
	}
}

// WithBridge rewrites synchronous operations onto their asynchronous
// counterparts and awaits the outcome under the configured timeouts.
func WithBridge() Option {
	return func(o *clientOptions) error {
		o.bridge = true
		return nil
	}
}

// WithName overrides the root contract's name.
func WithName(name string) Option {
	return func(o *clientOptions) error {
		o.name = name
		return nil
	}
}

// Client owns one described contract tree and the dispatcher behind its
// root facade.
type Client struct {
	rt    *runtime
	cfg   *config.Config
	root  *Dispatcher
	proxy *proxy.Proxy
}

// New describes prototype and assembles the dispatch machinery behind it.
// The returned client hands out the root facade.
func New(prototype any, options ...Option) (*Client, error) {
	opts := clientOptions{}
	for _, option := range options {
		if err := option(&opts); err != nil {
			return nil, fmt.Errorf("reading opts: %w", err)
		}
	}

	registry := contract.NewRegistry()
	baseOpts := []contract.Option{contract.WithRegistry(registry)}
	if opts.kinds != nil {
		baseOpts = append(baseOpts, contract.WithErrorKinds(opts.kinds))
	}

	rootOpts := baseOpts
	if opts.name != "" {
		rootOpts = append(rootOpts[:len(rootOpts):len(rootOpts)], contract.WithName(opts.name))
	}

	root, err := contract.Describe(prototype, rootOpts...)
	if err != nil {
		return nil, fmt.Errorf("describing contract: %w", err)
	}

	table := syncasync.NewTable()
	if _, _, err := rest.Contracts(registry, table); err != nil {
		return nil, fmt.Errorf("describing caller contracts: %w", err)
	}

	for _, pair := range opts.pairs {
		sc, err := contract.Describe(pair.syncPrototype, baseOpts...)
		if err != nil {
			return nil, fmt.Errorf("describing contract: %w", err)
		}
		ac, err := contract.Describe(pair.asyncPrototype, baseOpts...)
		if err != nil {
			return nil, fmt.Errorf("describing contract: %w", err)
		}
		if err := table.Register(sc, ac); err != nil {
			return nil, fmt.Errorf("pairing contracts: %w", err)
		}
	}

	container := opts.container
	if container == nil {
		container = resolve.New()
	}
	if opts.cfg != nil {
		if err := container.Bind(resolve.KeyOf[*config.Config](""), opts.cfg); err != nil {
			return nil, fmt.Errorf("binding config: %w", err)
		}
	}
	for _, b := range opts.bindings {
		key := resolve.Key{Type: reflect.TypeOf(b.value), Qualifier: b.qualifier}
		if err := container.Bind(key, b.value); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	presence := opts.presence
	if presence == nil {
		if opts.cfg != nil && opts.cfg.APIVersion != "" {
			presence = PresentSince(opts.cfg.APIVersion)
		} else {
			presence = AlwaysPresent()
		}
	}

	tracing := &telemetry.TracingHandler{}
	if opts.service != "" {
		var settings *config.Trace
		if opts.cfg != nil {
			settings = opts.cfg.Trace
		}
		telemetry.InstallTraceProvider(settings, opts.service)
		tracing.TracingInit()
	}
	tracing.Tracer = otel.Tracer("dispatch")
	tracing.Propagators = otel.GetTextMapPropagator()

	rt := &runtime{
		registry:   registry,
		container:  container,
		table:      table,
		factoryFor: factorySelector(&opts),
		presence:   presence,
		tracing:    tracing,
		log:        logger.Logger(),
	}
	if opts.bridge {
		rt.factoryFor = bridged(rt, opts.cfg)
	}

	rootInv, err := rt.buildInvoker(context.Background(), root)
	if err != nil {
		return nil, fmt.Errorf("building invoker for %s: %w", root.Name(), err)
	}

	d := newDispatcher(rt, root, rootInv)
	p, err := proxy.New(root, d)
	if err != nil {
		return nil, fmt.Errorf("building facade: %w", err)
	}

	return &Client{rt: rt, cfg: opts.cfg, root: d, proxy: p}, nil
}

// factorySelector resolves which invoker factory serves a contract type.
// A mux wins over a fixed factory, which wins over a single invoker.
func factorySelector(opts *clientOptions) func(t reflect.Type) (invoker.Factory, error) {
	switch {
	case opts.mux != nil:
		return opts.mux.FactoryFor
	case opts.factory != nil:
		f := opts.factory
		return func(reflect.Type) (invoker.Factory, error) { return f, nil }
	default:
		f := invoker.Single(opts.invoker)
		return func(reflect.Type) (invoker.Factory, error) { return f, nil }
	}
}

// bridged wraps every factory the selector hands out so synchronous
// operations run over their asynchronous counterparts.
func bridged(rt *runtime, cfg *config.Config) func(t reflect.Type) (invoker.Factory, error) {
	inner := rt.factoryFor
	var bridgeOpts []invoker.BridgeOption
	if cfg != nil {
		if d := cfg.DefaultTimeout.Std(); d > 0 {
			bridgeOpts = append(bridgeOpts, invoker.WithDefaultTimeout(d))
		}
		for op, d := range cfg.Timeouts {
			bridgeOpts = append(bridgeOpts, invoker.WithTimeout(op, d.Std()))
		}
	}

	return func(t reflect.Type) (invoker.Factory, error) {
		f, err := inner(t)
		if err != nil {
			return nil, err
		}
		return bridgedFactory{next: f, table: rt.table, opts: bridgeOpts}, nil
	}
}

type bridgedFactory struct {
	next  invoker.Factory
	table *syncasync.Table
	opts  []invoker.BridgeOption
}

func (f bridgedFactory) Shape() invoker.Shape {
	return f.next.Shape()
}

func (f bridgedFactory) For(ctx context.Context, t invoker.Target) (invoker.Invoker, error) {
	inv, err := f.next.For(ctx, t)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, nil
	}

	return invoker.NewBridge(inv, f.table, f.opts...), nil
}

// Facade returns the root facade, a pointer to a populated copy of the
// prototype's type.
func (c *Client) Facade() any {
	return c.proxy.Facade()
}

// FacadeOf returns the root facade typed as *T.
func FacadeOf[T any](c *Client) (*T, error) {
	f, ok := c.proxy.Facade().(*T)
	if !ok {
		return nil, fmt.Errorf("%w: facade is %T", ErrFacadeType, c.proxy.Facade())
	}

	return f, nil
}

// Contract returns the described root contract.
func (c *Client) Contract() *contract.Contract {
	return c.root.c
}

// Container returns the component container provided values resolve from.
func (c *Client) Container() *resolve.Container {
	return c.rt.container
}

// Call invokes a root operation by name.
func (c *Client) Call(ctx context.Context, name string, args ...any) (any, error) {
	op, ok := c.root.c.Operation(name)
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownOperation, name)
	}

	inv, err := contract.NewInvocation(op, args...)
	if err != nil {
		return nil, err
	}

	return c.root.Handle(ctx, inv)
}

// Close releases the root facade and every delegated facade built under it.
func (c *Client) Close() {
	c.root.release()
	c.proxy.Release()
}
