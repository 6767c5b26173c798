package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// TraceContext carries the context a span chain grows from, remembering
// whether the chain was started by a remote party.
type TraceContext struct {
	ctx       context.Context
	remote    bool
	remoteCtx context.Context
}

// Context returns the underlying context, never nil.
func (tc TraceContext) Context() context.Context {
	if tc.ctx == nil {
		return context.Background()
	}

	return tc.ctx
}

// Remote reports whether the chain was started outside this process.
func (tc TraceContext) Remote() bool {
	return tc.remote
}

type TracingHandler struct {
	Tracer      trace.Tracer
	Propagators propagation.TextMapPropagator
	isInit      bool
}

// TracingIsInit checks if telemetry was initialized
func (th *TracingHandler) TracingIsInit() bool {
	return th.isInit
}

// TracingInit sets tracing telemetry init param as true
func (th *TracingHandler) TracingInit() {
	th.isInit = true
}

// StartNewSpan starts new span
func (th *TracingHandler) StartNewSpan(traceCtx TraceContext, spanName string, opts ...trace.SpanStartOption) (TraceContext, trace.Span) {
	if traceCtx.ctx == nil {
		traceCtx.ctx = context.Background()
	}

	ctx, span := th.Tracer.Start(traceCtx.ctx, spanName, opts...)
	return TraceContext{
		ctx:       ctx,
		remote:    traceCtx.remote,
		remoteCtx: traceCtx.remoteCtx,
	}, span
}

// ContextFrom wraps a live context into a TraceContext, noting whether the
// active span arrived from a remote caller.
func (th *TracingHandler) ContextFrom(ctx context.Context) TraceContext {
	if ctx == nil {
		ctx = context.Background()
	}

	traceCtx := TraceContext{ctx: ctx}
	if trace.SpanContextFromContext(ctx).IsRemote() {
		traceCtx.remote = true
		traceCtx.remoteCtx = ctx
	}

	return traceCtx
}

// RemoteCarrier renders the remote span context as a carrier, empty when
// the chain is local.
func (th *TracingHandler) RemoteCarrier(traceCtx TraceContext) propagation.MapCarrier {
	carrier := propagation.MapCarrier{}
	if !traceCtx.remote {
		return carrier
	}

	th.Propagators.Inject(traceCtx.remoteCtx, carrier)
	return carrier
}

// ExtractContext restores a TraceContext from a carrier received off the
// wire.
func (th *TracingHandler) ExtractContext(carrier propagation.MapCarrier) TraceContext {
	ctx := th.Propagators.Extract(context.Background(), carrier)

	return TraceContext{
		ctx:       ctx,
		remote:    trace.SpanContextFromContext(ctx).IsRemote(),
		remoteCtx: ctx,
	}
}
