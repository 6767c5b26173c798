package proxy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/strataline/dispatch/core/contract"
	"github.com/strataline/dispatch/core/future"
)

type TestBucketAPI struct {
	String func() string
	Equal  func(any) bool
	Hash   func() uint64

	Get      func(ctx context.Context, name string) (string, error)
	Drop     func(name string)
	FetchAll func(ctx context.Context) *future.Outcome
}

type TestQueueAPI struct {
	Push func(ctx context.Context, item string) error
}

type testRecorder struct {
	mu      sync.Mutex
	last    *contract.Invocation
	lastCtx context.Context
	result  any
	err     error
}

func (r *testRecorder) Handle(ctx context.Context, inv *contract.Invocation) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.last = inv
	r.lastCtx = ctx

	return r.result, r.err
}

func newBucketProxy(t *testing.T, h Handler) (*Proxy, *TestBucketAPI) {
	t.Helper()

	c, err := contract.Describe(&TestBucketAPI{})
	require.NoError(t, err)

	p, err := New(c, h)
	require.NoError(t, err)
	t.Cleanup(p.Release)

	facade, ok := p.Facade().(*TestBucketAPI)
	require.True(t, ok)

	return p, facade
}

type ctxKey string

func TestProxyDispatchesInvocation(t *testing.T) {
	rec := &testRecorder{result: "payload"}
	_, facade := newBucketProxy(t, rec)

	ctx := context.WithValue(context.Background(), ctxKey("tenant"), "acme")
	got, err := facade.Get(ctx, "alpha")
	require.NoError(t, err)
	require.Equal(t, "payload", got)

	require.Equal(t, "Get", rec.last.Operation().Name)
	require.Equal(t, []any{"alpha"}, rec.last.Args())
	require.Equal(t, "acme", rec.lastCtx.Value(ctxKey("tenant")))
}

func TestProxyNilContextBecomesBackground(t *testing.T) {
	rec := &testRecorder{result: ""}
	_, facade := newBucketProxy(t, rec)

	_, err := facade.Get(nil, "alpha") //nolint:staticcheck
	require.NoError(t, err)
	require.NotNil(t, rec.lastCtx)
}

func TestProxyReturnsHandlerError(t *testing.T) {
	errBoom := errors.New("boom")
	rec := &testRecorder{err: errBoom}
	_, facade := newBucketProxy(t, rec)

	got, err := facade.Get(context.Background(), "alpha")
	require.ErrorIs(t, err, errBoom)
	require.Empty(t, got)
}

func TestProxyNilResultYieldsZero(t *testing.T) {
	rec := &testRecorder{}
	_, facade := newBucketProxy(t, rec)

	got, err := facade.Get(context.Background(), "alpha")
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestProxyAsyncPassesOutcomeThrough(t *testing.T) {
	o := future.New()
	o.Complete([]string{"a", "b"})

	rec := &testRecorder{result: o}
	_, facade := newBucketProxy(t, rec)

	got := facade.FetchAll(context.Background())
	require.Same(t, o, got)

	v, err := got.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, v)
}

func TestProxyAsyncFailureBecomesFailedOutcome(t *testing.T) {
	errBoom := errors.New("boom")
	rec := &testRecorder{err: errBoom}
	_, facade := newBucketProxy(t, rec)

	got := facade.FetchAll(context.Background())
	require.NotNil(t, got)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := got.Wait(ctx)
	require.ErrorIs(t, err, errBoom)
}

func TestProxyPanicsWithoutErrorReturn(t *testing.T) {
	rec := &testRecorder{err: errors.New("boom")}
	_, facade := newBucketProxy(t, rec)

	require.PanicsWithValue(t,
		"proxy: TestBucketAPI.Drop failed with no error return: boom",
		func() { facade.Drop("alpha") })
}

func TestProxyPanicsOnResultTypeMismatch(t *testing.T) {
	rec := &testRecorder{result: 42}
	_, facade := newBucketProxy(t, rec)

	require.Panics(t, func() { _, _ = facade.Get(context.Background(), "alpha") })
}

func TestProxyIdentity(t *testing.T) {
	rec := &testRecorder{}
	p, facade := newBucketProxy(t, rec)

	require.Equal(t, p.String(), facade.String())
	require.Contains(t, facade.String(), "TestBucketAPI")
	require.Equal(t, p.Hash(), facade.Hash())

	other, otherFacade := newBucketProxy(t, rec)
	require.True(t, facade.Equal(otherFacade))
	require.True(t, facade.Equal(other))
	require.Equal(t, p.Hash(), other.Hash())

	require.True(t, facade.Equal(p.Facade()))
	require.False(t, facade.Equal(nil))
	require.False(t, facade.Equal(42))

	stranger, strangerFacade := newBucketProxy(t, &testRecorder{})
	_ = stranger
	require.False(t, facade.Equal(strangerFacade))
}

func TestProxyEqualDifferentContracts(t *testing.T) {
	rec := &testRecorder{}
	_, bucket := newBucketProxy(t, rec)

	qc, err := contract.Describe(&TestQueueAPI{})
	require.NoError(t, err)

	qp, err := New(qc, rec)
	require.NoError(t, err)
	t.Cleanup(qp.Release)

	require.False(t, bucket.Equal(qp.Facade()))
}

type testHashedHandler struct {
	testRecorder
}

func (*testHashedHandler) Hash() uint64 { return 7 }

func TestProxyHandlerHashPreferred(t *testing.T) {
	p, facade := newBucketProxy(t, &testHashedHandler{})

	require.Equal(t, uint64(7), p.Hash())
	require.Equal(t, uint64(7), facade.Hash())
}

func TestProxyOfAndRelease(t *testing.T) {
	rec := &testRecorder{}
	p, facade := newBucketProxy(t, rec)

	got, ok := Of(facade)
	require.True(t, ok)
	require.Same(t, p, got)

	_, ok = Of("not a facade")
	require.False(t, ok)

	p.Release()
	_, ok = Of(facade)
	require.False(t, ok)

	// Dispatch still works through held references.
	rec.result = "still here"
	v, err := facade.Get(context.Background(), "alpha")
	require.NoError(t, err)
	require.Equal(t, "still here", v)
}

func TestProxyNilArguments(t *testing.T) {
	_, err := New(nil, &testRecorder{})
	require.ErrorIs(t, err, ErrNilContract)

	c, err := contract.Describe(&TestQueueAPI{})
	require.NoError(t, err)

	_, err = New(c, nil)
	require.ErrorIs(t, err, ErrNilHandler)
}
